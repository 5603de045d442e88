package models

import (
	"time"

	"gorm.io/gorm"
)

// Grade represents a grade awarded to a student for a course.
// Grades are owned by their student: soft-deleting the student soft-deletes
// its grades transitively. The course link is a plain reference and does not
// cascade.
type Grade struct {
	// ID is the unique identifier for the grade.
	ID uint64 `gorm:"primaryKey"`
	// StudentID is the owning student.
	StudentID uint64 `gorm:"not null;index"`
	// Student is the associated student (loaded via foreign key).
	Student Student `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	// CourseID is the referenced course.
	CourseID uint64 `gorm:"not null;index"`
	// Score is the awarded score.
	Score float64 `gorm:"not null" validate:"gte=0,lte=100"`
	// Letter is the optional letter grade ("A", "B+", ...).
	Letter string `gorm:"size:5"`
	// GradedAt is when the grade was awarded.
	GradedAt time.Time
	// CreatedAt is the timestamp when the grade was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the grade was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft-delete tombstone (nil if not deleted, managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the database table name for the Grade model.
// This overrides GORM's default pluralized table naming.
func (Grade) TableName() string {
	return "grades"
}
