package models

import (
	"time"

	"gorm.io/gorm"
)

// Course represents a taught course.
// Courses are soft-deletable. Grades reference courses without ownership, so
// tombstoning a course leaves its grades intact; ordinary readers simply see
// the dangling reference filtered out at query time.
type Course struct {
	// ID is the unique identifier for the course.
	ID uint64 `gorm:"primaryKey"`
	// Code is the unique course code (e.g., "MATH101").
	Code string `gorm:"unique;size:50;not null" validate:"required,max=50"`
	// Name is the course title.
	Name string `gorm:"size:255;not null" validate:"required,max=255"`
	// Description provides an optional course summary.
	Description string `gorm:"size:1024"`
	// Credits is the credit weight of the course.
	Credits int `gorm:"default:0"`
	// CreatedAt is the timestamp when the course was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the course was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft-delete tombstone (nil if not deleted, managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the database table name for the Course model.
// This overrides GORM's default pluralized table naming.
func (Course) TableName() string {
	return "courses"
}
