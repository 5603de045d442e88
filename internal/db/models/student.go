package models

import (
	"time"

	"gorm.io/gorm"
)

// Student represents an enrolled student record.
// Students are soft-deletable: deletion sets DeletedAt and ordinary queries
// exclude tombstoned rows automatically. Unique columns (Email, StudentNumber)
// remain unique including tombstones — a natural key is never freed by deletion.
type Student struct {
	// ID is the unique identifier for the student record.
	ID uint64 `gorm:"primaryKey"`
	// UserID links the record to the student's login account, when one exists.
	UserID *uint64 `gorm:"index"`
	// StudentNumber is the unique institutional identifier (e.g., "S1").
	StudentNumber string `gorm:"unique;size:50;not null" validate:"required,max=50"`
	// FirstName is the student's first or given name.
	FirstName string `gorm:"size:100;not null" validate:"required,max=100"`
	// LastName is the student's last or family name.
	LastName string `gorm:"size:100;not null" validate:"required,max=100"`
	// Email is the student's unique email address.
	Email string `gorm:"unique;size:255;not null" validate:"required,email"`
	// EnrolledAt is the date the student enrolled.
	EnrolledAt time.Time
	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft-delete tombstone (nil if not deleted, managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the database table name for the Student model.
// This overrides GORM's default pluralized table naming.
func (Student) TableName() string {
	return "students"
}
