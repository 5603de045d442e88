package models

import (
	"time"

	"gorm.io/gorm"
)

// AttendanceStatus enumerates the possible attendance outcomes for a day.
type AttendanceStatus string

const (
	// AttendancePresent marks the student as present.
	AttendancePresent AttendanceStatus = "present"
	// AttendanceAbsent marks the student as absent.
	AttendanceAbsent AttendanceStatus = "absent"
	// AttendanceLate marks the student as late.
	AttendanceLate AttendanceStatus = "late"
	// AttendanceExcused marks an excused absence.
	AttendanceExcused AttendanceStatus = "excused"
)

// Attendance represents a per-day attendance record for a student.
// Attendance rows are owned by their student and follow the student's tombstone.
type Attendance struct {
	// ID is the unique identifier for the attendance record.
	ID uint64 `gorm:"primaryKey"`
	// StudentID is the owning student.
	StudentID uint64 `gorm:"not null;index"`
	// Student is the associated student (loaded via foreign key).
	Student Student `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	// Date is the calendar day the record covers (UTC midnight).
	Date time.Time `gorm:"not null;index"`
	// Status is the attendance outcome for the day.
	Status AttendanceStatus `gorm:"type:varchar(20);not null" validate:"oneof=present absent late excused"`
	// Note is an optional free-text remark.
	Note string `gorm:"size:512"`
	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft-delete tombstone (nil if not deleted, managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the database table name for the Attendance model.
// This overrides GORM's default pluralized table naming.
func (Attendance) TableName() string {
	return "attendance_records"
}
