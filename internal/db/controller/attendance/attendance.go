// Package attendance provides CRUD operations for attendance records.
// Attendance rows are owned by their student and follow the student's tombstone.
package attendance

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

var (
	// ErrAttendanceNotFound is returned when a record is absent or tombstoned.
	ErrAttendanceNotFound = errors.New("attendance record not found")
	// ErrInvalidDateRange is returned when a query window ends before it starts.
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

var validate = validator.New() //nolint:gochecknoglobals

// Create records attendance for a student on a day.
func Create(db *gorm.DB, a *models.Attendance) error {
	if db == nil {
		return ErrDBNil
	}

	if err := validate.Struct(a); err != nil {
		return err //nolint:wrapcheck
	}

	return db.Create(a).Error
}

// GetByID retrieves an attendance record; tombstoned rows are invisible
// unless includeDeleted is set.
func GetByID(db *gorm.DB, id uint64, includeDeleted bool) (*models.Attendance, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db
	if includeDeleted {
		query = query.Unscoped()
	}

	var a models.Attendance

	result := query.First(&a, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAttendanceNotFound
		}

		return nil, result.Error
	}

	return &a, nil
}

// ForStudent returns a student's attendance inside a date window, newest first.
func ForStudent(db *gorm.DB, studentID uint64, from, to time.Time) ([]models.Attendance, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if to.Before(from) {
		return nil, ErrInvalidDateRange
	}

	var records []models.Attendance

	err := db.Where("student_id = ? AND date >= ? AND date < ?", studentID, from, to).
		Order("date DESC, id DESC").
		Find(&records).Error

	return records, err
}

// Update applies field updates and returns the before and after states.
func Update(db *gorm.DB, id uint64, updates map[string]any) (old, updated *models.Attendance, err error) {
	if db == nil {
		return nil, nil, ErrDBNil
	}

	old, err = GetByID(db, id, false)
	if err != nil {
		return nil, nil, err
	}

	before := *old

	if err := db.Model(old).Updates(updates).Error; err != nil {
		return nil, nil, err
	}

	updated, err = GetByID(db, id, false)
	if err != nil {
		return nil, nil, err
	}

	return &before, updated, nil
}

// SoftDelete tombstones an attendance record.
func SoftDelete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	a, err := GetByID(db, id, false)
	if err != nil {
		return err
	}

	return db.Delete(a).Error
}
