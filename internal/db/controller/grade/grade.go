// Package grade provides CRUD operations for grades. Grades are owned by
// their student and follow the student's tombstone.
package grade

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

var (
	// ErrGradeNotFound is returned when a grade is absent or tombstoned.
	ErrGradeNotFound = errors.New("grade not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

var validate = validator.New() //nolint:gochecknoglobals

// Create records a grade for a student and course.
func Create(db *gorm.DB, g *models.Grade) error {
	if db == nil {
		return ErrDBNil
	}

	if err := validate.Struct(g); err != nil {
		return err //nolint:wrapcheck
	}

	return db.Create(g).Error
}

// GetByID retrieves a grade; tombstoned rows are invisible unless
// includeDeleted is set.
func GetByID(db *gorm.DB, id uint64, includeDeleted bool) (*models.Grade, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db
	if includeDeleted {
		query = query.Unscoped()
	}

	var g models.Grade

	result := query.First(&g, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrGradeNotFound
		}

		return nil, result.Error
	}

	return &g, nil
}

// ForStudent returns the (non-tombstoned) grades of one student.
func ForStudent(db *gorm.DB, studentID uint64, includeDeleted bool) ([]models.Grade, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db
	if includeDeleted {
		query = query.Unscoped()
	}

	query = query.Where("student_id = ?", studentID)

	var grades []models.Grade

	err := query.Order("graded_at DESC, id DESC").Find(&grades).Error

	return grades, err
}

// Update applies field updates and returns the before and after states.
func Update(db *gorm.DB, id uint64, updates map[string]any) (old, updated *models.Grade, err error) {
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

// SoftDelete tombstones a grade.
func SoftDelete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	g, err := GetByID(db, id, false)
	if err != nil {
		return err
	}

	return db.Delete(g).Error
}
