// Package course provides CRUD operations for courses. Courses are
// soft-deletable; tombstoning a course does not cascade to grades that
// reference it, since the reference carries no ownership.
package course

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

var (
	// ErrCourseNotFound is returned when a course is absent or tombstoned.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCourseExists is returned when a course code collides with an existing
	// row, tombstoned or not.
	ErrCourseExists = errors.New("course with this code already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

var validate = validator.New() //nolint:gochecknoglobals

// Create inserts a new course. The code stays unique including tombstones.
func Create(db *gorm.DB, c *models.Course) error {
	if db == nil {
		return ErrDBNil
	}

	if err := validate.Struct(c); err != nil {
		return err //nolint:wrapcheck
	}

	var count int64

	if err := db.Unscoped().Model(&models.Course{}).
		Where("code = ?", c.Code).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return ErrCourseExists
	}

	return db.Create(c).Error
}

// GetByID retrieves a course; tombstoned rows are invisible unless
// includeDeleted is set.
func GetByID(db *gorm.DB, id uint64, includeDeleted bool) (*models.Course, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db
	if includeDeleted {
		query = query.Unscoped()
	}

	var c models.Course

	result := query.First(&c, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}

		return nil, result.Error
	}

	return &c, nil
}

// List returns courses with skip/limit pagination, tombstones excluded unless
// includeDeleted is set.
func List(db *gorm.DB, skip, limit int, includeDeleted bool) ([]models.Course, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Model(&models.Course{})
	if includeDeleted {
		query = query.Unscoped()
	}

	if limit <= 0 {
		limit = 100
	}

	var courses []models.Course

	err := query.Order("code ASC").Offset(skip).Limit(limit).Find(&courses).Error

	return courses, err
}

// Update applies field updates and returns the before and after states.
func Update(db *gorm.DB, id uint64, updates map[string]any) (old, updated *models.Course, err error) {
	if db == nil {
		return nil, nil, ErrDBNil
	}

	old, err = GetByID(db, id, false)
	if err != nil {
		return nil, nil, err
	}

	if code, ok := updates["code"]; ok {
		var count int64

		err := db.Unscoped().Model(&models.Course{}).
			Where("id <> ?", id).
			Where("code = ?", code).
			Count(&count).Error
		if err != nil {
			return nil, nil, err
		}

		if count > 0 {
			return nil, nil, ErrCourseExists
		}
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

// SoftDelete tombstones a course. Grades referencing it are left intact;
// ordinary readers see the dangling reference filtered out at query time.
func SoftDelete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	c, err := GetByID(db, id, false)
	if err != nil {
		return err
	}

	return db.Delete(c).Error
}

// Restore clears a course's tombstone.
func Restore(db *gorm.DB, id uint64) (*models.Course, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	c, err := GetByID(db, id, true)
	if err != nil {
		return nil, err
	}

	if err := db.Unscoped().Model(c).Update("deleted_at", nil).Error; err != nil {
		return nil, err
	}

	return GetByID(db, id, false)
}
