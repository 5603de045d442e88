// Package student provides CRUD operations for student records with the
// soft-delete discipline: ordinary reads exclude tombstoned rows, deletion
// cascades to owned grades and attendance, and natural keys stay unique
// including tombstones.
package student

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

var (
	// ErrStudentNotFound is returned when a student is absent or tombstoned
	// (outside the include-deleted bypass).
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentExists is returned when a unique column collides with an
	// existing row, tombstoned or not.
	ErrStudentExists = errors.New("student with this email or student number already exists")
	// ErrStudentNotDeleted is returned when restoring a student that is not tombstoned.
	ErrStudentNotDeleted = errors.New("student is not deleted")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// validate checks struct tags on create and update payloads.
var validate = validator.New() //nolint:gochecknoglobals

// Create inserts a new student record. Uniqueness of email and student number
// is checked against all rows including tombstones: a natural key is never
// freed by soft deletion.
func Create(db *gorm.DB, s *models.Student) error {
	if db == nil {
		return ErrDBNil
	}

	if err := validate.Struct(s); err != nil {
		return err //nolint:wrapcheck
	}

	var count int64

	err := db.Unscoped().Model(&models.Student{}).
		Where("email = ? OR student_number = ?", s.Email, s.StudentNumber).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return ErrStudentExists
	}

	return db.Create(s).Error
}

// GetByID retrieves a student. Tombstoned rows are invisible unless
// includeDeleted is set (administrative flows only).
func GetByID(db *gorm.DB, id uint64, includeDeleted bool) (*models.Student, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db
	if includeDeleted {
		query = query.Unscoped()
	}

	var s models.Student

	result := query.First(&s, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}

		return nil, result.Error
	}

	return &s, nil
}

// List returns students matching an optional name/email/number substring
// search, with skip/limit pagination. Tombstoned rows are excluded unless
// includeDeleted is set.
func List(db *gorm.DB, search string, skip, limit int, includeDeleted bool) ([]models.Student, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Model(&models.Student{})
	if includeDeleted {
		query = query.Unscoped()
	}

	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where(
			"first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR student_number LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	if limit <= 0 {
		limit = 100
	}

	var students []models.Student

	err := query.Order("id ASC").Offset(skip).Limit(limit).Find(&students).Error

	return students, err
}

// Update applies field updates to a student and returns the before and after
// states for the audit payload.
func Update(db *gorm.DB, id uint64, updates map[string]any) (old, updated *models.Student, err error) {
	if db == nil {
		return nil, nil, ErrDBNil
	}

	old, err = GetByID(db, id, false)
	if err != nil {
		return nil, nil, err
	}

	if err := checkNaturalKeys(db, id, updates); err != nil {
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

// checkNaturalKeys re-runs the tombstone-inclusive uniqueness check when an
// update touches email or student_number, so a collision surfaces as
// ErrStudentExists instead of a driver constraint violation.
func checkNaturalKeys(db *gorm.DB, id uint64, updates map[string]any) error {
	conds := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if email, ok := updates["email"]; ok {
		conds = append(conds, "email = ?")
		args = append(args, email)
	}

	if number, ok := updates["student_number"]; ok {
		conds = append(conds, "student_number = ?")
		args = append(args, number)
	}

	if len(conds) == 0 {
		return nil
	}

	var count int64

	err := db.Unscoped().Model(&models.Student{}).
		Where("id <> ?", id).
		Where(strings.Join(conds, " OR "), args...).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return ErrStudentExists
	}

	return nil
}

// SoftDelete tombstones a student and, transitively, its owned grades and
// attendance records. Course rows referenced by those grades are left intact.
func SoftDelete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		s, err := GetByID(tx, id, false)
		if err != nil {
			return err
		}

		if err := tx.Where("student_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
			return err
		}

		if err := tx.Where("student_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
			return err
		}

		return tx.Delete(s).Error
	})
}

// Restore clears a student's tombstone so the row rejoins ordinary query
// results. Owned children stay tombstoned until restored explicitly.
func Restore(db *gorm.DB, id uint64) (*models.Student, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	s, err := GetByID(db, id, true)
	if err != nil {
		return nil, err
	}

	if !s.DeletedAt.Valid {
		return nil, ErrStudentNotDeleted
	}

	if err := db.Unscoped().Model(s).Update("deleted_at", nil).Error; err != nil {
		return nil, err
	}

	return GetByID(db, id, false)
}

// HardDelete permanently removes a student and its owned children. Permitted
// only in explicit administrative flows; this is what actually frees the
// natural keys.
func HardDelete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		s, err := GetByID(tx, id, true)
		if err != nil {
			return err
		}

		if err := tx.Unscoped().Where("student_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Where("student_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
			return err
		}

		return tx.Unscoped().Delete(s).Error
	})
}
