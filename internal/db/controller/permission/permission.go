// Package permission provides the permission registry: CRUD over permissions,
// role grants and direct user grants, plus listing and statistics.
package permission

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/db/models"
)

var (
	// ErrPermissionNotFound is returned when a permission is not found.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrPermissionExists is returned when creating a permission whose key already exists.
	ErrPermissionExists = errors.New("permission already exists")
	// ErrRoleNotFound is returned when a role is not found.
	ErrRoleNotFound = errors.New("role not found")
	// ErrKeyEmpty is returned when a permission key is empty after normalisation.
	ErrKeyEmpty = errors.New("permission key cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// GrantOutcome marks whether a grant call changed anything.
type GrantOutcome string

const (
	// OutcomeGranted means a new grant row was created.
	OutcomeGranted GrantOutcome = "granted"
	// OutcomeAlreadyGranted means the pair already existed; the call was a no-op
	// (or, for user grants with a new expiry, an expiry refresh).
	OutcomeAlreadyGranted GrantOutcome = "already_granted"
	// OutcomeRevoked means an existing grant row was removed.
	OutcomeRevoked GrantOutcome = "revoked"
	// OutcomeNotGranted means revoke found nothing to remove.
	OutcomeNotGranted GrantOutcome = "not_granted"
)

// Create registers a new permission. The key is normalised before the
// uniqueness check; a duplicate key fails with ErrPermissionExists.
func Create(db *gorm.DB, key, resource, action, description string) (*models.Permission, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	key = auth.NormalizeKey(key)
	if key == "" {
		return nil, ErrKeyEmpty
	}

	var existing models.Permission

	result := db.Where("key = ?", key).First(&existing)
	if result.Error == nil {
		return nil, ErrPermissionExists
	}

	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	perm := &models.Permission{
		Key:         key,
		Resource:    resource,
		Action:      action,
		Description: description,
		IsActive:    true,
	}

	if err := db.Create(perm).Error; err != nil {
		return nil, err
	}

	return perm, nil
}

// Update applies a partial update: nil fields are preserved.
func Update(db *gorm.DB, id uint, description *string, isActive *bool) (*models.Permission, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	perm, err := GetByID(db, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if description != nil {
		updates["description"] = *description
	}

	if isActive != nil {
		updates["is_active"] = *isActive
	}

	if len(updates) == 0 {
		return perm, nil
	}

	if err := db.Model(perm).Updates(updates).Error; err != nil {
		return nil, err
	}

	return perm, nil
}

// Delete removes a permission permanently, cascading to its role links and
// direct user grants.
func Delete(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		perm, err := GetByID(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Where("permission_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}

		if err := tx.Where("permission_id = ?", id).Delete(&models.UserPermission{}).Error; err != nil {
			return err
		}

		return tx.Delete(perm).Error
	})
}

// GetByID retrieves a permission by its numeric id.
func GetByID(db *gorm.DB, id uint) (*models.Permission, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var perm models.Permission

	result := db.First(&perm, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPermissionNotFound
		}

		return nil, result.Error
	}

	return &perm, nil
}

// GetByKey retrieves a permission by its (normalised) key.
func GetByKey(db *gorm.DB, key string) (*models.Permission, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var perm models.Permission

	result := db.Where("key = ?", auth.NormalizeKey(key)).First(&perm)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPermissionNotFound
		}

		return nil, result.Error
	}

	return &perm, nil
}

// GrantRole links a permission to a role. Granting an already-granted pair is
// a no-op reported as OutcomeAlreadyGranted.
func GrantRole(db *gorm.DB, roleName, permissionKey string) (GrantOutcome, error) {
	if db == nil {
		return "", ErrDBNil
	}

	role, err := roleByName(db, roleName)
	if err != nil {
		return "", err
	}

	perm, err := GetByKey(db, permissionKey)
	if err != nil {
		return "", err
	}

	var existing models.RolePermission

	result := db.Where("role_id = ? AND permission_id = ?", role.ID, perm.ID).First(&existing)
	if result.Error == nil {
		return OutcomeAlreadyGranted, nil
	}

	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", result.Error
	}

	link := models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}
	if err := db.Create(&link).Error; err != nil {
		return "", err
	}

	return OutcomeGranted, nil
}

// RevokeRole removes a permission from a role. Revoking an absent pair is a
// no-op reported as OutcomeNotGranted.
func RevokeRole(db *gorm.DB, roleName, permissionKey string) (GrantOutcome, error) {
	if db == nil {
		return "", ErrDBNil
	}

	role, err := roleByName(db, roleName)
	if err != nil {
		return "", err
	}

	perm, err := GetByKey(db, permissionKey)
	if err != nil {
		return "", err
	}

	result := db.Where("role_id = ? AND permission_id = ?", role.ID, perm.ID).
		Delete(&models.RolePermission{})
	if result.Error != nil {
		return "", result.Error
	}

	if result.RowsAffected == 0 {
		return OutcomeNotGranted, nil
	}

	return OutcomeRevoked, nil
}

// GrantUser issues a direct grant to a user, optionally expiring. Re-granting
// an existing pair updates the expiry when one is supplied and reports
// OutcomeAlreadyGranted.
func GrantUser(db *gorm.DB, userID uint64, permissionKey string, grantedBy uint64, expiresAt *time.Time) (GrantOutcome, error) {
	if db == nil {
		return "", ErrDBNil
	}

	perm, err := GetByKey(db, permissionKey)
	if err != nil {
		return "", err
	}

	var existing models.UserPermission

	result := db.Where("user_id = ? AND permission_id = ?", userID, perm.ID).First(&existing)
	if result.Error == nil {
		if expiresAt != nil {
			if err := db.Model(&existing).Update("expires_at", expiresAt).Error; err != nil {
				return "", err
			}
		}

		return OutcomeAlreadyGranted, nil
	}

	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", result.Error
	}

	grant := models.UserPermission{
		UserID:       userID,
		PermissionID: perm.ID,
		GrantedBy:    grantedBy,
		GrantedAt:    time.Now().UTC(),
		ExpiresAt:    expiresAt,
	}

	if err := db.Create(&grant).Error; err != nil {
		return "", err
	}

	return OutcomeGranted, nil
}

// RevokeUser removes a direct grant. Revoking an absent grant is a no-op
// reported as OutcomeNotGranted.
func RevokeUser(db *gorm.DB, userID uint64, permissionKey string) (GrantOutcome, error) {
	if db == nil {
		return "", ErrDBNil
	}

	perm, err := GetByKey(db, permissionKey)
	if err != nil {
		return "", err
	}

	result := db.Where("user_id = ? AND permission_id = ?", userID, perm.ID).
		Delete(&models.UserPermission{})
	if result.Error != nil {
		return "", result.Error
	}

	if result.RowsAffected == 0 {
		return OutcomeNotGranted, nil
	}

	return OutcomeRevoked, nil
}

// AssignRole links a role to a user. Idempotent.
func AssignRole(db *gorm.DB, userID uint64, roleName string) (GrantOutcome, error) {
	if db == nil {
		return "", ErrDBNil
	}

	role, err := roleByName(db, roleName)
	if err != nil {
		return "", err
	}

	var existing models.UserRole

	result := db.Where("user_id = ? AND role_id = ?", userID, role.ID).First(&existing)
	if result.Error == nil {
		return OutcomeAlreadyGranted, nil
	}

	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", result.Error
	}

	link := models.UserRole{UserID: userID, RoleID: role.ID}
	if err := db.Create(&link).Error; err != nil {
		return "", err
	}

	return OutcomeGranted, nil
}

func roleByName(db *gorm.DB, name string) (*models.Role, error) {
	var role models.Role

	result := db.Where("name = ?", name).First(&role)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}

		return nil, result.Error
	}

	return &role, nil
}
