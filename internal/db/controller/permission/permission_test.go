package permission

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.UserPermission{},
	))

	return db
}

func createRole(t *testing.T, db *gorm.DB, name string) *models.Role {
	t.Helper()

	role := &models.Role{Name: name}
	require.NoError(t, db.Create(role).Error)

	return role
}

func TestCreateNormalisesKey(t *testing.T) {
	db := setupTestDB(t)

	perm, err := Create(db, "  Students:View ", "students", "view", "")
	require.NoError(t, err)
	assert.Equal(t, "students:view", perm.Key)
	assert.True(t, perm.IsActive)

	_, err = Create(db, "students:view", "students", "view", "")
	assert.ErrorIs(t, err, ErrPermissionExists)

	_, err = Create(db, "   ", "", "", "")
	assert.ErrorIs(t, err, ErrKeyEmpty)
}

func TestUpdatePartial(t *testing.T) {
	db := setupTestDB(t)

	perm, err := Create(db, "students:view", "students", "view", "initial")
	require.NoError(t, err)

	inactive := false
	updated, err := Update(db, perm.ID, nil, &inactive)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	// untouched fields are preserved
	assert.Equal(t, "initial", updated.Description)

	_, err = Update(db, 999, nil, nil)
	assert.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestDeleteCascadesToLinks(t *testing.T) {
	db := setupTestDB(t)

	perm, err := Create(db, "students:view", "students", "view", "")
	require.NoError(t, err)

	createRole(t, db, "registrar")

	outcome, err := GrantRole(db, "registrar", "students:view")
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)

	outcome, err = GrantUser(db, 1, "students:view", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)

	require.NoError(t, Delete(db, perm.ID))

	var roleLinks, userGrants int64
	require.NoError(t, db.Model(&models.RolePermission{}).Count(&roleLinks).Error)
	require.NoError(t, db.Model(&models.UserPermission{}).Count(&userGrants).Error)
	assert.Zero(t, roleLinks)
	assert.Zero(t, userGrants)
}

func TestGrantRoleIdempotent(t *testing.T) {
	db := setupTestDB(t)

	_, err := Create(db, "students:view", "students", "view", "")
	require.NoError(t, err)
	createRole(t, db, "registrar")

	outcome, err := GrantRole(db, "registrar", "students:view")
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)

	outcome, err = GrantRole(db, "registrar", "students:view")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyGranted, outcome)

	var links int64
	require.NoError(t, db.Model(&models.RolePermission{}).Count(&links).Error)
	assert.Equal(t, int64(1), links)

	_, err = GrantRole(db, "nonexistent", "students:view")
	assert.ErrorIs(t, err, ErrRoleNotFound)

	_, err = GrantRole(db, "registrar", "ghost:key")
	assert.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestRevokeRole(t *testing.T) {
	db := setupTestDB(t)

	_, err := Create(db, "students:view", "students", "view", "")
	require.NoError(t, err)
	createRole(t, db, "registrar")

	outcome, err := RevokeRole(db, "registrar", "students:view")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotGranted, outcome)

	_, err = GrantRole(db, "registrar", "students:view")
	require.NoError(t, err)

	outcome, err = RevokeRole(db, "registrar", "students:view")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRevoked, outcome)
}

func TestGrantUserRefreshesExpiry(t *testing.T) {
	db := setupTestDB(t)

	_, err := Create(db, "students:view", "students", "view", "")
	require.NoError(t, err)

	first := time.Now().UTC().Add(24 * time.Hour)

	outcome, err := GrantUser(db, 1, "students:view", 2, &first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)

	later := first.Add(48 * time.Hour)

	outcome, err = GrantUser(db, 1, "students:view", 2, &later)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyGranted, outcome)

	var grant models.UserPermission
	require.NoError(t, db.First(&grant).Error)
	require.NotNil(t, grant.ExpiresAt)
	assert.WithinDuration(t, later, *grant.ExpiresAt, time.Second)

	// re-granting without an expiry keeps the existing one
	outcome, err = GrantUser(db, 1, "students:view", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyGranted, outcome)

	require.NoError(t, db.First(&grant).Error)
	assert.NotNil(t, grant.ExpiresAt)
}

func TestRevokeUser(t *testing.T) {
	db := setupTestDB(t)

	_, err := Create(db, "students:view", "students", "view", "")
	require.NoError(t, err)

	outcome, err := RevokeUser(db, 1, "students:view")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotGranted, outcome)

	_, err = GrantUser(db, 1, "students:view", 2, nil)
	require.NoError(t, err)

	outcome, err = RevokeUser(db, 1, "students:view")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRevoked, outcome)
}

func TestAssignRoleIdempotent(t *testing.T) {
	db := setupTestDB(t)

	createRole(t, db, "registrar")

	outcome, err := AssignRole(db, 1, "registrar")
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)

	outcome, err = AssignRole(db, 1, "registrar")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyGranted, outcome)
}
