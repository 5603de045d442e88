package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

func reloadUser(t *testing.T, db *gorm.DB, id uint64) *models.User {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, id).Error)

	return &user
}

func TestAuthenticateSuccess(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	createUser(t, db, "ok@example.com", "teacher")

	user, err := svc.Authenticate("ok@example.com", "secret", ClientInfo{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "ok@example.com", user.Email)

	var row models.AuditLog
	require.NoError(t, db.Where("action = ?", models.AuditActionLogin).First(&row).Error)
	assert.True(t, row.Success)
	assert.Equal(t, "ok@example.com", row.ResourceID)
	assert.Equal(t, "127.0.0.1", row.IPAddress)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	_, err := svc.Authenticate("nobody@example.com", "secret", ClientInfo{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	var row models.AuditLog
	require.NoError(t, db.Where("action = ?", models.AuditActionLoginFailed).First(&row).Error)
	assert.False(t, row.Success)
	assert.Nil(t, row.UserID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	created := createUser(t, db, "wrong@example.com", "teacher")

	_, err := svc.Authenticate("wrong@example.com", "nope", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	user := reloadUser(t, db, created.ID)
	assert.Equal(t, 1, user.FailedLogins)
	assert.Nil(t, user.LockedUntil)
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	created := createUser(t, db, "disabled@example.com", "teacher")
	require.NoError(t, db.Model(created).Update("is_active", false).Error)

	_, err := svc.Authenticate("disabled@example.com", "secret", ClientInfo{})
	assert.ErrorIs(t, err, ErrUserAccountDisabled)
}

func TestAuthenticateLockout(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	created := createUser(t, db, "locked@example.com", "teacher")

	for i := 0; i < maxFailedLogins; i++ {
		_, err := svc.Authenticate("locked@example.com", "nope", ClientInfo{})
		assert.ErrorIs(t, err, ErrInvalidPassword)
	}

	user := reloadUser(t, db, created.ID)
	require.NotNil(t, user.LockedUntil)
	assert.True(t, user.LockedUntil.After(time.Now().UTC()))
	// the counter restarts when the lockout opens
	assert.Equal(t, 0, user.FailedLogins)

	// even the correct password is rejected while the window is open
	_, err := svc.Authenticate("locked@example.com", "secret", ClientInfo{})
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestAuthenticateLockoutExpires(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	created := createUser(t, db, "expired-lock@example.com", "teacher")
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.Model(created).Updates(map[string]any{
		"locked_until":  past,
		"failed_logins": 0,
	}).Error)

	user, err := svc.Authenticate("expired-lock@example.com", "secret", ClientInfo{})
	require.NoError(t, err)

	// a successful login clears the stale lock
	user = reloadUser(t, db, user.ID)
	assert.Nil(t, user.LockedUntil)
	assert.Equal(t, 0, user.FailedLogins)
}

func TestAuthenticateSuccessResetsCounters(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	created := createUser(t, db, "reset@example.com", "teacher")

	_, err := svc.Authenticate("reset@example.com", "nope", ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = svc.Authenticate("reset@example.com", "secret", ClientInfo{})
	require.NoError(t, err)

	user := reloadUser(t, db, created.ID)
	assert.Equal(t, 0, user.FailedLogins)
}
