package daemon

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/db/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	return db
}

func TestSeedCreatesCatalogue(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Seed(db))

	var permCount int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	assert.Equal(t, int64(len(canonicalPermissions)), permCount)

	var roleCount int64
	require.NoError(t, db.Model(&models.Role{}).Where("is_system = ?", true).Count(&roleCount).Error)
	assert.Equal(t, int64(len(systemRoles)), roleCount)

	// default admin exists and holds the admin role
	var admin models.User
	require.NoError(t, db.Where("email = ?", "admin@localhost").First(&admin).Error)
	assert.Equal(t, "admin", admin.Role)

	var links int64
	require.NoError(t, db.Model(&models.UserRole{}).Where("user_id = ?", admin.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)
}

func TestSeedCoversCanonicalResources(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Seed(db))

	resources := []string{
		"students", "courses", "grades", "attendance", "performance",
		"highlights", "reports", "analytics", "users", "audit",
		"security", "backups", "maintenance",
	}

	for _, resource := range resources {
		var count int64
		require.NoError(t, db.Model(&models.Permission{}).
			Where("resource = ?", resource).Count(&count).Error)
		assert.NotZero(t, count, "resource %s", resource)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Seed(db))
	require.NoError(t, Seed(db))

	var permCount int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	assert.Equal(t, int64(len(canonicalPermissions)), permCount)

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	assert.Equal(t, int64(1), userCount)
}

func TestSeedIsAdditive(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Seed(db))

	// operator adds a custom permission and deactivates a seeded one
	custom := models.Permission{
		Key:      "cafeteria:view",
		Resource: "cafeteria",
		Action:   "view",
		IsActive: true,
	}
	require.NoError(t, db.Create(&custom).Error)

	require.NoError(t, db.Model(&models.Permission{}).
		Where("key = ?", auth.PermStudentsDelete).
		Update("is_active", false).Error)

	require.NoError(t, Seed(db))

	// the custom permission survives
	var kept models.Permission
	require.NoError(t, db.Where("key = ?", "cafeteria:view").First(&kept).Error)

	// the deactivation survives, reseeding does not flip it back
	var toggled models.Permission
	require.NoError(t, db.Where("key = ?", auth.PermStudentsDelete).First(&toggled).Error)
	assert.False(t, toggled.IsActive)
}

func TestSeedDoesNotRecreateAdmin(t *testing.T) {
	db := setupTestDB(t)

	user := models.User{
		Email:    "operator@example.com",
		Password: models.HashPassword("secret"),
		Role:     "staff",
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, Seed(db))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSeedRoleGrantsResolve(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Seed(db))

	for name, keys := range systemRoles {
		var role models.Role
		require.NoError(t, db.Where("name = ?", name).First(&role).Error)

		var linkCount int64
		require.NoError(t, db.Model(&models.RolePermission{}).
			Where("role_id = ?", role.ID).Count(&linkCount).Error)
		assert.Equal(t, int64(len(keys)), linkCount, "role %s", name)
	}
}
