package auth

import (
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/runtime"
)

// Service provides authentication and authorization functionality.
// It is the single decision point for permission checks: effective grants are
// the union of unexpired direct grants and role-derived grants, matched under
// the wildcard rules, with a legacy-role fallback for pre-RBAC accounts.
type Service struct {
	db *gorm.DB
}

// NewService creates a new auth service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// DB returns the database handle the service resolves against.
func (s *Service) DB() *gorm.DB {
	return s.db
}

// HasPermission checks if a user holds the required permission.
//
// A database error during grant collection never escalates privilege: the
// check continues with whatever was collected so far, and the final deny is
// safe. When AUTH_MODE is disabled (test environments only) every check
// passes.
func (s *Service) HasPermission(user *models.User, required string) bool {
	if runtime.CurrentAuthMode() == runtime.AuthModeDisabled {
		return true
	}

	if user == nil {
		return false
	}

	required = NormalizeKey(required)

	direct := s.directGrants(user.ID)
	roleKeys, roleLinks := s.roleGrants(user.ID)

	for _, granted := range direct {
		if MatchKey(granted, required) {
			return true
		}
	}

	for _, granted := range roleKeys {
		if MatchKey(granted, required) {
			return true
		}
	}

	// Legacy fallback applies only to accounts with no live direct grants and
	// no role assignments at all. An expired or revoked grant is inert and
	// does not suppress the fallback.
	if len(direct) == 0 && roleLinks == 0 {
		for _, granted := range DefaultGrantsForRole(user.Role) {
			if MatchKey(granted, required) {
				return true
			}
		}
	}

	return false
}

// HasAnyPermission checks if a user holds at least one of the given permissions.
func (s *Service) HasAnyPermission(user *models.User, permissions ...string) bool {
	for _, perm := range permissions {
		if s.HasPermission(user, perm) {
			return true
		}
	}

	return false
}

// HasAllPermissions checks if a user holds all of the given permissions.
func (s *Service) HasAllPermissions(user *models.User, permissions ...string) bool {
	for _, perm := range permissions {
		if !s.HasPermission(user, perm) {
			return false
		}
	}

	return true
}

// GetUserPermissions retrieves the user's effective permission keys: direct
// grants, role grants, and — for legacy accounts — the default-role fallback.
func (s *Service) GetUserPermissions(user *models.User) []string {
	if user == nil {
		return nil
	}

	direct := s.directGrants(user.ID)
	roleKeys, roleLinks := s.roleGrants(user.ID)

	keys := make(map[string]struct{}, len(direct)+len(roleKeys))
	for _, key := range direct {
		keys[key] = struct{}{}
	}

	for _, key := range roleKeys {
		keys[key] = struct{}{}
	}

	if len(direct) == 0 && roleLinks == 0 {
		for _, key := range DefaultGrantsForRole(user.Role) {
			keys[key] = struct{}{}
		}
	}

	result := make([]string, 0, len(keys))
	for key := range keys {
		result = append(result, key)
	}

	return result
}

// directGrants collects the keys of active permissions granted directly to the
// user whose expiry is absent or in the future. All times are compared in UTC.
func (s *Service) directGrants(userID uint64) []string {
	var keys []string

	err := s.db.Table("permissions").
		Joins("JOIN user_permissions ON user_permissions.permission_id = permissions.id").
		Where("user_permissions.user_id = ? AND permissions.is_active = ?", userID, true).
		Where("user_permissions.expires_at IS NULL OR user_permissions.expires_at > ?", time.Now().UTC()).
		Pluck("permissions.key", &keys).Error
	if err != nil {
		log.Warn().Err(err).Uint64("user_id", userID).Msg("failed to collect direct grants")
		return keys
	}

	return keys
}

// roleGrants collects the keys of active permissions reachable through the
// user's role assignments, along with the number of role assignments the user
// holds (needed to decide whether the legacy fallback applies).
func (s *Service) roleGrants(userID uint64) ([]string, int64) {
	var links int64

	if err := s.db.Model(&models.UserRole{}).
		Where("user_id = ?", userID).
		Count(&links).Error; err != nil {
		log.Warn().Err(err).Uint64("user_id", userID).Msg("failed to count role assignments")
	}

	var keys []string

	err := s.db.Table("permissions").
		Select("DISTINCT permissions.key").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ? AND permissions.is_active = ?", userID, true).
		Pluck("permissions.key", &keys).Error
	if err != nil {
		log.Warn().Err(err).Uint64("user_id", userID).Msg("failed to collect role grants")
		return keys, links
	}

	return keys, links
}
