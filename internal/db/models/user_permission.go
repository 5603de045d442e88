package models

import "time"

// UserPermission represents a direct permission grant to a user, bypassing roles.
// Direct grants can carry an expiry; an expired grant is equivalent to not-granted,
// but the row survives for audit recall until explicitly revoked.
type UserPermission struct {
	// UserID is the ID of the user receiving the grant.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// PermissionID is the ID of the granted permission.
	PermissionID uint `gorm:"primaryKey;column:permission_id"`
	// User is the associated user (loaded via foreign key).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// Permission is the associated permission (loaded via foreign key).
	Permission Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"`
	// GrantedBy is the ID of the administrator who issued the grant.
	GrantedBy uint64 `gorm:"column:granted_by"`
	// GrantedAt is the timestamp when the grant was issued.
	GrantedAt time.Time
	// ExpiresAt is the optional expiry of the grant (UTC). Nil means the grant
	// never expires. The resolver ignores grants whose expiry has passed.
	ExpiresAt *time.Time `gorm:"index"`
}

// Expired reports whether the grant has passed its expiry at the given instant.
// Grants without an expiry never expire.
func (up *UserPermission) Expired(now time.Time) bool {
	return up.ExpiresAt != nil && !up.ExpiresAt.After(now)
}

// TableName specifies the database table name for the UserPermission model.
// This overrides GORM's default pluralized table naming.
func (UserPermission) TableName() string {
	return "user_permissions"
}
