package models

import "time"

// Permission represents a specific permission in the authorization system.
// Permissions define granular access rights to resources and actions.
// They are assigned to roles, or granted to users directly with an optional expiry.
type Permission struct {
	// ID is the unique identifier for the permission.
	ID uint `gorm:"primaryKey"`
	// Key is the unique permission identifier in resource:action format (e.g., "students:view").
	// Keys are stored lower-cased and trimmed; the legacy dot form is normalised to ":" on input.
	// The reserved keys "resource:*" and "*:*" are wildcard grants.
	Key string `gorm:"unique;size:100;not null"`
	// Resource is the resource this permission applies to (e.g., "students", "grades", "backups").
	Resource string `gorm:"size:100;not null;index"`
	// Action is the action allowed on the resource (e.g., "view", "create", "edit", "delete").
	Action string `gorm:"size:50;not null"`
	// Description provides a human-readable explanation of what this permission grants.
	Description string `gorm:"size:255"`
	// IsActive indicates whether the permission currently participates in resolution.
	// Inactive permissions are ignored by the resolver but kept for audit recall.
	IsActive bool `gorm:"default:true;not null"`
	// CreatedAt is the timestamp when the permission was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the permission was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Permission model.
// This overrides GORM's default pluralized table naming.
func (Permission) TableName() string {
	return "permissions"
}
