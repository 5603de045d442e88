package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded by the audit pipeline.
const (
	// AuditActionCreate records an entity creation.
	AuditActionCreate = "create"
	// AuditActionUpdate records an entity update.
	AuditActionUpdate = "update"
	// AuditActionDelete records an entity deletion (soft or hard).
	AuditActionDelete = "delete"
	// AuditActionRestore records a tombstone resurrection.
	AuditActionRestore = "restore"
	// AuditActionLogin records a successful login.
	AuditActionLogin = "login"
	// AuditActionLoginFailed records a failed login attempt.
	AuditActionLoginFailed = "login_failed"
	// AuditActionExport records a data export (including backup creation).
	AuditActionExport = "export"
	// AuditActionImport records a data import (including backup restore).
	AuditActionImport = "import"
	// AuditActionPermissionDenied records a rejected authorization check.
	AuditActionPermissionDenied = "permission_denied"
)

// AuditLog records a single security-relevant event: who did what, when,
// from where, why, and with what effect.
//
// Rows are append-only. Business code never updates or deletes them, and the
// model deliberately carries no soft-delete tombstone.
type AuditLog struct {
	// ID is the unique identifier for the audit record.
	ID uint64 `gorm:"primaryKey"`
	// Action is the event kind (create, update, delete, login, ...).
	Action string `gorm:"size:50;not null;index:idx_audit_user_action,priority:2;index:idx_audit_resource_action,priority:2;index:idx_audit_time_action,priority:2"`
	// Resource is the affected resource in a stable string form (e.g., "student").
	Resource string `gorm:"size:100;not null;index:idx_audit_resource_action,priority:1"`
	// ResourceID identifies the affected entity. Stored as a string so
	// non-integer identifiers work.
	ResourceID string `gorm:"size:100"`
	// UserID is the acting user; nil for pre-authentication events.
	UserID *uint64 `gorm:"index:idx_audit_user_action,priority:1"`
	// UserEmail is a snapshot of the actor's email, surviving rename or deletion.
	UserEmail string `gorm:"size:255"`
	// IPAddress is the client address (IPv4 or IPv6).
	IPAddress string `gorm:"size:45"`
	// UserAgent is the client user agent, truncated to 512 characters.
	UserAgent string `gorm:"size:512"`
	// Details carries arbitrary structured context for the event.
	Details datatypes.JSON
	// Success reports whether the operation succeeded.
	Success bool `gorm:"not null"`
	// ErrorMessage carries the failure reason when Success is false.
	ErrorMessage string `gorm:"size:1024"`
	// OldValues is the entity state before an update, as JSON.
	OldValues datatypes.JSON
	// NewValues is the entity state after an update, as JSON.
	NewValues datatypes.JSON
	// ChangeReason is a free-text justification for administrative overrides.
	ChangeReason string `gorm:"size:512"`
	// RequestID correlates every record emitted while handling one inbound
	// request (propagated via the X-Request-ID header).
	RequestID string `gorm:"size:64;index"`
	// Timestamp is the server-authoritative event time (UTC).
	Timestamp time.Time `gorm:"not null;index:idx_audit_time_action,priority:1"`
}

// TableName specifies the database table name for the AuditLog model.
// This overrides GORM's default pluralized table naming.
func (AuditLog) TableName() string {
	return "audit_logs"
}
