// Package audit implements the append-only audit pipeline. Business code
// never constructs audit rows inline; it calls Record once with an Entry and
// the transaction it is running in, so a failed audit write rolls the business
// mutation back with it.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

// maxUserAgentLen caps the stored user agent string.
const maxUserAgentLen = 512

// Entry describes a single security-relevant event. Zero values are omitted
// from the stored record where the schema allows it.
type Entry struct {
	// Action is the event kind; use the models.AuditAction constants.
	Action string
	// Resource is the affected resource in a stable string form.
	Resource string
	// ResourceID identifies the affected entity; ids are stringified by the caller.
	ResourceID string
	// User is the acting principal; nil for pre-authentication events.
	User *models.User
	// IPAddress is the client address.
	IPAddress string
	// UserAgent is the raw client user agent; truncated on write.
	UserAgent string
	// Details is arbitrary structured context, marshalled to JSON.
	Details any
	// Success reports the outcome of the operation.
	Success bool
	// ErrorMessage carries the failure reason when Success is false.
	ErrorMessage string
	// OldValues is the entity state before an update.
	OldValues any
	// NewValues is the entity state after an update.
	NewValues any
	// ChangeReason is a free-text justification for administrative overrides.
	ChangeReason string
	// RequestID is the correlation id of the inbound request.
	RequestID string
}

// Record appends one audit row on the given database handle. Pass the
// transaction of the originating business write so both commit or roll back
// together; login events pass a plain handle so they land in their own
// transaction.
func Record(db *gorm.DB, entry Entry) error {
	row := models.AuditLog{
		Action:       entry.Action,
		Resource:     entry.Resource,
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.IPAddress,
		UserAgent:    truncate(entry.UserAgent, maxUserAgentLen),
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
		ChangeReason: entry.ChangeReason,
		RequestID:    entry.RequestID,
		Timestamp:    time.Now().UTC(),
	}

	if entry.User != nil {
		userID := entry.User.ID
		row.UserID = &userID
		row.UserEmail = entry.User.Email
	}

	var err error

	if row.Details, err = marshal(entry.Details); err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	if row.OldValues, err = marshal(entry.OldValues); err != nil {
		return fmt.Errorf("failed to encode audit old values: %w", err)
	}

	if row.NewValues, err = marshal(entry.NewValues); err != nil {
		return fmt.Errorf("failed to encode audit new values: %w", err)
	}

	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	return nil
}

func marshal(value any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return datatypes.JSON(data), nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}

	return value[:limit]
}
