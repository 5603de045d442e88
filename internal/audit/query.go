package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

// defaultLimit bounds query results when the caller passes a non-positive limit.
const defaultLimit = 100

// ForUser returns the audit history of one user, newest first.
func ForUser(db *gorm.DB, userID uint64, skip, limit int) ([]models.AuditLog, error) {
	var rows []models.AuditLog

	err := db.Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Offset(skip).Limit(clampLimit(limit)).
		Find(&rows).Error

	return rows, err
}

// ForResource returns the audit history of one resource, optionally narrowed
// to a single entity id, newest first.
func ForResource(db *gorm.DB, resource, resourceID string, skip, limit int) ([]models.AuditLog, error) {
	query := db.Where("resource = ?", resource)
	if resourceID != "" {
		query = query.Where("resource_id = ?", resourceID)
	}

	var rows []models.AuditLog

	err := query.Order("timestamp DESC, id DESC").
		Offset(skip).Limit(clampLimit(limit)).
		Find(&rows).Error

	return rows, err
}

// ForRequest returns every record emitted while handling one inbound request,
// in emission order.
func ForRequest(db *gorm.DB, requestID string) ([]models.AuditLog, error) {
	var rows []models.AuditLog

	err := db.Where("request_id = ?", requestID).
		Order("id ASC").
		Find(&rows).Error

	return rows, err
}

// InWindow returns records inside a time window, optionally narrowed to one
// action, newest first. Cross-request ordering is by server clock with row id
// as the tie-breaker.
func InWindow(db *gorm.DB, from, to time.Time, action string, skip, limit int) ([]models.AuditLog, error) {
	query := db.Where("timestamp >= ? AND timestamp < ?", from, to)
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var rows []models.AuditLog

	err := query.Order("timestamp DESC, id DESC").
		Offset(skip).Limit(clampLimit(limit)).
		Find(&rows).Error

	return rows, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}

	return limit
}
