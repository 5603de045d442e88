package permission

import (
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

// topActionCount is how many actions the Stats summary reports.
const topActionCount = 5

// ListFilter narrows a permission listing. Zero values mean "no filter".
type ListFilter struct {
	Resource string
	Action   string
	IsActive *bool
	// Search matches key and description with a substring search.
	Search string
}

// List returns permissions matching the filter, ordered by key, with
// skip/limit pagination.
func List(db *gorm.DB, filter ListFilter, skip, limit int) ([]models.Permission, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Model(&models.Permission{})

	if filter.Resource != "" {
		query = query.Where("resource = ?", filter.Resource)
	}

	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("key LIKE ? OR description LIKE ?", pattern, pattern)
	}

	if limit <= 0 {
		limit = 100
	}

	var perms []models.Permission

	err := query.Order("key ASC").Offset(skip).Limit(limit).Find(&perms).Error

	return perms, err
}

// GroupByResource returns all permissions grouped by their resource.
func GroupByResource(db *gorm.DB) (map[string][]models.Permission, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var perms []models.Permission

	if err := db.Order("resource ASC, key ASC").Find(&perms).Error; err != nil {
		return nil, err
	}

	grouped := make(map[string][]models.Permission)
	for _, perm := range perms {
		grouped[perm.Resource] = append(grouped[perm.Resource], perm)
	}

	return grouped, nil
}

// ResourceCount pairs a resource with its permission count.
type ResourceCount struct {
	Resource string `json:"resource"`
	Count    int64  `json:"count"`
}

// ActionCount pairs an action with its permission count.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// Statistics summarises the permission registry.
type Statistics struct {
	Total       int64           `json:"total"`
	Active      int64           `json:"active"`
	RoleGrants  int64           `json:"role_grants"`
	UserGrants  int64           `json:"user_grants"`
	PerResource []ResourceCount `json:"per_resource"`
	TopActions  []ActionCount   `json:"top_actions"`
}

// Stats computes registry totals, per-resource counts, and the most common
// actions.
func Stats(db *gorm.DB) (*Statistics, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	stats := &Statistics{}

	if err := db.Model(&models.Permission{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Permission{}).Where("is_active = ?", true).
		Count(&stats.Active).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.RolePermission{}).Count(&stats.RoleGrants).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.UserPermission{}).Count(&stats.UserGrants).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Permission{}).
		Select("resource, COUNT(*) AS count").
		Group("resource").Order("count DESC, resource ASC").
		Scan(&stats.PerResource).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Permission{}).
		Select("action, COUNT(*) AS count").
		Group("action").Order("count DESC, action ASC").
		Limit(topActionCount).
		Scan(&stats.TopActions).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
