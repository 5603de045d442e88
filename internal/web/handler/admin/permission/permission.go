// Package permission provides the permission registry management endpoints.
package permission

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/audit"
	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/db/controller/permission"
	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/web/handler"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

const (
	// Path is the base path of the permission management endpoints.
	Path = "/admin/permissions"

	resourceName = "permission"
)

// Service is the permission management handler service.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the permission management handler.
var Handler = Service{}

type createRequest struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

type updateRequest struct {
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type grantRequest struct {
	Key       string     `json:"key"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

// Init registers the management routes behind the permissions:manage guard.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	guard := auth.RequirePermission(authService, auth.PermPermissionsManage)

	app.Get(Path, guard, s.List)
	app.Get(Path+"/stats", guard, s.Stats)
	app.Get(Path+"/by-resource", guard, s.ByResource)
	app.Post(Path, guard, s.Create)
	app.Patch(Path+"/:id", guard, s.Update)
	app.Delete(Path+"/:id", guard, s.Delete)

	app.Post("/admin/roles/:role/grant", guard, s.GrantRole)
	app.Post("/admin/roles/:role/revoke", guard, s.RevokeRole)

	app.Post("/admin/users/:user_id/grant", guard, s.GrantUser)
	app.Post("/admin/users/:user_id/revoke", guard, s.RevokeUser)
	app.Post("/admin/users/:user_id/assign-role", guard, s.AssignRole)
}

// List returns permissions filtered by resource, action, active state and search.
func (s *Service) List(c *fiber.Ctx) error {
	paging := handler.ParsePagination(c)

	filter := permission.ListFilter{
		Resource: c.Query("resource", ""),
		Action:   c.Query("action", ""),
		Search:   c.Query("search", ""),
	}

	if raw := c.Query("is_active", ""); raw != "" {
		active := raw == "1" || raw == "true"
		filter.IsActive = &active
	}

	perms, err := permission.List(s.db, filter, paging.Skip(), paging.PageSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to list permissions")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"permissions": perms, "page": paging.Page, "pageSize": paging.PageSize})
}

// Stats returns registry statistics.
func (s *Service) Stats(c *fiber.Ctx) error {
	stats, err := permission.Stats(s.db)
	if err != nil {
		log.Error().Err(err).Msg("failed to compute permission stats")
		return fiber.ErrInternalServerError
	}

	return c.JSON(stats)
}

// ByResource returns the registry grouped by resource.
func (s *Service) ByResource(c *fiber.Ctx) error {
	groups, err := permission.GroupByResource(s.db)
	if err != nil {
		log.Error().Err(err).Msg("failed to group permissions")
		return fiber.ErrInternalServerError
	}

	return c.JSON(groups)
}

// Create registers a new permission key.
func (s *Service) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	key := auth.NormalizeKey(req.Key)
	resource, action := auth.SplitKey(key)

	var created *models.Permission

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error

		created, err = permission.Create(tx, key, resource, action, req.Description)
		if err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionCreate, key, audit.Entry{
			NewValues: created,
			Success:   true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to create permission")
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// Update changes the description or active state of a permission.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req updateRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var updated *models.Permission

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updated, err = permission.Update(tx, id, req.Description, req.IsActive)
		if err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionUpdate, updated.Key, audit.Entry{
			NewValues: updated,
			Success:   true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to update permission")
	}

	return c.JSON(updated)
}

// Delete removes a permission and every grant referencing it.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := permission.Delete(tx, id); err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionDelete, strconv.FormatUint(uint64(id), 10), audit.Entry{
			Success: true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to delete permission")
	}

	return c.JSON(fiber.Map{"deleted": true})
}

// GrantRole links a permission to a role; granting twice is a no-op.
func (s *Service) GrantRole(c *fiber.Ctx) error {
	return s.roleGrantOp(c, permission.GrantRole, "grant")
}

// RevokeRole removes a permission from a role.
func (s *Service) RevokeRole(c *fiber.Ctx) error {
	return s.roleGrantOp(c, permission.RevokeRole, "revoke")
}

func (s *Service) roleGrantOp(
	c *fiber.Ctx,
	op func(*gorm.DB, string, string) (permission.GrantOutcome, error),
	verb string,
) error {
	var req grantRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	role := c.Params("role")

	var outcome permission.GrantOutcome

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error

		outcome, err = op(tx, role, req.Key)
		if err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionUpdate, req.Key, audit.Entry{
			Details: fiber.Map{"op": verb, "role": role, "outcome": outcome},
			Success: true,
		}))
	})
	if err != nil {
		return mapError(c, err, "role grant change failed")
	}

	return c.JSON(fiber.Map{"outcome": outcome})
}

// GrantUser grants a permission directly to a user, optionally with expiry.
// Re-granting an existing permission refreshes its expiry.
func (s *Service) GrantUser(c *fiber.Ctx) error {
	userID, err := paramUserID(c)
	if err != nil {
		return err
	}

	var req grantRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var grantedBy uint64
	if actor := auth.CurrentUser(c); actor != nil {
		grantedBy = actor.ID
	}

	var outcome permission.GrantOutcome

	err = s.db.Transaction(func(tx *gorm.DB) error {
		outcome, err = permission.GrantUser(tx, userID, req.Key, grantedBy, req.ExpiresAt)
		if err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionUpdate, req.Key, audit.Entry{
			Details: fiber.Map{"op": "grant", "user_id": userID, "outcome": outcome, "expires_at": req.ExpiresAt},
			Success: true,
		}))
	})
	if err != nil {
		return mapError(c, err, "user grant failed")
	}

	return c.JSON(fiber.Map{"outcome": outcome})
}

// RevokeUser removes a direct permission grant from a user.
func (s *Service) RevokeUser(c *fiber.Ctx) error {
	userID, err := paramUserID(c)
	if err != nil {
		return err
	}

	var req grantRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var outcome permission.GrantOutcome

	err = s.db.Transaction(func(tx *gorm.DB) error {
		outcome, err = permission.RevokeUser(tx, userID, req.Key)
		if err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionUpdate, req.Key, audit.Entry{
			Details: fiber.Map{"op": "revoke", "user_id": userID, "outcome": outcome},
			Success: true,
		}))
	})
	if err != nil {
		return mapError(c, err, "user revoke failed")
	}

	return c.JSON(fiber.Map{"outcome": outcome})
}

// AssignRole links a role to a user; assigning twice is a no-op.
func (s *Service) AssignRole(c *fiber.Ctx) error {
	userID, err := paramUserID(c)
	if err != nil {
		return err
	}

	var req assignRoleRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var outcome permission.GrantOutcome

	err = s.db.Transaction(func(tx *gorm.DB) error {
		outcome, err = permission.AssignRole(tx, userID, req.Role)
		if err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionUpdate, req.Role, audit.Entry{
			Details: fiber.Map{"op": "assign_role", "user_id": userID, "outcome": outcome},
			Success: true,
		}))
	})
	if err != nil {
		return mapError(c, err, "role assignment failed")
	}

	return c.JSON(fiber.Map{"outcome": outcome})
}

func (s *Service) entry(c *fiber.Ctx, action, resourceID string, entry audit.Entry) audit.Entry {
	entry.Action = action
	entry.Resource = resourceName
	entry.ResourceID = resourceID
	entry.User = auth.CurrentUser(c)
	entry.IPAddress = c.IP()
	entry.UserAgent = string(c.Request().Header.UserAgent())
	entry.RequestID = requestid.FromCtx(c)

	return entry
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid permission id")
	}

	return uint(id), nil
}

func paramUserID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("user_id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	return id, nil
}

func mapError(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, permission.ErrPermissionNotFound),
		errors.Is(err, permission.ErrRoleNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, permission.ErrPermissionExists):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, permission.ErrKeyEmpty):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	log.Error().Err(err).Str("request_id", requestid.FromCtx(c)).Msg(msg)

	return fiber.ErrInternalServerError
}
