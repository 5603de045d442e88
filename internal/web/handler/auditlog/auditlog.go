// Package auditlog provides read access to the audit trail.
package auditlog

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/audit"
	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/web/handler"
)

const (
	// Path is the base path of the audit endpoints.
	Path = "/api/audit"
)

// Service is the audit log handler service.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the audit log handler.
var Handler = Service{}

// Init registers the audit routes behind the audit:view guard.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	guard := auth.RequirePermission(authService, auth.PermAuditView)

	app.Get(Path, guard, s.Window)
	app.Get(Path+"/users/:user_id", guard, s.ForUser)
	app.Get(Path+"/resources/:resource", guard, s.ForResource)
	app.Get(Path+"/requests/:request_id", guard, s.ForRequest)
}

// Window returns audit rows inside a time window, newest first.
func (s *Service) Window(c *fiber.Ctx) error {
	paging := handler.ParsePagination(c)

	from, err := queryTime(c, "from", time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		return err
	}

	to, err := queryTime(c, "to", time.Now().UTC())
	if err != nil {
		return err
	}

	rows, err := audit.InWindow(s.db, from, to, c.Query("action", ""), paging.Skip(), paging.PageSize)
	if err != nil {
		log.Error().Err(err).Msg("audit window query failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"entries": rows, "page": paging.Page, "pageSize": paging.PageSize})
}

// ForUser returns the audit trail of one user.
func (s *Service) ForUser(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("user_id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	paging := handler.ParsePagination(c)

	rows, err := audit.ForUser(s.db, userID, paging.Skip(), paging.PageSize)
	if err != nil {
		log.Error().Err(err).Msg("audit user query failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"entries": rows, "page": paging.Page, "pageSize": paging.PageSize})
}

// ForResource returns audit rows touching a resource, optionally narrowed to
// one entity via the resource_id query parameter.
func (s *Service) ForResource(c *fiber.Ctx) error {
	paging := handler.ParsePagination(c)

	rows, err := audit.ForResource(s.db, c.Params("resource"), c.Query("resource_id", ""), paging.Skip(), paging.PageSize)
	if err != nil {
		log.Error().Err(err).Msg("audit resource query failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"entries": rows, "page": paging.Page, "pageSize": paging.PageSize})
}

// ForRequest returns every audit row stamped with one request id, in write order.
func (s *Service) ForRequest(c *fiber.Ctx) error {
	rows, err := audit.ForRequest(s.db, c.Params("request_id"))
	if err != nil {
		log.Error().Err(err).Msg("audit request query failed")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"entries": rows})
}

func queryTime(c *fiber.Ctx, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name, "")
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" timestamp")
	}

	return parsed, nil
}
