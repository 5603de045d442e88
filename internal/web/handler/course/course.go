// Package course provides the course catalogue endpoints.
package course

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/audit"
	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/db/controller/course"
	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/web/handler"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

const (
	// Path is the base path of the course endpoints.
	Path = "/api/courses"

	resourceName = "course"
)

// Service is the course handler service.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the course handler.
var Handler = Service{}

type createRequest struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

type updateRequest struct {
	Name    *string `json:"name"`
	Credits *int    `json:"credits"`
	Reason  string  `json:"reason"`
}

// Init registers the course routes behind the permission guards.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	app.Get(Path,
		auth.RequirePermission(authService, auth.PermCoursesView),
		s.List,
	)
	app.Get(Path+"/:course_id",
		auth.RequirePermission(authService, auth.PermCoursesView),
		s.Get,
	)
	app.Post(Path,
		auth.RequirePermission(authService, auth.PermCoursesCreate),
		s.Create,
	)
	app.Patch(Path+"/:course_id",
		auth.RequirePermission(authService, auth.PermCoursesEdit),
		s.Update,
	)
	app.Delete(Path+"/:course_id",
		auth.RequirePermission(authService, auth.PermCoursesDelete),
		s.Delete,
	)
}

// List returns courses with pagination.
func (s *Service) List(c *fiber.Ctx) error {
	paging := handler.ParsePagination(c)
	includeDeleted := c.QueryBool("include_deleted", false)

	courses, err := course.List(s.db, paging.Skip(), paging.PageSize, includeDeleted)
	if err != nil {
		log.Error().Err(err).Msg("failed to list courses")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"courses":  courses,
		"page":     paging.Page,
		"pageSize": paging.PageSize,
	})
}

// Get returns a single course.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	record, err := course.GetByID(s.db, id, c.QueryBool("include_deleted", false))
	if err != nil {
		return mapError(c, err, "course lookup failed")
	}

	return c.JSON(record)
}

// Create inserts a new course.
func (s *Service) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	record := models.Course{
		Code:    req.Code,
		Name:    req.Name,
		Credits: req.Credits,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := course.Create(tx, &record); err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionCreate, record.ID, audit.Entry{
			NewValues: record,
			Success:   true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to create course")
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

// Update applies a partial update and audits before and after state.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req updateRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}

	if req.Credits != nil {
		updates["credits"] = *req.Credits
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	var updated *models.Course

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var old *models.Course

		old, updated, err = course.Update(tx, id, updates)
		if err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionUpdate, id, audit.Entry{
			OldValues:    old,
			NewValues:    updated,
			ChangeReason: req.Reason,
			Success:      true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to update course")
	}

	return c.JSON(updated)
}

// Delete soft-deletes a course. Grades referencing the course are kept.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := course.SoftDelete(tx, id); err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionDelete, id, audit.Entry{
			Success: true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to delete course")
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (s *Service) entry(c *fiber.Ctx, action string, id uint64, entry audit.Entry) audit.Entry {
	entry.Action = action
	entry.Resource = resourceName
	entry.ResourceID = strconv.FormatUint(id, 10)
	entry.User = auth.CurrentUser(c)
	entry.IPAddress = c.IP()
	entry.UserAgent = string(c.Request().Header.UserAgent())
	entry.RequestID = requestid.FromCtx(c)

	return entry
}

func paramID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("course_id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid course id")
	}

	return id, nil
}

func mapError(c *fiber.Ctx, err error, msg string) error {
	if errors.Is(err, course.ErrCourseNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	if errors.Is(err, course.ErrCourseExists) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}

	log.Error().Err(err).Str("request_id", requestid.FromCtx(c)).Msg(msg)

	return fiber.ErrInternalServerError
}
