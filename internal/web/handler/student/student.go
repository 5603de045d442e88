// Package student provides the student record endpoints.
//
// Mutating handlers run the business write and the audit write in one
// transaction, so a failed audit write rolls the mutation back.
package student

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/audit"
	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/db/controller/student"
	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/web/handler"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

const (
	// Path is the base path of the student endpoints.
	Path = "/api/students"

	resourceName = "student"
)

// Service is the student handler service.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the student handler.
var Handler = Service{}

type createRequest struct {
	StudentNumber string     `json:"student_number"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	EnrolledAt    *time.Time `json:"enrolled_at"`
}

type updateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Reason    string  `json:"reason"`
}

// Init registers the student routes behind the permission guards.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	app.Get(Path,
		auth.RequirePermission(authService, auth.PermStudentsView),
		s.List,
	)
	app.Get(Path+"/:student_id",
		auth.RequirePermission(authService, auth.PermStudentsView, auth.AllowSelfAccess()),
		s.Get,
	)
	app.Post(Path,
		auth.RequirePermission(authService, auth.PermStudentsCreate),
		s.Create,
	)
	app.Patch(Path+"/:student_id",
		auth.RequirePermission(authService, auth.PermStudentsEdit),
		s.Update,
	)
	app.Delete(Path+"/:student_id",
		auth.RequirePermission(authService, auth.PermStudentsDelete),
		s.Delete,
	)
	app.Post(Path+"/:student_id/restore",
		auth.RequirePermission(authService, auth.PermStudentsRestore),
		s.Restore,
	)
}

// List returns students with pagination and search.
func (s *Service) List(c *fiber.Ctx) error {
	paging := handler.ParsePagination(c)
	search := c.Query("search", "")
	includeDeleted := c.QueryBool("include_deleted", false)

	students, err := student.List(s.db, search, paging.Skip(), paging.PageSize, includeDeleted)
	if err != nil {
		log.Error().Err(err).Msg("failed to list students")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"students": students,
		"page":     paging.Page,
		"pageSize": paging.PageSize,
	})
}

// Get returns a single student.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	includeDeleted := c.QueryBool("include_deleted", false)

	record, err := student.GetByID(s.db, id, includeDeleted)
	if err != nil {
		return notFoundOr(err)
	}

	return c.JSON(record)
}

// Create inserts a new student record.
func (s *Service) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	record := models.Student{
		StudentNumber: req.StudentNumber,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
	}
	if req.EnrolledAt != nil {
		record.EnrolledAt = *req.EnrolledAt
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := student.Create(tx, &record); err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionCreate, record.ID, audit.Entry{
			NewValues: record,
			Success:   true,
		}))
	})
	if err != nil {
		if errors.Is(err, student.ErrStudentExists) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}

		if validationErr(err) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		log.Error().Err(err).Msg("failed to create student")

		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

// Update applies a partial update and audits the before and after state.
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
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}

	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}

	if req.Email != nil {
		updates["email"] = *req.Email
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	var updated *models.Student

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var old *models.Student

		old, updated, err = student.Update(tx, id, updates)
		if err != nil {
			return err
		}

		entry := s.entry(c, models.AuditActionUpdate, id, audit.Entry{
			OldValues:    old,
			NewValues:    updated,
			ChangeReason: req.Reason,
			Success:      true,
		})

		return audit.Record(tx, entry)
	})
	if err != nil {
		return mutationError(c, err, "failed to update student")
	}

	return c.JSON(updated)
}

// Delete soft-deletes a student and its owned grades and attendance records.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := student.SoftDelete(tx, id); err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionDelete, id, audit.Entry{
			Success: true,
		}))
	})
	if err != nil {
		return mutationError(c, err, "failed to delete student")
	}

	return c.JSON(fiber.Map{"deleted": true})
}

// Restore resurrects a tombstoned student. Owned records stay tombstoned.
func (s *Service) Restore(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var record *models.Student

	err = s.db.Transaction(func(tx *gorm.DB) error {
		record, err = student.Restore(tx, id)
		if err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionRestore, id, audit.Entry{
			NewValues: record,
			Success:   true,
		}))
	})
	if err != nil {
		if errors.Is(err, student.ErrStudentNotDeleted) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}

		return mutationError(c, err, "failed to restore student")
	}

	return c.JSON(record)
}

// entry fills the request-scoped fields of an audit entry.
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
	id, err := strconv.ParseUint(c.Params("student_id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid student id")
	}

	return id, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, student.ErrStudentNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	log.Error().Err(err).Msg("student lookup failed")

	return fiber.ErrInternalServerError
}

func mutationError(c *fiber.Ctx, err error, msg string) error {
	if errors.Is(err, student.ErrStudentNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	if errors.Is(err, student.ErrStudentExists) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}

	log.Error().Err(err).Str("request_id", requestid.FromCtx(c)).Msg(msg)

	return fiber.ErrInternalServerError
}

func validationErr(err error) bool {
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}
