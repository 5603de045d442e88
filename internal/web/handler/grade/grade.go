// Package grade provides the grade record endpoints.
package grade

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
	"github.com/campus-sms/campus-sms/internal/db/controller/grade"
	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/web/handler"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

const (
	// StudentPath lists and records grades of one student.
	StudentPath = "/api/students/:student_id/grades"

	// Path addresses a single grade.
	Path = "/api/grades"

	resourceName = "grade"
)

// Service is the grade handler service.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the grade handler.
var Handler = Service{}

type createRequest struct {
	CourseID uint64     `json:"course_id"`
	Score    float64    `json:"score"`
	Letter   string     `json:"letter"`
	GradedAt *time.Time `json:"graded_at"`
}

type updateRequest struct {
	Score  *float64 `json:"score"`
	Letter *string  `json:"letter"`
	Reason string   `json:"reason"`
}

// Init registers the grade routes behind the permission guards.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	app.Get(StudentPath,
		auth.RequirePermission(authService, auth.PermGradesView, auth.AllowSelfAccess()),
		s.ListForStudent,
	)
	app.Post(StudentPath,
		auth.RequirePermission(authService, auth.PermGradesCreate),
		s.Create,
	)
	app.Patch(Path+"/:grade_id",
		auth.RequirePermission(authService, auth.PermGradesEdit),
		s.Update,
	)
	app.Delete(Path+"/:grade_id",
		auth.RequirePermission(authService, auth.PermGradesDelete),
		s.Delete,
	)
}

// ListForStudent returns the grades of one student.
func (s *Service) ListForStudent(c *fiber.Ctx) error {
	studentID, err := paramUint(c, "student_id")
	if err != nil {
		return err
	}

	grades, err := grade.ForStudent(s.db, studentID, c.QueryBool("include_deleted", false))
	if err != nil {
		log.Error().Err(err).Msg("failed to list grades")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"grades": grades})
}

// Create records a grade for a student.
func (s *Service) Create(c *fiber.Ctx) error {
	studentID, err := paramUint(c, "student_id")
	if err != nil {
		return err
	}

	var req createRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	record := models.Grade{
		StudentID: studentID,
		CourseID:  req.CourseID,
		Score:     req.Score,
		Letter:    req.Letter,
	}
	if req.GradedAt != nil {
		record.GradedAt = *req.GradedAt
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := grade.Create(tx, &record); err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionCreate, record.ID, audit.Entry{
			NewValues: record,
			Success:   true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to record grade")
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

// Update applies a partial update and audits before and after state.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := paramUint(c, "grade_id")
	if err != nil {
		return err
	}

	var req updateRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]any{}
	if req.Score != nil {
		updates["score"] = *req.Score
	}

	if req.Letter != nil {
		updates["letter"] = *req.Letter
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	var updated *models.Grade

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var old *models.Grade

		old, updated, err = grade.Update(tx, id, updates)
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
		return mapError(c, err, "failed to update grade")
	}

	return c.JSON(updated)
}

// Delete soft-deletes a grade.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := paramUint(c, "grade_id")
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := grade.SoftDelete(tx, id); err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionDelete, id, audit.Entry{
			Success: true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to delete grade")
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

func paramUint(c *fiber.Ctx, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}

	return id, nil
}

func mapError(c *fiber.Ctx, err error, msg string) error {
	if errors.Is(err, grade.ErrGradeNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	log.Error().Err(err).Str("request_id", requestid.FromCtx(c)).Msg(msg)

	return fiber.ErrInternalServerError
}
