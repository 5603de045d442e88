// Package attendance provides the attendance record endpoints.
package attendance

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
	"github.com/campus-sms/campus-sms/internal/db/controller/attendance"
	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/web/handler"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

const (
	// StudentPath lists and records attendance of one student.
	StudentPath = "/api/students/:student_id/attendance"

	// Path addresses a single attendance record.
	Path = "/api/attendance"

	resourceName = "attendance"
)

// Service is the attendance handler service.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the attendance handler.
var Handler = Service{}

type createRequest struct {
	Date   time.Time `json:"date"`
	Status string    `json:"status"`
	Note   string    `json:"note"`
}

type updateRequest struct {
	Status *string `json:"status"`
	Note   *string `json:"note"`
	Reason string  `json:"reason"`
}

// Init registers the attendance routes behind the permission guards.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	app.Get(StudentPath,
		auth.RequirePermission(authService, auth.PermAttendanceView, auth.AllowSelfAccess()),
		s.ListForStudent,
	)
	app.Post(StudentPath,
		auth.RequirePermission(authService, auth.PermAttendanceCreate),
		s.Create,
	)
	app.Patch(Path+"/:record_id",
		auth.RequirePermission(authService, auth.PermAttendanceEdit),
		s.Update,
	)
}

// ListForStudent returns attendance of one student, optionally windowed by
// from/to query parameters (RFC 3339 dates).
func (s *Service) ListForStudent(c *fiber.Ctx) error {
	studentID, err := paramUint(c, "student_id")
	if err != nil {
		return err
	}

	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}

	to, err := queryTime(c, "to")
	if err != nil {
		return err
	}

	// the window is half-open; an absent upper bound means "everything"
	if to.IsZero() {
		to = time.Now().UTC().AddDate(1, 0, 0)
	}

	records, err := attendance.ForStudent(s.db, studentID, from, to)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidDateRange) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		log.Error().Err(err).Msg("failed to list attendance")

		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"records": records})
}

// Create records attendance for a student.
func (s *Service) Create(c *fiber.Ctx) error {
	studentID, err := paramUint(c, "student_id")
	if err != nil {
		return err
	}

	var req createRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	record := models.Attendance{
		StudentID: studentID,
		Date:      req.Date,
		Status:    models.AttendanceStatus(req.Status),
		Note:      req.Note,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := attendance.Create(tx, &record); err != nil {
			return err
		}

		return audit.Record(tx, s.entry(c, models.AuditActionCreate, record.ID, audit.Entry{
			NewValues: record,
			Success:   true,
		}))
	})
	if err != nil {
		return mapError(c, err, "failed to record attendance")
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

// Update applies a partial update and audits before and after state.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := paramUint(c, "record_id")
	if err != nil {
		return err
	}

	var req updateRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]any{}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	if req.Note != nil {
		updates["note"] = *req.Note
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	var updated *models.Attendance

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var old *models.Attendance

		old, updated, err = attendance.Update(tx, id, updates)
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
		return mapError(c, err, "failed to update attendance")
	}

	return c.JSON(updated)
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

func queryTime(c *fiber.Ctx, name string) (time.Time, error) {
	raw := c.Query(name, "")
	if raw == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		parsed, err = time.Parse("2006-01-02", raw)
	}

	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" date")
	}

	return parsed, nil
}

func mapError(c *fiber.Ctx, err error, msg string) error {
	if errors.Is(err, attendance.ErrAttendanceNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	log.Error().Err(err).Str("request_id", requestid.FromCtx(c)).Msg(msg)

	return fiber.ErrInternalServerError
}
