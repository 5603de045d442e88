// Package control provides the administrative control endpoints: shutdown
// and backup operations. Access follows a dedicated gate independent of the
// RBAC permission system, see guard.go.
package control

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/audit"
	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/backup"
	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/web/handler"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

const (
	// Path is the base path of the control endpoints.
	Path = "/admin/control"

	resourceName = "backup"
)

// Service is the control handler service.
type Service struct {
	cfg     *config.Config
	db      *gorm.DB
	backups *backup.Service

	// OnShutdown is invoked by the shutdown endpoint; the web service wires
	// it before Init.
	OnShutdown func()
}

// Handler is the control handler.
var Handler = Service{}

type createRequest struct {
	Name     string         `json:"name"`
	Password string         `json:"password"`
	Metadata map[string]any `json:"metadata"`
}

type restoreRequest struct {
	OutputPath string `json:"output_path"`
	Password   string `json:"password"`
}

type cleanupRequest struct {
	Keep int `json:"keep"`
}

// Init registers the control routes behind the control gate.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, _ *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db

	backups, err := backup.NewService(cfg.Backup.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise backup storage")
		return
	}

	s.backups = backups

	app.Route(Path, func(router fiber.Router) {
		router.Use(s.guard)

		router.Post("/shutdown", s.Shutdown)

		router.Get("/backups", s.List)
		router.Post("/backups", s.Create)
		router.Get("/backups/:name/verify", s.Verify)
		router.Post("/backups/:name/restore", s.Restore)
		router.Delete("/backups/:name", s.Delete)
		router.Post("/backups/cleanup", s.Cleanup)
		router.Post("/rotate-key", s.RotateKey)
	})
}

// Shutdown stops the daemon. Remote callers need both a token and the
// remote shutdown flag.
func (s *Service) Shutdown(c *fiber.Ctx) error {
	gate := resolveGate(s.cfg)

	if !isLoopback(c.IP()) && !gate.allowRemoteShutdown {
		return fiber.NewError(fiber.StatusForbidden, "remote shutdown is not allowed")
	}

	log.Info().Str("ip", c.IP()).Str("request_id", requestid.FromCtx(c)).Msg("shutdown requested")

	if s.OnShutdown != nil {
		s.OnShutdown()
	}

	return c.JSON(fiber.Map{"shutting_down": true})
}

// List returns the stored backups, newest first.
func (s *Service) List(c *fiber.Ctx) error {
	infos, err := s.backups.List()
	if err != nil {
		log.Error().Err(err).Msg("failed to list backups")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"backups": infos})
}

// Create encrypts the database file into a new backup.
func (s *Service) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := s.backups.Create(s.cfg.DB.Path, req.Name, backup.CreateOptions{
		Password: req.Password,
		Metadata: req.Metadata,
	})
	if err != nil {
		return s.mapError(c, err, "backup creation failed")
	}

	s.audit(c, models.AuditActionExport, result.Name, fiber.Map{
		"original_size":  result.OriginalSize,
		"encrypted_size": result.EncryptedSize,
	})

	return c.Status(fiber.StatusCreated).JSON(result)
}

// Verify checks the structural integrity of a backup without decrypting it.
func (s *Service) Verify(c *fiber.Ctx) error {
	result, err := s.backups.Verify(c.Params("name"))
	if err != nil {
		return s.mapError(c, err, "backup verification failed")
	}

	return c.JSON(result)
}

// Restore decrypts a backup to the requested output path.
func (s *Service) Restore(c *fiber.Ctx) error {
	var req restoreRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := s.backups.Restore(c.Params("name"), req.OutputPath, backup.RestoreOptions{
		Password: req.Password,
	})
	if err != nil {
		return s.mapError(c, err, "backup restore failed")
	}

	s.audit(c, models.AuditActionImport, c.Params("name"), fiber.Map{
		"restored_to":   result.RestoredTo,
		"restored_size": result.RestoredSize,
	})

	return c.JSON(result)
}

// Delete removes a backup and its sidecar metadata.
func (s *Service) Delete(c *fiber.Ctx) error {
	name := c.Params("name")

	if err := s.backups.Delete(name); err != nil {
		return s.mapError(c, err, "backup deletion failed")
	}

	s.audit(c, models.AuditActionDelete, name, nil)

	return c.JSON(fiber.Map{"deleted": true})
}

// Cleanup removes the oldest backups beyond the keep count.
func (s *Service) Cleanup(c *fiber.Ctx) error {
	req := cleanupRequest{Keep: s.cfg.Backup.KeepCount}
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	removed, err := s.backups.Cleanup(req.Keep)
	if err != nil {
		return s.mapError(c, err, "backup cleanup failed")
	}

	s.audit(c, models.AuditActionDelete, "cleanup", fiber.Map{"removed": removed, "keep": req.Keep})

	return c.JSON(fiber.Map{"removed": removed})
}

// RotateKey replaces the master key, keeping a timestamped copy of the old
// one. Existing backups are not re-encrypted.
func (s *Service) RotateKey(c *fiber.Ctx) error {
	if err := s.backups.RotateMasterKey(); err != nil {
		log.Error().Err(err).Msg("master key rotation failed")
		return fiber.ErrInternalServerError
	}

	s.audit(c, models.AuditActionUpdate, "master-key", nil)

	return c.JSON(fiber.Map{"rotated": true})
}

// audit records control operations on a plain handle; backup operations are
// filesystem-side and have no business transaction to enlist in.
func (s *Service) audit(c *fiber.Ctx, action, resourceID string, details any) {
	err := audit.Record(s.db, audit.Entry{
		Action:     action,
		Resource:   resourceName,
		ResourceID: resourceID,
		User:       auth.CurrentUser(c),
		IPAddress:  c.IP(),
		UserAgent:  string(c.Request().Header.UserAgent()),
		Details:    details,
		Success:    true,
		RequestID:  requestid.FromCtx(c),
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to audit control operation")
	}
}

func (s *Service) mapError(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, backup.ErrBackupNotFound), errors.Is(err, backup.ErrSourceNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, backup.ErrInvalidBackupName),
		errors.Is(err, backup.ErrInvalidOutputPath),
		errors.Is(err, backup.ErrPathTraversal):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, backup.ErrInvalidBackup):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	log.Error().Err(err).Str("request_id", requestid.FromCtx(c)).Msg(msg)

	return fiber.ErrInternalServerError
}
