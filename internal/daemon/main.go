// Package daemon wires the database, seeder and web service together.
package daemon

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/db/dsn"
	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service.
func (d *Daemon) Start() error {
	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// Shutdown gracefully stops the web service.
func (d *Daemon) Shutdown() error {
	return d.webService.Shutdown()
}

// WaitShutdown blocks until an interrupt signal arrives, then drains the
// web service.
func (d *Daemon) WaitShutdown() {
	d.webService.WaitShutdown()
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := OpenDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
		return nil
	}

	if err = Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
		return nil
	}

	if err = Seed(db); err != nil {
		log.Fatal().Err(err).Msg("failed to seed database")
		return nil
	}

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, db),
	}
}

// OpenDB opens the sqlite database file named in the configuration.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn.Create(cfg)), &gorm.Config{}) //nolint:wrapcheck
}

// Migrate creates or updates the schema for every model of the system.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate( //nolint:wrapcheck
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.UserPermission{},
		&models.RefreshToken{},
		&models.Student{},
		&models.Course{},
		&models.Grade{},
		&models.Attendance{},
		&models.AuditLog{},
		&models.Setting{},
	)
}
