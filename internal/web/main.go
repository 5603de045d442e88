// Package web assembles the fiber application: middleware, handlers and the
// operational endpoints.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/config"
	fiberadapter "github.com/campus-sms/campus-sms/internal/logger/adapter/fiber"
	"github.com/campus-sms/campus-sms/internal/web/handler/admin/permission"
	"github.com/campus-sms/campus-sms/internal/web/handler/attendance"
	"github.com/campus-sms/campus-sms/internal/web/handler/auditlog"
	"github.com/campus-sms/campus-sms/internal/web/handler/control"
	"github.com/campus-sms/campus-sms/internal/web/handler/course"
	"github.com/campus-sms/campus-sms/internal/web/handler/grade"
	"github.com/campus-sms/campus-sms/internal/web/handler/login"
	"github.com/campus-sms/campus-sms/internal/web/handler/student"
	authmiddleware "github.com/campus-sms/campus-sms/internal/web/middleware/auth"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	authService  *auth.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// Shutdown stops the fiber server.
func (s *Service) Shutdown() error {
	s.alive.Store(false)
	return s.App.Shutdown() //nolint:wrapcheck
}

// WaitShutdown waits for graceful shutdown of the daemon.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	// Wait interrupt or shutdown request through the control endpoint
	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "campus-sms",
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	app.Use(requestid.New())
	app.Use(fiberadapter.New(fiberadapter.Config{Config: cfg.Log, CheckAliveURI: "/healthz"}))

	// Initialize auth service
	authService := auth.NewService(db)

	// resolve the bearer token to a user before the permission guards run
	app.Use(authmiddleware.New(authService))

	// init web service
	service := &Service{
		cfg:          cfg,
		App:          app,
		db:           db,
		authService:  authService,
		fastShutDown: cfg.DevMode,
	}
	service.alive.Store(true)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// init handlers (they register their own routes with permission checks)
	login.Handler.Init(app, cfg, db, authService)
	student.Handler.Init(app, cfg, db, authService)
	course.Handler.Init(app, cfg, db, authService)
	grade.Handler.Init(app, cfg, db, authService)
	attendance.Handler.Init(app, cfg, db, authService)
	auditlog.Handler.Init(app, cfg, db, authService)
	permission.Handler.Init(app, cfg, db, authService)

	control.Handler.OnShutdown = func() {
		go func() {
			// let the response flush before the listener closes
			time.Sleep(250 * time.Millisecond)

			if err := service.Shutdown(); err != nil {
				log.Error().Err(err).Msg("shutdown failed")
			}
		}()
	}
	control.Handler.Init(app, cfg, db, authService)

	return service
}
