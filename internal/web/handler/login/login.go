// Package login provides the token issuing endpoints of the API.
package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/web/handler"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

const (
	// Path is the base path of the auth endpoints.
	Path = "/auth"
)

// Service is the login handler service.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
	svc *auth.Service
}

// Handler is the login handler.
var Handler = Service{}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// Init registers the auth routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.svc = authService

	app.Route(Path, func(router fiber.Router) {
		router.Post("/login", s.Login)
		router.Post("/refresh", s.Refresh)
		router.Post("/logout", s.Logout)
	})
}

// Login verifies credentials and issues an opaque token.
func (s *Service) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	client := auth.ClientInfo{
		IPAddress: c.IP(),
		UserAgent: string(c.Request().Header.UserAgent()),
		RequestID: requestid.FromCtx(c),
	}

	user, err := s.svc.Authenticate(req.Email, req.Password, client)
	if err != nil {
		return loginError(err)
	}

	plaintext, token, err := s.svc.IssueRefreshToken(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue token")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"token":      plaintext,
		"expires_at": token.ExpiresAt,
		"user": fiber.Map{
			"id":         user.ID,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"role":       user.Role,
		},
	})
}

// Refresh rotates a valid token.
func (s *Service) Refresh(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := s.svc.ValidateRefreshToken(req.Token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}

	if err = s.svc.RevokeRefreshToken(req.Token); err != nil {
		log.Error().Err(err).Msg("failed to revoke token")
		return fiber.ErrInternalServerError
	}

	plaintext, token, err := s.svc.IssueRefreshToken(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue token")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"token":      plaintext,
		"expires_at": token.ExpiresAt,
	})
}

// Logout revokes a token.
func (s *Service) Logout(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.svc.RevokeRefreshToken(req.Token); err != nil {
		log.Error().Err(err).Msg("failed to revoke token")
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"revoked": true})
}

func loginError(err error) error {
	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		return fiber.NewError(fiber.StatusLocked, "account temporarily locked")
	case errors.Is(err, auth.ErrUserAccountDisabled):
		return fiber.NewError(fiber.StatusForbidden, "account disabled")
	default:
		return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
	}
}
