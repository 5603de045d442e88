// Package auth provides the bearer token middleware for the API.
//
// The middleware resolves the Authorization header to a user account and
// stows it in fiber.Locals for the permission guards. Requests without a
// token pass through unauthenticated; the guards reject them where a
// permission is required.
package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/campus-sms/campus-sms/internal/auth"
)

const bearerPrefix = "Bearer "

// New returns the middleware bound to the given auth service.
func New(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Next()
		}

		user, err := svc.ValidateRefreshToken(token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				log.Warn().Err(err).Msg("token validation failed")
			}

			return c.Next()
		}

		auth.StoreUser(c, user)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}
