package control

import (
	"crypto/subtle"
	"net"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/campus-sms/campus-sms/internal/config"
)

// TokenHeader carries the shared admin token on control requests.
const TokenHeader = "X-ADMIN-TOKEN"

// gateConfig is the resolved control gate state. Environment variables
// override the toml settings so operators can flip the gate without a
// config rollout.
type gateConfig struct {
	enabled             bool
	token               string
	allowRemoteShutdown bool
}

func resolveGate(cfg *config.Config) gateConfig {
	gate := gateConfig{
		enabled:             cfg.Webserver.EnableControlAPI,
		token:               cfg.Webserver.AdminToken,
		allowRemoteShutdown: cfg.Webserver.AllowRemoteShutdown,
	}

	if raw := os.Getenv("ENABLE_CONTROL_API"); raw != "" {
		gate.enabled = raw == "1" || raw == "true"
	}

	if raw := os.Getenv("ADMIN_SHUTDOWN_TOKEN"); raw != "" {
		gate.token = raw
	}

	if raw := os.Getenv("ALLOW_REMOTE_SHUTDOWN"); raw != "" {
		gate.allowRemoteShutdown = raw == "1" || raw == "true"
	}

	return gate
}

// guard enforces the control access rules, in order: hide the endpoints
// entirely unless the control API is enabled; with a configured token,
// require a constant-time match of the token header; without one, allow
// loopback clients only. Remote clients without a configured token are
// rejected even when remote shutdown is allowed.
func (s *Service) guard(c *fiber.Ctx) error {
	gate := resolveGate(s.cfg)

	if !gate.enabled {
		return fiber.ErrNotFound
	}

	if gate.token != "" {
		presented := c.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(gate.token)) != 1 {
			return fiber.NewError(fiber.StatusForbidden, "invalid admin token")
		}

		return c.Next()
	}

	if !isLoopback(c.IP()) {
		return fiber.NewError(fiber.StatusForbidden, "control endpoints are loopback-only without a token")
	}

	return c.Next()
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
