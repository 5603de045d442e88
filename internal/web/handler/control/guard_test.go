package control

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-sms/campus-sms/internal/config"
)

// guardTestApp mounts the gate in front of a trivial handler. The proxy
// header lets tests pick the client address seen by c.IP().
func guardTestApp(svc *Service) *fiber.App {
	app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
	app.Get("/gated", svc.guard, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	return app
}

func gatedRequest(t *testing.T, app *fiber.App, ip, token string) int {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodGet, "/gated", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, ip)

	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp.StatusCode
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		token      string
		ip         string
		presented  string
		wantStatus int
	}{
		{"disabled hides endpoints", false, "", "127.0.0.1", "", fiber.StatusNotFound},
		{"disabled hides even with token", false, "s3cret", "127.0.0.1", "s3cret", fiber.StatusNotFound},
		{"token match", true, "s3cret", "203.0.113.9", "s3cret", fiber.StatusOK},
		{"token mismatch", true, "s3cret", "203.0.113.9", "wrong", fiber.StatusForbidden},
		{"token missing", true, "s3cret", "127.0.0.1", "", fiber.StatusForbidden},
		{"no token loopback v4", true, "", "127.0.0.1", "", fiber.StatusOK},
		{"no token loopback v6", true, "", "::1", "", fiber.StatusOK},
		{"no token remote", true, "", "203.0.113.9", "", fiber.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &Service{cfg: &config.Config{
				Webserver: config.Webserver{
					EnableControlAPI: tc.enabled,
					AdminToken:       tc.token,
				},
			}}

			status := gatedRequest(t, guardTestApp(svc), tc.ip, tc.presented)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestGuardEnvOverrides(t *testing.T) {
	svc := &Service{cfg: &config.Config{
		Webserver: config.Webserver{EnableControlAPI: false},
	}}
	app := guardTestApp(svc)

	t.Setenv("ENABLE_CONTROL_API", "true")
	t.Setenv("ADMIN_SHUTDOWN_TOKEN", "env-token")

	assert.Equal(t, fiber.StatusOK, gatedRequest(t, app, "203.0.113.9", "env-token"))
	assert.Equal(t, fiber.StatusForbidden, gatedRequest(t, app, "203.0.113.9", "config-token"))
}

func TestShutdownRemoteRules(t *testing.T) {
	tests := []struct {
		name        string
		ip          string
		allowRemote bool
		wantStatus  int
		wantCalled  bool
	}{
		{"loopback always allowed", "127.0.0.1", false, fiber.StatusOK, true},
		{"remote denied by default", "203.0.113.9", false, fiber.StatusForbidden, false},
		{"remote allowed when opted in", "203.0.113.9", true, fiber.StatusOK, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			svc := &Service{
				cfg: &config.Config{
					Webserver: config.Webserver{
						EnableControlAPI:    true,
						AdminToken:          "s3cret",
						AllowRemoteShutdown: tc.allowRemote,
					},
				},
				OnShutdown: func() { called = true },
			}

			app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
			app.Post("/shutdown", svc.guard, svc.Shutdown)

			req := httptest.NewRequest(fiber.MethodPost, "/shutdown", http.NoBody)
			req.Header.Set(fiber.HeaderXForwardedFor, tc.ip)
			req.Header.Set(TokenHeader, "s3cret")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, tc.wantCalled, called)
		})
	}
}
