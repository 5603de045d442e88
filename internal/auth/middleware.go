package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/campus-sms/campus-sms/internal/audit"
	"github.com/campus-sms/campus-sms/internal/db/models"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

// localUserKey stores the authenticated principal in fiber locals.
const localUserKey = "CurrentUser"

// StoreUser places the authenticated principal in the request context.
// The authentication middleware calls this once per request.
func StoreUser(c *fiber.Ctx, user *models.User) {
	c.Locals(localUserKey, user)
}

// CurrentUser returns the authenticated principal of the request, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	if user, ok := c.Locals(localUserKey).(*models.User); ok {
		return user
	}

	return nil
}

// GuardOption configures a permission guard.
type GuardOption func(*guardConfig)

type guardConfig struct {
	allowSelfAccess bool
	selfParam       string
}

// AllowSelfAccess enables the self-access rule on the guard: a student
// principal passes when the operation's target identity equals their own id.
// The target is read from the "student_id" path parameter, falling back to a
// query parameter of the same name.
func AllowSelfAccess() GuardOption {
	return func(cfg *guardConfig) {
		cfg.allowSelfAccess = true
	}
}

// WithSelfParam overrides the parameter name the self-access target is read
// from.
func WithSelfParam(name string) GuardOption {
	return func(cfg *guardConfig) {
		cfg.allowSelfAccess = true
		cfg.selfParam = name
	}
}

// RequirePermission creates Fiber middleware that requires a specific permission.
// Requests without a principal are rejected with 401; authenticated requests
// failing resolution (and, when opted in, the self-access rule) are rejected
// with 403 and the deny is audited.
func RequirePermission(svc *Service, permission string, opts ...GuardOption) fiber.Handler {
	cfg := guardConfig{selfParam: "student_id"}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthenticated(c)
		}

		if svc.HasPermission(user, permission) {
			return c.Next()
		}

		if cfg.allowSelfAccess {
			target := c.Params(cfg.selfParam)
			if target == "" {
				target = c.Query(cfg.selfParam)
			}

			if SelfAccessAllowed(user, permission, target) {
				return c.Next()
			}
		}

		return denied(c, svc, user, permission)
	}
}

// RequireAnyPermission creates Fiber middleware that requires at least one of
// the given permissions.
func RequireAnyPermission(svc *Service, permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthenticated(c)
		}

		if svc.HasAnyPermission(user, permissions...) {
			return c.Next()
		}

		return denied(c, svc, user, permissions...)
	}
}

// RequireAllPermissions creates Fiber middleware that requires all of the
// given permissions.
func RequireAllPermissions(svc *Service, permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthenticated(c)
		}

		if svc.HasAllPermissions(user, permissions...) {
			return c.Next()
		}

		return denied(c, svc, user, permissions...)
	}
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":      ErrAuthenticationRequired.Error(),
		"request_id": requestid.FromCtx(c),
	})
}

// denied audits the failed attempt and rejects the request. The audit write
// runs on the service handle in its own transaction: a deny commits no
// business state to roll back with.
func denied(c *fiber.Ctx, svc *Service, user *models.User, permissions ...string) error {
	resource := ""
	if len(permissions) > 0 {
		resource, _ = SplitKey(NormalizeKey(permissions[0]))
	}

	err := audit.Record(svc.DB(), audit.Entry{
		Action:       models.AuditActionPermissionDenied,
		Resource:     resource,
		User:         user,
		IPAddress:    c.IP(),
		UserAgent:    c.Get(fiber.HeaderUserAgent),
		Details:      fiber.Map{"required": permissions},
		Success:      false,
		ErrorMessage: ErrPermissionDenied.Error(),
		RequestID:    requestid.FromCtx(c),
	})
	if err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to audit permission deny")
	}

	log.Warn().Uint64("user_id", user.ID).Strs("permissions", permissions).
		Msg("user lacks required permission")

	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error":      ErrPermissionDenied.Error(),
		"request_id": requestid.FromCtx(c),
	})
}
