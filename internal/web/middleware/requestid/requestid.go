// Package requestid provides the request-correlation middleware. Every
// inbound request gets an opaque correlation id: the value of the
// X-Request-ID header when present, or a fresh UUID otherwise. The id is
// echoed on the response and stamped on every audit record emitted while
// handling the request.
package requestid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header is the correlation header adopted and echoed by the middleware.
const Header = "X-Request-ID"

// localKey stores the id in fiber locals for handlers and guards.
const localKey = "request_id"

// New creates the request-id middleware.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(localKey, id)
		c.Set(Header, id)

		return c.Next()
	}
}

// FromCtx returns the correlation id of the current request, or an empty
// string when the middleware is not installed.
func FromCtx(c *fiber.Ctx) string {
	if id, ok := c.Locals(localKey).(string); ok {
		return id
	}

	return ""
}
