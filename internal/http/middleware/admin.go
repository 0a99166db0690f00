package middleware

import (
	"crypto/subtle"
	"errors"

	"github.com/gofiber/fiber/v2"
)

const AdminKeyHeader = "X-API-Key"

var (
	// ErrAdminKeyMissing means the server has no admin key configured.
	ErrAdminKeyMissing = errors.New("server admin key not configured")
	// ErrUnauthorized means the request carried a missing or wrong key.
	ErrUnauthorized = errors.New("unauthorized")
)

// AdminOnly guards a route with the shared admin key.
func AdminOnly(key string) fiber.Handler {
	expected := []byte(key)
	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return ErrAdminKeyMissing
		}
		got := []byte(c.Get(AdminKeyHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			return ErrUnauthorized
		}
		return c.Next()
	}
}
