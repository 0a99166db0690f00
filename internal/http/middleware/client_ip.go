package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIP returns the address used to identify the caller. When the app is
// configured with a proxy header such as X-Forwarded-For, only the first
// (client-most) entry is used.
func ClientIP(c *fiber.Ctx) string {
	ip := c.IP()
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	return strings.TrimSpace(ip)
}
