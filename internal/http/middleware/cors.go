package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows browser clients from origins to call the JSON API.
func CORS(origins []string) fiber.Handler {
	allow := strings.Join(origins, ",")
	if allow == "" {
		allow = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:  allow,
		AllowMethods:  "GET,POST,PATCH,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, " + AdminKeyHeader + ", " + RequestIDHeader,
		ExposeHeaders: "Content-Length, Content-Type, X-RateLimit-Limit, X-RateLimit-Remaining, " + RequestIDHeader,
		MaxAge:        86400,
	})
}
