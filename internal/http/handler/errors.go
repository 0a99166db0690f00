package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkgate/internal/app/service"
	"github.com/sifan077/linkgate/internal/http/middleware"
	"go.uber.org/zap"
)

// errBadBody is returned when a request body is not valid JSON for its route.
var errBadBody = errors.New("invalid request body")

type statusError struct {
	status  int
	message string
}

// classify maps an error to the status and message returned to clients.
func classify(err error) statusError {
	var vErr *service.ValidationError
	var fErr *fiber.Error

	switch {
	case errors.As(err, &vErr):
		return statusError{fiber.StatusBadRequest, vErr.Message}
	case errors.Is(err, errBadBody):
		return statusError{fiber.StatusBadRequest, "Invalid request body"}
	case errors.Is(err, service.ErrNotFound):
		return statusError{fiber.StatusNotFound, "Not found"}
	case errors.Is(err, service.ErrExpired):
		return statusError{fiber.StatusGone, "Link expired"}
	case errors.Is(err, service.ErrPasswordRequired):
		return statusError{fiber.StatusUnauthorized, "Password required"}
	case errors.Is(err, service.ErrNotGated):
		return statusError{fiber.StatusBadRequest, "Not password protected"}
	case errors.Is(err, service.ErrInvalidPassword):
		return statusError{fiber.StatusUnauthorized, "Invalid password"}
	case errors.Is(err, service.ErrSlugTaken):
		return statusError{fiber.StatusConflict, "Slug already taken"}
	case errors.Is(err, middleware.ErrUnauthorized):
		return statusError{fiber.StatusUnauthorized, "Unauthorized"}
	case errors.Is(err, middleware.ErrAdminKeyMissing):
		return statusError{fiber.StatusInternalServerError, "Server admin key not configured"}
	case errors.As(err, &fErr):
		return statusError{fErr.Code, fErr.Message}
	default:
		return statusError{fiber.StatusInternalServerError, "Internal server error"}
	}
}

// ErrorHandler renders every error returned by a route or middleware as
// {"error": message}. Unexpected errors are logged before being masked.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		se := classify(err)
		if se.status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("request_id", middleware.GetRequestID(c)),
			)
		}
		return c.Status(se.status).JSON(fiber.Map{"error": se.message})
	}
}
