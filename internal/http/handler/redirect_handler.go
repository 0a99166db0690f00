package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkgate/internal/app/service"
	"github.com/sifan077/linkgate/internal/http/middleware"
	"github.com/sifan077/linkgate/internal/http/view"
	infraPrometheus "github.com/sifan077/linkgate/internal/infra/prometheus"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one backing service.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Checks      []ReadinessCheck
}

// RedirectHandler serves short links and health probes.
type RedirectHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	checks      []ReadinessCheck
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:      logger,
		linkService: deps.LinkService,
		checks:      deps.Checks,
	}
}

// Register wires health and redirect routes. It must run after every other
// route group so /:slug does not shadow them.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/health/ready", h.Ready)
	router.Get("/:slug", h.Resolve)
}

// Health reports liveness.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// Ready pings every configured backing service.
func (h *RedirectHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	ok := true
	results := make(fiber.Map, len(h.checks))
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			ok = false
			results[check.Name] = err.Error()
			h.logger.Warn("readiness check failed", zap.String("check", check.Name), zap.Error(err))
			continue
		}
		results[check.Name] = "ok"
	}

	status := fiber.StatusOK
	if !ok {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"ok": ok, "checks": results})
}

// Resolve handles GET /:slug
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	slug := c.Params("slug")

	res, err := h.linkService.Resolve(c.UserContext(), slug, service.Visit{
		IP:        middleware.ClientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Referer:   c.Get(fiber.HeaderReferer),
	})
	if err != nil {
		infraPrometheus.Redirects.WithLabelValues(outcome(err)).Inc()
		if errors.Is(err, service.ErrPasswordRequired) && c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML {
			return h.renderUnlock(c, slug)
		}
		return err
	}

	infraPrometheus.Redirects.WithLabelValues("redirected").Inc()
	h.logger.Debug("redirecting short link", zap.String("slug", slug), zap.String("target", res.Target))
	return c.Redirect(res.Target, fiber.StatusFound)
}

func (h *RedirectHandler) renderUnlock(c *fiber.Ctx, slug string) error {
	html, err := view.RenderUnlockPage(view.UnlockPageData{
		Slug:      slug,
		UnlockURL: "/api/" + slug + "/unlock",
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusUnauthorized).
		Type("html", "utf-8").
		SendString(html)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "not_found"
	case errors.Is(err, service.ErrExpired):
		return "expired"
	case errors.Is(err, service.ErrPasswordRequired):
		return "password_required"
	default:
		return "error"
	}
}
