package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/sifan077/linkgate/config"
	"github.com/sifan077/linkgate/internal/app/ratelimit"
	"github.com/sifan077/linkgate/internal/app/service"
	"github.com/sifan077/linkgate/internal/http/handler"
	"github.com/sifan077/linkgate/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs from the rest of the process.
type Dependencies struct {
	Logger      *zap.Logger
	App         config.AppConfig
	LinkService service.LinkService
	Limiter     *ratelimit.State
	Checks      []handler.ReadinessCheck
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "linkgate",
		ProxyHeader:           deps.App.ProxyHeader,
		ErrorHandler:          handler.ErrorHandler(deps.Logger),
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Logger(s.deps.Logger),
		middleware.Recovery(s.deps.Logger),
		helmet.New(),
		middleware.CORS(s.deps.App.CORSOrigins),
		middleware.RateLimit(middleware.RateLimitConfig{State: s.deps.Limiter}, s.deps.Logger),
	)
}

func (s *Server) registerRoutes() {
	handler.NewAPIHandler(handler.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.LinkService,
		BaseURL:     s.deps.App.BaseURL,
		AdminAPIKey: s.deps.App.AdminAPIKey,
	}).Register(s.app)

	// Registered last: /:slug would otherwise shadow the fixed routes.
	handler.NewRedirectHandler(handler.RedirectDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.LinkService,
		Checks:      s.deps.Checks,
	}).Register(s.app)
}
