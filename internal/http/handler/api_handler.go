package handler

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkgate/internal/app/model"
	"github.com/sifan077/linkgate/internal/app/service"
	"github.com/sifan077/linkgate/internal/http/middleware"
	"github.com/sifan077/linkgate/internal/http/view"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	BaseURL     string
	AdminAPIKey string
}

// APIHandler implements the JSON API under /api.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	baseURL     string
	adminOnly   fiber.Handler
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
		adminOnly:   middleware.AdminOnly(deps.AdminAPIKey),
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Post("/shorten", h.Shorten)
		api.Post("/:slug/unlock", h.Unlock)
		api.Get("/:slug/stats", h.Stats)
		api.Get("/:slug/qr", h.QR)
		api.Patch("/:slug", h.adminOnly, h.Patch)
	}
}

// ShortenRequest is the body of POST /api/shorten.
type ShortenRequest struct {
	Target     string       `json:"target"`
	CustomSlug string       `json:"customSlug,omitempty"`
	ExpiresAt  optionalTime `json:"expiresAt,omitempty"`
	Password   string       `json:"password,omitempty"`
}

// ShortenResponse is returned for a newly created link.
type ShortenResponse struct {
	Slug      string     `json:"slug"`
	ShortURL  string     `json:"shortUrl"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// Shorten handles POST /api/shorten
func (h *APIHandler) Shorten(c *fiber.Ctx) error {
	var req ShortenRequest
	if err := parseJSON(c, &req); err != nil {
		return err
	}

	link, err := h.linkService.CreateLink(c.UserContext(), service.CreateLinkInput{
		Target:     req.Target,
		CustomSlug: req.CustomSlug,
		ExpiresAt:  req.ExpiresAt.Value,
		Password:   req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(ShortenResponse{
		Slug:      link.Slug,
		ShortURL:  h.shortURL(link.Slug),
		ExpiresAt: link.ExpiresAt,
	})
}

// UnlockRequest is the body of POST /api/:slug/unlock.
type UnlockRequest struct {
	Password string `json:"password"`
}

// Unlock handles POST /api/:slug/unlock
func (h *APIHandler) Unlock(c *fiber.Ctx) error {
	var req UnlockRequest
	if len(c.Body()) > 0 {
		if err := parseJSON(c, &req); err != nil {
			return err
		}
	}

	res, err := h.linkService.Unlock(c.UserContext(), c.Params("slug"), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"target": res.Target})
}

// StatsResponse is the public view of a link's counters.
type StatsResponse struct {
	Slug         string        `json:"slug"`
	Target       string        `json:"target"`
	IsActive     bool          `json:"isActive"`
	ExpiresAt    *time.Time    `json:"expiresAt"`
	TotalClicks  int64         `json:"totalClicks"`
	RecentClicks []model.Click `json:"recentClicks"`
}

// Stats handles GET /api/:slug/stats
func (h *APIHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.linkService.Stats(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(StatsResponse{
		Slug:         stats.Slug,
		Target:       stats.Target,
		IsActive:     stats.IsActive,
		ExpiresAt:    stats.ExpiresAt,
		TotalClicks:  stats.TotalClicks,
		RecentClicks: stats.RecentClicks,
	})
}

// PatchRequest is the body of PATCH /api/:slug. ExpiresAt distinguishes an
// absent field from an explicit null, which clears the expiry.
type PatchRequest struct {
	IsActive   *bool        `json:"isActive"`
	ExpiresAt  optionalTime `json:"expiresAt"`
	RotateSlug bool         `json:"rotateSlug"`
}

// Patch handles PATCH /api/:slug (admin only)
func (h *APIHandler) Patch(c *fiber.Ctx) error {
	var req PatchRequest
	if len(c.Body()) > 0 {
		if err := parseJSON(c, &req); err != nil {
			return err
		}
	}

	slug, err := h.linkService.PatchLink(c.UserContext(), c.Params("slug"), service.PatchLinkInput{
		IsActive:       req.IsActive,
		ExpiresAt:      req.ExpiresAt.Value,
		ClearExpiresAt: req.ExpiresAt.Set && req.ExpiresAt.Value == nil,
		RotateSlug:     req.RotateSlug,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "slug": slug})
}

// QR handles GET /api/:slug/qr
func (h *APIHandler) QR(c *fiber.Ctx) error {
	link, err := h.linkService.GetLink(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}

	png, err := view.RenderQR(h.shortURL(link.Slug))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (h *APIHandler) shortURL(slug string) string {
	return h.baseURL + "/" + slug
}

// optionalTime records whether a JSON field was present at all. Values are
// RFC 3339 strings or epoch milliseconds.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}

	var t time.Time
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
	} else {
		var ms json.Number
		if err := json.Unmarshal(data, &ms); err != nil {
			return err
		}
		millis, err := ms.Int64()
		if err != nil {
			f, ferr := ms.Float64()
			if ferr != nil {
				return ferr
			}
			millis = int64(f)
		}
		t = time.UnixMilli(millis).UTC()
	}
	o.Value = &t
	return nil
}

func parseJSON(c *fiber.Ctx, out any) error {
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return errBadBody
	}
	return nil
}
