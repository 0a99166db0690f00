package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkgate/config"
	"github.com/sifan077/linkgate/internal/app/ratelimit"
	"github.com/sifan077/linkgate/internal/app/repository/memory"
	"github.com/sifan077/linkgate/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	app    *fiber.App
	store  *memory.Store
	worker *service.ClickWorker
}

func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()
	store := memory.New()
	worker := service.NewClickWorker(service.NewClickRecorder(store, "salt", nil, nil), nil, service.ClickWorkerConfig{Workers: 2})
	require.NoError(t, worker.Start())

	svc := service.NewLinkService(service.LinkServiceDeps{
		Store:  store,
		Hasher: service.NewBcryptHasher(bcrypt.MinCost),
		Clicks: worker,
	})
	srv := New(Dependencies{
		App: config.AppConfig{
			BaseURL:     "https://sho.rt",
			AdminAPIKey: "admin",
			CORSOrigins: []string{"*"},
		},
		LinkService: svc,
		Limiter:     ratelimit.NewState(ratelimit.Config{Limit: limit, Window: time.Minute}),
	})
	return &testServer{app: srv.App(), store: store, worker: worker}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestServer_LinkLifecycle(t *testing.T) {
	s := newTestServer(t, 1000)

	resp, body := s.do(t, http.MethodPost, "/api/shorten", `{"target":"https://example.com/docs","customSlug":"docs2026"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.JSONEq(t, `{"slug":"docs2026","shortUrl":"https://sho.rt/docs2026","expiresAt":null}`, body)

	resp, _ = s.do(t, http.MethodPost, "/api/shorten", `{"target":"https://other.example","customSlug":"docs2026"}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	for i := 0; i < 3; i++ {
		resp, _ = s.do(t, http.MethodGet, "/docs2026", "")
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://example.com/docs", resp.Header.Get("Location"))
	}
	require.NoError(t, s.worker.Stop())

	resp, body = s.do(t, http.MethodGet, "/api/docs2026/stats", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stats struct {
		TotalClicks  int64             `json:"totalClicks"`
		RecentClicks []json.RawMessage `json:"recentClicks"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.EqualValues(t, 3, stats.TotalClicks)
	assert.Len(t, stats.RecentClicks, 3)
	assert.NotContains(t, body, "ipHash")

	resp, body = s.do(t, http.MethodPatch, "/api/docs2026", `{"rotateSlug":true}`, "X-API-Key", "admin")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	var patched struct {
		OK   bool   `json:"ok"`
		Slug string `json:"slug"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &patched))
	assert.True(t, patched.OK)
	assert.NotEqual(t, "docs2026", patched.Slug)

	resp, _ = s.do(t, http.MethodGet, "/docs2026", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/"+patched.Slug+"/qr", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestServer_PasswordFlow(t *testing.T) {
	s := newTestServer(t, 1000)
	defer s.worker.Stop()

	resp, body := s.do(t, http.MethodPost, "/api/shorten", `{"target":"https://secret.example","customSlug":"vault99","password":"letmein"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)

	resp, _ = s.do(t, http.MethodGet, "/vault99", "", "Accept", "application/json")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/vault99/unlock", `{"password":"wrong"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/vault99/unlock", `{"password":"letmein"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"target":"https://secret.example"}`, body)
}

func TestServer_RateLimited(t *testing.T) {
	s := newTestServer(t, 3)
	defer s.worker.Stop()

	for i := 0; i < 3; i++ {
		resp, _ := s.do(t, http.MethodGet, "/health", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, body := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Too many requests"}`, body)
}

func TestServer_Middleware(t *testing.T) {
	s := newTestServer(t, 1000)
	defer s.worker.Stop()

	resp, body := s.do(t, http.MethodGet, "/health", "")

	assert.JSONEq(t, `{"ok":true}`, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
}
