package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const allowedOrigin = "http://localhost:3000"

// middlewareApp mounts the production middleware chain in front of a single /probe route.
func middlewareApp(t *testing.T) *fiber.App {
	t.Helper()
	srv := &Server{config: testConfig()}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.All("/probe", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func probe(t *testing.T, app *fiber.App, method, origin string, headers ...string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, "/probe", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		allowOrigin string
		credentials string
	}{
		{"configured origin gets credentialed access", allowedOrigin, allowedOrigin, "true"},
		{"foreign origin is not echoed", "http://evil.example", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := probe(t, middlewareApp(t), http.MethodGet, tt.origin)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.allowOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.credentials, resp.Header.Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestGlobalLimiter(t *testing.T) {
	app := middlewareApp(t)

	for i := 0; i < 100; i++ {
		resp := probe(t, app, http.MethodPost, allowedOrigin)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i)
	}

	t.Run("Throttled responses keep CORS headers", func(t *testing.T) {
		resp := probe(t, app, http.MethodPost, allowedOrigin)
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, allowedOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("Preflight is never throttled", func(t *testing.T) {
		resp := probe(t, app, http.MethodOptions, allowedOrigin,
			"Access-Control-Request-Method", http.MethodPost,
			"Access-Control-Request-Headers", "content-type",
		)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
	})
}
