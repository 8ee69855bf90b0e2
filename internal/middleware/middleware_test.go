package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtPkg "Unwarp/pkg/jwt"
)

func newTestApp(t *testing.T) (*fiber.App, Middleware) {
	t.Helper()
	t.Setenv(jwtPkg.SessionTokenSecret, "test-secret")
	t.Setenv("RATE_LIMIT_RPS", "1")
	t.Setenv("RATE_LIMIT_BURST", "2")

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := New(logger)

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware(), m.NewLoggingMiddleware())
	return app, m
}

func TestRequestID(t *testing.T) {
	app, m := newTestApp(t)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(m.GetRequestID(c)) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Len(t, string(body), 26)
	assert.Equal(t, string(body), resp.Header.Get(RequestIDKey))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDKey, "given-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "given-id", string(body))
}

func TestRateLimiter(t *testing.T) {
	app, m := newTestApp(t)
	app.Post("/upload", m.NewRateLimiter, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestSessionTokenMiddleware(t *testing.T) {
	app, m := newTestApp(t)
	app.Get("/sessions/:id", m.NewSessionTokenMiddleware, func(c *fiber.Ctx) error {
		id, err := jwtPkg.GetSessionID(c)
		if err != nil {
			return err
		}
		return c.SendString(id)
	})

	token, _, err := jwtPkg.SignSession("s-1", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{name: "bearer", path: "/sessions/s-1", header: "Bearer " + token, status: 200},
		{name: "query", path: "/sessions/s-1?token=" + token, status: 200},
		{name: "missing", path: "/sessions/s-1", status: 401},
		{name: "garbage", path: "/sessions/s-1", header: "Bearer nope", status: 401},
		{name: "other session", path: "/sessions/s-2", header: "Bearer " + token, status: 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == 200 {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "s-1", string(body))
			}
		})
	}
}

func TestSanitizeRequestBody(t *testing.T) {
	assert.Equal(t, `{"image_id":"a","token":"[SECRET]"}`, sanitizeRequestBody([]byte(`{"image_id":"a","token":"abc"}`)))
	assert.Equal(t, "[non-JSON body]", sanitizeRequestBody([]byte("x=1")))
}

func preflight(t *testing.T, app *fiber.App, path, origin string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodOptions, path, nil)
	req.Header.Set(fiber.HeaderOrigin, origin)
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
	req.Header.Set(fiber.HeaderAccessControlRequestHeaders, "Content-Type,Authorization")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestCORS_AllowsAnyOriginByDefault(t *testing.T) {
	app, m := newTestApp(t)
	app.Use(m.NewCORSMiddleware())
	app.Post("/api/process-image", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp := preflight(t, app, "/api/process-image", "http://localhost:3001")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), fiber.MethodPost)
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), "Authorization")
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))

	req := httptest.NewRequest(fiber.MethodPost, "/api/process-image", nil)
	req.Header.Set(fiber.HeaderOrigin, "http://localhost:3001")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlExposeHeaders), RequestIDKey)
}

func TestCORS_ConfiguredOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOW_ORIGINS", "https://editor.example, https://admin.example")
	app, m := newTestApp(t)
	app.Use(m.NewCORSMiddleware())
	app.Post("/api/process-image", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp := preflight(t, app, "/api/process-image", "https://editor.example")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://editor.example", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))

	resp = preflight(t, app, "/api/process-image", "https://evil.example")
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}
