package context

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRequestID(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestID(nil))
	assert.Equal(t, "unknown", GetRequestID(context.Background()))
	assert.Equal(t, "abc", GetRequestID(WithRequestID(context.Background(), "abc")))
}

func TestFromFiberCtx(t *testing.T) {
	app := fiber.New()
	var fromLocals, fromHeader string
	app.Get("/locals", func(c *fiber.Ctx) error {
		c.Locals(requestIDHdr, "local-id")
		fromLocals = GetRequestID(FromFiberCtx(c))
		return nil
	})
	app.Get("/header", func(c *fiber.Ctx) error {
		fromHeader = GetRequestID(FromFiberCtx(c))
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/locals", nil))
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/header", nil)
	req.Header.Set(requestIDHdr, "header-id")
	_, err = app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "local-id", fromLocals)
	assert.Equal(t, "header-id", fromHeader)
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithTimeout(WithRequestID(context.Background(), "r1"), time.Millisecond)
	cancel()

	detached := Detach(parent)
	assert.Error(t, parent.Err())
	assert.NoError(t, detached.Err())
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)
	assert.Equal(t, "r1", GetRequestID(detached))
}
