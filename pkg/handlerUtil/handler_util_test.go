package handlerUtil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Unwarp/pkg/response"
)

func serve(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := New(logger)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return h.Handle(c, "req-1", err, c.Path(), "test")
	})

	resp, e := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, e)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHandle_DomainError(t *testing.T) {
	domain := response.NewErrorWithKind(fiber.StatusNotFound, "IMAGE_NOT_FOUND", "Image not found")

	code, body := serve(t, fmt.Errorf("loading: %w", domain))
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "Image not found", body.Error)
	assert.Equal(t, "IMAGE_NOT_FOUND", body.Code)
}

func TestHandle_FiberError(t *testing.T) {
	code, body := serve(t, fiber.NewError(fiber.StatusRequestEntityTooLarge, "too big"))
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "too big", body.Error)
}

func TestHandle_UnknownError(t *testing.T) {
	code, body := serve(t, errors.New("disk on fire"))
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, "req-1", body.TraceID)
	assert.NotContains(t, body.Error, "disk")
}
