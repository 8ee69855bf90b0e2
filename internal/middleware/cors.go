package middleware

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewCORS lets the browser editor call the API from its own origin.
// CORS_ALLOW_ORIGINS is a comma separated list and defaults to "*".
// Credentials are only allowed with an explicit origin list, since
// browsers refuse them together with a wildcard.
func NewCORS() fiber.Handler {
	origins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS"))
	if origins == "" {
		origins = "*"
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		AllowCredentials: origins != "*",
		ExposeHeaders:    "X-Request-ID,Content-Disposition",
		MaxAge:           3600,
	})
}
