package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"Unwarp/internal/middleware"
	"Unwarp/pkg/handlerUtil"
	"Unwarp/pkg/utils"
)

// BodyLimit leaves room for multipart framing around the largest upload.
const BodyLimit = utils.MaxFileSize + 2*1024*1024

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Unwarp",
			BodyLimit:         BodyLimit,
			DisableKeepalive:  false,
			StrictRouting:     false,
			CaseSensitive:     true,
			EnablePrintRoutes: false,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				requestID, _ := c.Locals(middleware.RequestIDKey).(string)
				return handlerUtil.New(logger).Handle(c, requestID, err, c.Path(), "fiber")
			},
		})

	return app
}

func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
