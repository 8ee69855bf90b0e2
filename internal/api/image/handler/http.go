package imageHandler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	imageApi "Unwarp/internal/api/image"
	imageService "Unwarp/internal/api/image/service"
	"Unwarp/internal/middleware"
)

type ImageHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	imageService imageService.IImageService
	policy       imageApi.Policy
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	is imageService.IImageService,
	policy imageApi.Policy,
) *ImageHandler {
	return &ImageHandler{
		log:          log,
		validator:    validate,
		middleware:   middleware,
		imageService: is,
		policy:       policy,
	}
}

func (h *ImageHandler) Start(srv fiber.Router) {
	srv.Get("/", h.Banner)
	srv.Get("/health", h.Health)

	srv.Post("/upload-image", h.middleware.NewRateLimiter, h.UploadImage)
	srv.Post("/process-image", h.middleware.NewRateLimiter, h.ProcessImage)

	images := srv.Group("/images")
	images.Get("/:id/original", h.GetOriginal)
	images.Get("/:id/processed", h.GetProcessed)
	images.Get("/:id/download", h.Download)
	images.Get("/:id/preview", h.GetPreview)
	images.Get("/:id/info", h.GetInfo)
	images.Post("/:id/suggest-corners", h.middleware.NewRateLimiter, h.SuggestCorners)
}
