package imageHandler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/handlerUtil"
	"Unwarp/pkg/log"
	"Unwarp/pkg/utils"
)

const (
	ServiceName    = "Image Distortion Corrector API"
	ServiceVersion = "1.0.0"
)

func (h *ImageHandler) Banner(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"message": ServiceName + " v1.0",
	})
}

func (h *ImageHandler) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(imageApi.HealthResponse{
		Status:          "healthy",
		Service:         ServiceName,
		Version:         ServiceVersion,
		OpenCVAvailable: false,
		Engine:          "native",
	})
}

func (h *ImageHandler) UploadImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing upload image request")

	file, err := ctx.FormFile("file")
	if err != nil {
		return errHandler.Handle(ctx, requestID, utils.ErrNoFile, ctx.Path(), "upload_image")
	}

	res, err := h.imageService.Upload(c, file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

func (h *ImageHandler) ProcessImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.policy.ProcessTimeout+10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing correct image request")

	var req imageApi.ProcessRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if len(req.CornerPoints) != 4 {
		return errHandler.Handle(ctx, requestID, imageApi.ErrIncompleteSelection, ctx.Path(), "process_image")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.imageService.Process(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

func (h *ImageHandler) SuggestCorners(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 45*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing suggest corners request")

	res, err := h.imageService.SuggestCorners(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "suggest_corners")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}
