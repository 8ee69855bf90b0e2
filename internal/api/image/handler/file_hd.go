package imageHandler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/handlerUtil"
	"Unwarp/pkg/log"
)

const (
	cacheStored   = "max-age=3600"
	cacheDownload = "no-cache"
)

func (h *ImageHandler) GetOriginal(ctx *fiber.Ctx) error {
	return h.serveFile(ctx, "get_original", func(c context.Context, id string) (imageApi.ImageFile, error) {
		return h.imageService.GetOriginal(c, id)
	}, func(file imageApi.ImageFile) {
		ctx.Set(fiber.HeaderCacheControl, cacheStored)
	})
}

func (h *ImageHandler) GetProcessed(ctx *fiber.Ctx) error {
	return h.serveFile(ctx, "get_processed", func(c context.Context, id string) (imageApi.ImageFile, error) {
		return h.imageService.GetProcessed(c, id)
	}, func(file imageApi.ImageFile) {
		ctx.Set(fiber.HeaderCacheControl, cacheStored)
	})
}

func (h *ImageHandler) Download(ctx *fiber.Ctx) error {
	return h.serveFile(ctx, "download", func(c context.Context, id string) (imageApi.ImageFile, error) {
		return h.imageService.GetProcessed(c, id)
	}, func(file imageApi.ImageFile) {
		ctx.Attachment(file.Filename)
		ctx.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		ctx.Set(fiber.HeaderCacheControl, cacheDownload)
	})
}

func (h *ImageHandler) GetPreview(ctx *fiber.Ctx) error {
	maxSize := ctx.QueryInt("max", h.policy.PreviewMaxSize)
	if maxSize <= 0 || maxSize > 4096 {
		maxSize = h.policy.PreviewMaxSize
	}

	return h.serveFile(ctx, "get_preview", func(c context.Context, id string) (imageApi.ImageFile, error) {
		return h.imageService.GetPreview(c, id, maxSize)
	}, func(file imageApi.ImageFile) {
		ctx.Set(fiber.HeaderCacheControl, cacheStored)
	})
}

func (h *ImageHandler) GetInfo(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing get image info request")

	res, err := h.imageService.GetInfo(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_info")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

// serveFile loads one stored variant and writes its bytes. headers runs
// after the content type is set so it can override it.
func (h *ImageHandler) serveFile(
	ctx *fiber.Ctx,
	operation string,
	load func(c context.Context, id string) (imageApi.ImageFile, error),
	headers func(file imageApi.ImageFile),
) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"operation":  operation,
	}).Debug("Processing image file request")

	file, err := load(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), operation)
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		ctx.Set(fiber.HeaderContentType, file.ContentType)
		headers(file)
		return ctx.Status(fiber.StatusOK).Send(file.Data)
	}
}
