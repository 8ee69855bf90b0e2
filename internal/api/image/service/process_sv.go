package imageService

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	"Unwarp/internal/entity"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/enhance"
	"Unwarp/pkg/geometry"
	"Unwarp/pkg/perspective"
	"Unwarp/pkg/redis"
	"Unwarp/pkg/s3"
)

type correction struct {
	corners  []geometry.Point
	width    int
	height   int
	enhanced bool
	output   image.Image
}

func (s *imageService) Process(ctx context.Context, req imageApi.ProcessRequest) (imageApi.ProcessResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(req.CornerPoints) != 4 {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   req.ImageID,
			"count":      len(req.CornerPoints),
		}).Warn("Correction requested without exactly 4 corners")
		return imageApi.ProcessResponse{}, imageApi.ErrIncompleteSelection
	}

	repo, err := s.imageRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return imageApi.ProcessResponse{}, err
	}

	img, err := repo.Images.GetImageByID(ctx, req.ImageID)
	if err != nil {
		return imageApi.ProcessResponse{}, err
	}

	owner, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return imageApi.ProcessResponse{}, fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}
	release, err := s.acquireProcessingLock(ctx, img.ID, owner)
	if err != nil {
		return imageApi.ProcessResponse{}, err
	}
	defer release()

	start := time.Now()
	result, err := s.correct(ctx, img, req)
	if err != nil {
		s.recordProcessing(ctx, img.ID, result, time.Since(start), err)
		return imageApi.ProcessResponse{}, err
	}

	encoded, err := s.utils.EncodePNG(result.output)
	if err != nil {
		s.recordProcessing(ctx, img.ID, result, time.Since(start), err)
		return imageApi.ProcessResponse{}, fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}

	key := s3.ProcessedKey(img.ID)
	if _, err := s.s3.UploadObject(ctx, key, encoded, "image/png"); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        key,
			"error":      err.Error(),
		}).Error("Failed to store processed image")
		s.recordProcessing(ctx, img.ID, result, time.Since(start), err)
		return imageApi.ProcessResponse{}, fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}
	elapsed := time.Since(start)

	processedAt := time.Now()
	img.ProcessedKey = key
	img.CornerPoints = result.corners
	img.ProcessingTime = elapsed
	img.ProcessedAt = &processedAt

	if err := s.saveResult(ctx, img, result, elapsed); err != nil {
		return imageApi.ProcessResponse{}, fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"image_id":   img.ID,
		"width":      result.width,
		"height":     result.height,
		"enhanced":   result.enhanced,
		"elapsed":    elapsed.String(),
	}).Info("Image processed successfully")

	return imageApi.ProcessResponse{
		ProcessedImageURL: imageApi.URLProcessed(img.ID),
		ProcessingTime:    imageApi.FormatDuration(elapsed),
		Message:           "Image processed successfully",
		Width:             result.width,
		Height:            result.height,
	}, nil
}

// correct loads the original, clamps the corners into it and runs the warp
// plus optional enhancement. The returned correction is filled as far as the
// pipeline got so failures can still be recorded.
func (s *imageService) correct(ctx context.Context, img entity.Image, req imageApi.ProcessRequest) (correction, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var result correction

	obj, err := s.s3.GetObject(ctx, img.OriginalKey)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        img.OriginalKey,
			"error":      err.Error(),
		}).Error("Failed to load original image")
		if errors.Is(err, s3.ErrObjectNotFound) {
			return result, imageApi.ErrImageNotFound
		}
		return result, fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}

	src, _, err := s.utils.DecodeImage(obj.Data)
	if err != nil {
		return result, fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}

	bounds := geometry.Sz(float64(src.Bounds().Dx()), float64(src.Bounds().Dy()))
	result.corners = lo.Map(req.CornerPoints, func(p imageApi.CornerPoint, _ int) geometry.Point {
		return geometry.Clamp(geometry.Pt(p.X, p.Y), bounds)
	})
	result.width, result.height = s.outputSize(req, [4]geometry.Point(result.corners))
	result.enhanced = s.policy.EnhanceDefault
	if req.Enhance != nil {
		result.enhanced = *req.Enhance
	}

	pctx, cancel := context.WithTimeout(ctx, s.policy.ProcessTimeout)
	defer cancel()

	warped, err := perspective.Warp(pctx, src, result.corners, result.width, result.height)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   img.ID,
			"corners":    result.corners,
			"error":      err.Error(),
		}).Warn("Perspective correction rejected")
		return result, translateWarpError(err)
	}
	result.output = warped

	if result.enhanced {
		enhanced, err := enhance.Enhance(pctx, warped, enhance.DefaultConfig())
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"image_id":   img.ID,
				"error":      err.Error(),
			}).Warn("Enhancement failed, using uncorrected contrast")
			result.enhanced = false
		} else {
			result.output = enhanced
		}
	}

	return result, nil
}

// outputSize picks the destination rectangle: explicit request, then the
// configured policy, then a size fitted to the selection.
func (s *imageService) outputSize(req imageApi.ProcessRequest, quad [4]geometry.Point) (int, int) {
	if req.OutputWidth > 0 && req.OutputHeight > 0 {
		return req.OutputWidth, req.OutputHeight
	}
	if s.policy.OutputWidth > 0 && s.policy.OutputHeight > 0 {
		return s.policy.OutputWidth, s.policy.OutputHeight
	}
	return perspective.FitSize(quad)
}

func translateWarpError(err error) error {
	switch {
	case errors.Is(err, perspective.ErrMalformedInput):
		return imageApi.ErrIncompleteSelection
	case errors.Is(err, perspective.ErrUnsolvableTransform):
		return fmt.Errorf("%w: %v", imageApi.ErrUnsolvableTransform, err)
	case errors.Is(err, perspective.ErrInvalidDimensions):
		return imageApi.ErrInvalidDimensions
	default:
		return fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}
}

func (s *imageService) acquireProcessingLock(ctx context.Context, imageID, owner string) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	key := redis.ProcessingLockKey(imageID)
	ok, err := s.redis.AcquireLock(ctx, key, owner, s.policy.LockTTL)
	if err != nil {
		// Redis being down must not stop corrections on a single instance.
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"image_id":   imageID,
			"error":      err.Error(),
		}).Warn("Processing lock unavailable, continuing without it")
		return func() {}, nil
	}
	if !ok {
		return nil, imageApi.ErrProcessingInProgress
	}

	return func() {
		if err := s.redis.ReleaseLock(contextPkg.Detach(ctx), key, owner); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"image_id":   imageID,
				"error":      err.Error(),
			}).Warn("Failed to release processing lock")
		}
	}, nil
}

func (s *imageService) saveResult(ctx context.Context, img entity.Image, result correction, elapsed time.Duration) error {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.imageRepository.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to begin transaction")
		return err
	}

	if err := repo.Images.UpdateProcessed(ctx, img); err != nil {
		_ = repo.Rollback()
		return err
	}

	record, err := s.processingRecord(img.ID, result, elapsed, nil)
	if err != nil {
		_ = repo.Rollback()
		return err
	}
	if err := repo.Processings.CreateProcessing(ctx, record); err != nil {
		_ = repo.Rollback()
		return err
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit processing result")
		return err
	}
	return nil
}

// recordProcessing appends a failed attempt to the history. Failures to
// record are logged only; the caller already has an error to report.
func (s *imageService) recordProcessing(ctx context.Context, imageID string, result correction, elapsed time.Duration, cause error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.imageRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   imageID,
			"error":      err.Error(),
		}).Warn("Failed to create new client, processing attempt not recorded")
		return
	}
	record, err := s.processingRecord(imageID, result, elapsed, cause)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   imageID,
			"error":      err.Error(),
		}).Warn("Failed to generate ULID, processing attempt not recorded")
		return
	}
	if err := repo.Processings.CreateProcessing(contextPkg.Detach(ctx), record); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   imageID,
			"error":      err.Error(),
		}).Warn("Failed to record processing attempt")
	}
}

func (s *imageService) processingRecord(imageID string, result correction, elapsed time.Duration, cause error) (entity.ImageProcessing, error) {
	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return entity.ImageProcessing{}, err
	}
	record := entity.ImageProcessing{
		ID:             id,
		ImageID:        imageID,
		CornerPoints:   result.corners,
		OutputWidth:    result.width,
		OutputHeight:   result.height,
		Enhanced:       result.enhanced,
		Status:         entity.ProcessingStatusSuccess,
		ProcessingTime: elapsed,
		CreatedAt:      time.Now(),
	}
	if cause != nil {
		record.Status = entity.ProcessingStatusFailed
		record.ErrorMessage = cause.Error()
	}
	return record, nil
}
