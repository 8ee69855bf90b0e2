package imageService

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	"Unwarp/internal/entity"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/geometry"
	"Unwarp/pkg/s3"
)

func (s *imageService) GetImage(ctx context.Context, id string) (entity.Image, error) {
	repo, err := s.imageRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return entity.Image{}, err
	}

	return repo.Images.GetImageByID(ctx, id)
}

func (s *imageService) GetOriginal(ctx context.Context, id string) (imageApi.ImageFile, error) {
	img, err := s.GetImage(ctx, id)
	if err != nil {
		return imageApi.ImageFile{}, err
	}

	obj, err := s.fetch(ctx, img.OriginalKey, imageApi.ErrImageNotFound)
	if err != nil {
		return imageApi.ImageFile{}, err
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = obj.ContentType
	}

	return imageApi.ImageFile{
		Data:        obj.Data,
		ContentType: contentType,
		Filename:    img.Filename,
	}, nil
}

func (s *imageService) GetProcessed(ctx context.Context, id string) (imageApi.ImageFile, error) {
	img, err := s.GetImage(ctx, id)
	if err != nil {
		return imageApi.ImageFile{}, err
	}
	if !img.IsProcessed() {
		return imageApi.ImageFile{}, imageApi.ErrProcessedNotFound
	}

	obj, err := s.fetch(ctx, img.ProcessedKey, imageApi.ErrProcessedNotFound)
	if err != nil {
		return imageApi.ImageFile{}, err
	}

	return imageApi.ImageFile{
		Data:        obj.Data,
		ContentType: "image/png",
		Filename:    imageApi.DownloadFilename(img.ID),
	}, nil
}

// GetPreview returns the original scaled down for display, always as PNG.
func (s *imageService) GetPreview(ctx context.Context, id string, maxSize int) (imageApi.ImageFile, error) {
	if maxSize <= 0 {
		maxSize = s.policy.PreviewMaxSize
	}

	original, err := s.GetOriginal(ctx, id)
	if err != nil {
		return imageApi.ImageFile{}, err
	}

	decoded, _, err := s.utils.DecodeImage(original.Data)
	if err != nil {
		return imageApi.ImageFile{}, fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}

	data, err := s.utils.EncodePNG(s.utils.MakePreview(decoded, maxSize))
	if err != nil {
		return imageApi.ImageFile{}, fmt.Errorf("%w: %v", imageApi.ErrProcessingFailed, err)
	}

	return imageApi.ImageFile{
		Data:        data,
		ContentType: "image/png",
		Filename:    "preview-" + id + ".png",
	}, nil
}

func (s *imageService) GetInfo(ctx context.Context, id string) (imageApi.InfoResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.imageRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return imageApi.InfoResponse{}, err
	}

	img, err := repo.Images.GetImageByID(ctx, id)
	if err != nil {
		return imageApi.InfoResponse{}, err
	}

	history, err := repo.Processings.GetProcessingsByImageID(ctx, id)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   id,
			"error":      err.Error(),
		}).Warn("Failed to load processing history")
		history = nil
	}

	info := imageApi.InfoResponse{
		ImageID:      img.ID,
		Filename:     img.Filename,
		UploadTime:   img.UploadTime.UTC().Format(time.RFC3339),
		Width:        img.Width,
		Height:       img.Height,
		CornerPoints: toCornerPoints(img.CornerPoints),
		IsProcessed:  img.IsProcessed(),
		History: lo.Map(history, func(p entity.ImageProcessing, _ int) imageApi.ProcessingHistoryItem {
			return imageApi.ProcessingHistoryItem{
				ID:             p.ID,
				Status:         string(p.Status),
				Error:          p.ErrorMessage,
				ProcessingTime: imageApi.FormatDuration(p.ProcessingTime),
				CornerPoints:   toCornerPoints(p.CornerPoints),
				OutputWidth:    p.OutputWidth,
				OutputHeight:   p.OutputHeight,
				Enhanced:       p.Enhanced,
				CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
			}
		}),
	}

	if img.IsProcessed() {
		info.ProcessingTime = lo.ToPtr(imageApi.FormatDuration(img.ProcessingTime))
	}

	info.OriginalLink = s.presign(ctx, img.OriginalKey)
	if img.IsProcessed() {
		info.ProcessedLink = s.presign(ctx, img.ProcessedKey)
	}

	return info, nil
}

func (s *imageService) fetch(ctx context.Context, key string, notFound error) (s3.Object, error) {
	obj, err := s.s3.GetObject(ctx, key)
	if err != nil {
		if errors.Is(err, s3.ErrObjectNotFound) {
			return s3.Object{}, notFound
		}
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"key":        key,
			"error":      err.Error(),
		}).Error("Failed to read stored image")
		return s3.Object{}, err
	}
	return obj, nil
}

// presign returns a direct download link, or "" when the store cannot sign one.
func (s *imageService) presign(ctx context.Context, key string) string {
	link, err := s.s3.PresignUrl(key)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"key":        key,
			"error":      err.Error(),
		}).Warn("Failed to presign object")
		return ""
	}
	return link
}

func toCornerPoints(pts []geometry.Point) []imageApi.CornerPoint {
	return lo.Map(pts, func(p geometry.Point, _ int) imageApi.CornerPoint {
		return imageApi.CornerPoint{X: p.X, Y: p.Y}
	})
}
