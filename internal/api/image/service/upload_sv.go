package imageService

import (
	"fmt"
	"mime/multipart"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	"Unwarp/internal/entity"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/s3"
	"Unwarp/pkg/utils"
)

func (s *imageService) Upload(ctx context.Context, file *multipart.FileHeader) (imageApi.UploadResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if err := s.utils.ValidateImageFile(file); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Rejected upload")
		return imageApi.UploadResponse{}, err
	}

	data, err := utils.ReadAll(file)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to read uploaded file")
		return imageApi.UploadResponse{}, fmt.Errorf("%w: %v", imageApi.ErrUploadFailed, err)
	}
	if len(data) > utils.MaxFileSize {
		return imageApi.UploadResponse{}, imageApi.ErrFileTooLarge
	}

	decoded, format, err := s.utils.DecodeImage(data)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"filename":   file.Filename,
			"error":      err.Error(),
		}).Warn("Uploaded file is not a valid image")
		return imageApi.UploadResponse{}, err
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return imageApi.UploadResponse{}, err
	}

	contentType := "image/" + format
	key := s3.OriginalKey(id, extension(format))
	if _, err := s.s3.UploadObject(ctx, key, data, contentType); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        key,
			"error":      err.Error(),
		}).Error("Failed to store original image")
		return imageApi.UploadResponse{}, fmt.Errorf("%w: %v", imageApi.ErrUploadFailed, err)
	}

	now := time.Now()
	record := entity.Image{
		ID:          id,
		Filename:    file.Filename,
		ContentType: contentType,
		Format:      format,
		Width:       decoded.Bounds().Dx(),
		Height:      decoded.Bounds().Dy(),
		SizeBytes:   int64(len(data)),
		OriginalKey: key,
		UploadTime:  now,
		UpdatedAt:   now,
	}

	repo, err := s.imageRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return imageApi.UploadResponse{}, err
	}

	if err := repo.Images.CreateImage(ctx, record); err != nil {
		if deleteErr := s.s3.DeleteFile(key); deleteErr != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      deleteErr.Error(),
			}).Error("Failed to delete original after record creation failure")
		}
		return imageApi.UploadResponse{}, fmt.Errorf("%w: %v", imageApi.ErrUploadFailed, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"image_id":   id,
		"width":      record.Width,
		"height":     record.Height,
	}).Info("Image uploaded successfully")

	return imageApi.UploadResponse{
		ImageID:     id,
		OriginalURL: imageApi.URLOriginal(id),
		Width:       record.Width,
		Height:      record.Height,
		Message:     "Image uploaded successfully",
	}, nil
}

func extension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
