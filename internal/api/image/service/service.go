package imageService

import (
	"mime/multipart"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	imageRepository "Unwarp/internal/api/image/repository"
	"Unwarp/internal/entity"
	"Unwarp/pkg/gemini"
	"Unwarp/pkg/redis"
	"Unwarp/pkg/s3"
	"Unwarp/pkg/utils"
)

type IImageService interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (imageApi.UploadResponse, error)
	Process(ctx context.Context, req imageApi.ProcessRequest) (imageApi.ProcessResponse, error)
	GetImage(ctx context.Context, id string) (entity.Image, error)
	GetOriginal(ctx context.Context, id string) (imageApi.ImageFile, error)
	GetProcessed(ctx context.Context, id string) (imageApi.ImageFile, error)
	GetPreview(ctx context.Context, id string, maxSize int) (imageApi.ImageFile, error)
	GetInfo(ctx context.Context, id string) (imageApi.InfoResponse, error)
	SuggestCorners(ctx context.Context, id string) (imageApi.SuggestCornersResponse, error)
}

type imageService struct {
	log             *logrus.Logger
	imageRepository imageRepository.Repository
	s3              s3.ItfS3
	redis           redis.IRedis
	gemini          gemini.IGemini
	utils           utils.IUtils
	policy          imageApi.Policy
}

// NewImageService wires the image domain. redis and gemini are optional:
// without redis the cross-instance processing lock is skipped, without
// gemini corner suggestion reports itself unavailable.
func NewImageService(
	log *logrus.Logger,
	ir imageRepository.Repository,
	s3 s3.ItfS3,
	redis redis.IRedis,
	gemini gemini.IGemini,
	utils utils.IUtils,
	policy imageApi.Policy,
) IImageService {
	return &imageService{
		log:             log,
		imageRepository: ir,
		s3:              s3,
		redis:           redis,
		gemini:          gemini,
		utils:           utils,
		policy:          policy,
	}
}
