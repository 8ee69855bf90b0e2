package utils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"golang.org/x/image/draw"

	"Unwarp/pkg/response"
)

// MaxFileSize is the largest accepted upload in bytes (10 MiB).
const MaxFileSize = 10 * 1024 * 1024

var (
	ErrInvalidFormat = response.NewErrorWithKind(fiber.StatusBadRequest, "INVALID_FORMAT", "Please upload a valid image file (JPEG or PNG)")
	ErrFileTooLarge  = response.NewErrorWithKind(fiber.StatusBadRequest, "FILE_TOO_LARGE", "File size must be less than 10MB")
	ErrNoFile        = response.NewErrorWithKind(fiber.StatusBadRequest, "NO_FILE", "No file uploaded")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	DecodeImage(data []byte) (image.Image, string, error)
	EncodePNG(img image.Image) ([]byte, error)
	MakePreview(img image.Image, maxSize int) image.Image
}

type utils struct{}

func New() IUtils {
	return &utils{}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ValidateImageFormat accepts exactly image/jpeg, image/jpg and image/png of
// at most MaxFileSize bytes.
func ValidateImageFormat(contentType string, size int64) error {
	if !allowedTypes[contentType] {
		return ErrInvalidFormat
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}
	return ValidateImageFormat(file.Header.Get("Content-Type"), file.Size)
}

// DecodeImage checks the container format before decoding and applies the
// EXIF orientation so the pixels are upright. It returns "jpeg" or "png".
func (u *utils) DecodeImage(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, "", ErrInvalidFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return img, format, nil
}

func (u *utils) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MakePreview scales img down so its longer side is at most maxSize. Smaller
// images are returned unchanged.
func (u *utils) MakePreview(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}

	nw, nh := maxSize, maxSize
	if w >= h {
		nh = max(1, h*maxSize/w)
	} else {
		nw = max(1, w*maxSize/h)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func ReadAll(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}
