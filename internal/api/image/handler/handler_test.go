package imageHandler

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	"Unwarp/internal/entity"
	"Unwarp/internal/middleware"
	"Unwarp/pkg/handlerUtil"
)

type fakeService struct {
	uploaded    string
	processReq  imageApi.ProcessRequest
	processErr  error
	file        imageApi.ImageFile
	fileErr     error
	previewSize int
	suggestErr  error
}

func (f *fakeService) Upload(_ context.Context, file *multipart.FileHeader) (imageApi.UploadResponse, error) {
	f.uploaded = file.Filename
	return imageApi.UploadResponse{ImageID: "img-1", OriginalURL: imageApi.URLOriginal("img-1"), Width: 4, Height: 3, Message: "Image uploaded successfully"}, nil
}

func (f *fakeService) Process(_ context.Context, req imageApi.ProcessRequest) (imageApi.ProcessResponse, error) {
	f.processReq = req
	if f.processErr != nil {
		return imageApi.ProcessResponse{}, f.processErr
	}
	return imageApi.ProcessResponse{ProcessedImageURL: imageApi.URLProcessed(req.ImageID), ProcessingTime: "0.12s", Message: "Image processed successfully", Width: 10, Height: 8}, nil
}

func (f *fakeService) GetImage(context.Context, string) (entity.Image, error) {
	return entity.Image{}, nil
}

func (f *fakeService) GetOriginal(context.Context, string) (imageApi.ImageFile, error) {
	return f.file, f.fileErr
}

func (f *fakeService) GetProcessed(context.Context, string) (imageApi.ImageFile, error) {
	return f.file, f.fileErr
}

func (f *fakeService) GetPreview(_ context.Context, _ string, maxSize int) (imageApi.ImageFile, error) {
	f.previewSize = maxSize
	return f.file, f.fileErr
}

func (f *fakeService) GetInfo(_ context.Context, id string) (imageApi.InfoResponse, error) {
	return imageApi.InfoResponse{ImageID: id, Filename: "doc.png", History: []imageApi.ProcessingHistoryItem{}}, nil
}

func (f *fakeService) SuggestCorners(context.Context, string) (imageApi.SuggestCornersResponse, error) {
	if f.suggestErr != nil {
		return imageApi.SuggestCornersResponse{}, f.suggestErr
	}
	return imageApi.SuggestCornersResponse{CornerPoints: make([]imageApi.CornerPoint, 4), Convex: true}, nil
}

func newApp(t *testing.T, svc *fakeService) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app := fiber.New()
	mw := middleware.New(logger)
	app.Use(mw.NewCORSMiddleware(), mw.NewRequestIDMiddleware())
	New(logger, validator.New(), mw, svc, imageApi.Policy{ProcessTimeout: time.Second, PreviewMaxSize: 512}).Start(app.Group("/api"))
	return app
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(v))
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthAndBanner(t *testing.T) {
	app := newApp(t, &fakeService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
	require.NoError(t, err)
	var health imageApi.HealthResponse
	decode(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "Image Distortion Corrector API", health.Service)
	assert.Equal(t, "1.0.0", health.Version)
	assert.False(t, health.OpenCVAvailable)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/", nil))
	require.NoError(t, err)
	var banner map[string]string
	decode(t, resp, &banner)
	assert.Equal(t, "Image Distortion Corrector API v1.0", banner["message"])
}

func TestCORSPreflight(t *testing.T) {
	app := newApp(t, &fakeService{})

	for _, path := range []string{"/api/upload-image", "/api/process-image", "/api/images/img-1/suggest-corners"} {
		req := httptest.NewRequest(fiber.MethodOptions, path, nil)
		req.Header.Set(fiber.HeaderOrigin, "http://localhost:3001")
		req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode, path)
		assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin), path)
	}
}

func TestUploadImage(t *testing.T) {
	svc := &fakeService{}
	app := newApp(t, svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload-image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var res imageApi.UploadResponse
	decode(t, resp, &res)
	assert.Equal(t, "img-1", res.ImageID)
	assert.Equal(t, "/api/images/img-1/original", res.OriginalURL)
	assert.Equal(t, "scan.png", svc.uploaded)
}

func TestUploadImage_NoFile(t *testing.T) {
	app := newApp(t, &fakeService{})

	resp, err := app.Test(httptest.NewRequest("POST", "/api/upload-image", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body handlerUtil.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "NO_FILE", body.Code)
}

func TestProcessImage(t *testing.T) {
	svc := &fakeService{}
	app := newApp(t, svc)

	resp, err := app.Test(jsonRequest("POST", "/api/process-image",
		`{"image_id":"img-1","corner_points":[{"x":1,"y":2},{"x":30,"y":2},{"x":30,"y":20},{"x":1,"y":20}],"enhance":false}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var res imageApi.ProcessResponse
	decode(t, resp, &res)
	assert.Equal(t, "/api/images/img-1/processed", res.ProcessedImageURL)
	assert.Equal(t, "0.12s", res.ProcessingTime)

	require.Len(t, svc.processReq.CornerPoints, 4)
	assert.Equal(t, imageApi.CornerPoint{X: 30, Y: 20}, svc.processReq.CornerPoints[2])
	require.NotNil(t, svc.processReq.Enhance)
	assert.False(t, *svc.processReq.Enhance)
}

func TestProcessImage_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		svcErr error
		status int
		code   string
	}{
		{
			name:   "three corners",
			body:   `{"image_id":"img-1","corner_points":[{"x":1,"y":2},{"x":30,"y":2},{"x":30,"y":20}]}`,
			status: fiber.StatusBadRequest,
			code:   "INCOMPLETE_SELECTION",
		},
		{
			name:   "missing image id",
			body:   `{"corner_points":[{"x":1,"y":2},{"x":30,"y":2},{"x":30,"y":20},{"x":1,"y":20}]}`,
			status: fiber.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "malformed json",
			body:   `{"image_id":`,
			status: fiber.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "degenerate",
			body:   `{"image_id":"img-1","corner_points":[{"x":0,"y":0},{"x":1,"y":1},{"x":2,"y":2},{"x":0,"y":2}]}`,
			svcErr: imageApi.ErrUnsolvableTransform,
			status: fiber.StatusUnprocessableEntity,
			code:   "UNSOLVABLE_TRANSFORM",
		},
		{
			name:   "busy",
			body:   `{"image_id":"img-1","corner_points":[{"x":1,"y":2},{"x":30,"y":2},{"x":30,"y":20},{"x":1,"y":20}]}`,
			svcErr: imageApi.ErrProcessingInProgress,
			status: fiber.StatusConflict,
			code:   "PROCESSING_IN_PROGRESS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(t, &fakeService{processErr: tt.svcErr})
			resp, err := app.Test(jsonRequest("POST", "/api/process-image", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body handlerUtil.ErrorResponse
			decode(t, resp, &body)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestServeFiles(t *testing.T) {
	svc := &fakeService{file: imageApi.ImageFile{Data: []byte("png-data"), ContentType: "image/png", Filename: "corrected-image-img-1.png"}}
	app := newApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/images/img-1/processed", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "max-age=3600", resp.Header.Get("Cache-Control"))
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "png-data", string(data))

	resp, err = app.Test(httptest.NewRequest("GET", "/api/images/img-1/download", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="corrected-image-img-1.png"`)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/images/img-1/preview?max=128", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 128, svc.previewSize)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/images/img-1/preview?max=-5", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 512, svc.previewSize)
}

func TestServeFiles_NotFound(t *testing.T) {
	app := newApp(t, &fakeService{fileErr: imageApi.ErrProcessedNotFound})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/images/img-1/processed", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var body handlerUtil.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "PROCESSED_NOT_FOUND", body.Code)
	assert.Equal(t, "Processed image not found", body.Error)
}

func TestGetInfo(t *testing.T) {
	app := newApp(t, &fakeService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/images/img-9/info", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var info map[string]interface{}
	decode(t, resp, &info)
	assert.Equal(t, "img-9", info["image_id"])
	assert.Contains(t, info, "processing_time")
	assert.Nil(t, info["processing_time"])
}

func TestSuggestCorners(t *testing.T) {
	resp, err := newApp(t, &fakeService{}).Test(httptest.NewRequest("POST", "/api/images/img-1/suggest-corners", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = newApp(t, &fakeService{suggestErr: imageApi.ErrSuggestionUnavailable}).Test(httptest.NewRequest("POST", "/api/images/img-1/suggest-corners", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
