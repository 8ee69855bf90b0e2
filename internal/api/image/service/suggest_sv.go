package imageService

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/geometry"
)

const suggestPrompt = `The image shows a document, screen or other flat rectangular object photographed at an angle.
Locate its four corners in pixel coordinates of this image (width %d, height %d, origin top-left, y downward).
Answer with JSON only, in the form {"corner_points":[{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0}]}.`

type suggestion struct {
	CornerPoints []imageApi.CornerPoint `json:"corner_points"`
}

// SuggestCorners asks the vision model for the corners of the main object.
// The model sees the preview, so its answer is scaled back to original
// pixels, clamped and ordered before it is returned.
func (s *imageService) SuggestCorners(ctx context.Context, id string) (imageApi.SuggestCornersResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.gemini == nil {
		return imageApi.SuggestCornersResponse{}, imageApi.ErrSuggestionUnavailable
	}

	img, err := s.GetImage(ctx, id)
	if err != nil {
		return imageApi.SuggestCornersResponse{}, err
	}

	preview, err := s.GetPreview(ctx, id, s.policy.PreviewMaxSize)
	if err != nil {
		return imageApi.SuggestCornersResponse{}, err
	}
	decoded, _, err := s.utils.DecodeImage(preview.Data)
	if err != nil {
		return imageApi.SuggestCornersResponse{}, fmt.Errorf("%w: %v", imageApi.ErrSuggestionFailed, err)
	}
	pw, ph := decoded.Bounds().Dx(), decoded.Bounds().Dy()

	answer, err := s.gemini.AnalyzeImage(ctx, preview.Data, "png", fmt.Sprintf(suggestPrompt, pw, ph))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   id,
			"error":      err.Error(),
		}).Error("Corner suggestion request failed")
		return imageApi.SuggestCornersResponse{}, fmt.Errorf("%w: %v", imageApi.ErrSuggestionFailed, err)
	}

	quad, err := parseSuggestion(answer)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   id,
			"answer":     answer,
			"error":      err.Error(),
		}).Warn("Unusable corner suggestion")
		return imageApi.SuggestCornersResponse{}, fmt.Errorf("%w: %v", imageApi.ErrSuggestionFailed, err)
	}

	previewSize := geometry.Sz(float64(pw), float64(ph))
	imageSize := geometry.Sz(float64(img.Width), float64(img.Height))
	for i, p := range quad {
		quad[i] = geometry.Clamp(geometry.ToImageSpace(p, previewSize, imageSize), imageSize)
	}
	quad = geometry.OrderCorners(quad)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"image_id":   id,
		"corners":    quad,
	}).Info("Corner suggestion ready")

	return imageApi.SuggestCornersResponse{
		CornerPoints: toCornerPoints(quad[:]),
		Convex:       geometry.IsConvexQuad(quad),
		Message:      "Corner points suggested",
	}, nil
}

func parseSuggestion(answer string) ([4]geometry.Point, error) {
	var quad [4]geometry.Point

	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")

	var parsed suggestion
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(strings.TrimSpace(answer), &parsed); err != nil {
		return quad, err
	}
	if len(parsed.CornerPoints) != 4 {
		return quad, fmt.Errorf("expected 4 corner points, got %d", len(parsed.CornerPoints))
	}

	for i, p := range parsed.CornerPoints {
		quad[i] = geometry.Pt(p.X, p.Y)
	}
	return quad, nil
}
