package image

import (
	"fmt"
	"time"
)

type CornerPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type UploadResponse struct {
	ImageID     string `json:"image_id"`
	OriginalURL string `json:"original_url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Message     string `json:"message"`
}

type ProcessRequest struct {
	ImageID      string        `json:"image_id" validate:"required"`
	CornerPoints []CornerPoint `json:"corner_points" validate:"required,len=4,dive"`
	OutputWidth  int           `json:"output_width" validate:"gte=0,lte=10000"`
	OutputHeight int           `json:"output_height" validate:"gte=0,lte=10000"`
	Enhance      *bool         `json:"enhance"`
}

type ProcessResponse struct {
	ProcessedImageURL string `json:"processed_image_url"`
	ProcessingTime    string `json:"processing_time"`
	Message           string `json:"message"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
}

// ImageFile is a stored variant ready to be written to the client.
type ImageFile struct {
	Data        []byte
	ContentType string
	Filename    string
}

type ProcessingHistoryItem struct {
	ID             string        `json:"id"`
	Status         string        `json:"status"`
	Error          string        `json:"error,omitempty"`
	ProcessingTime string        `json:"processing_time"`
	CornerPoints   []CornerPoint `json:"corner_points"`
	OutputWidth    int           `json:"output_width"`
	OutputHeight   int           `json:"output_height"`
	Enhanced       bool          `json:"enhanced"`
	CreatedAt      string        `json:"created_at"`
}

type InfoResponse struct {
	ImageID        string                  `json:"image_id"`
	Filename       string                  `json:"filename"`
	UploadTime     string                  `json:"upload_time"`
	Width          int                     `json:"width"`
	Height         int                     `json:"height"`
	ProcessingTime *string                 `json:"processing_time"`
	CornerPoints   []CornerPoint           `json:"corner_points"`
	IsProcessed    bool                    `json:"is_processed"`
	OriginalLink   string                  `json:"original_link,omitempty"`
	ProcessedLink  string                  `json:"processed_link,omitempty"`
	History        []ProcessingHistoryItem `json:"history"`
}

type SuggestCornersResponse struct {
	CornerPoints []CornerPoint `json:"corner_points"`
	Convex       bool          `json:"convex"`
	Message      string        `json:"message"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	Version         string `json:"version"`
	OpenCVAvailable bool   `json:"opencv_available"`
	Engine          string `json:"engine"`
}

// Policy holds the server-wide processing defaults.
type Policy struct {
	OutputWidth    int
	OutputHeight   int
	EnhanceDefault bool
	ProcessTimeout time.Duration
	LockTTL        time.Duration
	PreviewMaxSize int
}

func URLOriginal(id string) string  { return "/api/images/" + id + "/original" }
func URLProcessed(id string) string { return "/api/images/" + id + "/processed" }

func DownloadFilename(id string) string {
	return "corrected-image-" + id + ".png"
}

func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
