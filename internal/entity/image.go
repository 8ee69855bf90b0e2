package entity

import (
	"time"

	"Unwarp/pkg/geometry"
)

type Image struct {
	ID             string
	Filename       string
	ContentType    string
	Format         string
	Width          int
	Height         int
	SizeBytes      int64
	OriginalKey    string
	ProcessedKey   string
	CornerPoints   []geometry.Point
	ProcessingTime time.Duration
	ProcessedAt    *time.Time
	UploadTime     time.Time
	UpdatedAt      time.Time
}

func (i Image) IsProcessed() bool {
	return i.ProcessedKey != ""
}

func (i Image) Size() geometry.Size {
	return geometry.Sz(float64(i.Width), float64(i.Height))
}

type ProcessingStatus string

const (
	ProcessingStatusSuccess ProcessingStatus = "success"
	ProcessingStatusFailed  ProcessingStatus = "failed"
)

type ImageProcessing struct {
	ID             string
	ImageID        string
	CornerPoints   []geometry.Point
	OutputWidth    int
	OutputHeight   int
	Enhanced       bool
	Status         ProcessingStatus
	ErrorMessage   string
	ProcessingTime time.Duration
	CreatedAt      time.Time
}
