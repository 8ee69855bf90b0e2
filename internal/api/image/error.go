package image

import (
	"Unwarp/pkg/response"
	"Unwarp/pkg/utils"
)

var (
	ErrImageNotFound         = response.NewErrorWithKind(404, "IMAGE_NOT_FOUND", "Image not found")
	ErrProcessedNotFound     = response.NewErrorWithKind(404, "PROCESSED_NOT_FOUND", "Processed image not found")
	ErrInvalidFormat         = utils.ErrInvalidFormat
	ErrFileTooLarge          = utils.ErrFileTooLarge
	ErrUploadFailed          = response.NewErrorWithKind(500, "UPLOAD_FAILED", "Image upload failed")
	ErrIncompleteSelection   = response.NewErrorWithKind(400, "INCOMPLETE_SELECTION", "Exactly 4 corner points are required")
	ErrUnsolvableTransform   = response.NewErrorWithKind(422, "UNSOLVABLE_TRANSFORM", "Corner points do not define a valid quadrilateral")
	ErrInvalidDimensions     = response.NewErrorWithKind(400, "INVALID_DIMENSIONS", "Output dimensions must be positive")
	ErrProcessingInProgress  = response.NewErrorWithKind(409, "PROCESSING_IN_PROGRESS", "Image is already being processed")
	ErrProcessingFailed      = response.NewErrorWithKind(500, "PROCESSING_FAILED", "Image processing failed")
	ErrSuggestionUnavailable = response.NewErrorWithKind(503, "SUGGESTION_UNAVAILABLE", "Corner suggestion is not configured")
	ErrSuggestionFailed      = response.NewErrorWithKind(502, "SUGGESTION_FAILED", "Corner suggestion failed")
)
