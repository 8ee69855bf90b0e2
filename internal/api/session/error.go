package session

import (
	"Unwarp/pkg/response"
)

var (
	ErrSessionNotFound     = response.NewErrorWithKind(404, "SESSION_NOT_FOUND", "Session not found or expired")
	ErrInvalidGesture      = response.NewErrorWithKind(400, "INVALID_GESTURE", "Gesture is missing required fields")
	ErrNoImage             = response.NewErrorWithKind(409, "NO_IMAGE", "No image loaded in this session")
	ErrIncompleteSelection = response.NewErrorWithKind(400, "INCOMPLETE_SELECTION", "Exactly 4 corner points are required")
	ErrRequestInFlight     = response.NewErrorWithKind(409, "REQUEST_IN_FLIGHT", "A correction for this session is already running")
	ErrTokenIssue          = response.NewErrorWithKind(500, "TOKEN_ISSUE", "Failed to issue session token")
)
