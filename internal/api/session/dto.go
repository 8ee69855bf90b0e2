package session

import (
	"errors"
	"time"

	imageApi "Unwarp/internal/api/image"
	"Unwarp/internal/entity"
	"Unwarp/pkg/corners"
	"Unwarp/pkg/geometry"
	"Unwarp/pkg/response"
)

type GestureType string

const (
	GestureClick     GestureType = "click"
	GestureDragStart GestureType = "drag_start"
	GestureDragMove  GestureType = "drag_move"
	GestureDragEnd   GestureType = "drag_end"
	GestureReset     GestureType = "reset"
	GestureResize    GestureType = "resize"
	GestureProcess   GestureType = "process"
)

// HitRadius is how close, in display pixels, a drag_start without an id must
// land to an existing corner to pick it up.
const HitRadius = 15.0

type CreateSessionRequest struct {
	ImageID       string  `json:"image_id" validate:"required"`
	DisplayWidth  float64 `json:"display_width" validate:"gte=0"`
	DisplayHeight float64 `json:"display_height" validate:"gte=0"`
}

type CreateSessionResponse struct {
	SessionID string        `json:"session_id"`
	Token     string        `json:"token"`
	ExpiresAt int64         `json:"expires_at"`
	State     StateResponse `json:"state"`
}

// LoadImageRequest switches a session to another uploaded image. A zero
// display size keeps the one the session already has.
type LoadImageRequest struct {
	ImageID       string  `json:"image_id" validate:"required"`
	DisplayWidth  float64 `json:"display_width" validate:"gte=0"`
	DisplayHeight float64 `json:"display_height" validate:"gte=0"`
}

type Gesture struct {
	Type   GestureType `json:"type" validate:"required,oneof=click drag_start drag_move drag_end reset resize process"`
	ID     *int        `json:"id,omitempty" validate:"omitempty,gte=0,lt=4"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Width  float64     `json:"width" validate:"gte=0"`
	Height float64     `json:"height" validate:"gte=0"`
}

type Point struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	DisplayX float64 `json:"display_x"`
	DisplayY float64 `json:"display_y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Result struct {
	ProcessedImageURL string `json:"processed_image_url"`
	ProcessingTime    string `json:"processing_time"`
}

type StateResponse struct {
	SessionID  string          `json:"session_id"`
	ImageID    string          `json:"image_id"`
	State      string          `json:"state"`
	Points     []Point         `json:"points"`
	Display    Size            `json:"display"`
	Image      Size            `json:"image"`
	Dragging   *int            `json:"dragging"`
	Processing bool            `json:"processing"`
	Convex     bool            `json:"convex"`
	Result     *Result         `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Events     []corners.Event `json:"events"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// NewState renders a session snapshot together with the events produced by
// the transition that led to it.
func NewState(s entity.EditSession, events []corners.Event) StateResponse {
	set := s.State.Corners()

	points := make([]Point, 0, corners.MaxPoints)
	for _, p := range set.Points() {
		points = append(points, Point{
			ID:       p.ID,
			X:        p.Image.X,
			Y:        p.Image.Y,
			DisplayX: p.Display.X,
			DisplayY: p.Display.Y,
		})
	}
	if events == nil {
		events = []corners.Event{}
	}

	state := StateResponse{
		SessionID:  s.ID,
		ImageID:    s.State.ImageID(),
		State:      set.State().String(),
		Points:     points,
		Display:    toSize(set.DisplaySize()),
		Image:      toSize(set.ImageSize()),
		Processing: s.State.Processing(),
		Events:     events,
		ExpiresAt:  s.ExpiresAt,
	}

	if id, dragging := set.Dragging(); dragging {
		state.Dragging = &id
	}
	if quad, err := set.Quad(); err == nil {
		state.Convex = geometry.IsConvexQuad(quad)
	}
	if r, ok := s.State.Result(); ok {
		state.Result = &Result{
			ProcessedImageURL: r.ProcessedImageRef,
			ProcessingTime:    imageApi.FormatDuration(r.Elapsed),
		}
	}
	if err := s.State.LastError(); err != nil {
		state.Error = publicMessage(err)
	}

	return state
}

// publicMessage keeps internal detail out of the state pushed to clients.
func publicMessage(err error) string {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		return respErr.Err.Error()
	}
	return "Image processing failed"
}

func toSize(s geometry.Size) Size {
	return Size{Width: s.Width, Height: s.Height}
}

type MessageType string

const (
	MessageState MessageType = "state"
	MessageError MessageType = "error"
)

// Message is the envelope written to websocket clients.
type Message struct {
	Type  MessageType    `json:"type"`
	State *StateResponse `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
	Code  string         `json:"code,omitempty"`
}

func StateMessage(state StateResponse) Message {
	return Message{Type: MessageState, State: &state}
}

func ErrorMessage(err error) Message {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		return Message{Type: MessageError, Error: respErr.Err.Error(), Code: respErr.Kind}
	}
	return Message{Type: MessageError, Error: "An unexpected error occurred", Code: "INTERNAL_ERROR"}
}
