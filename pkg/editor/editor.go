// Package editor models one user's correction session: the loaded image, its
// corner selection, the single outstanding correction request and the last
// result. Like corners.Set, a Session is a value and transitions return a new
// one.
package editor

import (
	"errors"
	"time"

	"Unwarp/pkg/corners"
	"Unwarp/pkg/geometry"
)

var (
	ErrNoImage             = errors.New("editor: no image loaded")
	ErrIncompleteSelection = corners.ErrIncompleteSelection
	ErrRequestInFlight     = errors.New("editor: a correction request is already in flight")
)

// Ticket identifies an issued correction request.
type Ticket struct {
	Seq        uint64 `json:"seq"`
	Generation uint64 `json:"generation"`
	ImageID    string `json:"image_id"`
}

// Request is what gets handed to the processing backend. Corners are in
// image space; display scaling is already resolved.
type Request struct {
	Ticket  Ticket
	ImageID string
	Corners [corners.MaxPoints]geometry.Point
}

type Result struct {
	ProcessedImageRef string        `json:"processed_image_ref"`
	Elapsed           time.Duration `json:"elapsed"`
}

type Session struct {
	imageID    string
	corners    corners.Set
	generation uint64
	seq        uint64
	inFlight   *Ticket
	result     *Result
	lastErr    error
}

func New() Session {
	return Session{corners: corners.New()}
}

// LoadImage switches the session to a new image. Corners and any previous
// result are cleared; a request still in flight stays outstanding but its
// result will be discarded.
func (s Session) LoadImage(imageID string, imageSize, displaySize geometry.Size) Session {
	next := s
	next.imageID = imageID
	next.corners = s.corners.Load(imageSize, displaySize)
	next.generation++
	next.result = nil
	next.lastErr = nil
	return next
}

// Reset clears the selection and the processed result.
func (s Session) Reset() (Session, []corners.Event) {
	next := s
	var events []corners.Event
	next.corners, events = s.corners.Reset()
	next.generation++
	next.result = nil
	next.lastErr = nil
	return next, events
}

// WithCorners replaces the corner set after a gesture.
func (s Session) WithCorners(set corners.Set) Session {
	next := s
	next.corners = set
	return next
}

// BeginProcessing issues a correction request when the selection is complete
// and nothing else is outstanding.
func (s Session) BeginProcessing() (Session, Request, error) {
	if s.imageID == "" || !s.corners.Loaded() {
		return s, Request{}, ErrNoImage
	}
	if s.inFlight != nil {
		return s, Request{}, ErrRequestInFlight
	}
	quad, err := s.corners.Quad()
	if err != nil {
		return s, Request{}, ErrIncompleteSelection
	}

	next := s
	next.seq++
	ticket := Ticket{Seq: next.seq, Generation: next.generation, ImageID: next.imageID}
	next.inFlight = &ticket
	next.lastErr = nil

	return next, Request{Ticket: ticket, ImageID: next.imageID, Corners: quad}, nil
}

// Complete settles the request identified by t. The result is kept only if
// the session still shows the same image and selection generation; the
// second return value reports whether it was applied.
func (s Session) Complete(t Ticket, r Result) (Session, bool) {
	next, current := s.settle(t)
	if !current {
		return next, false
	}
	next.result = &r
	next.lastErr = nil
	return next, true
}

// Fail settles the request identified by t with an error.
func (s Session) Fail(t Ticket, err error) (Session, bool) {
	next, current := s.settle(t)
	if !current {
		return next, false
	}
	next.result = nil
	next.lastErr = err
	return next, true
}

func (s Session) settle(t Ticket) (Session, bool) {
	next := s
	if s.inFlight != nil && s.inFlight.Seq == t.Seq {
		next.inFlight = nil
	}
	return next, t.Generation == s.generation && t.ImageID == s.imageID
}

func (s Session) ImageID() string      { return s.imageID }
func (s Session) Corners() corners.Set { return s.corners }
func (s Session) Processing() bool     { return s.inFlight != nil }
func (s Session) Generation() uint64   { return s.generation }
func (s Session) LastError() error     { return s.lastErr }

func (s Session) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}
