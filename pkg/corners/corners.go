// Package corners holds the ordered set of up to four user-selected corner
// points of a distorted quadrilateral.
//
// A Set is a value. Every transition returns a new Set and leaves the
// receiver untouched, so callers can keep a history or compare states freely.
// Image-space coordinates are authoritative; display-space coordinates are a
// derived cache recomputed whenever the display size changes.
package corners

import (
	"errors"

	"Unwarp/pkg/geometry"
)

// MaxPoints is the number of corners needed for a perspective correction.
const MaxPoints = 4

var ErrIncompleteSelection = errors.New("corners: exactly 4 corner points are required")

type State int

const (
	StateEmpty State = iota
	StateCollecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCollecting:
		return "collecting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// CornerPoint is a selected corner. ID is its insertion index and never
// changes once assigned.
type CornerPoint struct {
	ID      int            `json:"id"`
	Image   geometry.Point `json:"image"`
	Display geometry.Point `json:"display"`
}

type EventKind string

const (
	EventPointAdded        EventKind = "point_added"
	EventSelectionComplete EventKind = "selection_complete"
	EventPointMoved        EventKind = "point_moved"
	EventReset             EventKind = "reset"
)

type Event struct {
	Kind    EventKind `json:"kind"`
	PointID int       `json:"point_id"`
}

type Set struct {
	points   []CornerPoint
	display  geometry.Size
	image    geometry.Size
	loaded   bool
	dragging bool
	dragID   int
}

// New returns an empty set with no image loaded. The zero Set is equivalent.
func New() Set {
	return Set{}
}

// Load starts a fresh selection for a newly loaded image.
func (s Set) Load(imageSize, displaySize geometry.Size) Set {
	return Set{
		display: displaySize,
		image:   imageSize,
		loaded:  true,
	}
}

// Resize records a new display size and rebuilds every point's display
// coordinates from its image coordinates.
func (s Set) Resize(displaySize geometry.Size) Set {
	next := s.clone()
	next.display = displaySize
	for i := range next.points {
		next.points[i].Display = geometry.ToDisplaySpace(next.points[i].Image, next.display, next.image)
	}
	return next
}

// AddPoint appends a corner from a display-space click. It is a no-op when no
// image is loaded or the set is already complete.
func (s Set) AddPoint(click geometry.Point) (Set, []Event) {
	return s.AddImagePoint(geometry.ToImageSpace(click, s.display, s.image))
}

// AddImagePoint appends a corner given directly in image space.
func (s Set) AddImagePoint(p geometry.Point) (Set, []Event) {
	if !s.loaded || len(s.points) >= MaxPoints {
		return s, nil
	}

	next := s.clone()
	id := len(next.points)
	next.points = append(next.points, CornerPoint{
		ID:      id,
		Image:   p,
		Display: geometry.ToDisplaySpace(p, next.display, next.image),
	})

	events := []Event{{Kind: EventPointAdded, PointID: id}}
	if len(next.points) == MaxPoints {
		events = append(events, Event{Kind: EventSelectionComplete, PointID: id})
	}
	return next, events
}

// BeginDrag records id as the point being dragged. Unknown ids are ignored.
func (s Set) BeginDrag(id int) Set {
	if id < 0 || id >= len(s.points) {
		return s
	}
	next := s.clone()
	next.dragging = true
	next.dragID = id
	return next
}

// DragPoint moves the point with the given id to a display-space position.
// It only applies while that point's drag is in progress.
func (s Set) DragPoint(id int, pos geometry.Point) (Set, []Event) {
	if !s.dragging || s.dragID != id || id < 0 || id >= len(s.points) {
		return s, nil
	}

	next := s.clone()
	img := geometry.ToImageSpace(pos, next.display, next.image)
	next.points[id].Image = img
	next.points[id].Display = geometry.ToDisplaySpace(img, next.display, next.image)
	return next, []Event{{Kind: EventPointMoved, PointID: id}}
}

// DragActive moves whichever point is currently being dragged.
func (s Set) DragActive(pos geometry.Point) (Set, []Event) {
	if !s.dragging {
		return s, nil
	}
	return s.DragPoint(s.dragID, pos)
}

func (s Set) EndDrag() Set {
	if !s.dragging {
		return s
	}
	next := s.clone()
	next.dragging = false
	next.dragID = 0
	return next
}

// Reset drops every point. The loaded image and sizes are kept.
func (s Set) Reset() (Set, []Event) {
	next := Set{
		display: s.display,
		image:   s.image,
		loaded:  s.loaded,
	}
	return next, []Event{{Kind: EventReset, PointID: -1}}
}

func (s Set) State() State {
	switch n := len(s.points); {
	case n == 0:
		return StateEmpty
	case n < MaxPoints:
		return StateCollecting
	default:
		return StateReady
	}
}

func (s Set) Count() int                 { return len(s.points) }
func (s Set) Ready() bool                { return len(s.points) == MaxPoints }
func (s Set) Loaded() bool               { return s.loaded }
func (s Set) DisplaySize() geometry.Size { return s.display }
func (s Set) ImageSize() geometry.Size   { return s.image }
func (s Set) Dragging() (int, bool)      { return s.dragID, s.dragging }

// Points returns a copy of the corners in insertion order.
func (s Set) Points() []CornerPoint {
	out := make([]CornerPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Quad returns the image-space corners in selection order.
func (s Set) Quad() ([MaxPoints]geometry.Point, error) {
	var q [MaxPoints]geometry.Point
	if len(s.points) != MaxPoints {
		return q, ErrIncompleteSelection
	}
	for i, p := range s.points {
		q[i] = p.Image
	}
	return q, nil
}

func (s Set) clone() Set {
	next := s
	if s.points != nil {
		next.points = make([]CornerPoint, len(s.points), MaxPoints)
		copy(next.points, s.points)
	}
	return next
}
