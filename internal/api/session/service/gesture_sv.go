package sessionService

import (
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	sessionApi "Unwarp/internal/api/session"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/corners"
	"Unwarp/pkg/editor"
	"Unwarp/pkg/geometry"
)

func (s *sessionService) Apply(ctx context.Context, id string, g sessionApi.Gesture) (sessionApi.StateResponse, error) {
	e, err := s.lookup(id)
	if err != nil {
		return sessionApi.StateResponse{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next, events, err := applyGesture(e.session.State, g)
	if err != nil {
		return sessionApi.StateResponse{}, err
	}
	e.session.State = next

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": id,
		"gesture":    g.Type,
		"events":     len(events),
	}).Debug("Gesture applied")

	state := sessionApi.NewState(e.session, events)
	e.broadcast(state)
	return state, nil
}

// applyGesture maps one pointer gesture onto the corner set. Gestures that
// do not apply in the current state are no-ops, as they would be on screen.
func applyGesture(sess editor.Session, g sessionApi.Gesture) (editor.Session, []corners.Event, error) {
	set := sess.Corners()
	pos := geometry.Pt(g.X, g.Y)

	switch g.Type {
	case sessionApi.GestureClick:
		next, events := set.AddPoint(pos)
		return sess.WithCorners(next), events, nil

	case sessionApi.GestureDragStart:
		var target int
		if g.ID != nil {
			target = *g.ID
		} else {
			target = pickPoint(set, pos)
		}
		return sess.WithCorners(set.BeginDrag(target)), nil, nil

	case sessionApi.GestureDragMove:
		var (
			next   corners.Set
			events []corners.Event
		)
		if g.ID != nil {
			next, events = set.DragPoint(*g.ID, pos)
		} else {
			next, events = set.DragActive(pos)
		}
		return sess.WithCorners(next), events, nil

	case sessionApi.GestureDragEnd:
		return sess.WithCorners(set.EndDrag()), nil, nil

	case sessionApi.GestureReset:
		next, events := sess.Reset()
		return next, events, nil

	case sessionApi.GestureResize:
		size := geometry.Sz(g.Width, g.Height)
		if size.Empty() {
			return sess, nil, sessionApi.ErrInvalidGesture
		}
		return sess.WithCorners(set.Resize(size)), nil, nil

	default:
		return sess, nil, sessionApi.ErrInvalidGesture
	}
}

// pickPoint returns the id of the corner nearest to a display position
// within HitRadius, or -1.
func pickPoint(set corners.Set, pos geometry.Point) int {
	best, bestDist := -1, math.Inf(1)
	for _, p := range set.Points() {
		if d := geometry.Dist(p.Display, pos); d <= sessionApi.HitRadius && d < bestDist {
			best, bestDist = p.ID, d
		}
	}
	return best
}
