package sessionService

import (
	"errors"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	imageApi "Unwarp/internal/api/image"
	sessionApi "Unwarp/internal/api/session"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/editor"
	"Unwarp/pkg/geometry"
)

// Process runs a correction for the session's current selection. Only one
// runs per session at a time. If the selection is reset or the image changes
// while it runs, its outcome is discarded and the returned state shows the
// newer selection.
func (s *sessionService) Process(ctx context.Context, id string) (sessionApi.StateResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	e, err := s.lookup(id)
	if err != nil {
		return sessionApi.StateResponse{}, err
	}

	e.mu.Lock()
	next, req, err := e.session.State.BeginProcessing()
	if err != nil {
		e.mu.Unlock()
		return sessionApi.StateResponse{}, translateEditorError(err)
	}
	e.session.State = next
	e.broadcast(sessionApi.NewState(e.session, nil))
	e.mu.Unlock()

	start := time.Now()
	res, procErr := s.imageService.Process(ctx, imageApi.ProcessRequest{
		ImageID: req.ImageID,
		CornerPoints: lo.Map(req.Corners[:], func(p geometry.Point, _ int) imageApi.CornerPoint {
			return imageApi.CornerPoint{X: p.X, Y: p.Y}
		}),
	})
	elapsed := time.Since(start)

	e.mu.Lock()
	var applied bool
	if procErr != nil {
		e.session.State, applied = e.session.State.Fail(req.Ticket, procErr)
	} else {
		e.session.State, applied = e.session.State.Complete(req.Ticket, editor.Result{
			ProcessedImageRef: res.ProcessedImageURL,
			Elapsed:           elapsed,
		})
	}
	state := sessionApi.NewState(e.session, nil)
	e.broadcast(state)
	e.mu.Unlock()

	fields := logrus.Fields{
		"request_id": requestID,
		"session_id": id,
		"seq":        req.Ticket.Seq,
		"elapsed":    elapsed.String(),
	}
	if !applied {
		s.log.WithFields(fields).Info("Discarding correction result for a superseded selection")
		return state, nil
	}
	if procErr != nil {
		fields["error"] = procErr.Error()
		s.log.WithFields(fields).Warn("Session correction failed")
		return state, procErr
	}

	s.log.WithFields(fields).Info("Session correction finished")
	return state, nil
}

func translateEditorError(err error) error {
	switch {
	case errors.Is(err, editor.ErrNoImage):
		return sessionApi.ErrNoImage
	case errors.Is(err, editor.ErrIncompleteSelection):
		return sessionApi.ErrIncompleteSelection
	case errors.Is(err, editor.ErrRequestInFlight):
		return sessionApi.ErrRequestInFlight
	default:
		return err
	}
}
