package sessionService

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	sessionApi "Unwarp/internal/api/session"
	"Unwarp/internal/entity"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/editor"
	"Unwarp/pkg/geometry"
	jwtPkg "Unwarp/pkg/jwt"
)

func (s *sessionService) Create(ctx context.Context, req sessionApi.CreateSessionRequest) (sessionApi.CreateSessionResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	img, err := s.imageService.GetImage(ctx, req.ImageID)
	if err != nil {
		return sessionApi.CreateSessionResponse{}, err
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return sessionApi.CreateSessionResponse{}, err
	}

	token, _, err := jwtPkg.SignSession(id, s.ttl)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to sign session token")
		return sessionApi.CreateSessionResponse{}, fmt.Errorf("%w: %v", sessionApi.ErrTokenIssue, err)
	}

	// Without a measured display the client works in image pixels.
	display := geometry.Sz(req.DisplayWidth, req.DisplayHeight)
	if display.Empty() {
		display = img.Size()
	}

	now := time.Now()
	es := entity.EditSession{
		ID:        id,
		State:     editor.New().LoadImage(img.ID, img.Size(), display),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[id] = &entry{
		session:     es,
		subscribers: make(map[uint64]chan sessionApi.StateResponse),
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": id,
		"image_id":   img.ID,
	}).Info("Editing session created")

	return sessionApi.CreateSessionResponse{
		SessionID: id,
		Token:     token,
		ExpiresAt: es.ExpiresAt.Unix(),
		State:     sessionApi.NewState(es, nil),
	}, nil
}

// LoadImage points the session at another image. The selection starts over
// and a correction still running for the previous image is discarded when
// it settles.
func (s *sessionService) LoadImage(ctx context.Context, id string, req sessionApi.LoadImageRequest) (sessionApi.StateResponse, error) {
	e, err := s.lookup(id)
	if err != nil {
		return sessionApi.StateResponse{}, err
	}

	img, err := s.imageService.GetImage(ctx, req.ImageID)
	if err != nil {
		return sessionApi.StateResponse{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	display := geometry.Sz(req.DisplayWidth, req.DisplayHeight)
	if display.Empty() {
		display = e.session.State.Corners().DisplaySize()
	}
	if display.Empty() {
		display = img.Size()
	}

	previous := e.session.State.ImageID()
	e.session.State = e.session.State.LoadImage(img.ID, img.Size(), display)
	state := sessionApi.NewState(e.session, nil)
	e.broadcast(state)

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": id,
		"image_id":   img.ID,
		"previous":   previous,
		"processing": e.session.State.Processing(),
	}).Info("Editing session switched image")

	return state, nil
}

func (s *sessionService) Get(ctx context.Context, id string) (sessionApi.StateResponse, error) {
	e, err := s.lookup(id)
	if err != nil {
		return sessionApi.StateResponse{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return sessionApi.NewState(e.session, nil), nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	if !s.remove(id) {
		return sessionApi.ErrSessionNotFound
	}

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": id,
	}).Info("Editing session closed")
	return nil
}
