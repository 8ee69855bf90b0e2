package editor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Unwarp/pkg/corners"
	"Unwarp/pkg/geometry"
)

func ready(t *testing.T) Session {
	t.Helper()
	s := New().LoadImage("img-1", geometry.Sz(800, 600), geometry.Sz(400, 300))
	set := s.Corners()
	for _, p := range []geometry.Point{{X: 25, Y: 40}, {X: 175, Y: 30}, {X: 190, Y: 140}, {X: 15, Y: 150}} {
		set, _ = set.AddPoint(p)
	}
	require.True(t, set.Ready())
	return s.WithCorners(set)
}

func TestBeginProcessing_NoImage(t *testing.T) {
	_, _, err := New().BeginProcessing()
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestBeginProcessing_Incomplete(t *testing.T) {
	s := New().LoadImage("img-1", geometry.Sz(800, 600), geometry.Sz(400, 300))
	_, _, err := s.BeginProcessing()
	assert.ErrorIs(t, err, ErrIncompleteSelection)
	assert.ErrorIs(t, err, corners.ErrIncompleteSelection)
}

func TestBeginProcessing_SingleInFlight(t *testing.T) {
	s, req, err := ready(t).BeginProcessing()
	require.NoError(t, err)
	assert.True(t, s.Processing())
	assert.Equal(t, "img-1", req.ImageID)
	assert.Equal(t, geometry.Pt(50, 80), req.Corners[0])

	_, _, err = s.BeginProcessing()
	assert.ErrorIs(t, err, ErrRequestInFlight)

	s, applied := s.Complete(req.Ticket, Result{ProcessedImageRef: "out.png", Elapsed: time.Second})
	assert.True(t, applied)
	assert.False(t, s.Processing())
	r, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, "out.png", r.ProcessedImageRef)

	_, _, err = s.BeginProcessing()
	assert.NoError(t, err)
}

func TestComplete_DiscardedAfterReset(t *testing.T) {
	s, req, err := ready(t).BeginProcessing()
	require.NoError(t, err)

	s, events := s.Reset()
	assert.Len(t, events, 1)

	s, applied := s.Complete(req.Ticket, Result{ProcessedImageRef: "stale.png"})
	assert.False(t, applied)
	assert.False(t, s.Processing())
	_, ok := s.Result()
	assert.False(t, ok)
}

func TestComplete_DiscardedAfterNewImage(t *testing.T) {
	s, req, err := ready(t).BeginProcessing()
	require.NoError(t, err)

	s = s.LoadImage("img-2", geometry.Sz(100, 100), geometry.Sz(100, 100))
	s, applied := s.Complete(req.Ticket, Result{ProcessedImageRef: "stale.png"})
	assert.False(t, applied)
	assert.Equal(t, "img-2", s.ImageID())
	_, ok := s.Result()
	assert.False(t, ok)
}

func TestFail(t *testing.T) {
	s, req, err := ready(t).BeginProcessing()
	require.NoError(t, err)

	boom := errors.New("boom")
	s, applied := s.Fail(req.Ticket, boom)
	assert.True(t, applied)
	assert.False(t, s.Processing())
	assert.ErrorIs(t, s.LastError(), boom)
}

func TestLoadImage_ClearsResult(t *testing.T) {
	s, req, err := ready(t).BeginProcessing()
	require.NoError(t, err)
	s, _ = s.Complete(req.Ticket, Result{ProcessedImageRef: "out.png"})

	gen := s.Generation()
	s = s.LoadImage("img-1", geometry.Sz(800, 600), geometry.Sz(400, 300))
	assert.Greater(t, s.Generation(), gen)
	assert.Equal(t, 0, s.Corners().Count())
	_, ok := s.Result()
	assert.False(t, ok)
}
