package entity

import (
	"time"

	"Unwarp/pkg/editor"
)

// EditSession is one client's corner-editing session on an uploaded image.
type EditSession struct {
	ID        string
	State     editor.Session
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s EditSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
