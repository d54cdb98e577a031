package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kinemo/motionrec/pkg/motion"
)

// ErrNotFound is returned when a recording id does not exist.
var ErrNotFound = errors.New("recording not found")

// RecordingMeta describes a stored clip.
type RecordingMeta struct {
	ID              string
	Name            string
	Session         uuid.UUID
	Subject         string
	StartedAt       time.Time
	IntervalMs      int
	DurationSeconds float64
	Keyframes       int
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveClip stores a finalized clip and returns its id.
	SaveClip(ctx context.Context, meta RecordingMeta, clip *motion.Clip) (string, error)
	// LoadClip returns the finalized clip stored under id.
	LoadClip(ctx context.Context, id string) (*motion.Clip, error)
	// ListClips returns every stored recording, oldest first.
	ListClips(ctx context.Context) ([]RecordingMeta, error)
}
