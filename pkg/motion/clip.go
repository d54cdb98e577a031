// Package motion holds the in-memory motion clip: an ordered run of raw
// keyframes that becomes an annotated, exportable clip once finalized.
//
// A Clip is not safe for concurrent use. Callers that record on one goroutine
// and finalize on another must serialize access themselves.
package motion

import (
	"errors"
	"log/slog"

	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/kinematics"
)

// DefaultInterval is the nominal keyframe spacing in milliseconds.
const DefaultInterval = 200

// Clip is a sequence of keyframes with a nominal sampling interval.
type Clip struct {
	interval  int
	keyframes []core.Pose
	duration  float64
	finalized bool
	logger    *slog.Logger
}

// Option configures a Clip.
type Option func(*Clip)

// WithLogger sets the logger used to report frames the solver could only
// partially annotate.
func WithLogger(l *slog.Logger) Option {
	return func(c *Clip) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClip returns an empty clip. intervalMs is the intended spacing between
// keyframes, not a guarantee.
func NewClip(intervalMs int, opts ...Option) *Clip {
	c := &Clip{
		interval: intervalMs,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore builds a finalized clip from keyframes that already carry their
// orientation data, such as a decoded interchange document. The poses are
// copied and the solver is not run.
func Restore(intervalMs int, durationSeconds float64, keyframes []core.Pose, opts ...Option) *Clip {
	c := NewClip(intervalMs, opts...)
	c.keyframes = make([]core.Pose, 0, len(keyframes))
	for _, p := range keyframes {
		c.AddKeyframe(p)
	}
	c.duration = durationSeconds
	c.finalized = true
	return c
}

// AddKeyframe appends a copy of p. Adding to a finalized clip clears the
// finalized state; Finalize has to run again before export.
func (c *Clip) AddKeyframe(p core.Pose) {
	c.keyframes = append(c.keyframes, p.Clone())
	c.finalized = false
}

// Finalize derives orientation angles for every keyframe and sets the
// duration to the last keyframe's time in seconds. Running it again on the
// same positions produces the same result.
//
// Keyframes where some joints hit degenerate geometry are kept; those joints
// get zero angles and zero confidence and the frame is logged.
func (c *Clip) Finalize() error {
	if len(c.keyframes) == 0 {
		return ErrEmptyClip
	}

	for i := range c.keyframes {
		solved, err := kinematics.Solve(c.keyframes[i])
		if err != nil {
			var solveErr *kinematics.SolveError
			if !errors.As(err, &solveErr) {
				return err
			}
			c.logger.Warn("Degenerate joints in keyframe",
				"frame", i,
				"time", c.keyframes[i].Time,
				"joints", jointNames(solveErr.Joints),
				"error", solveErr.Err)
		}
		c.keyframes[i] = solved
	}

	c.duration = c.keyframes[len(c.keyframes)-1].Time / 1000
	c.finalized = true
	return nil
}

// Keyframes returns a copy of the keyframe sequence in playback order.
func (c *Clip) Keyframes() []core.Pose {
	out := make([]core.Pose, len(c.keyframes))
	copy(out, c.keyframes)
	return out
}

// Keyframe returns the i-th keyframe.
func (c *Clip) Keyframe(i int) (core.Pose, bool) {
	if i < 0 || i >= len(c.keyframes) {
		return core.Pose{}, false
	}
	return c.keyframes[i], true
}

// KeyframeCount is always equal to len(Keyframes()).
func (c *Clip) KeyframeCount() int {
	return len(c.keyframes)
}

// Interval returns the nominal keyframe spacing in milliseconds.
func (c *Clip) Interval() int {
	return c.interval
}

// Duration returns the clip length in seconds. It is zero until the clip is
// finalized.
func (c *Clip) Duration() float64 {
	if !c.finalized {
		return 0
	}
	return c.duration
}

// Finalized reports whether orientation data and duration are valid.
func (c *Clip) Finalized() bool {
	return c.finalized
}

func jointNames(joints []core.JointKind) []string {
	names := make([]string, len(joints))
	for i, k := range joints {
		names[i] = k.String()
	}
	return names
}
