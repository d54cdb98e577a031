// Package recorder samples poses delivered by a source into motion clips at
// a fixed keyframe interval.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kinemo/motionrec/internal/queue"
	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/motion"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// ToggleInterval is the keyframe interval used by Toggle, in milliseconds.
const ToggleInterval = 500

// TickerFunc returns a tick channel for the given period and a function that
// stops it.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func defaultTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Recorder turns a stream of observed poses into keyframes. Observe may be
// called from any goroutine; a ticker goroutine takes the newest pose once
// per interval.
type Recorder struct {
	mu        sync.Mutex
	buffer    *queue.Queue[core.Pose]
	clip      *motion.Clip
	latest    core.Pose
	hasLatest bool
	start     time.Time
	recording bool
	cancel    context.CancelFunc
	done      chan struct{}

	now       func() time.Time
	newTicker TickerFunc
	logger    *slog.Logger

	keyframes metric.Int64Counter
	observed  metric.Int64Counter
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithTicker replaces the interval ticker.
func WithTicker(f TickerFunc) Option {
	return func(r *Recorder) {
		r.newTicker = f
	}
}

// WithLogger sets the logger for the recorder and the clips it creates.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMeter sets the meter the recorder counters are created on. The global
// meter provider is used otherwise.
func WithMeter(m metric.Meter) Option {
	return func(r *Recorder) {
		r.initMetrics(m)
	}
}

// New creates an idle recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		buffer:    queue.New[core.Pose](),
		now:       time.Now,
		newTicker: defaultTicker,
		logger:    slog.Default(),
	}
	r.initMetrics(otel.Meter("github.com/kinemo/motionrec/internal/recorder"))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) initMetrics(m metric.Meter) {
	var err error
	r.keyframes, err = m.Int64Counter("recorder.keyframes",
		metric.WithDescription("Keyframes appended to recording clips"))
	if err != nil {
		r.logger.Warn("Failed to create keyframe counter", "error", err)
	}
	r.observed, err = m.Int64Counter("recorder.poses.observed",
		metric.WithDescription("Poses delivered by the source"))
	if err != nil {
		r.logger.Warn("Failed to create observed pose counter", "error", err)
	}
}

// Observe is the sampler callback. While recording, the pose is stamped
// with the milliseconds elapsed since recording started and queued for the
// next tick. The start time keeps moving forward until the first keyframe is
// taken, so a clip always begins near time 0.
func (r *Recorder) Observe(p core.Pose) {
	if r.observed != nil {
		r.observed.Add(context.Background(), 1)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		p.Time = 0
		r.latest, r.hasLatest = p, true
		return
	}

	now := r.now()
	if r.clip.KeyframeCount() == 0 {
		r.start = now
	}
	p.Time = float64(now.Sub(r.start)) / float64(time.Millisecond)
	r.buffer.Push(p)
}

// Start begins a new clip with the given keyframe interval in milliseconds.
// The recording runs until Stop is called or ctx is cancelled.
func (r *Recorder) Start(ctx context.Context, intervalMs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}
	if intervalMs <= 0 {
		intervalMs = motion.DefaultInterval
	}

	r.clip = motion.NewClip(intervalMs, motion.WithLogger(r.logger))
	r.buffer.Clear()
	r.hasLatest = false
	r.start = r.now()
	r.recording = true

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	ticks, stop := r.newTicker(time.Duration(intervalMs) * time.Millisecond)
	go r.run(loopCtx, ticks, stop, r.done)

	r.logger.Info("Recording started", "interval", intervalMs)
	return nil
}

func (r *Recorder) run(ctx context.Context, ticks <-chan time.Time, stop func(), done chan struct{}) {
	defer close(done)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			r.tick(ctx)
		}
	}
}

func (r *Recorder) tick(ctx context.Context) {
	latest, dropped, ok := r.buffer.DrainLatest()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	if ok {
		r.latest, r.hasLatest = latest, true
	}
	if !r.hasLatest {
		return
	}

	r.clip.AddKeyframe(r.latest)
	if r.keyframes != nil {
		r.keyframes.Add(ctx, 1)
	}
	if dropped > 0 {
		r.logger.Debug("Poses superseded within interval", "dropped", dropped)
	}
}

// Stop ends the recording and returns the finalized clip. If nothing was
// captured the clip is returned together with motion.ErrEmptyClip.
func (r *Recorder) Stop() (*motion.Clip, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.recording = false
	r.cancel()
	clip, done := r.clip, r.done
	r.mu.Unlock()

	<-done

	if err := clip.Finalize(); err != nil {
		return clip, err
	}
	r.logger.Info("Recording stopped",
		"keyframes", clip.KeyframeCount(),
		"duration", clip.Duration())
	return clip, nil
}

// Toggle starts a recording at ToggleInterval when idle and stops the
// running one otherwise. The clip is only returned when stopping.
func (r *Recorder) Toggle(ctx context.Context) (*motion.Clip, error) {
	if r.Recording() {
		return r.Stop()
	}
	return nil, r.Start(ctx, ToggleInterval)
}

// Snapshot returns a finalized single keyframe clip of the most recent pose.
func (r *Recorder) Snapshot() (*motion.Clip, error) {
	r.mu.Lock()
	p, ok := r.latest, r.hasLatest
	if r.recording {
		// the newest queued pose has not been taken by a tick yet
		if queued, found := r.buffer.Latest(); found {
			p, ok = queued, true
		}
	}
	r.mu.Unlock()

	if !ok {
		return nil, ErrNoPose
	}

	p.Time = 0
	clip := motion.NewClip(motion.DefaultInterval, motion.WithLogger(r.logger))
	clip.AddKeyframe(p)
	if err := clip.Finalize(); err != nil {
		return nil, err
	}
	return clip, nil
}

// Recording reports whether a recording is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// StartedAt returns when the current or last recording started.
func (r *Recorder) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start
}

// KeyframeCount returns the number of keyframes in the running clip.
func (r *Recorder) KeyframeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip == nil {
		return 0
	}
	return r.clip.KeyframeCount()
}
