// Package worker moves finished clips to their destinations: the storage
// backend, the telemetry publisher and XML files on disk.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kinemo/motionrec/internal/source"
	"github.com/kinemo/motionrec/internal/storage"
	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/interchange"
	"github.com/kinemo/motionrec/pkg/motion"
)

// ErrNoFrames is returned for an input file without a single readable frame.
var ErrNoFrames = errors.New("no frames in input")

// Publisher receives the solved angles of committed clips.
type Publisher interface {
	Publish(ctx context.Context, meta storage.RecordingMeta, clip *motion.Clip) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend   storage.Backend
	Publisher Publisher // optional
	Logger    *slog.Logger
}

// Manager commits and converts clips.
type Manager struct {
	deps Dependencies
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{deps: deps}
}

// Commit finalizes clip if needed, stores it and publishes its angles. A
// publish failure is logged; the clip is already stored at that point.
func (m *Manager) Commit(ctx context.Context, meta storage.RecordingMeta, clip *motion.Clip) (string, error) {
	if m.deps.Backend == nil {
		return "", errors.New("no storage backend")
	}
	if !clip.Finalized() {
		if err := clip.Finalize(); err != nil {
			return "", err
		}
	}

	meta.IntervalMs = clip.Interval()
	meta.DurationSeconds = clip.Duration()
	meta.Keyframes = clip.KeyframeCount()

	id, err := m.deps.Backend.SaveClip(ctx, meta, clip)
	if err != nil {
		return "", fmt.Errorf("failed to save clip %q: %w", meta.Name, err)
	}
	meta.ID = id

	if m.deps.Publisher != nil {
		if err := m.deps.Publisher.Publish(ctx, meta, clip); err != nil {
			m.deps.Logger.Warn("Failed to publish joint angles", "id", id, "error", err)
		}
	}

	m.deps.Logger.Info("Clip committed", "id", id, "name", meta.Name, "keyframes", meta.Keyframes)
	return id, nil
}

// ConvertAll builds a clip from every raw frame file in inputs, one
// goroutine per file, and writes it as XML next to the input. The output
// paths are returned in input order; a failed input leaves its slot empty
// and its error is joined into the result.
func (m *Manager) ConvertAll(ctx context.Context, inputs []string, intervalMs int) ([]string, error) {
	outputs := make([]string, len(inputs))
	errCh := make(chan error, len(inputs))
	var wg sync.WaitGroup

	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()

			out, err := m.convert(ctx, input, intervalMs)
			if err != nil {
				m.deps.Logger.Error("Failed to convert frames", "input", input, "error", err)
				errCh <- fmt.Errorf("%s: %w", input, err)
				return
			}
			outputs[i] = out
			m.deps.Logger.Info("Converted frames", "input", input, "output", out, "progress", fmt.Sprintf("%d/%d", i+1, len(inputs)))
		}(i, input)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return outputs, errors.Join(errs...)
}

func (m *Manager) convert(ctx context.Context, input string, intervalMs int) (string, error) {
	f, err := os.Open(input)
	if err != nil {
		return "", err
	}
	defer f.Close()

	clip := motion.NewClip(intervalMs, motion.WithLogger(m.deps.Logger))
	var (
		start    float64
		hasStart bool
	)
	src := source.NewJSONLines(f, false, m.deps.Logger.With("input", input))
	err = src.Run(ctx, func(p core.Pose) {
		if !hasStart {
			start, hasStart = p.Time, true
		}
		p.Time -= start
		clip.AddKeyframe(p)
	})
	if err != nil {
		return "", err
	}
	if clip.KeyframeCount() == 0 {
		return "", ErrNoFrames
	}
	if err := clip.Finalize(); err != nil {
		return "", err
	}

	out := OutputPath(input)
	if err := interchange.WriteFile(out, clip); err != nil {
		return "", err
	}
	return out, nil
}

// OutputPath returns the XML path written for a raw frame file: the input
// with its extension replaced by ".xml".
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".xml"
}
