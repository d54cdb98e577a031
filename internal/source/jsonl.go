package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kinemo/motionrec/pkg/core"
)

const maxLineSize = 1 << 20

// JSONLines reads one SampleFrame per line.
type JSONLines struct {
	r        io.Reader
	realtime bool
	logger   *slog.Logger
}

// NewJSONLines creates a line-delimited JSON source. With realtime set,
// delivery is paced by the gaps between frame timestamps.
func NewJSONLines(r io.Reader, realtime bool, logger *slog.Logger) *JSONLines {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONLines{r: r, realtime: realtime, logger: logger}
}

// Run delivers every frame in the input. Lines that fail to parse are
// logged and skipped. It returns nil at end of input.
func (s *JSONLines) Run(ctx context.Context, deliver func(core.Pose)) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		line     int
		skipped  int
		prevTime float64
		havePrev bool
	)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}

		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		pose, err := ParseFrame(data)
		if err != nil {
			skipped++
			s.logger.Warn("Skipping unreadable frame", "line", line, "error", err)
			continue
		}

		if s.realtime && havePrev {
			if gap := pose.Time - prevTime; gap > 0 {
				if err := sleep(ctx, time.Duration(gap*float64(time.Millisecond))); err != nil {
					return err
				}
			}
		}
		prevTime, havePrev = pose.Time, true

		deliver(pose)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read frames: %w", err)
	}

	if skipped > 0 {
		s.logger.Info("Finished reading frames", "lines", line, "skipped", skipped)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
