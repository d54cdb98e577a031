package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kinemo/motionrec/internal/config"
	"github.com/kinemo/motionrec/internal/recorder"
	"github.com/kinemo/motionrec/internal/session"
	"github.com/kinemo/motionrec/internal/source"
	"github.com/kinemo/motionrec/internal/storage"
	"github.com/kinemo/motionrec/internal/worker"
	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/interchange"
	"github.com/kinemo/motionrec/pkg/motion"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const progressInterval = 5 * time.Second

var recordCmd = command{
	usage: "record [flags]",
	short: "Record poses from the configured source into a clip and store it",
	flags: func(fs *pflag.FlagSet) {
		fs.Int("interval", motion.DefaultInterval, "keyframe interval in milliseconds")
		fs.String("name", "motion", "recording name")
		fs.String("subject", "", "name of the person being recorded")
		fs.String("source", "jsonl", "pose source: jsonl or websocket")
		fs.String("url", "ws://localhost:8765/skeleton", "tracker bridge url for the websocket source")
		fs.String("input", "", "frame file for the jsonl source, - for stdin")
		fs.Bool("realtime", false, "pace jsonl frames by their timestamps")
		fs.String("storage", "file", "storage backend: file, sqlite or postgres")
		fs.String("out", "./recordings", "output directory for the file backend")
	},
	run: runRecord,
}

func runRecord(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	recCfg := config.GetRecordingConfig()
	srcCfg := config.GetSourceConfig()
	subject, _ := fs.GetString("subject")

	if srcCfg.Type == "jsonl" && !srcCfg.Realtime {
		a.logger.Warn("Frames are delivered without pacing; most will be superseded within one interval. Use --realtime or the solve command")
	}

	src, closeSrc, err := source.Open(srcCfg, a.logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	w, release, err := a.newWorker(ctx)
	if err != nil {
		return err
	}
	defer release()

	rec := recorder.New(
		recorder.WithLogger(a.logger),
		recorder.WithMeter(a.otel.Meter("github.com/kinemo/motionrec/internal/recorder")),
	)
	sess := session.New(recCfg.Name, subject, time.Now())
	a.session.Set(sess)
	defer a.session.Clear()

	if err := rec.Start(ctx, recCfg.Interval); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	sourceDone := make(chan struct{})
	g.Go(func() error {
		defer close(sourceDone)
		return src.Run(gctx, rec.Observe)
	})
	g.Go(func() error {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-sourceDone:
				return nil
			case <-ticker.C:
				a.logger.Info("Recording", "keyframes", rec.KeyframeCount())
			}
		}
	})
	srcErr := g.Wait()
	if errors.Is(srcErr, context.Canceled) {
		srcErr = nil
	}
	if srcErr != nil {
		a.logger.Error("Pose source failed, keeping what was recorded", "error", srcErr)
	}

	clip, err := rec.Stop()
	if err != nil {
		return errors.Join(err, srcErr)
	}

	meta := storage.RecordingMeta{
		Name:      sess.Name,
		Session:   sess.ID,
		Subject:   sess.Subject,
		StartedAt: sess.StartedAt,
	}
	// the signal that ended the recording must not abort the save
	id, err := w.Commit(context.WithoutCancel(ctx), meta, clip)
	if err != nil {
		return errors.Join(err, srcErr)
	}

	fmt.Fprintf(a.stdout, "saved %s: %d keyframes, %ss\n", id, clip.KeyframeCount(), formatSeconds(clip.Duration()))
	return srcErr
}

var solveCmd = command{
	usage: "solve [flags] <frames.jsonl>...",
	short: "Convert raw frame files into XML clips next to each input",
	flags: func(fs *pflag.FlagSet) {
		fs.Int("interval", motion.DefaultInterval, "nominal keyframe interval in milliseconds")
	},
	run: func(ctx context.Context, a *app, fs *pflag.FlagSet) error {
		if fs.NArg() == 0 {
			return errors.New("no input files")
		}
		w := worker.NewManager(worker.Dependencies{Logger: a.logger})
		outputs, err := w.ConvertAll(ctx, fs.Args(), config.GetRecordingConfig().Interval)
		for _, out := range outputs {
			if out != "" {
				fmt.Fprintln(a.stdout, out)
			}
		}
		return err
	},
}

var inspectCmd = command{
	usage: "inspect <clip.xml>",
	short: "Print the timing and per-joint angle ranges of a clip",
	run: func(ctx context.Context, a *app, fs *pflag.FlagSet) error {
		if fs.NArg() != 1 {
			return errors.New("expected exactly one clip file")
		}
		clip, err := interchange.ReadFile(fs.Arg(0), interchange.WithLogger(a.logger))
		if err != nil {
			return err
		}

		fmt.Fprintf(a.stdout, "file:      %s\n", fs.Arg(0))
		fmt.Fprintf(a.stdout, "interval:  %d ms\n", clip.Interval())
		fmt.Fprintf(a.stdout, "duration:  %s s\n", formatSeconds(clip.Duration()))
		fmt.Fprintf(a.stdout, "keyframes: %d\n\n", clip.KeyframeCount())

		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOINT\tROLL\tPITCH\tYAW")
		for _, r := range summarize(clip) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Roll, r.Pitch, r.Yaw)
		}
		return tw.Flush()
	},
}

var importCmd = command{
	usage: "import [flags] <clip.xml>",
	short: "Store an XML clip in the configured backend",
	flags: func(fs *pflag.FlagSet) {
		fs.String("as", "", "recording name (default: file name)")
		fs.String("subject", "", "name of the person recorded")
		fs.String("storage", "file", "storage backend: file, sqlite or postgres")
		fs.String("out", "./recordings", "output directory for the file backend")
	},
	run: func(ctx context.Context, a *app, fs *pflag.FlagSet) error {
		if fs.NArg() != 1 {
			return errors.New("expected exactly one clip file")
		}
		path := fs.Arg(0)
		clip, err := interchange.ReadFile(path, interchange.WithLogger(a.logger))
		if err != nil {
			return err
		}

		name, _ := fs.GetString("as")
		if name == "" {
			name = clipName(path)
		}
		subject, _ := fs.GetString("subject")

		w, release, err := a.newWorker(ctx)
		if err != nil {
			return err
		}
		defer release()

		id, err := w.Commit(ctx, storage.RecordingMeta{Name: name, Subject: subject, StartedAt: time.Now()}, clip)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, id)
		return nil
	},
}

var exportCmd = command{
	usage: "export [flags] <id> <out.xml>",
	short: "Write a stored clip as XML (gzip when the name ends in .gz)",
	flags: func(fs *pflag.FlagSet) {
		fs.String("storage", "file", "storage backend: file, sqlite or postgres")
		fs.String("out", "./recordings", "output directory for the file backend")
	},
	run: func(ctx context.Context, a *app, fs *pflag.FlagSet) error {
		if fs.NArg() != 2 {
			return errors.New("expected a recording id and an output file")
		}
		backend, err := a.openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		clip, err := backend.LoadClip(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		if err := interchange.WriteFile(fs.Arg(1), clip); err != nil {
			return err
		}
		a.logger.Info("Clip exported", "id", fs.Arg(0), "path", fs.Arg(1))
		fmt.Fprintln(a.stdout, fs.Arg(1))
		return nil
	},
}

var listCmd = command{
	usage: "list [flags]",
	short: "List stored recordings",
	flags: func(fs *pflag.FlagSet) {
		fs.String("storage", "file", "storage backend: file, sqlite or postgres")
		fs.String("out", "./recordings", "output directory for the file backend")
	},
	run: func(ctx context.Context, a *app, fs *pflag.FlagSet) error {
		backend, err := a.openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		metas, err := backend.ListClips(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSUBJECT\tSTARTED\tKEYFRAMES\tDURATION")
		for _, m := range metas {
			started := "-"
			if !m.StartedAt.IsZero() {
				started = humanize.Time(m.StartedAt)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%ss\n",
				m.ID, m.Name, m.Subject, started, m.Keyframes, formatSeconds(m.DurationSeconds))
		}
		return tw.Flush()
	},
}

type jointRange struct {
	Name             string
	Roll, Pitch, Yaw string
}

// summarize returns the min..max of each angle over the confident samples
// of every joint, plus the pelvis body angles.
func summarize(clip *motion.Clip) []jointRange {
	type span struct{ lo, hi float64 }
	newSpan := func() span { return span{math.Inf(1), math.Inf(-1)} }
	add := func(s *span, v float64) {
		s.lo = math.Min(s.lo, v)
		s.hi = math.Max(s.hi, v)
	}
	format := func(s span) string {
		if math.IsInf(s.lo, 1) {
			return "-"
		}
		if s.lo == s.hi {
			return formatAngle(s.lo)
		}
		return formatAngle(s.lo) + ".." + formatAngle(s.hi)
	}

	frames := clip.Keyframes()
	var out []jointRange
	for _, k := range core.AllJoints() {
		if k == core.Pelvis {
			continue
		}
		roll, pitch, yaw := newSpan(), newSpan(), newSpan()
		for _, f := range frames {
			s := f.Joint(k)
			if s.Confidence == 0 {
				continue
			}
			add(&roll, s.Orientation.Roll)
			add(&pitch, s.Orientation.Pitch)
			add(&yaw, s.Orientation.Yaw)
		}
		out = append(out, jointRange{Name: k.String(), Roll: format(roll), Pitch: format(pitch), Yaw: format(yaw)})
	}

	pitch, yaw := newSpan(), newSpan()
	for _, f := range frames {
		add(&pitch, f.PelvisPitch)
		add(&yaw, f.PelvisYaw)
	}
	out = append(out, jointRange{Name: core.Pelvis.String(), Roll: "-", Pitch: format(pitch), Yaw: format(yaw)})
	return out
}

func formatAngle(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// clipName derives a recording name from a file path.
func clipName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base))
}
