// Package filestorage stores each clip as an interchange XML document in an
// output directory.
package filestorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kinemo/motionrec/internal/config"
	"github.com/kinemo/motionrec/internal/storage"
	"github.com/kinemo/motionrec/pkg/interchange"
	"github.com/kinemo/motionrec/pkg/motion"
)

const timestampLayout = "20060102_150405"

// Backend writes <name>_<yyyymmdd_hhmmss>.xml files, gzipped when
// compression is enabled. The file name is the recording id. The recording
// name, subject and session live in a <id>.json sidecar, since the XML
// document has no place for them.
type Backend struct {
	cfg    config.FileConfig
	logger *slog.Logger
	now    func() time.Time
}

// New creates a file backend.
func New(cfg config.FileConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger, now: time.Now}
}

// Init ensures the output directory exists.
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

// SaveClip writes clip and returns the file name.
func (b *Backend) SaveClip(ctx context.Context, meta storage.RecordingMeta, clip *motion.Clip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	started := meta.StartedAt
	if started.IsZero() {
		started = b.now()
	}

	ext := ".xml"
	if b.cfg.Compress {
		ext = ".xml.gz"
	}
	base := fmt.Sprintf("%s_%s", sanitize(meta.Name), started.UTC().Format(timestampLayout))

	name := base + ext
	for i := 2; b.exists(name); i++ {
		name = fmt.Sprintf("%s-%d%s", base, i, ext)
	}

	path := filepath.Join(b.cfg.OutputDir, name)
	if err := interchange.WriteFile(path, clip); err != nil {
		return "", err
	}
	if err := b.writeSidecar(name, meta); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	b.logger.Info("Clip written", "path", path, "keyframes", clip.KeyframeCount())
	return name, nil
}

// LoadClip reads the file with the given id.
func (b *Backend) LoadClip(ctx context.Context, id string) (*motion.Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" || filepath.Base(id) != id || !isClipFile(id) {
		return nil, fmt.Errorf("%w: %q", storage.ErrNotFound, id)
	}

	clip, err := interchange.ReadFile(filepath.Join(b.cfg.OutputDir, id), interchange.WithLogger(b.logger))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", storage.ErrNotFound, id)
	}
	return clip, err
}

// ListClips decodes every clip file in the output directory. Files that fail
// to decode are logged and skipped.
func (b *Backend) ListClips(ctx context.Context) ([]storage.RecordingMeta, error) {
	entries, err := os.ReadDir(b.cfg.OutputDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var metas []storage.RecordingMeta
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isClipFile(e.Name()) {
			continue
		}

		clip, err := interchange.ReadFile(filepath.Join(b.cfg.OutputDir, e.Name()), interchange.WithLogger(b.logger))
		if err != nil {
			b.logger.Warn("Skipping unreadable clip", "file", e.Name(), "error", err)
			continue
		}

		name, started := parseFileName(e.Name())
		meta := storage.RecordingMeta{
			ID:              e.Name(),
			Name:            name,
			StartedAt:       started,
			IntervalMs:      clip.Interval(),
			DurationSeconds: clip.Duration(),
			Keyframes:       clip.KeyframeCount(),
		}
		b.readSidecar(&meta)
		metas = append(metas, meta)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		if !metas[i].StartedAt.Equal(metas[j].StartedAt) {
			return metas[i].StartedAt.Before(metas[j].StartedAt)
		}
		return metas[i].ID < metas[j].ID
	})
	return metas, nil
}

type sidecar struct {
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
	Session string `json:"session,omitempty"`
}

func sidecarPath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

func (b *Backend) writeSidecar(id string, meta storage.RecordingMeta) error {
	sc := sidecar{Name: meta.Name, Subject: meta.Subject}
	if meta.Session != uuid.Nil {
		sc.Session = meta.Session.String()
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(sidecarPath(b.cfg.OutputDir, id), data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// readSidecar fills the fields kept outside the clip. Clips copied in
// without a sidecar keep the values parsed from the file name.
func (b *Backend) readSidecar(meta *storage.RecordingMeta) {
	data, err := os.ReadFile(sidecarPath(b.cfg.OutputDir, meta.ID))
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	var sc sidecar
	if err == nil {
		err = json.Unmarshal(data, &sc)
	}
	if err != nil {
		b.logger.Warn("Ignoring unreadable clip metadata", "id", meta.ID, "error", err)
		return
	}

	if sc.Name != "" {
		meta.Name = sc.Name
	}
	meta.Subject = sc.Subject
	if sc.Session != "" {
		if id, err := uuid.Parse(sc.Session); err == nil {
			meta.Session = id
		}
	}
}

func (b *Backend) exists(name string) bool {
	_, err := os.Stat(filepath.Join(b.cfg.OutputDir, name))
	return err == nil
}

func isClipFile(name string) bool {
	return strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".xml.gz")
}

func sanitize(name string) string {
	if name == "" {
		return "motion"
	}
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")
	return r.Replace(name)
}

// parseFileName splits "<name>_<yyyymmdd>_<hhmmss>[-n].xml[.gz]". Names that
// do not follow the pattern are returned whole with a zero time.
func parseFileName(file string) (string, time.Time) {
	stem := strings.TrimSuffix(strings.TrimSuffix(file, ".gz"), ".xml")
	if i := strings.LastIndex(stem, "-"); i > 0 && i > len(stem)-len(timestampLayout)-1 {
		stem = stem[:i]
	}

	if len(stem) <= len(timestampLayout)+1 {
		return stem, time.Time{}
	}
	cut := len(stem) - len(timestampLayout)
	started, err := time.Parse(timestampLayout, stem[cut:])
	if err != nil || stem[cut-1] != '_' {
		return stem, time.Time{}
	}
	return stem[:cut-1], started
}
