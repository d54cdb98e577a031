// Package gormstore implements storage.Backend on top of GORM. The same code
// serves SQLite and Postgres; only the connection differs.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/kinemo/motionrec/internal/database"
	"github.com/kinemo/motionrec/internal/model"
	"github.com/kinemo/motionrec/internal/storage"
	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/motion"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// keyframes per INSERT statement; each carries JointCount joint rows
const batchSize = 100

// Dependencies holds the external dependencies for the GORM backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	// OnClose releases the connection. Optional.
	OnClose func() error
}

// Backend stores clips as recordings, keyframes and joint states.
type Backend struct {
	db      *gorm.DB
	logger  *slog.Logger
	onClose func() error
}

// New creates a GORM backend.
func New(deps Dependencies) *Backend {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{db: deps.DB, logger: logger, onClose: deps.OnClose}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil {
		return errors.New("gormstore: no database")
	}
	return database.Migrate(b.db)
}

// Close runs OnClose when set.
func (b *Backend) Close() error {
	if b.onClose != nil {
		return b.onClose()
	}
	return nil
}

// SaveClip stores the clip in one transaction and returns the recording
// primary key.
func (b *Backend) SaveClip(ctx context.Context, meta storage.RecordingMeta, clip *motion.Clip) (string, error) {
	if !clip.Finalized() {
		return "", motion.ErrNotFinalized
	}

	metadata, err := json.Marshal(map[string]any{
		"joints":      core.JointCount,
		"solverUnits": "degrees",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	rec := model.Recording{
		Name:            meta.Name,
		Subject:         meta.Subject,
		StartedAt:       meta.StartedAt,
		IntervalMs:      clip.Interval(),
		DurationSeconds: clip.Duration(),
		Keyframes:       clip.KeyframeCount(),
		Metadata:        datatypes.JSON(metadata),
	}
	if meta.Session != uuid.Nil {
		rec.Session = meta.Session.String()
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Frames").Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to insert recording: %w", err)
		}

		frames := toKeyframes(rec.ID, clip.Keyframes())
		if len(frames) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&frames, batchSize).Error; err != nil {
			return fmt.Errorf("failed to insert keyframes: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	id := strconv.FormatUint(uint64(rec.ID), 10)
	b.logger.Info("Recording saved", "id", id, "name", rec.Name, "keyframes", rec.Keyframes)
	return id, nil
}

// LoadClip rebuilds the clip stored under id.
func (b *Backend) LoadClip(ctx context.Context, id string) (*motion.Clip, error) {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", storage.ErrNotFound, id)
	}

	var rec model.Recording
	err = b.db.WithContext(ctx).
		Preload("Frames", func(db *gorm.DB) *gorm.DB {
			return db.Order("frame_index ASC")
		}).
		Preload("Frames.Joints", func(db *gorm.DB) *gorm.DB {
			return db.Order("joint ASC")
		}).
		First(&rec, pk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recording %s: %w", id, err)
	}

	poses := make([]core.Pose, 0, len(rec.Frames))
	for _, kf := range rec.Frames {
		poses = append(poses, toPose(kf, b.logger))
	}
	return motion.Restore(rec.IntervalMs, rec.DurationSeconds, poses, motion.WithLogger(b.logger)), nil
}

// ListClips returns all recordings ordered by start time.
func (b *Backend) ListClips(ctx context.Context) ([]storage.RecordingMeta, error) {
	var recs []model.Recording
	if err := b.db.WithContext(ctx).Order("started_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	metas := make([]storage.RecordingMeta, 0, len(recs))
	for _, rec := range recs {
		session, _ := uuid.Parse(rec.Session)
		metas = append(metas, storage.RecordingMeta{
			ID:              strconv.FormatUint(uint64(rec.ID), 10),
			Name:            rec.Name,
			Session:         session,
			Subject:         rec.Subject,
			StartedAt:       rec.StartedAt,
			IntervalMs:      rec.IntervalMs,
			DurationSeconds: rec.DurationSeconds,
			Keyframes:       rec.Keyframes,
		})
	}
	return metas, nil
}

func toKeyframes(recordingID uint, poses []core.Pose) []model.Keyframe {
	frames := make([]model.Keyframe, 0, len(poses))
	for i, p := range poses {
		kf := model.Keyframe{
			RecordingID: recordingID,
			Index:       i,
			TimeMs:      p.Time,
			PelvisPitch: p.PelvisPitch,
			PelvisYaw:   p.PelvisYaw,
			Joints:      make([]model.JointState, 0, core.JointCount),
		}
		for _, k := range core.AllJoints() {
			s := p.Joint(k)
			kf.Joints = append(kf.Joints, model.JointState{
				Joint:      uint8(k),
				Name:       k.String(),
				Position:   model.PointFromVec(s.Position),
				Roll:       s.Orientation.Roll,
				Pitch:      s.Orientation.Pitch,
				Yaw:        s.Orientation.Yaw,
				Confidence: s.Confidence,
			})
		}
		frames = append(frames, kf)
	}
	return frames
}

func toPose(kf model.Keyframe, logger *slog.Logger) core.Pose {
	p := core.Pose{
		Time:        kf.TimeMs,
		PelvisPitch: kf.PelvisPitch,
		PelvisYaw:   kf.PelvisYaw,
	}
	for _, js := range kf.Joints {
		k := core.JointKind(js.Joint)
		if !k.Valid() {
			logger.Debug("Unknown joint in stored keyframe", "keyframe", kf.ID, "joint", js.Joint)
			continue
		}
		p.SetJoint(k, core.JointSample{
			Position: model.VecFromPoint(js.Position),
			Orientation: core.Orientation{
				Roll:  js.Roll,
				Pitch: js.Pitch,
				Yaw:   js.Yaw,
			},
			Confidence: js.Confidence,
		})
	}
	return p
}
