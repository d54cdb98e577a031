package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/kinemo/motionrec/internal/config"
	"github.com/kinemo/motionrec/internal/storage"
	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/motion"
	"github.com/rs/zerolog"
)

// Measurement names written per keyframe.
const (
	MeasurementJoint  = "joint_angle"
	MeasurementPelvis = "pelvis_angle"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx is disabled")

// Manager publishes solved joint angles to InfluxDB. When the server cannot
// be reached points are appended to a gzip line-protocol backup file instead.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig, backupPath string) *Manager {
	return &Manager{
		Logger:     log,
		BackupPath: backupPath,
		cfg:        cfg,
	}
}

// Connect establishes a connection to InfluxDB.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()

	// ensure org exists
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Publish writes the angles of every keyframe of clip.
func (m *Manager) Publish(ctx context.Context, meta storage.RecordingMeta, clip *motion.Clip) error {
	points := ClipPoints(meta, clip)
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.WritePoint(p); err != nil {
			return err
		}
	}
	m.Logger.Debug().Int("points", len(points)).Str("recording", meta.Name).Msg("Published joint angles")
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	var errs []error
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// ClipPoints converts a finalized clip into line-protocol points. Each
// keyframe is stamped at StartedAt plus its offset; joints with zero
// confidence are left out.
func ClipPoints(meta storage.RecordingMeta, clip *motion.Clip) []*influxdb2_write.Point {
	frames := clip.Keyframes()
	points := make([]*influxdb2_write.Point, 0, len(frames)*(core.JointCount+1))

	for _, kf := range frames {
		ts := meta.StartedAt.Add(time.Duration(kf.Time * float64(time.Millisecond)))

		for _, k := range core.AllJoints() {
			if k == core.Pelvis {
				continue
			}
			s := kf.Joint(k)
			if s.Confidence == 0 {
				continue
			}
			p := influxdb2_write.NewPointWithMeasurement(MeasurementJoint).
				AddTag("recording", meta.Name).
				AddTag("joint", k.String()).
				AddField("roll", s.Orientation.Roll).
				AddField("pitch", s.Orientation.Pitch).
				AddField("yaw", s.Orientation.Yaw).
				AddField("confidence", s.Confidence).
				SetTime(ts)
			points = append(points, tagSubject(p, meta))
		}

		p := influxdb2_write.NewPointWithMeasurement(MeasurementPelvis).
			AddTag("recording", meta.Name).
			AddField("pitch", kf.PelvisPitch).
			AddField("yaw", kf.PelvisYaw).
			SetTime(ts)
		points = append(points, tagSubject(p, meta))
	}
	return points
}

func tagSubject(p *influxdb2_write.Point, meta storage.RecordingMeta) *influxdb2_write.Point {
	if meta.Subject != "" {
		p.AddTag("subject", meta.Subject)
	}
	return p
}
