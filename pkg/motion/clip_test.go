package motion

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/kinematics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func headPose(t float64) core.Pose {
	var p core.Pose
	p.Time = t
	p.SetPosition(core.Neck, r3.Vec{Y: 1})
	p.SetPosition(core.Spine, r3.Vec{})
	p.SetPosition(core.Head, r3.Vec{Y: 1.5})
	return p
}

func TestNewClip(t *testing.T) {
	c := NewClip(DefaultInterval)

	assert.Equal(t, 200, c.Interval())
	assert.Equal(t, 0, c.KeyframeCount())
	assert.Empty(t, c.Keyframes())
	assert.False(t, c.Finalized())
	assert.Zero(t, c.Duration())
}

func TestFinalize_EmptyClip(t *testing.T) {
	c := NewClip(200)

	err := c.Finalize()
	assert.ErrorIs(t, err, ErrEmptyClip)
	assert.False(t, c.Finalized())
	assert.Zero(t, c.Duration())
}

func TestFinalize_SingleHeadKeyframe(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := NewClip(200, WithLogger(logger))
	c.AddKeyframe(headPose(0))

	require.NoError(t, c.Finalize())
	assert.True(t, c.Finalized())
	assert.Equal(t, 0.0, c.Duration())
	assert.Equal(t, 1, c.KeyframeCount())

	kf, ok := c.Keyframe(0)
	require.True(t, ok)
	assert.InDelta(t, 0, kf.Joint(core.Head).Orientation.Pitch, 1e-9)

	// the rest of the skeleton sits at the origin
	assert.Contains(t, buf.String(), "Degenerate joints in keyframe")
	assert.Contains(t, buf.String(), "Left Shoulder")
}

func TestFinalize_DurationFromLastKeyframe(t *testing.T) {
	c := NewClip(200)
	for _, ms := range []float64{0, 210, 395, 3397} {
		c.AddKeyframe(headPose(ms))
	}

	require.NoError(t, c.Finalize())
	assert.InDelta(t, 3.397, c.Duration(), 1e-12)
	assert.Equal(t, 4, c.KeyframeCount())
	assert.Len(t, c.Keyframes(), c.KeyframeCount())
}

func TestFinalize_Idempotent(t *testing.T) {
	c := NewClip(200)
	c.AddKeyframe(headPose(0))
	c.AddKeyframe(headPose(200))

	require.NoError(t, c.Finalize())
	first := c.Keyframes()
	firstDuration := c.Duration()

	require.NoError(t, c.Finalize())
	assert.Equal(t, first, c.Keyframes())
	assert.Equal(t, firstDuration, c.Duration())
}

func TestFinalize_MatchesSolver(t *testing.T) {
	p := headPose(40)
	want, _ := kinematics.Solve(p)

	c := NewClip(200)
	c.AddKeyframe(p)
	require.NoError(t, c.Finalize())

	got, ok := c.Keyframe(0)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestAddKeyframe_CopiesPose(t *testing.T) {
	c := NewClip(200)
	p := headPose(0)
	c.AddKeyframe(p)

	p.SetPosition(core.Head, r3.Vec{X: 9})
	p.Time = 999

	kf, _ := c.Keyframe(0)
	assert.Equal(t, r3.Vec{Y: 1.5}, kf.Position(core.Head))
	assert.Equal(t, 0.0, kf.Time)
}

func TestKeyframes_ReturnsCopy(t *testing.T) {
	c := NewClip(200)
	c.AddKeyframe(headPose(0))

	view := c.Keyframes()
	view[0].Time = 123
	view[0].SetPosition(core.Neck, r3.Vec{Z: 4})

	kf, _ := c.Keyframe(0)
	assert.Equal(t, 0.0, kf.Time)
	assert.Equal(t, r3.Vec{Y: 1}, kf.Position(core.Neck))
}

func TestKeyframe_OutOfRange(t *testing.T) {
	c := NewClip(200)
	c.AddKeyframe(headPose(0))

	_, ok := c.Keyframe(-1)
	assert.False(t, ok)
	_, ok = c.Keyframe(1)
	assert.False(t, ok)
}

func TestAddKeyframe_AfterFinalize(t *testing.T) {
	c := NewClip(200)
	c.AddKeyframe(headPose(0))
	require.NoError(t, c.Finalize())

	c.AddKeyframe(headPose(500))
	assert.False(t, c.Finalized())
	assert.Zero(t, c.Duration())

	require.NoError(t, c.Finalize())
	assert.InDelta(t, 0.5, c.Duration(), 1e-12)
}

func TestRestore(t *testing.T) {
	p := headPose(100)
	p.Joints[core.Head].Orientation.Pitch = 12.5

	c := Restore(500, 1.25, []core.Pose{p})

	assert.True(t, c.Finalized())
	assert.Equal(t, 500, c.Interval())
	assert.Equal(t, 1.25, c.Duration())
	kf, ok := c.Keyframe(0)
	require.True(t, ok)
	assert.Equal(t, 12.5, kf.Joint(core.Head).Orientation.Pitch)
}
