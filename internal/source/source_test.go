package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kinemo/motionrec/internal/config"
	"github.com/kinemo/motionrec/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParseFrame_CanonicalAndSensorNames(t *testing.T) {
	data := []byte(`{
		"time": 66.5,
		"joints": {
			"Head": {"x": 0.06, "y": 0.84, "z": 1.98},
			"ShoulderLeft": {"x": -0.2, "y": 0.45, "z": 2},
			"Right Shoulder": {"x": 0.2, "y": 0.45, "z": 2},
			"HipCenter": {"x": 0, "y": -0.05, "z": 2},
			"Tail": {"x": 9, "y": 9, "z": 9}
		}
	}`)

	p, err := ParseFrame(data)
	require.NoError(t, err)

	assert.Equal(t, 66.5, p.Time)
	assert.Equal(t, r3.Vec{X: 0.06, Y: 0.84, Z: 1.98}, p.Position(core.Head))
	assert.Equal(t, r3.Vec{X: -0.2, Y: 0.45, Z: 2}, p.Position(core.LeftShoulder))
	assert.Equal(t, r3.Vec{X: 0.2, Y: 0.45, Z: 2}, p.Position(core.RightShoulder))
	assert.Equal(t, r3.Vec{Y: -0.05, Z: 2}, p.Position(core.CenterHip))
	assert.Equal(t, r3.Vec{}, p.Position(core.Pelvis))
}

func TestSampleFrame_CountsUnknown(t *testing.T) {
	f := SampleFrame{Joints: map[string]Point{"Head": {}, "Tail": {}, "Wing": {}}}
	_, unknown := f.Pose()
	assert.Equal(t, 2, unknown)
}

func TestParseFrame_Errors(t *testing.T) {
	_, err := ParseFrame([]byte(`{"time": 0}`))
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = ParseFrame([]byte(`{"time": `))
	assert.Error(t, err)
}

func TestNewSampleFrame_RoundTrip(t *testing.T) {
	var p core.Pose
	p.Time = 400
	p.SetPosition(core.LeftKnee, r3.Vec{X: -0.1, Y: -0.5, Z: 2})
	p.SetPosition(core.Neck, r3.Vec{Y: 0.5, Z: 2})

	data, err := json.Marshal(NewSampleFrame(p))
	require.NoError(t, err)

	got, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	src, closeFn, err := Open(config.SourceConfig{Type: "jsonl", Input: path}, nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONLines{}, src)
	assert.NoError(t, closeFn())

	src, _, err = Open(config.SourceConfig{Type: "websocket", URL: "ws://localhost:1/x"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &WebSocket{}, src)

	_, _, err = Open(config.SourceConfig{Type: "jsonl", Input: filepath.Join(dir, "absent")}, nil)
	assert.Error(t, err)

	_, _, err = Open(config.SourceConfig{Type: "kinect"}, nil)
	assert.Error(t, err)
}
