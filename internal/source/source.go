// Package source delivers raw position-only poses from a skeleton tracker to
// the recorder.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kinemo/motionrec/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyFrame is returned for a frame without a joints object.
var ErrEmptyFrame = errors.New("frame has no joints")

// Source produces poses until its input ends or ctx is cancelled. deliver is
// called from the Run goroutine, once per frame, with positions and time set.
type Source interface {
	Run(ctx context.Context, deliver func(core.Pose)) error
}

// Point is one joint position in a sample frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SampleFrame is the wire form of one tracker frame. Joint names may be the
// canonical names ("Left Shoulder") or tracker identifiers ("ShoulderLeft").
type SampleFrame struct {
	Time    float64          `json:"time"`
	Subject string           `json:"subject,omitempty"`
	Joints  map[string]Point `json:"joints"`
}

// Pose converts the frame. Unknown joint names are ignored and their count is
// returned.
func (f SampleFrame) Pose() (core.Pose, int) {
	var p core.Pose
	p.Time = f.Time
	unknown := 0
	for name, pt := range f.Joints {
		k, ok := core.ParseSensorJoint(name)
		if !ok {
			unknown++
			continue
		}
		p.SetPosition(k, r3.Vec{X: pt.X, Y: pt.Y, Z: pt.Z})
	}
	return p, unknown
}

// NewSampleFrame builds the wire form of a pose using canonical joint names.
func NewSampleFrame(p core.Pose) SampleFrame {
	f := SampleFrame{
		Time:   p.Time,
		Joints: make(map[string]Point, core.JointCount),
	}
	for _, k := range core.AllJoints() {
		if k == core.Pelvis {
			continue
		}
		v := p.Position(k)
		f.Joints[k.String()] = Point{X: v.X, Y: v.Y, Z: v.Z}
	}
	return f
}

// ParseFrame decodes one JSON sample frame into a pose.
func ParseFrame(data []byte) (core.Pose, error) {
	var f SampleFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return core.Pose{}, fmt.Errorf("decode frame: %w", err)
	}
	if len(f.Joints) == 0 {
		return core.Pose{}, ErrEmptyFrame
	}
	p, _ := f.Pose()
	return p, nil
}
