package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gonum.org/v1/gonum/spatial/r3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists the structs that represent tables in the recording
// schema, parents first.
var DatabaseModels = []interface{}{
	&Recording{},
	&Keyframe{},
	&JointState{},
}

// Recording is one stored motion clip.
type Recording struct {
	gorm.Model
	Name            string         `json:"name" gorm:"size:127;index:idx_recording_name"`
	Session         string         `json:"session" gorm:"size:36;index:idx_recording_session"` // uuid of the capture session
	Subject         string         `json:"subject" gorm:"size:127"`
	StartedAt       time.Time      `json:"startedAt"`
	IntervalMs      int            `json:"intervalMs"`
	DurationSeconds float64        `json:"durationSeconds"`
	Keyframes       int            `json:"keyframes"`
	Metadata        datatypes.JSON `json:"metadata"`
	Frames          []Keyframe     `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Recording) TableName() string {
	return "recordings"
}

// Keyframe is one sampled pose of a recording.
type Keyframe struct {
	ID          uint         `json:"id" gorm:"primarykey;autoIncrement;"`
	RecordingID uint         `json:"recordingId" gorm:"index:idx_keyframe_recording_index,priority:1"`
	Index       int          `json:"index" gorm:"column:frame_index;index:idx_keyframe_recording_index,priority:2"`
	TimeMs      float64      `json:"timeMs"`
	PelvisPitch float64      `json:"pelvisPitch"`
	PelvisYaw   float64      `json:"pelvisYaw"`
	Joints      []JointState `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Keyframe) TableName() string {
	return "keyframes"
}

// JointState is the sample of a single joint within a keyframe.
type JointState struct {
	ID         uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	KeyframeID uint       `json:"keyframeId" gorm:"index:idx_jointstate_keyframe_id"`
	Joint      uint8      `json:"joint"`            // core.JointKind
	Name       string     `json:"name" gorm:"size:32"`
	Position   geom.Point `json:"position"` // sensor space XYZ in meters
	Roll       float64    `json:"roll"`
	Pitch      float64    `json:"pitch"`
	Yaw        float64    `json:"yaw"`
	Confidence float64    `json:"confidence"`
}

func (*JointState) TableName() string {
	return "joint_states"
}

// PointFromVec converts a sensor position to an XYZ point.
func PointFromVec(v r3.Vec) geom.Point {
	coords := geom.Coordinates{XY: geom.XY{X: v.X, Y: v.Y}, Z: v.Z, Type: geom.DimXYZ}
	return geom.NewPoint(coords)
}

// VecFromPoint returns the position stored in p. An empty point yields the
// zero vector.
func VecFromPoint(p geom.Point) r3.Vec {
	c, ok := p.Coordinates()
	if !ok {
		return r3.Vec{}
	}
	return r3.Vec{X: c.XY.X, Y: c.XY.Y, Z: c.Z}
}
