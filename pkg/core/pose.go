package core

import "gonum.org/v1/gonum/spatial/r3"

// Orientation holds a joint's rotation angles in degrees.
type Orientation struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// JointSample is one joint's state at one instant.
//
// Position is in sensor space (meters). Orientation and Confidence are only
// written by the angle solver and carry no meaning before the owning clip is
// finalized.
type JointSample struct {
	Position    r3.Vec      `json:"position"`
	Orientation Orientation `json:"orientation"`
	Confidence  float64     `json:"confidence"`
}

// Pose is a timestamped sample of every joint. It is a plain value: assigning
// or passing a Pose copies all samples.
type Pose struct {
	// Time is milliseconds since the owning clip started recording.
	Time float64 `json:"time"`

	Joints [JointCount]JointSample `json:"joints"`

	// PelvisPitch and PelvisYaw are derived body angles in degrees. The
	// interchange format stores them in the pelvis position slot.
	PelvisPitch float64 `json:"pelvisPitch"`
	PelvisYaw   float64 `json:"pelvisYaw"`
}

// Joint returns the sample for k.
func (p *Pose) Joint(k JointKind) JointSample {
	return p.Joints[k]
}

// SetJoint replaces the sample for k.
func (p *Pose) SetJoint(k JointKind, s JointSample) {
	p.Joints[k] = s
}

// Position returns the position of k.
func (p *Pose) Position(k JointKind) r3.Vec {
	return p.Joints[k].Position
}

// SetPosition sets the position of k, leaving its angles untouched.
func (p *Pose) SetPosition(k JointKind, v r3.Vec) {
	p.Joints[k].Position = v
}

// Clone returns an independent copy of p.
func (p Pose) Clone() Pose {
	return p
}
