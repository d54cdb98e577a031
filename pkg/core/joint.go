// Package core defines the skeleton data types shared by the solver, the
// motion clip model and the interchange codec.
package core

import "fmt"

// JointKind identifies one of the fixed skeletal landmarks tracked per pose.
type JointKind uint8

// The declaration order is the serialization order.
const (
	Head JointKind = iota
	Neck
	Spine
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftHand
	RightHand
	LeftHip
	RightHip
	CenterHip
	LeftKnee
	RightKnee
	Pelvis
	RightAnkle
	LeftAnkle

	// JointCount is the number of joints in every pose.
	JointCount = int(iota)
)

var jointNames = [JointCount]string{
	Head:          "Head",
	Neck:          "Neck",
	Spine:         "Spine",
	LeftShoulder:  "Left Shoulder",
	RightShoulder: "Right Shoulder",
	LeftElbow:     "Left Elbow",
	RightElbow:    "Right Elbow",
	LeftHand:      "Left Hand",
	RightHand:     "Right Hand",
	LeftHip:       "Left Hip",
	RightHip:      "Right Hip",
	CenterHip:     "Center Hip",
	LeftKnee:      "Left Knee",
	RightKnee:     "Right Knee",
	Pelvis:        "Pelvis",
	RightAnkle:    "Right Ankle",
	LeftAnkle:     "Left Ankle",
}

var jointsByName = func() map[string]JointKind {
	m := make(map[string]JointKind, JointCount)
	for i, name := range jointNames {
		m[name] = JointKind(i)
	}
	return m
}()

// sensorJoints maps depth-sensor skeleton joint identifiers onto the canonical
// joints. The sensor has no pelvis joint; that slot only ever carries derived
// angles.
var sensorJoints = map[string]JointKind{
	"Head":           Head,
	"ShoulderCenter": Neck,
	"Spine":          Spine,
	"ShoulderLeft":   LeftShoulder,
	"ShoulderRight":  RightShoulder,
	"ElbowLeft":      LeftElbow,
	"ElbowRight":     RightElbow,
	"HandLeft":       LeftHand,
	"HandRight":      RightHand,
	"HipLeft":        LeftHip,
	"HipRight":       RightHip,
	"HipCenter":      CenterHip,
	"KneeLeft":       LeftKnee,
	"KneeRight":      RightKnee,
	"AnkleRight":     RightAnkle,
	"AnkleLeft":      LeftAnkle,
}

// String returns the canonical joint name used in the interchange format.
func (k JointKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("JointKind(%d)", uint8(k))
	}
	return jointNames[k]
}

// Valid reports whether k is one of the known joints.
func (k JointKind) Valid() bool {
	return int(k) < JointCount
}

// ParseJointKind resolves a canonical joint name such as "Left Shoulder".
func ParseJointKind(name string) (JointKind, bool) {
	k, ok := jointsByName[name]
	return k, ok
}

// ParseSensorJoint resolves either a canonical name or a sensor joint
// identifier such as "ShoulderLeft".
func ParseSensorJoint(name string) (JointKind, bool) {
	if k, ok := jointsByName[name]; ok {
		return k, true
	}
	k, ok := sensorJoints[name]
	return k, ok
}

// AllJoints returns every joint in serialization order.
func AllJoints() []JointKind {
	joints := make([]JointKind, JointCount)
	for i := range joints {
		joints[i] = JointKind(i)
	}
	return joints
}
