// Package kinematics derives per-joint orientation angles from the raw joint
// positions of a single pose.
//
// Solve is a pure function of the pose positions: it keeps no state between
// calls and is safe for concurrent use on distinct poses.
package kinematics

import (
	"fmt"
	"strings"

	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/vecmath"
	"gonum.org/v1/gonum/spatial/r3"
)

// AnkleRestPitch is the fixed ankle pitch. It is stored in radians, unlike
// every other angle, so existing clips stay byte compatible.
var AnkleRestPitch = vecmath.DegToRad(-20)

var (
	yAxis = r3.Vec{Y: 1}
	zAxis = r3.Vec{Z: 1}
)

// SolveError lists the joints whose formulas hit a degenerate vector. Those
// joints were given zero angles and zero confidence; every other joint in
// the returned pose is valid.
type SolveError struct {
	Joints []core.JointKind
	Err    error
}

func (e *SolveError) Error() string {
	names := make([]string, len(e.Joints))
	for i, k := range e.Joints {
		names[i] = k.String()
	}
	return fmt.Sprintf("solve: %s: %v", strings.Join(names, ", "), e.Err)
}

func (e *SolveError) Unwrap() error {
	return e.Err
}

// Solve returns a copy of pose with the orientation and confidence of every
// joint recomputed from positions. Positions are never modified. The pelvis
// slot receives no orientation; its derived body angles go to PelvisPitch and
// PelvisYaw.
//
// A non-nil error is always a *SolveError. The returned pose is usable even
// then.
func Solve(pose core.Pose) (core.Pose, error) {
	s := solver{pose: pose}
	s.solve()

	if len(s.failed) == 0 {
		return s.pose, nil
	}
	return s.pose, &SolveError{Joints: s.failed, Err: s.firstErr}
}

type solver struct {
	pose     core.Pose
	failed   []core.JointKind
	firstErr error
	bad      [core.JointCount]bool
}

func (s *solver) pos(k core.JointKind) r3.Vec {
	return s.pose.Position(k)
}

func (s *solver) dir(from, to core.JointKind) r3.Vec {
	return vecmath.Direction(s.pos(from), s.pos(to))
}

// angle is AngleBetween that marks the given joints as failed instead of
// returning an error.
func (s *solver) angle(a, b r3.Vec, joints ...core.JointKind) float64 {
	deg, err := vecmath.AngleBetween(a, b)
	if err != nil {
		s.fail(err, joints...)
		return 0
	}
	return deg
}

func (s *solver) roll(v r3.Vec, k core.JointKind) float64 {
	deg, err := vecmath.Roll(v)
	if err != nil {
		s.fail(err, k)
		return 0
	}
	return deg
}

func (s *solver) fail(err error, joints ...core.JointKind) {
	if s.firstErr == nil {
		s.firstErr = err
	}
	for _, k := range joints {
		if !s.bad[k] {
			s.bad[k] = true
			s.failed = append(s.failed, k)
		}
	}
}

func (s *solver) set(k core.JointKind, roll, pitch, yaw float64) {
	j := s.pose.Joint(k)
	if s.bad[k] {
		j.Orientation = core.Orientation{}
		j.Confidence = 0
	} else {
		j.Orientation = core.Orientation{Roll: roll, Pitch: pitch, Yaw: yaw}
		j.Confidence = 1
	}
	s.pose.SetJoint(k, j)
}

func (s *solver) solve() {
	center := s.dir(core.Neck, core.Spine)

	s.head()
	s.shoulders(center)
	s.elbows()
	s.hips(center)
	s.knees()
	s.pelvis(center)

	// anchors of the other formulas carry no orientation of their own
	s.set(core.Neck, 0, 0, 0)
	s.set(core.Spine, 0, 0, 0)
	s.set(core.CenterHip, 0, 0, 0)
	s.set(core.LeftHand, 0, 0, 0)
	s.set(core.RightHand, 0, 0, 0)
	s.set(core.LeftAnkle, 0, AnkleRestPitch, 0)
	s.set(core.RightAnkle, 0, AnkleRestPitch, 0)
}

func (s *solver) head() {
	neck := s.dir(core.Spine, core.Neck)
	head := s.dir(core.Neck, core.Head)

	pitch := s.angle(neck, head, core.Head)
	if neck.Z < head.Z {
		pitch = -pitch
	}
	s.set(core.Head, 0, pitch, 0)
}

func (s *solver) shoulders(center r3.Vec) {
	rUpperArm := s.dir(core.RightShoulder, core.RightElbow)
	lUpperArm := s.dir(core.LeftShoulder, core.LeftElbow)

	rRoll := s.angle(s.dir(core.LeftShoulder, core.RightShoulder), rUpperArm, core.RightShoulder) - 90
	lRoll := s.angle(s.dir(core.RightShoulder, core.LeftShoulder), lUpperArm, core.LeftShoulder) - 90
	if lRoll < 0 {
		lRoll = -lRoll
	}

	rPitch := -s.angle(center, rUpperArm, core.RightShoulder) + 90
	lPitch := -s.angle(center, lUpperArm, core.LeftShoulder) + 90

	s.set(core.RightShoulder, rRoll, rPitch, 0)
	s.set(core.LeftShoulder, lRoll, lPitch, 0)
}

func (s *solver) elbows() {
	type side struct {
		shoulder, elbow, hand core.JointKind
		rollSign              float64
	}
	for _, sd := range []side{
		{core.RightShoulder, core.RightElbow, core.RightHand, 1},
		{core.LeftShoulder, core.LeftElbow, core.LeftHand, -1},
	} {
		upperArm := s.dir(sd.shoulder, sd.elbow)
		lowerArm := s.dir(sd.elbow, sd.hand)
		normal := vecmath.Cross(s.dir(sd.shoulder, core.Neck), upperArm)

		roll := sd.rollSign * s.angle(upperArm, lowerArm, sd.elbow)
		yaw := s.angle(lowerArm, normal, sd.elbow) - 90
		s.set(sd.elbow, roll, 0, yaw)
	}
}

func (s *solver) hips(center r3.Vec) {
	yaw := -(s.angle(s.dir(core.CenterHip, core.Spine), center, core.LeftHip, core.RightHip) - 150)

	for _, sd := range [][2]core.JointKind{
		{core.RightHip, core.RightKnee},
		{core.LeftHip, core.LeftKnee},
	} {
		hip, knee := sd[0], sd[1]
		upperLeg := s.dir(hip, knee)

		pitch := -s.angle(center, upperLeg, hip)
		if center.Z < upperLeg.Z {
			pitch = -pitch
		}
		roll := s.roll(upperLeg, hip)
		s.set(hip, roll, pitch, yaw)
	}
}

func (s *solver) knees() {
	for _, sd := range [][3]core.JointKind{
		{core.RightHip, core.RightKnee, core.RightAnkle},
		{core.LeftHip, core.LeftKnee, core.LeftAnkle},
	} {
		hip, knee, ankle := sd[0], sd[1], sd[2]
		pitch := s.angle(s.dir(hip, knee), s.dir(knee, ankle), knee)
		s.set(knee, 0, pitch, 0)
	}
}

func (s *solver) pelvis(center r3.Vec) {
	pitch := s.angle(center, yAxis, core.Pelvis)
	yaw := s.angle(s.dir(core.RightShoulder, core.LeftShoulder), zAxis, core.Pelvis)
	if s.bad[core.Pelvis] {
		pitch, yaw = 0, 0
	}
	s.pose.PelvisPitch = pitch
	s.pose.PelvisYaw = yaw
	s.set(core.Pelvis, 0, 0, 0)
}
