// Package vecmath holds the vector primitives the angle solver is built from.
// All angles are in degrees unless a function name says otherwise.
package vecmath

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateVector is matched by every DegenerateVectorError.
var ErrDegenerateVector = errors.New("degenerate vector")

// ErrInvalidVector is returned when a vector literal cannot be parsed.
var ErrInvalidVector = errors.New("invalid vector literal")

// DegenerateVectorError reports a zero-length (or non-finite) vector passed
// to an operation that needs a direction.
type DegenerateVectorError struct {
	Op  string
	Vec r3.Vec
}

func (e *DegenerateVectorError) Error() string {
	return fmt.Sprintf("%s: degenerate vector (%g, %g, %g)", e.Op, e.Vec.X, e.Vec.Y, e.Vec.Z)
}

// Is makes errors.Is(err, ErrDegenerateVector) true.
func (e *DegenerateVectorError) Is(target error) bool {
	return target == ErrDegenerateVector
}

// Direction returns the vector pointing from a to b.
func Direction(a, b r3.Vec) r3.Vec {
	return r3.Sub(b, a)
}

// Cross returns the right-handed cross product a x b.
func Cross(a, b r3.Vec) r3.Vec {
	return r3.Cross(a, b)
}

// AngleBetween returns the unsigned angle between a and b in [0, 180].
func AngleBetween(a, b r3.Vec) (float64, error) {
	na := r3.Norm(a)
	if !usable(na) {
		return 0, &DegenerateVectorError{Op: "angle between", Vec: a}
	}
	nb := r3.Norm(b)
	if !usable(nb) {
		return 0, &DegenerateVectorError{Op: "angle between", Vec: b}
	}

	cos := r3.Dot(a, b) / (na * nb)
	// rounding can push collinear vectors just past +-1
	cos = math.Max(-1, math.Min(1, cos))
	return RadToDeg(math.Acos(cos)), nil
}

// Octant classifies v by the signs of (y > 0, z < 0, x < 0).
//
//	y>0 z<0 x<0 -> 1    y>0 z<0 x>=0 -> 5
//	y>0 z>=0 x<0 -> 2   y>0 z>=0 x>=0 -> 6
//	y<=0 z<0 x<0 -> 4   y<=0 z<0 x>=0 -> 8
//	y<=0 z>=0 x<0 -> 3  y<=0 z>=0 x>=0 -> 7
func Octant(v r3.Vec) int {
	if v.Y > 0 {
		if v.Z < 0 {
			if v.X < 0 {
				return 1
			}
			return 5
		}
		if v.X < 0 {
			return 2
		}
		return 6
	}
	if v.Z < 0 {
		if v.X < 0 {
			return 4
		}
		return 8
	}
	if v.X < 0 {
		return 3
	}
	return 7
}

// Roll returns the lateral tilt of v about the forward axis. The magnitude
// is asin(|x| / |v|); octants 1-4 are positive, 5-8 negative.
func Roll(v r3.Vec) (float64, error) {
	hyp := r3.Norm(v)
	if !usable(hyp) {
		return 0, &DegenerateVectorError{Op: "roll", Vec: v}
	}

	ratio := math.Min(1, math.Abs(v.X)/hyp)
	roll := RadToDeg(math.Asin(ratio))

	switch Octant(v) {
	case 1, 2, 3, 4:
		return roll, nil
	default:
		return -roll, nil
	}
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// ParseVec parses "x,y,z" into a vector. Whitespace around components is
// ignored; a missing z component is read as 0.
func ParseVec(s string) (r3.Vec, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return r3.Vec{}, fmt.Errorf("%w: %q", ErrInvalidVector, s)
	}

	var comps [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("%w: %q", ErrInvalidVector, s)
		}
		comps[i] = f
	}
	return r3.Vec{X: comps[0], Y: comps[1], Z: comps[2]}, nil
}

func usable(norm float64) bool {
	return norm > 0 && !math.IsInf(norm, 0)
}
