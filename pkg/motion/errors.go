package motion

import "errors"

var (
	// ErrEmptyClip is returned when finalizing a clip with no keyframes.
	ErrEmptyClip = errors.New("motion clip has no keyframes")

	// ErrNotFinalized is returned when orientation data or an export is
	// requested from a clip that has not been finalized.
	ErrNotFinalized = errors.New("motion clip not finalized")
)
