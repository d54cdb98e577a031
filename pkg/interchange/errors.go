package interchange

import (
	"errors"
	"fmt"
)

// ErrMalformed is matched by every MalformedError.
var ErrMalformed = errors.New("malformed interchange document")

var (
	errMissing  = errors.New("missing")
	errNotFound = errors.New("no <Data> element")
)

// MalformedError reports the location of a structural or numeric problem in
// an interchange document.
type MalformedError struct {
	// Path locates the offending node, e.g. "Data/Frame[3]/JointData[0]/Position/X".
	Path string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrMalformed, e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformed) true.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(path string, err error) error {
	return &MalformedError{Path: path, Err: err}
}
