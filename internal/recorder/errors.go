package recorder

import "errors"

var (
	// ErrAlreadyRecording is returned by Start while a recording is running.
	ErrAlreadyRecording = errors.New("recorder already recording")

	// ErrNotRecording is returned by Stop when no recording is running.
	ErrNotRecording = errors.New("recorder not recording")

	// ErrNoPose is returned by Snapshot before any pose was observed.
	ErrNoPose = errors.New("no pose observed")
)
