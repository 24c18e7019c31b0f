package capture

import (
	"errors"
	"fmt"
)

// Result describes a completed capture.
type Result struct {
	ID     string // unique identifier for this capture
	Path   string // path as given by the caller
	Bytes  int64  // size of the file after the write, from the filesystem
	SHA256 string // hex digest of the bytes written
}

// String returns the confirmation line printed on success.
func (r *Result) String() string {
	return fmt.Sprintf("✓ Created: %s (%d bytes)", r.Path, r.Bytes)
}

// Stage identifies where a capture failed.
type Stage string

const (
	// StageRead covers buffering and validating the input stream.
	StageRead Stage = "read"
	// StageWrite covers creating, writing and re-querying the target file.
	StageWrite Stage = "write"
)

var (
	// ErrInvalidUTF8 is returned when the input is not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("stream did not contain valid UTF-8")
	// ErrInputTooLarge is returned when the input exceeds Capturer.MaxInput.
	ErrInputTooLarge = errors.New("input too large")
)

// Error reports a failed capture and the stage it failed in.
type Error struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == StageRead {
		return fmt.Sprintf("reading input: %v", e.Err)
	}
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StageOf returns the stage of a capture error, or "" if err is not one.
func StageOf(err error) Stage {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Stage
	}
	return ""
}
