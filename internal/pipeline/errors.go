package pipeline

import "errors"

// Stage names the pipeline step that failed.
type Stage string

const (
	StageDecode     Stage = "decode"
	StageResample   Stage = "resample"
	StageSegment    Stage = "segment"
	StageTranscribe Stage = "transcribe"
)

var (
	ErrMissingFile   = errors.New("No file part")     //nolint:staticcheck // echoed verbatim to clients
	ErrEmptyFilename = errors.New("No selected file") //nolint:staticcheck // echoed verbatim to clients
)

// ValidationError is a client error answered with 400.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// ProcessingError is a server-side failure answered with 500. Error returns
// the cause's message unchanged.
type ProcessingError struct {
	Stage Stage
	Err   error
}

func (e *ProcessingError) Error() string { return e.Err.Error() }
func (e *ProcessingError) Unwrap() error { return e.Err }
