package pipeline

import (
	"errors"
	"fmt"
)

// Stage is a state of a single ad generation run.
type Stage string

const (
	StageValidating        Stage = "validating"
	StageResearching       Stage = "researching"
	StageComposingCopy     Stage = "composing_copy"
	StageNormalizingImage  Stage = "normalizing_image"
	StageSynthesizingImage Stage = "synthesizing_image"
	StagePersisting        Stage = "persisting"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// Failure kinds. A *StageError matches exactly one of them with errors.Is.
var (
	ErrValidation            = errors.New("validation failed")
	ErrUpstream              = errors.New("upstream request failed")
	ErrUpstreamEmptyResponse = errors.New("upstream returned empty response")
	ErrInvalidImageFormat    = errors.New("invalid image format")
	ErrImageConversion       = errors.New("image conversion failed")
	ErrStorageWrite          = errors.New("storage write failed")
	ErrStorageURLResolution  = errors.New("storage url resolution failed")
)

// StageError is the terminal result of a failed run: the stage that failed,
// the failure kind and the underlying cause.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s stage failed: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fail(kind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
