package ingest

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when an operation is not valid in the current phase.
var ErrIllegalTransition = errors.New("illegal pipeline transition")

var errEmptyImage = errors.New("image is empty")

// FailedStage names the remote step of an upload that failed.
type FailedStage string

const (
	StageStore   FailedStage = "store"
	StageExtract FailedStage = "extract"
)

// EncodingError means the image could not be read or encoded.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding image: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ExtractionError means storing or extracting an uploaded image failed.
type ExtractionError struct {
	Stage FailedStage
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// CommitError means saving the reviewed expense failed. The draft is kept for a retry.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("saving expense: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
