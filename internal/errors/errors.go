package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode classifies pipeline failures.
type ErrorCode string

const (
	// Per-unit failures, absorbed by the pipeline
	ErrorInvalidDetection ErrorCode = "INVALID_DETECTION"
	ErrorInstanceGeometry ErrorCode = "INSTANCE_GEOMETRY"
	ErrorStitching        ErrorCode = "STITCHING"
	ErrorGeoreferencing   ErrorCode = "GEOREFERENCING"

	// Run-level failures
	ErrorAssemblyFailure ErrorCode = "ASSEMBLY_FAILURE"
	ErrorSourceFailed    ErrorCode = "SOURCE_FAILED"
	ErrorStorageFailed   ErrorCode = "STORAGE_FAILED"
)

// PipelineError is a structured failure of one unit of work.
type PipelineError struct {
	Code      ErrorCode
	Message   string
	RunID     string
	TileID    string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithRun tags the error with the run it happened in.
func (e *PipelineError) WithRun(runID string) *PipelineError {
	e.RunID = runID
	return e
}

// ToMap converts the error into a flat map for logs and storage.
func (e *PipelineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}
	if e.RunID != "" {
		result["run_id"] = e.RunID
	}
	if e.TileID != "" {
		result["tile_id"] = e.TileID
	}
	for k, v := range e.Details {
		result[k] = v
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	return result
}

// Factory functions

func NewInvalidDetectionError(tileID string, index int, reason string) *PipelineError {
	return &PipelineError{
		Code:      ErrorInvalidDetection,
		Message:   fmt.Sprintf("detection %d dropped: %s", index, reason),
		TileID:    tileID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"instance_index": index,
		},
	}
}

func NewInstanceGeometryError(tileID string, index int, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorInstanceGeometry,
		Message:   fmt.Sprintf("geometry extraction failed for instance %d", index),
		TileID:    tileID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"instance_index": index,
		},
		Cause: cause,
	}
}

func NewStitchingError(group int, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorStitching,
		Message:   fmt.Sprintf("path group %d dropped", group),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"group": group,
		},
		Cause: cause,
	}
}

func NewGeoreferencingError(tileID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorGeoreferencing,
		Message:   "malformed affine parameters, tile skipped",
		TileID:    tileID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewAssemblyFailure(cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorAssemblyFailure,
		Message:   "feature collection could not be assembled, empty collection emitted",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewSourceFailedError(path string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorSourceFailed,
		Message:   fmt.Sprintf("failed to read detections from %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(runID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorStorageFailed,
		Message:   "failed to store run artifacts",
		RunID:     runID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// HasCode reports whether err wraps a PipelineError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var pe *PipelineError
	if !stderrors.As(err, &pe) {
		return false
	}
	return pe.Code == code
}

// CodeOf returns the code of the first PipelineError in err's chain.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
