// Package models holds the wire-level response shapes shared by the HTTP
// handlers, the batch processor, and the webhook job runner.
package models

import (
	"github.com/medienwerk/metadata-api/internal/analysis"
)

// ImageMetadata is the response payload for an analyzed image.
type ImageMetadata struct {
	FileName         string         `json:"file_name"`
	FileSize         int            `json:"file_size"`
	MimeType         string         `json:"mime_type"`
	Description      string         `json:"description"`
	Keywords         []string       `json:"keywords"`
	Caption          string         `json:"caption"`
	Exif             map[string]any `json:"exif"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// AudioMetadata is the response payload for an analyzed audio file.
type AudioMetadata struct {
	FileName         string   `json:"file_name"`
	FileSize         int      `json:"file_size"`
	MimeType         string   `json:"mime_type"`
	Description      string   `json:"description"`
	Keywords         []string `json:"keywords"`
	Summary          string   `json:"summary"`
	DurationSeconds  *float64 `json:"duration_seconds"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// ErrorInfo is the standard error body: a human message plus a
// machine-readable code.
type ErrorInfo struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
}

// ErrorInfoFrom maps any processing error to an ErrorInfo, preserving the
// code of classified analysis errors and downgrading everything else to
// INTERNAL_ERROR.
func ErrorInfoFrom(err error) *ErrorInfo {
	if ae, ok := analysis.AsError(err); ok {
		return &ErrorInfo{Detail: ae.Message, ErrorCode: ae.Code}
	}
	return &ErrorInfo{Detail: err.Error(), ErrorCode: analysis.CodeInternalError}
}

// Outcome is the per-item result variant: success carrying metadata, or
// failure carrying an ErrorInfo. The branches are unexported and only
// reachable through the constructors, so an item can never hold both.
type Outcome struct {
	metadata any
	failure  *ErrorInfo
}

// Success wraps an ImageMetadata or AudioMetadata payload.
func Success(metadata any) Outcome {
	return Outcome{metadata: metadata}
}

// Failure wraps a classified per-item error.
func Failure(detail, code string) Outcome {
	return Outcome{failure: &ErrorInfo{Detail: detail, ErrorCode: code}}
}

// FailureFrom builds a failure outcome from an arbitrary error.
func FailureFrom(err error) Outcome {
	return Outcome{failure: ErrorInfoFrom(err)}
}

// Succeeded reports whether the outcome carries metadata.
func (o Outcome) Succeeded() bool { return o.failure == nil }

// Status is the wire status tag for the outcome.
func (o Outcome) Status() string {
	if o.Succeeded() {
		return "success"
	}
	return "error"
}

// Metadata returns the success payload, nil for failures.
func (o Outcome) Metadata() any { return o.metadata }

// Err returns the failure details, nil for successes.
func (o Outcome) Err() *ErrorInfo { return o.failure }
