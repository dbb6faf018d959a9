// Package webhookjob implements asynchronous metadata extraction for
// remotely referenced files: download each reference, run it through
// validation and analysis, and deliver one callback payload to the
// caller-supplied URL. Jobs live only in memory for the duration of the
// background work; a process restart loses them (accepted at-most-once
// semantics).
package webhookjob

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/medienwerk/metadata-api/internal/filehandler"
	"github.com/medienwerk/metadata-api/internal/models"
)

// FileReference points at a file reachable by URL with an explicit media
// kind declaration and an optional caller correlation id.
type FileReference struct {
	URL         string           `json:"url"`
	FileType    filehandler.Kind `json:"file_type"`
	ReferenceID string           `json:"reference_id,omitempty"`
}

// Request is the inbound webhook submission body.
type Request struct {
	Files       []FileReference `json:"files"`
	CallbackURL string          `json:"callback_url"`
}

// Validate checks the request shape before any work is scheduled.
func (r *Request) Validate() error {
	if len(r.Files) == 0 {
		return fmt.Errorf("at least one file reference is required")
	}
	u, err := url.Parse(r.CallbackURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("callback_url must be a valid http or https URL")
	}
	for i, ref := range r.Files {
		if ref.URL == "" {
			return fmt.Errorf("files[%d]: url is required", i)
		}
		if ref.FileType != filehandler.KindImage && ref.FileType != filehandler.KindAudio {
			return fmt.Errorf("files[%d]: file_type must be %q or %q", i, filehandler.KindImage, filehandler.KindAudio)
		}
	}
	return nil
}

// AcceptedResponse is returned immediately on successful submission.
type AcceptedResponse struct {
	JobID      string `json:"job_id"`
	Message    string `json:"message"`
	TotalFiles int    `json:"total_files"`
}

// FileResult pairs one file reference with its outcome.
type FileResult struct {
	ReferenceID string
	FileURL     string
	FileType    filehandler.Kind
	Outcome     models.Outcome
}

// MarshalJSON renders the tagged success/error shape.
func (r FileResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ReferenceID string            `json:"reference_id,omitempty"`
		FileURL     string            `json:"file_url"`
		FileType    filehandler.Kind  `json:"file_type"`
		Status      string            `json:"status"`
		Metadata    any               `json:"metadata,omitempty"`
		Error       *models.ErrorInfo `json:"error,omitempty"`
	}{
		ReferenceID: r.ReferenceID,
		FileURL:     r.FileURL,
		FileType:    r.FileType,
		Status:      r.Outcome.Status(),
		Metadata:    r.Outcome.Metadata(),
		Error:       r.Outcome.Err(),
	})
}

// Job terminal states for the callback payload.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// CallbackPayload is the single POST body delivered to the callback URL
// once all references have resolved.
type CallbackPayload struct {
	JobID            string       `json:"job_id"`
	Status           string       `json:"status"`
	Results          []FileResult `json:"results"`
	TotalFiles       int          `json:"total_files"`
	Successful       int          `json:"successful"`
	Failed           int          `json:"failed"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
}
