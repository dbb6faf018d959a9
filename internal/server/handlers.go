package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/medienwerk/metadata-api/internal/analysis"
	"github.com/medienwerk/metadata-api/internal/batch"
	"github.com/medienwerk/metadata-api/internal/filehandler"
	"github.com/medienwerk/metadata-api/internal/jobs"
	"github.com/medienwerk/metadata-api/internal/pipeline"
	"github.com/medienwerk/metadata-api/internal/webhookjob"
)

// multipartMemory is the in-memory threshold for multipart parsing; larger
// parts spill to temp files.
const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "metadata-api",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Analyzer == nil {
		respondError(w, http.StatusServiceUnavailable, "analysis service not configured", analysis.CodeMissingConfig)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleAnalyzeImage accepts one multipart image upload under the "file"
// field and returns its extracted metadata synchronously.
func (s *Server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	data, fileName, contentType, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	// Size gets its own status code; everything else about the file is a
	// semantic validation failure.
	if err := filehandler.ValidateImageSize(len(data)); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, err.Error(), analysis.CodeValidationError)
		return
	}
	header := data
	if len(header) > 32 {
		header = header[:32]
	}
	if _, err := filehandler.ValidateImageType(contentType, header); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error(), analysis.CodeValidationError)
		return
	}

	metadata, err := pipeline.AnalyzeImage(r.Context(), s.Analyzer, data, fileName, contentType)
	if err != nil {
		s.respondAnalysisError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, metadata)
}

// handleAnalyzeAudio accepts one multipart audio upload under the "file"
// field and returns its extracted metadata synchronously.
func (s *Server) handleAnalyzeAudio(w http.ResponseWriter, r *http.Request) {
	data, fileName, contentType, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	if _, _, err := filehandler.ValidateAudioUpload(contentType, data, fileName); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error(), analysis.CodeValidationError)
		return
	}

	metadata, err := pipeline.AnalyzeAudio(r.Context(), s.Analyzer, data, fileName, contentType)
	if err != nil {
		s.respondAnalysisError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, metadata)
}

// handleAnalyzeBatch accepts up to the batch limit of files under the
// repeated "files" field and processes them concurrently.
func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid multipart request: %v", err), analysis.CodeValidationError)
		return
	}

	headers := r.MultipartForm.File["files"]
	items := make([]batch.Item, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("reading %s: %v", fh.Filename, err), analysis.CodeValidationError)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("reading %s: %v", fh.Filename, err), analysis.CodeValidationError)
			return
		}
		items = append(items, batch.Item{
			Index:       i,
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	resp, err := s.Batch.Process(r.Context(), items)
	if err != nil {
		s.respondAnalysisError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleWebhookAnalyze accepts a JSON job submission, schedules it in the
// background, and acknowledges immediately.
func (s *Server) handleWebhookAnalyze(w http.ResponseWriter, r *http.Request) {
	var req webhookjob.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err), analysis.CodeValidationError)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error(), analysis.CodeValidationError)
		return
	}

	jobID := jobs.GenerateID("job-")
	s.Runner.Launch(jobID, req)

	log.Info().Str("job", jobID).Int("files", len(req.Files)).Str("correlation_id", CorrelationID(r.Context())).Msg("Webhook job accepted")
	respondJSON(w, http.StatusAccepted, webhookjob.AcceptedResponse{
		JobID:      jobID,
		Message:    "job accepted, results will be delivered to the callback URL",
		TotalFiles: len(req.Files),
	})
}

// readUpload extracts the single "file" part from a multipart request. On
// failure it has already written the error response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, fileName, contentType string, ok bool) {
	f, fh, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "a multipart \"file\" field is required", analysis.CodeValidationError)
		return nil, "", "", false
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("reading upload: %v", err), analysis.CodeValidationError)
		return nil, "", "", false
	}
	return data, fh.Filename, fh.Header.Get("Content-Type"), true
}

// respondAnalysisError maps classified analysis errors to HTTP statuses,
// preserving the machine-readable code.
func (s *Server) respondAnalysisError(w http.ResponseWriter, err error) {
	if aerr, ok := analysis.AsError(err); ok {
		status := http.StatusInternalServerError
		if aerr.Code == analysis.CodeValidationError {
			status = http.StatusUnprocessableEntity
		}
		respondError(w, status, aerr.Message, aerr.Code)
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error(), analysis.CodeInternalError)
}
