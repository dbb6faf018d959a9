package webhookjob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/medienwerk/metadata-api/internal/analysis"
	"github.com/medienwerk/metadata-api/internal/filehandler"
	"github.com/medienwerk/metadata-api/internal/models"
	"github.com/medienwerk/metadata-api/internal/pipeline"
)

// DefaultCallbackTimeout bounds the single callback delivery POST.
const DefaultCallbackTimeout = 30 * time.Second

// Runner executes webhook jobs detached from the request/response cycle.
// Gate is the same shared admission primitive the batch path uses, so a
// large job cannot starve the rest of the process of analysis slots.
type Runner struct {
	Service         analysis.Service
	Downloader      Downloader
	Gate            *semaphore.Weighted
	CallbackTimeout time.Duration
}

// Launch schedules the job in the background and returns immediately.
// Job state lives only in this goroutine; there is no persistence and no
// callback retry.
func (r *Runner) Launch(jobID string, req Request) {
	go r.run(context.Background(), jobID, req)
}

func (r *Runner) run(ctx context.Context, jobID string, req Request) {
	start := time.Now()
	log.Info().Str("job", jobID).Int("files", len(req.Files)).Msg("Webhook job started")

	results := make([]FileResult, len(req.Files))
	var wg sync.WaitGroup
	for i, ref := range req.Files {
		wg.Add(1)
		go func(i int, ref FileReference) {
			defer wg.Done()
			results[i] = r.processReference(ctx, ref)
		}(i, ref)
	}
	wg.Wait()

	successful := 0
	for _, res := range results {
		if res.Outcome.Succeeded() {
			successful++
		}
	}
	failed := len(results) - successful

	status := StatusCompleted
	switch {
	case failed == len(results):
		status = StatusFailed
	case failed > 0:
		status = StatusPartial
	}

	payload := CallbackPayload{
		JobID:            jobID,
		Status:           status,
		Results:          results,
		TotalFiles:       len(results),
		Successful:       successful,
		Failed:           failed,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	r.deliverCallback(ctx, jobID, req.CallbackURL, payload)
}

// processReference downloads and analyzes one reference inside its
// isolation boundary.
func (r *Runner) processReference(ctx context.Context, ref FileReference) (result FileResult) {
	result = FileResult{
		ReferenceID: ref.ReferenceID,
		FileURL:     ref.URL,
		FileType:    ref.FileType,
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("url", ref.URL).Interface("panic", rec).Msg("Unexpected failure processing file reference")
			result.Outcome = models.Failure(fmt.Sprintf("unexpected failure: %v", rec), analysis.CodeInternalError)
		}
	}()

	if err := r.Gate.Acquire(ctx, 1); err != nil {
		result.Outcome = models.FailureFrom(err)
		return result
	}
	defer r.Gate.Release(1)

	data, contentType, err := r.Downloader.Fetch(ctx, ref.URL)
	if err != nil {
		result.Outcome = models.Failure(fmt.Sprintf("download failed: %v", err), analysis.CodeDownloadError)
		return result
	}

	var metadata any
	if ref.FileType == filehandler.KindImage {
		metadata, err = pipeline.AnalyzeImage(ctx, r.Service, data, fileNameFromURL(ref.URL, "image"), contentType)
	} else {
		metadata, err = pipeline.AnalyzeAudio(ctx, r.Service, data, fileNameFromURL(ref.URL, "audio"), contentType)
	}
	if err != nil {
		result.Outcome = models.FailureFrom(err)
		return result
	}
	result.Outcome = models.Success(metadata)
	return result
}

// deliverCallback POSTs the payload once, best-effort. Failures are logged
// and swallowed: the original caller has no channel left to learn of them.
func (r *Runner) deliverCallback(ctx context.Context, jobID, callbackURL string, payload CallbackPayload) {
	timeout := r.CallbackTimeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("job", jobID).Msg("Failed to encode callback payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("job", jobID).Msg("Failed to build callback request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("job", jobID).Str("callback_url", callbackURL).Msg("Failed to deliver callback")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Str("job", jobID).Str("callback_url", callbackURL).Msg("Callback delivery rejected")
		return
	}
	log.Info().Str("job", jobID).Str("status", payload.Status).Int("status_code", resp.StatusCode).Msg("Callback delivered")
}

func fileNameFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
