// Package batch fans out a bounded set of uploaded files to the analysis
// service under a shared concurrency gate and re-assembles the results in
// submission order. One bad file never sinks the batch: every failure is
// captured as that item's error entry.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/medienwerk/metadata-api/internal/analysis"
	"github.com/medienwerk/metadata-api/internal/filehandler"
	"github.com/medienwerk/metadata-api/internal/models"
	"github.com/medienwerk/metadata-api/internal/pipeline"
)

// MaxBatchFiles is the per-request item ceiling.
const MaxBatchFiles = 20

// Item is one uploaded file within a batch, identified by its submission
// index.
type Item struct {
	Index       int
	Name        string
	ContentType string
	Data        []byte
}

// FileResult pairs an item's identity with its outcome.
type FileResult struct {
	FileName  string
	FileIndex int
	FileType  filehandler.Kind
	Outcome   models.Outcome
}

// MarshalJSON renders the tagged success/error shape.
func (r FileResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FileName  string            `json:"file_name"`
		FileIndex int               `json:"file_index"`
		Status    string            `json:"status"`
		FileType  filehandler.Kind  `json:"file_type"`
		Metadata  any               `json:"metadata,omitempty"`
		Error     *models.ErrorInfo `json:"error,omitempty"`
	}{
		FileName:  r.FileName,
		FileIndex: r.FileIndex,
		Status:    r.Outcome.Status(),
		FileType:  r.FileType,
		Metadata:  r.Outcome.Metadata(),
		Error:     r.Outcome.Err(),
	})
}

// Response is the aggregated batch result.
type Response struct {
	Results               []FileResult `json:"results"`
	TotalFiles            int          `json:"total_files"`
	Successful            int          `json:"successful"`
	Failed                int          `json:"failed"`
	TotalProcessingTimeMs int64        `json:"total_processing_time_ms"`
}

// Processor runs batches against the analysis service. Gate is the shared
// admission primitive bounding in-flight analyses across the whole process;
// the webhook job runner holds the same gate.
type Processor struct {
	Service analysis.Service
	Gate    *semaphore.Weighted
}

// Process analyzes all items concurrently and returns the aggregate
// response in submission order. Empty and oversized batches are rejected
// before any processing starts.
func (p *Processor) Process(ctx context.Context, items []Item) (*Response, error) {
	start := time.Now()

	if len(items) == 0 {
		return nil, analysis.NewError(analysis.CodeValidationError, "no files uploaded")
	}
	if len(items) > MaxBatchFiles {
		return nil, analysis.NewError(analysis.CodeValidationError,
			fmt.Sprintf("at most %d files per request allowed, got %d", MaxBatchFiles, len(items)))
	}

	results := make([]FileResult, len(items))
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item Item) {
			defer wg.Done()
			results[item.Index] = p.processOne(ctx, item)
		}(item)
	}
	wg.Wait()

	// Completion order is non-deterministic; re-sort defensively even
	// though results are written by index.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FileIndex < results[j].FileIndex
	})

	successful := 0
	for _, r := range results {
		if r.Outcome.Succeeded() {
			successful++
		}
	}

	resp := &Response{
		Results:               results,
		TotalFiles:            len(results),
		Successful:            successful,
		Failed:                len(results) - successful,
		TotalProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	log.Info().
		Int("total", resp.TotalFiles).
		Int("successful", resp.Successful).
		Int("failed", resp.Failed).
		Dur("duration", time.Since(start)).
		Msg("Batch processed")
	return resp, nil
}

// processOne handles a single item inside its isolation boundary. Panics
// degrade to an INTERNAL_ERROR entry for the item.
func (p *Processor) processOne(ctx context.Context, item Item) (result FileResult) {
	fileType := filehandler.Classify(item.ContentType)
	result = FileResult{
		FileName:  item.Name,
		FileIndex: item.Index,
		FileType:  fileType,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("file", item.Name).Interface("panic", r).Msg("Unexpected failure processing batch item")
			result.Outcome = models.Failure(fmt.Sprintf("unexpected failure: %v", r), analysis.CodeInternalError)
		}
	}()

	if fileType == filehandler.KindUnknown {
		result.Outcome = models.Failure(
			fmt.Sprintf("unsupported file type: %s", item.ContentType),
			analysis.CodeUnsupportedType)
		return result
	}

	if err := p.Gate.Acquire(ctx, 1); err != nil {
		result.Outcome = models.FailureFrom(err)
		return result
	}
	defer p.Gate.Release(1)

	var (
		metadata any
		err      error
	)
	if fileType == filehandler.KindImage {
		metadata, err = pipeline.AnalyzeImage(ctx, p.Service, item.Data, item.Name, item.ContentType)
	} else {
		metadata, err = pipeline.AnalyzeAudio(ctx, p.Service, item.Data, item.Name, item.ContentType)
	}
	if err != nil {
		result.Outcome = models.FailureFrom(err)
		return result
	}
	result.Outcome = models.Success(metadata)
	return result
}
