// Package analysis wraps the Azure Content Understanding service behind a
// small capability interface. It owns the retry/backoff policy, error
// classification, and the normalization of the provider's free-form output
// into strict result records.
package analysis

import "context"

// ImageResult is the normalized analysis output for an image.
// Every field is non-empty once normalization succeeds.
type ImageResult struct {
	Description string
	Keywords    []string
	Caption     string
}

// AudioResult is the normalized analysis output for an audio file.
type AudioResult struct {
	Description string
	Keywords    []string
	Summary     string
}

// Service is the analysis capability injected into orchestrators. The two
// operations never retain the submitted bytes past a single call, so a
// test double can substitute the remote service without touching any
// orchestration logic.
type Service interface {
	AnalyzeImage(ctx context.Context, data []byte, contentType string) (*ImageResult, error)
	AnalyzeAudio(ctx context.Context, data []byte, contentType string) (*AudioResult, error)
}
