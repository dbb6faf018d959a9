package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Azure Content Understanding custom analyzer identifiers.
const (
	imageAnalyzerID = "imageMetadataExtractor"
	audioAnalyzerID = "audioMetadataExtractor"

	apiVersion = "2025-05-01-preview"
)

const (
	defaultMaxRetries       = 3
	defaultPollInterval     = 2 * time.Second
	defaultOperationTimeout = 5 * time.Minute
)

// Status codes eligible for retry. Anything else fails immediately.
var transientStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

// AzureConfig carries the settings needed to reach the Content
// Understanding service.
type AzureConfig struct {
	Endpoint         string
	Key              string
	MaxRetries       int           // retries after the first attempt; <=0 means the default of 3
	PollInterval     time.Duration // delay between operation status polls
	OperationTimeout time.Duration // ceiling for one analyze-and-poll cycle
}

// AzureClient implements Service against the Azure Content Understanding
// REST API: submit the bytes, then poll the returned operation URL to a
// terminal state. A fresh HTTP client is built per attempt so no connection
// state leaks between retries.
type AzureClient struct {
	endpoint         string
	key              string
	maxRetries       int
	pollInterval     time.Duration
	operationTimeout time.Duration

	newClient func() *http.Client
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ Service = (*AzureClient)(nil)

// NewAzureClient validates the configuration and returns a ready client.
// Missing endpoint or key fails here, not on the first call.
func NewAzureClient(cfg AzureConfig) (*AzureClient, error) {
	if cfg.Endpoint == "" || cfg.Key == "" {
		return nil, NewError(CodeMissingConfig, "content understanding endpoint and key are required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	return &AzureClient{
		endpoint:         strings.TrimRight(cfg.Endpoint, "/"),
		key:              cfg.Key,
		maxRetries:       cfg.MaxRetries,
		pollInterval:     cfg.PollInterval,
		operationTimeout: cfg.OperationTimeout,
		newClient:        func() *http.Client { return &http.Client{} },
		sleep:            sleepContext,
	}, nil
}

// AnalyzeImage analyzes an image and returns structured metadata.
func (c *AzureClient) AnalyzeImage(ctx context.Context, data []byte, contentType string) (*ImageResult, error) {
	result, err := c.analyzeWithRetry(ctx, data, contentType, imageAnalyzerID)
	if err != nil {
		return nil, err
	}
	return parseImageResult(result)
}

// AnalyzeAudio analyzes an audio file and returns structured metadata.
func (c *AzureClient) AnalyzeAudio(ctx context.Context, data []byte, contentType string) (*AudioResult, error) {
	result, err := c.analyzeWithRetry(ctx, data, contentType, audioAnalyzerID)
	if err != nil {
		return nil, err
	}
	return parseAudioResult(result)
}

// httpStatusError is an unsuccessful HTTP status from the remote service,
// kept separate from transport errors because only status-based failures
// are candidates for retry classification.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("content understanding returned HTTP %d: %s", e.status, e.body)
}

// operationFailedError is a long-running operation that reached the
// terminal "Failed" state. Not retryable.
type operationFailedError struct {
	message string
}

func (e *operationFailedError) Error() string {
	return e.message
}

// analyzeWithRetry submits the payload with exponential-backoff retry for
// transient statuses (429, 503). Each attempt runs on its own HTTP client.
func (c *AzureClient) analyzeWithRetry(ctx context.Context, data []byte, contentType, analyzerID string) (*analyzeResult, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, err := c.analyzeOnce(ctx, data, contentType, analyzerID)
		if err == nil {
			log.Info().
				Str("analyzer", analyzerID).
				Int("attempt", attempt+1).
				Msg("Analysis complete")
			return result, nil
		}

		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			if transientStatus[statusErr.status] {
				if attempt < c.maxRetries {
					wait := time.Duration(1<<attempt) * time.Second
					log.Warn().
						Int("status", statusErr.status).
						Int("attempt", attempt+1).
						Int("max_retries", c.maxRetries).
						Dur("wait", wait).
						Msg("Transient analysis error, retrying")
					if serr := c.sleep(ctx, wait); serr != nil {
						return nil, NewError(CodeServiceRequestError, serr.Error())
					}
					continue
				}
				return nil, NewError(CodeMaxRetriesExceeded, fmt.Sprintf("failed after %d retries", c.maxRetries))
			}

			log.Error().
				Int("status", statusErr.status).
				Str("analyzer", analyzerID).
				Msg("Non-retryable analysis service error")
			return nil, NewError(HTTPStatusCode(statusErr.status), statusErr.Error())
		}

		var failErr *operationFailedError
		if errors.As(err, &failErr) {
			return nil, NewError(CodeAnalysisFailed, failErr.message)
		}

		log.Error().Err(err).Str("analyzer", analyzerID).Msg("Analysis service request error")
		return nil, NewError(CodeServiceRequestError, err.Error())
	}

	return nil, NewError(CodeMaxRetriesExceeded, fmt.Sprintf("failed after %d retries", c.maxRetries))
}

// analyzeOnce runs one full analyze-and-poll cycle on a fresh client.
func (c *AzureClient) analyzeOnce(ctx context.Context, data []byte, contentType, analyzerID string) (*analyzeResult, error) {
	client := c.newClient()
	defer client.CloseIdleConnections()

	operationURL, err := c.beginAnalyze(ctx, client, data, contentType, analyzerID)
	if err != nil {
		return nil, err
	}
	return c.pollOperation(ctx, client, operationURL)
}

// beginAnalyze submits the binary payload and returns the operation URL to poll.
func (c *AzureClient) beginAnalyze(ctx context.Context, client *http.Client, data []byte, contentType, analyzerID string) (string, error) {
	url := fmt.Sprintf("%s/contentunderstanding/analyzers/%s:analyze?api-version=%s", c.endpoint, analyzerID, apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", &httpStatusError{status: resp.StatusCode, body: readBodySnippet(resp.Body)}
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("analyze response missing Operation-Location header")
	}
	io.Copy(io.Discard, resp.Body)
	return operationURL, nil
}

// pollOperation polls the operation URL until it reaches a terminal state.
func (c *AzureClient) pollOperation(ctx context.Context, client *http.Client, operationURL string) (*analyzeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.operationTimeout)
	defer cancel()

	for {
		op, err := c.fetchOperation(ctx, client, operationURL)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(op.Status) {
		case "succeeded":
			if op.Result == nil {
				return &analyzeResult{}, nil
			}
			return op.Result, nil
		case "failed":
			message := op.errorMessage()
			if message == "" {
				message = "analysis operation reported failure"
			}
			return nil, &operationFailedError{message: message}
		}

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
}

func (c *AzureClient) fetchOperation(ctx context.Context, client *http.Client, operationURL string) (*analyzeOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode, body: readBodySnippet(resp.Body)}
	}

	var op analyzeOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("decoding operation status: %w", err)
	}
	return &op, nil
}

func readBodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
