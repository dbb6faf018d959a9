package webhookjob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// MaxDownloadBytes is the hard per-file download cap. Downloads exceeding
// it are aborted, never truncated.
const MaxDownloadBytes = 200 * 1024 * 1024

// DefaultDownloadTimeout bounds one remote fetch.
const DefaultDownloadTimeout = 60 * time.Second

// Downloader fetches a remote file reference, returning its bytes and
// content type.
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) (data []byte, contentType string, err error)
}

// HTTPDownloader fetches http(s) URLs with a fixed timeout and the global
// size cap.
type HTTPDownloader struct {
	Timeout time.Duration
}

// Fetch downloads the URL, following redirects.
func (d *HTTPDownloader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download returned HTTP %d", resp.StatusCode)
	}

	body, err := readCapped(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, contentTypeOf(resp.Header.Get("Content-Type")), nil
}

// S3Downloader serves s3://bucket/key references through the AWS SDK.
type S3Downloader struct {
	Client *s3.Client
}

// Fetch reads the object addressed by an s3:// URL.
func (d *S3Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", err
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, "", fmt.Errorf("invalid s3 reference %q, want s3://bucket/key", rawURL)
	}

	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Downloading from S3")
	result, err := d.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("s3 GetObject: %w", err)
	}
	defer result.Body.Close()

	body, err := readCapped(result.Body)
	if err != nil {
		return nil, "", err
	}
	return body, contentTypeOf(aws.ToString(result.ContentType)), nil
}

// SchemeDownloader routes a reference to the downloader matching its URL
// scheme.
type SchemeDownloader struct {
	HTTP Downloader
	S3   Downloader
}

func (d *SchemeDownloader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", err
	}
	switch u.Scheme {
	case "http", "https":
		return d.HTTP.Fetch(ctx, rawURL)
	case "s3":
		if d.S3 == nil {
			return nil, "", fmt.Errorf("s3 references are not configured")
		}
		return d.S3.Fetch(ctx, rawURL)
	default:
		return nil, "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
}

func readCapped(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxDownloadBytes {
		return nil, fmt.Errorf("downloaded file exceeds the %d byte size limit", MaxDownloadBytes)
	}
	return body, nil
}

func contentTypeOf(header string) string {
	if header == "" {
		return "application/octet-stream"
	}
	if mediaType, _, err := mime.ParseMediaType(header); err == nil {
		return mediaType
	}
	return strings.TrimSpace(strings.Split(header, ";")[0])
}
