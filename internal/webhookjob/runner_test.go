package webhookjob

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/medienwerk/metadata-api/internal/analysis"
	"github.com/medienwerk/metadata-api/internal/filehandler"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type fakeService struct{}

func (fakeService) AnalyzeImage(ctx context.Context, data []byte, contentType string) (*analysis.ImageResult, error) {
	return &analysis.ImageResult{Description: "an image", Keywords: []string{"image"}, Caption: "img"}, nil
}

func (fakeService) AnalyzeAudio(ctx context.Context, data []byte, contentType string) (*analysis.AudioResult, error) {
	return &analysis.AudioResult{Description: "a recording", Keywords: []string{"audio"}, Summary: "a recording."}, nil
}

// fakeDownloader serves canned responses by URL; unknown URLs fail.
type fakeDownloader struct {
	files map[string][]byte
	types map[string]string
}

func (d *fakeDownloader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	data, ok := d.files[rawURL]
	if !ok {
		return nil, "", errors.New("connection refused")
	}
	return data, d.types[rawURL], nil
}

// callbackRecorder is a callback endpoint that hands the decoded payload to
// the test.
func callbackRecorder(t *testing.T) (*httptest.Server, chan CallbackPayload) {
	t.Helper()
	payloads := make(chan CallbackPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p CallbackPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decoding callback payload: %v", err)
		}
		payloads <- p
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, payloads
}

func newRunner(dl Downloader) *Runner {
	return &Runner{
		Service:         fakeService{},
		Downloader:      dl,
		Gate:            semaphore.NewWeighted(5),
		CallbackTimeout: 2 * time.Second,
	}
}

func waitForPayload(t *testing.T, payloads chan CallbackPayload) CallbackPayload {
	t.Helper()
	select {
	case p := <-payloads:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no callback delivered within 5s")
		return CallbackPayload{}
	}
}

func TestRunCompletedJob(t *testing.T) {
	srv, payloads := callbackRecorder(t)
	dl := &fakeDownloader{
		files: map[string][]byte{
			"https://cdn.example.com/a.jpg": jpegBytes,
			"https://cdn.example.com/b.jpg": jpegBytes,
		},
		types: map[string]string{
			"https://cdn.example.com/a.jpg": "image/jpeg",
			"https://cdn.example.com/b.jpg": "image/jpeg",
		},
	}

	r := newRunner(dl)
	r.run(context.Background(), "job-1", Request{
		Files: []FileReference{
			{URL: "https://cdn.example.com/a.jpg", FileType: filehandler.KindImage},
			{URL: "https://cdn.example.com/b.jpg", FileType: filehandler.KindImage, ReferenceID: "ref-b"},
		},
		CallbackURL: srv.URL,
	})

	p := waitForPayload(t, payloads)
	if p.JobID != "job-1" {
		t.Errorf("JobID = %q", p.JobID)
	}
	if p.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", p.Status)
	}
	if p.TotalFiles != 2 || p.Successful != 2 || p.Failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/2/0", p.TotalFiles, p.Successful, p.Failed)
	}
}

func TestRunPartialJobWithDownloadFailure(t *testing.T) {
	srv, payloads := callbackRecorder(t)
	dl := &fakeDownloader{
		files: map[string][]byte{"https://cdn.example.com/ok.jpg": jpegBytes},
		types: map[string]string{"https://cdn.example.com/ok.jpg": "image/jpeg"},
	}

	r := newRunner(dl)
	r.run(context.Background(), "job-2", Request{
		Files: []FileReference{
			{URL: "https://cdn.example.com/ok.jpg", FileType: filehandler.KindImage},
			{URL: "https://cdn.example.com/missing.jpg", FileType: filehandler.KindImage},
		},
		CallbackURL: srv.URL,
	})

	p := waitForPayload(t, payloads)
	if p.Status != StatusPartial {
		t.Errorf("Status = %q, want partial", p.Status)
	}
	if p.Successful != 1 || p.Failed != 1 {
		t.Errorf("counts = %d/%d, want 1/1", p.Successful, p.Failed)
	}
}

func TestRunFailedJobReportsDownloadError(t *testing.T) {
	dl := &fakeDownloader{}

	var raw json.RawMessage
	captured := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decoding callback body: %v", err)
		}
		close(captured)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	r := newRunner(dl)
	r.run(context.Background(), "job-3", Request{
		Files: []FileReference{
			{URL: "https://cdn.example.com/gone.jpg", FileType: filehandler.KindImage, ReferenceID: "ref-1"},
		},
		CallbackURL: srv.URL,
	})

	select {
	case <-captured:
	case <-time.After(5 * time.Second):
		t.Fatal("no callback delivered within 5s")
	}

	var p struct {
		Status  string `json:"status"`
		Results []struct {
			ReferenceID string `json:"reference_id"`
			FileURL     string `json:"file_url"`
			Status      string `json:"status"`
			Error       struct {
				ErrorCode string `json:"error_code"`
				Detail    string `json:"detail"`
			} `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", p.Status)
	}
	res := p.Results[0]
	if res.Status != "error" {
		t.Errorf("result status = %q, want error", res.Status)
	}
	if res.Error.ErrorCode != analysis.CodeDownloadError {
		t.Errorf("error code = %q, want DOWNLOAD_ERROR", res.Error.ErrorCode)
	}
	if res.ReferenceID != "ref-1" {
		t.Errorf("reference_id = %q, want ref-1", res.ReferenceID)
	}
}

func TestRunSwallowsCallbackDeliveryFailure(t *testing.T) {
	dl := &fakeDownloader{
		files: map[string][]byte{"https://cdn.example.com/a.jpg": jpegBytes},
		types: map[string]string{"https://cdn.example.com/a.jpg": "image/jpeg"},
	}

	r := newRunner(dl)
	// Nothing listens on this port; run must return without error or panic.
	r.run(context.Background(), "job-4", Request{
		Files:       []FileReference{{URL: "https://cdn.example.com/a.jpg", FileType: filehandler.KindImage}},
		CallbackURL: "http://127.0.0.1:1/callback",
	})
}

func TestHTTPDownloaderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/file.jpg":
			w.Header().Set("Content-Type", "image/jpeg; charset=binary")
			w.Write(jpegBytes)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	dl := &HTTPDownloader{Timeout: 2 * time.Second}

	data, contentType, err := dl.Fetch(context.Background(), srv.URL+"/file.jpg")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != string(jpegBytes) {
		t.Error("downloaded bytes differ from served bytes")
	}
	if contentType != "image/jpeg" {
		t.Errorf("contentType = %q, want bare media type", contentType)
	}

	if _, _, err := dl.Fetch(context.Background(), srv.URL+"/nope.jpg"); err == nil {
		t.Error("404 download should fail")
	}
}

func TestSchemeDownloaderRouting(t *testing.T) {
	httpDL := &fakeDownloader{
		files: map[string][]byte{"http://example.com/a": []byte("x")},
		types: map[string]string{"http://example.com/a": "image/jpeg"},
	}
	dl := &SchemeDownloader{HTTP: httpDL}

	if _, _, err := dl.Fetch(context.Background(), "http://example.com/a"); err != nil {
		t.Errorf("http fetch: %v", err)
	}
	if _, _, err := dl.Fetch(context.Background(), "s3://bucket/key"); err == nil {
		t.Error("s3 fetch without configured S3 downloader should fail")
	}
	if _, _, err := dl.Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Error("unsupported scheme should fail")
	}
}

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		rawURL   string
		fallback string
		want     string
	}{
		{"https://cdn.example.com/photos/summer.jpg", "image", "summer.jpg"},
		{"https://cdn.example.com/", "image", "image"},
		{"https://cdn.example.com", "audio", "audio"},
		{"s3://bucket/dir/track.mp3", "audio", "track.mp3"},
	}

	for _, tt := range tests {
		if got := fileNameFromURL(tt.rawURL, tt.fallback); got != tt.want {
			t.Errorf("fileNameFromURL(%q) = %q, want %q", tt.rawURL, got, tt.want)
		}
	}
}
