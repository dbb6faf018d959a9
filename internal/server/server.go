// Package server exposes the metadata extraction API over HTTP: single-file
// image and audio analysis, bounded batch analysis, and asynchronous
// webhook jobs for remotely referenced files.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/medienwerk/metadata-api/internal/analysis"
	"github.com/medienwerk/metadata-api/internal/batch"
	"github.com/medienwerk/metadata-api/internal/webhookjob"
)

// Server wires the HTTP surface to the analysis stack.
type Server struct {
	Analyzer analysis.Service
	Batch    *batch.Processor
	Runner   *webhookjob.Runner

	// APIKeys guards the webhook endpoint. Empty means the endpoint
	// rejects everything.
	APIKeys []string
}

// Router builds the chi router with CORS, correlation IDs, and request
// logging applied to every route.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(withCorrelationID)
	r.Use(withLogging)

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze/image", s.handleAnalyzeImage)
		r.Post("/analyze/audio", s.handleAnalyzeAudio)
		r.Post("/analyze/batch", s.handleAnalyzeBatch)
		r.With(s.requireAPIKey).Post("/webhook/analyze", s.handleWebhookAnalyze)
	})

	return r
}
