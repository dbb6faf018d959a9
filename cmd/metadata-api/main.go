package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/medienwerk/metadata-api/internal/analysis"
	"github.com/medienwerk/metadata-api/internal/batch"
	"github.com/medienwerk/metadata-api/internal/config"
	"github.com/medienwerk/metadata-api/internal/logging"
	"github.com/medienwerk/metadata-api/internal/server"
	"github.com/medienwerk/metadata-api/internal/webhookjob"
)

// CLI flags
var (
	configFlag string
	portFlag   int
)

var rootCmd = &cobra.Command{
	Use:   "metadata-api",
	Short: "Metadata extraction API for image and audio files",
	Long: `Metadata API runs an HTTP server that extracts descriptive metadata
(descriptions, keywords, captions, summaries) from uploaded or remotely
referenced image and audio files using Azure AI Content Understanding.

Examples:
  metadata-api
  metadata-api --config /etc/metadata-api/config.yaml
  metadata-api --port 9090`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&configFlag, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}
	logging.Init(cfg.LogLevel)

	// Fail fast on missing provider credentials.
	analyzer, err := analysis.NewAzureClient(analysis.AzureConfig{
		Endpoint:     cfg.Azure.Endpoint,
		Key:          cfg.Azure.Key,
		MaxRetries:   cfg.Azure.MaxRetries,
		PollInterval: cfg.Azure.PollInterval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create analysis client")
	}

	// One gate for the whole process: batch items and webhook references
	// compete for the same analysis slots.
	gate := semaphore.NewWeighted(int64(cfg.MaxConcurrentAnalyses))

	downloader := &webhookjob.SchemeDownloader{
		HTTP: &webhookjob.HTTPDownloader{Timeout: cfg.Webhook.DownloadTimeout},
	}
	if cfg.Webhook.EnableS3 {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS config")
		}
		downloader.S3 = &webhookjob.S3Downloader{Client: s3.NewFromConfig(awsCfg)}
		log.Info().Msg("S3 file references enabled")
	}

	srv := &server.Server{
		Analyzer: analyzer,
		Batch:    &batch.Processor{Service: analyzer, Gate: gate},
		Runner: &webhookjob.Runner{
			Service:         analyzer,
			Downloader:      downloader,
			Gate:            gate,
			CallbackTimeout: cfg.Webhook.CallbackTimeout,
		},
		APIKeys: cfg.Webhook.APIKeys,
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(cfg.Server.AllowedOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	log.Info().
		Int("port", cfg.Server.Port).
		Int("max_concurrent_analyses", cfg.MaxConcurrentAnalyses).
		Msg("Starting metadata API server")

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
