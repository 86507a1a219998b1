// Package admin holds the daemon-side commands: serving the API and running
// schema migrations.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reverb-labs/recall/internal/api/handlers"
	"github.com/reverb-labs/recall/internal/config"
	"github.com/reverb-labs/recall/internal/database"
	"github.com/reverb-labs/recall/internal/embedding"
	"github.com/reverb-labs/recall/internal/jobs"
	"github.com/reverb-labs/recall/internal/llm"
	"github.com/reverb-labs/recall/internal/rag"
	"github.com/reverb-labs/recall/internal/repository"
	"github.com/reverb-labs/recall/internal/server"
	"github.com/reverb-labs/recall/internal/service"
	"github.com/reverb-labs/recall/internal/storage"
	"github.com/reverb-labs/recall/internal/telemetry"
	"github.com/reverb-labs/recall/internal/transcribe"
	"github.com/reverb-labs/recall/internal/vectorstore"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the recall API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg)

	if cfg.SentryDSN != "" {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.WithError(err).Warn("telemetry init failed, continuing without tracing")
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasDatabase() {
		return fmt.Errorf("RECALL_DATABASE_URL is required")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	var store vectorstore.Store = chunkRepo

	var provider embedding.Provider
	var enricher service.Enricher
	var scorer rag.RelevanceScorer
	var transcriber transcribe.Transcriber = transcribe.Disabled{}
	if cfg.HasOpenAI() {
		provider = embedding.NewOpenAIProvider(embedding.Config{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      openai.EmbeddingModel(cfg.EmbeddingModel),
			Dimensions: cfg.EmbeddingDims,
		}, log)
		chat := llm.NewOpenAIChat(cfg.OpenAIAPIKey, cfg.ChatModel)
		if cfg.EnrichChunks {
			enricher = llm.NewEnricher(chat, log)
		}
		scorer = llm.NewScorer(chat, log)
		transcriber = transcribe.NewWhisper(cfg.OpenAIAPIKey)
	} else {
		log.Warn("no OpenAI key configured, using deterministic embeddings")
		provider = embedding.NewDeterministicProvider(cfg.EmbeddingDims)
	}

	chunker := rag.NewChunker(rag.ChunkConfig{
		TokenBudget:   cfg.ChunkTokenBudget,
		OverlapBudget: cfg.ChunkOverlapBudget,
		MaxChunks:     200,
	}, nil, log)

	indexer := service.NewIndexer(chunker, provider, store, enricher, log)
	searcher := service.NewSearcher(provider, store, rag.NewReranker(scorer, rag.DefaultRerankConfig(), log), log)
	queue := jobs.NewIndexQueue(indexer, cfg.IndexWorkers, cfg.IndexQueueDepth, log)
	defer queue.Close()

	var objects handlers.RecordingStore
	if cfg.HasS3() {
		s3Client, err := storage.NewClient(ctx, storage.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.WithField("bucket", cfg.S3Bucket).Info("recording storage ready")
		objects = s3Client
	}

	router := server.NewRouter(server.RouterConfig{
		APIKeys:          cfg.APIKeySet(),
		Log:              log,
		SearchHandler:    handlers.NewSearchHandler(searcher),
		SessionHandler:   handlers.NewSessionHandler(sessionRepo, queue, indexer),
		DocumentHandler:  handlers.NewDocumentHandler(indexer, queue),
		RecordingHandler: handlers.NewRecordingHandler(sessionRepo, objects, transcriber, queue),
		HealthHandler:    handlers.NewHealthHandler(store),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.Environment != "development" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
