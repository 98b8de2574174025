package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/api/handlers"
	"github.com/cloo-solutions/knowctx/internal/config"
	"github.com/cloo-solutions/knowctx/internal/database"
	"github.com/cloo-solutions/knowctx/internal/jobs"
	"github.com/cloo-solutions/knowctx/internal/metrics"
	"github.com/cloo-solutions/knowctx/internal/repository"
	"github.com/cloo-solutions/knowctx/internal/server"
	"github.com/cloo-solutions/knowctx/internal/service"
	"github.com/cloo-solutions/knowctx/internal/storage"
	"github.com/cloo-solutions/knowctx/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the knowctx retrieval and context API on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides KNOWCTX_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	flush := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, log)
	defer flush()

	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsDir, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	retrievalCfg, err := config.LoadRetrievalFile(cfg.RetrievalConfigFile)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	chunkRepo := repository.NewChunkRepository(rt.pool)
	factRepo := repository.NewFactRepository(rt.pool)
	structureRepo := repository.NewStructureRepository(rt.pool)
	logRepo := repository.NewRetrievalLogRepository(rt.pool)

	var (
		archive service.TraceArchive
		traces  handlers.TraceLocator
	)
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
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
		log.Info("trace archive ready", zap.String("bucket", cfg.S3Bucket))
		traceArchive := storage.NewTraceArchive(s3Client)
		archive = traceArchive
		traces = traceArchive
	}

	provider, generator := rt.languageModels()
	classifier := service.NewQueryClassifier(provider, log.Named("classifier"))
	retrievalSvc := service.NewRetrievalServiceWithConfig(classifier, rt.embedder, chunkRepo, factRepo, retrievalCfg, log.Named("retrieval"))
	resolver := service.NewStructureResolver(structureRepo, generator, retrievalCfg, log.Named("structure"))
	assembler := service.NewContextAssembler(retrievalCfg, log.Named("assembler"))
	pipeline := service.NewGenerationPipeline(retrievalSvc, resolver, assembler, logRepo, archive, log.Named("pipeline"))

	router := server.NewRouter(server.RouterConfig{
		Logger:           log,
		RetrievalHandler: handlers.NewRetrievalHandler(retrievalSvc),
		StructureHandler: handlers.NewStructureHandler(resolver),
		ContextHandler:   handlers.NewContextHandler(pipeline, traces),
		LogHandler:       handlers.NewLogHandler(logRepo),
	})

	// Chunks stored without a vector only get one once a real provider is
	// configured.
	if cfg.HasOpenAI() && cfg.EmbeddingBackfillInterval > 0 {
		backfill := jobs.NewEmbeddingBackfill(
			repository.NewEmbeddingBackfillRepository(rt.pool),
			rt.embedder,
			cfg.EmbeddingBackfillBatch,
			log.Named("backfill"),
		)
		worker := jobs.NewWorker(backfill, cfg.EmbeddingBackfillInterval, log.Named("worker"))
		workerCtx, stopWorker := context.WithCancel(ctx)
		go worker.Start(workerCtx)
		defer func() {
			stopWorker()
			worker.Wait()
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
