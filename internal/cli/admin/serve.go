// Package admin implements the faqlined daemon commands: serve and tenant
// management.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/faqline/faqline/internal/api/handlers"
	"github.com/faqline/faqline/internal/cache"
	"github.com/faqline/faqline/internal/config"
	"github.com/faqline/faqline/internal/database"
	"github.com/faqline/faqline/internal/domain"
	"github.com/faqline/faqline/internal/jobs"
	"github.com/faqline/faqline/internal/llm"
	"github.com/faqline/faqline/internal/metrics"
	"github.com/faqline/faqline/internal/repository"
	"github.com/faqline/faqline/internal/retrieval"
	"github.com/faqline/faqline/internal/server"
	"github.com/faqline/faqline/internal/storage"
	"github.com/faqline/faqline/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the answer engine server",
		Long:  "Start the faqline answer engine on the specified port",
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

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.InitSentry(telemetry.SentryConfig{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	tenantRepo := repository.NewTenantRepository(pool)
	itemRepo := repository.NewFAQItemRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)
	decisionRepo := repository.NewDecisionLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	m := metrics.New("faqline")
	resultCache := cache.New(cfg.CacheTTL)

	recorder := telemetry.NewRecorder(decisionRepo, m)
	defer recorder.Close()

	var embedder llm.Embedder
	var judge llm.Judge
	var general llm.Judge
	if cfg.HasOpenAI() {
		client := llm.NewClient(cfg.OpenAIAPIKey)
		embedder = client
		judge = client
		general = client
	} else {
		// No provider key: the semantic channel and the judge degrade per
		// request instead of crashing at startup. Lexical-only answering
		// still works.
		log.Println("no OpenAI key configured, semantic channel and judge disabled")
		unavailable := &unavailableLLM{}
		embedder = unavailable
		judge = unavailable
	}

	generator := retrieval.NewGenerator(itemRepo, embedder, m, retrieval.GeneratorConfig{
		StrictAND:    cfg.LexicalStrictAND,
		EmbedTimeout: cfg.EmbedTimeout,
	})
	disambiguator := retrieval.NewDisambiguator(judge, m, retrieval.DisambiguatorConfig{
		Timeout:   cfg.JudgeTimeout,
		RatePerS:  cfg.JudgeRatePerS,
		RateBurst: cfg.JudgeRateBurst,
	})
	engine := retrieval.NewEngine(
		tenantRepo,
		generator,
		disambiguator,
		general,
		resultCache,
		recorder,
		m,
		retrieval.EngineConfig{
			Thresholds: retrieval.Thresholds{
				ThetaHigh: cfg.ThetaHigh,
				ThetaLow:  cfg.ThetaLow,
				DeltaMin:  cfg.DeltaMin,
			},
			GeneralTimeout: 5 * time.Second,
		},
	)

	var workers []*jobs.Worker
	if cfg.HasOpenAI() {
		processor := jobs.NewEmbeddingWorker(jobRepo, itemRepo, embedder, resultCache)
		worker := jobs.NewWorker("embedding_backfill", processor, 10*time.Second, m)
		go worker.Start(ctx)
		workers = append(workers, worker)
		log.Println("embedding worker started")
	}

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
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

		archiver := jobs.NewArchiveWorker(decisionRepo, s3Client)
		worker := jobs.NewWorker("decision_archive", archiver, cfg.ArchiveInterval, m)
		go worker.Start(ctx)
		workers = append(workers, worker)
		log.Println("decision archive worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		AskHandler:     handlers.NewAskHandler(engine, m),
		PublishHandler: handlers.NewPublishHandler(tenantRepo, txRunner, resultCache),
		Metrics:        m,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	for _, worker := range workers {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// unavailableLLM stands in when no provider key is configured. Every call
// fails with the provider-unavailable error, which the pipeline degrades on.
type unavailableLLM struct{}

func (u *unavailableLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.ErrEmbeddingUnavailable
}

func (u *unavailableLLM) Pick(ctx context.Context, req llm.PickRequest) (*llm.Verdict, error) {
	return nil, domain.ErrJudgeUnavailable
}

func (u *unavailableLLM) Complete(ctx context.Context, system, user string) (string, error) {
	return "", domain.ErrJudgeUnavailable
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
