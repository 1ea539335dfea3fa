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

	"github.com/studiumlab/studium/internal/api/handlers"
	"github.com/studiumlab/studium/internal/config"
	"github.com/studiumlab/studium/internal/database"
	"github.com/studiumlab/studium/internal/openai"
	"github.com/studiumlab/studium/internal/pricing"
	"github.com/studiumlab/studium/internal/repository"
	"github.com/studiumlab/studium/internal/server"
	"github.com/studiumlab/studium/internal/service"
	"github.com/studiumlab/studium/internal/storage"
	"github.com/studiumlab/studium/internal/telemetry"
	"github.com/studiumlab/studium/internal/vector"
	"github.com/studiumlab/studium/internal/websearch"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the studium API server on the specified port",
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

	if cfg.SentryDSN != "" {
		// Default to 10% sampling in production, 100% in development
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
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
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

	if !cfg.HasOpenRouter() {
		return fmt.Errorf("STUDIUM_OPENROUTER_API_KEY is required")
	}

	sessionRepo := repository.NewSessionRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var index vector.Index
	switch cfg.VectorBackend {
	case "qdrant":
		index = vector.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantAPIKey)
		log.Printf("vector index: qdrant at %s", cfg.QdrantURL)
	case "pgvector":
		index = vector.NewPgvectorIndex(pool)
		log.Println("vector index: pgvector")
	default:
		return fmt.Errorf("unknown vector backend %q (want pgvector or qdrant)", cfg.VectorBackend)
	}

	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:         cfg.OpenRouterAPIKey,
		BaseURL:        cfg.OpenRouterBaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
	})

	var searcher websearch.Searcher
	if cfg.HasSearch() {
		searcher = websearch.NewClient(cfg.SearchBaseURL, cfg.SearchAPIKey)
		log.Println("web search enabled")
	}

	ingestSvc := service.NewIngestService(llm, index)
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
		ingestSvc = ingestSvc.WithArchiver(s3Client)
	}

	retrievalSvc := service.NewRetrievalService(llm, index, searcher)
	pricer := pricing.NewClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey)

	chatSvc := service.NewChatService(
		sessionRepo,
		messageRepo,
		assignmentRepo,
		settingsRepo,
		agentRepo,
		llm,
		pricer,
		retrievalSvc,
		txRunner,
	)
	settingsSvc := service.NewSettingsService(settingsRepo, ingestSvc)

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:     handlers.NewChatHandler(chatSvc),
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc),
		SettingsHandler: handlers.NewSettingsHandler(settingsSvc),
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

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
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
