// Vibenavd is the Vibe Navigator daemon.
//
// It runs the full vibe discovery stack in one process: the scrape and
// ingestion pipeline, the Map-Reduce summarizer, the embedding indexer, and
// the RAG query engines, all exposed over HTTP.
//
// Configuration is loaded from an optional YAML file, overridden by
// VIBENAVD_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (embedded NATS, local SQLite, Qdrant on :6334)
//	vibenavd
//
//	# Configure via file and environment
//	VIBENAVD_SERVER_HTTP_PORT=9090 vibenavd -config vibenavd.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/config"
	"github.com/fyrsmithlabs/vibenavd/internal/docstore"
	"github.com/fyrsmithlabs/vibenavd/internal/genai"
	"github.com/fyrsmithlabs/vibenavd/internal/httpapi"
	"github.com/fyrsmithlabs/vibenavd/internal/pipeline"
	"github.com/fyrsmithlabs/vibenavd/internal/rag"
	"github.com/fyrsmithlabs/vibenavd/internal/scrape"
	"github.com/fyrsmithlabs/vibenavd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  vibenavd           Start the vibenavd daemon\n")
			fmt.Fprintf(os.Stderr, "  vibenavd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("vibenavd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Connect infrastructure (SQLite, Qdrant, NATS, model provider)
//  4. Wire the pipeline service into the dispatcher
//  5. Build the RAG engines
//  6. Start the HTTP server
//  7. Graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadWithFile(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
	} else {
		cfg = config.Load()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting vibenavd",
		zap.Int("port", cfg.Server.Port),
		zap.String("collection", cfg.Qdrant.CollectionName),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info("Dependencies initialized",
		zap.Bool("nats_connected", deps.natsConn != nil),
		zap.Bool("embedded_nats", deps.natsServer != nil))

	pipelineSvc, err := pipeline.NewService(
		deps.store,
		deps.index,
		deps.models,
		deps.models,
		deps.dispatcher,
		pipeline.Config{
			MapBatchSize:          cfg.Pipeline.ReviewsPerMapBatch,
			EmbedBatchSize:        cfg.Pipeline.EmbedBatchSize,
			MinReviewTokens:       cfg.Pipeline.MinReviewTokens,
			MaxReviewsPerLocation: cfg.Pipeline.MaxReviewsPerLocation,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline service: %w", err)
	}

	if err := deps.dispatcher.Start(pipelineSvc.HandleTask); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	if cfg.Pipeline.ReprocessOnStart {
		go func() {
			catchupCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			if _, err := pipelineSvc.SummarizeAllPending(catchupCtx); err != nil {
				logger.Error("startup catch-up summarization failed", zap.Error(err))
			}
		}()
	}

	retriever, err := rag.NewRetriever(deps.store, deps.index, deps.models, logger)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}
	conversation, err := rag.NewConversation(retriever, deps.models, logger)
	if err != nil {
		return fmt.Errorf("failed to create conversation engine: %w", err)
	}
	tourPlanner, err := rag.NewTourPlanner(retriever, deps.models, logger)
	if err != nil {
		return fmt.Errorf("failed to create tour planner: %w", err)
	}

	srv, err := httpapi.NewServer(
		deps.store,
		deps.scraper,
		pipelineSvc,
		conversation,
		tourPlanner,
		logger,
		&httpapi.Config{Host: "0.0.0.0", Port: cfg.Server.Port},
	)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// dependencies holds all infrastructure dependencies.
type dependencies struct {
	store      docstore.Store
	index      vectorstore.Index
	models     *genai.OpenAIClient
	scraper    scrape.Scraper
	dispatcher pipeline.Dispatcher
	natsConn   *nats.Conn
	natsServer *natsserver.Server
	logger     *zap.Logger
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if d.dispatcher != nil {
		_ = d.dispatcher.Close()
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.natsServer != nil {
		d.natsServer.Shutdown()
	}
	if d.index != nil {
		_ = d.index.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.logger != nil {
		_ = d.logger.Sync()
	}
}

// initLogger initializes the structured logger.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// initDependencies initializes all infrastructure dependencies.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	store, err := docstore.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	logger.Info("Document store opened", zap.String("path", cfg.Store.Path))

	index, err := vectorstore.NewQdrantIndex(vectorstore.QdrantConfig{
		Host:           cfg.Qdrant.Host,
		Port:           cfg.Qdrant.Port,
		CollectionName: cfg.Qdrant.CollectionName,
		VectorSize:     uint64(cfg.Qdrant.VectorSize),
		UseTLS:         cfg.Qdrant.UseTLS,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	if err := index.EnsureCollection(ctx); err != nil {
		_ = index.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to ensure collection exists: %w", err)
	}

	logger.Info("Vector index ready",
		zap.String("host", cfg.Qdrant.Host),
		zap.String("collection", cfg.Qdrant.CollectionName),
		zap.Int("vector_size", cfg.Qdrant.VectorSize))

	models, err := genai.NewOpenAIClient(genai.Config{
		APIKey:         cfg.GenAI.APIKey,
		BaseURL:        cfg.GenAI.BaseURL,
		ChatModel:      cfg.GenAI.ChatModel,
		EmbeddingModel: cfg.GenAI.EmbeddingModel,
		MaxRetries:     cfg.GenAI.MaxRetries,
		Timeout:        cfg.GenAI.Timeout,
	}, logger)
	if err != nil {
		_ = index.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	scraper, err := scrape.NewSeedScraper(scrape.SeedConfig{
		Dir:        cfg.Scrape.SeedDir,
		MaxResults: cfg.Scrape.MaxResultsPerRun,
	}, logger)
	if err != nil {
		_ = index.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create scraper: %w", err)
	}

	dispatcher, nc, ns, err := initDispatcher(cfg, logger)
	if err != nil {
		_ = index.Close()
		_ = store.Close()
		return nil, err
	}

	return &dependencies{
		store:      store,
		index:      index,
		models:     models,
		scraper:    scraper,
		dispatcher: dispatcher,
		natsConn:   nc,
		natsServer: ns,
		logger:     logger,
	}, nil
}

// initDispatcher creates the stage-handoff dispatcher.
//
// With nats.embedded set, an in-process NATS server is started and the
// dispatcher connects to it, keeping the single-binary deployment. Otherwise
// the configured NATS URL is used; if no broker is reachable the daemon falls
// back to the in-process channel dispatcher so the pipeline still runs.
func initDispatcher(cfg *config.Config, logger *zap.Logger) (pipeline.Dispatcher, *nats.Conn, *natsserver.Server, error) {
	var ns *natsserver.Server
	natsURL := cfg.Nats.URL

	if cfg.Nats.Embedded {
		opts := &natsserver.Options{
			Host:   "127.0.0.1",
			Port:   natsserver.RANDOM_PORT,
			NoLog:  true,
			NoSigs: true,
		}
		server, err := natsserver.NewServer(opts)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create embedded nats server: %w", err)
		}
		go server.Start()
		if !server.ReadyForConnections(5 * time.Second) {
			server.Shutdown()
			return nil, nil, nil, fmt.Errorf("embedded nats server did not become ready")
		}
		ns = server
		natsURL = server.ClientURL()
		logger.Info("Embedded NATS server started", zap.String("url", natsURL))
	}

	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		if ns != nil {
			ns.Shutdown()
			return nil, nil, nil, fmt.Errorf("failed to connect to embedded NATS at %s: %w", natsURL, err)
		}
		logger.Warn("NATS unreachable, using in-process dispatcher",
			zap.String("url", natsURL),
			zap.Error(err))
		return pipeline.NewInProcDispatcher(64, logger), nil, nil, nil
	}

	logger.Info("Connected to NATS", zap.String("url", natsURL))

	dispatcher, err := pipeline.NewNATSDispatcher(nc, logger)
	if err != nil {
		nc.Close()
		if ns != nil {
			ns.Shutdown()
		}
		return nil, nil, nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	return dispatcher, nc, ns, nil
}
