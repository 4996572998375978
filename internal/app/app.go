package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsqio/go-nsq"

	"marketlens/features/document"
	"marketlens/features/job"
	"marketlens/features/mcp"
	"marketlens/features/research"
	"marketlens/features/stats"
	"marketlens/internal/adapter/gemini"
	"marketlens/internal/adapter/tavily"
	"marketlens/internal/config"
	"marketlens/internal/indexer"
	"marketlens/internal/middleware"
	"marketlens/internal/pipeline"
	"marketlens/internal/retrieval"
	"marketlens/internal/retry"
	"marketlens/internal/settings"
	"marketlens/internal/text"
	"marketlens/internal/vector"
	"marketlens/internal/worker"
)

// VectorStore is the chunk store every component shares.
type VectorStore interface {
	Insert(ctx context.Context, records []vector.Record) error
	Query(ctx context.Context, vec []float32, k int) ([]vector.Match, error)
	Count(ctx context.Context) (int, error)
	DeleteByDocID(ctx context.Context, docID string) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler       http.Handler
	Indexer       *indexer.Indexer
	IndexConsumer *worker.IndexConsumer
	Orchestrator  *pipeline.Orchestrator
	Research      *research.Service

	cfg     *config.Config
	taskPub TaskPublisher
	closers []func() error
}

func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	if db == nil || vecStore == nil {
		return nil, errors.New("app: db and vector store are required")
	}
	if logger != nil {
		slog.SetDefault(logger)
	}
	policy := RetryPolicy(cfg)

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo).WithDefaults(settings.Settings{
		MaxWebResults: cfg.MaxWebResults,
		MaxDocChunks:  cfg.MaxDocChunks,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		TavilyAPIKey:  cfg.TavilyAPIKey,
	})
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: keys are read from settings on every call
	geminiKeys := gemini.SettingsKey{Svc: settingsService}
	embedder := gemini.NewEmbedder(geminiKeys, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	queryEmbedder := gemini.NewCachedEmbedder(embedder, time.Duration(cfg.EmbeddingCacheTTL)*time.Minute)

	searcher := tavily.NewClient(tavily.SettingsKey{Svc: settingsService}, cfg.TavilyRatePerSecond)
	if cfg.TavilyBaseURL != "" {
		searcher.SetBaseURL(cfg.TavilyBaseURL)
	}

	// Feature: Documents and indexing
	docRepo := document.NewPostgresRepo(db)
	ix := indexer.New(text.NewExtractor(), embedder, vecStore, docRepo, policy)
	docService := document.NewService(docRepo, vecStore, taskPub, cfg.DocumentFolder)
	docHandler := document.NewHandler(docService)

	// Retrieval and pipeline
	queryLogger := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	retrievalService := retrieval.NewService(queryEmbedder, vecStore, docRepo, retrieval.Options{
		Dimension:      cfg.EmbeddingDimension,
		MaxChunkLength: cfg.MaxChunkLength,
	}, queryLogger)

	orchestrator := pipeline.New(searcher, retrievalService, settingsService, pipeline.Options{
		Defaults:       pipeline.Caps{MaxWebResults: cfg.MaxWebResults, MaxDocChunks: cfg.MaxDocChunks},
		Policy:         policy,
		ParallelGather: cfg.ParallelGather,
	})

	// Feature: Research drafts
	researchService := research.NewService(research.NewPostgresRepo(db), orchestrator)
	closers := []func() error{embedder.Close, queryLogger.Close}
	if cfg.ReviseWithLLM {
		completer := gemini.NewCompleter(geminiKeys, cfg.GeminiModelName)
		researchService.WithReviser(completer, policy)
		closers = append(closers, completer.Close)
	}
	researchHandler := research.NewHandler(researchService)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(docRepo, vecStore, researchService, jobRepo)

	// Feature: MCP
	mcpHandler := mcp.NewHandler(orchestrator, retrievalService, docService)

	// Worker
	attempts := cfg.RetryMaxAttempt
	if attempts < 1 || attempts > 65535 {
		attempts = 3
	}
	indexConsumer := worker.NewIndexConsumer(ix, jobService, cfg.DocumentFolder, uint16(attempts))

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /api/research/draft", middleware.CorrelationID(enableCORS(researchHandler.Draft)))
	mux.Handle("POST /api/research/finalize", middleware.CorrelationID(enableCORS(researchHandler.Finalize)))
	mux.Handle("GET /api/research/drafts/{id}", middleware.CorrelationID(enableCORS(researchHandler.Get)))

	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Delete)))
	mux.Handle("POST /documents/sync", middleware.CorrelationID(enableCORS(docHandler.Sync)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.Handle("POST /mcp", middleware.CorrelationID(mcpHandler))
	mux.Handle("GET /mcp/sse", middleware.CorrelationID(enableCORS(mcpHandler.HandleSSE)))
	mux.Handle("POST /mcp/messages", middleware.CorrelationID(enableCORS(mcpHandler.HandleMessage)))

	mux.HandleFunc("GET /health", healthHandler(cfg.Environment))

	return &App{
		Handler:       mux,
		Indexer:       ix,
		IndexConsumer: indexConsumer,
		Orchestrator:  orchestrator,
		Research:      researchService,
		cfg:           cfg,
		taskPub:       taskPub,
		closers:       closers,
	}, nil
}

func healthHandler(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok", "environment": env}); err != nil {
			slog.Error("failed to encode health response", "error", err)
		}
	}
}

// RetryPolicy derives the collaborator retry policy from configuration.
func RetryPolicy(cfg *config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	p.CallTimeout = cfg.CallTimeout()
	if cfg.RetryMaxAttempt > 0 {
		p.MaxAttempts = cfg.RetryMaxAttempt
	}
	return p
}

// EnqueueStartupIndex queues a sync_if_empty task when startup indexing is on.
func (a *App) EnqueueStartupIndex() error {
	if !a.cfg.IndexOnStartup {
		return nil
	}
	return worker.Enqueue(a.taskPub, worker.IndexTask{
		Folder: a.cfg.DocumentFolder,
		Mode:   worker.ModeSyncIfEmpty,
	})
}

// StartIndexConsumer subscribes the index consumer with a single message in
// flight, which keeps one writer on the vector store.
func (a *App) StartIndexConsumer() (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = 1
	nsqCfg.MaxAttempts = uint16(RetryPolicy(a.cfg).MaxAttempts)

	consumer, err := nsq.NewConsumer(config.TopicIndexSync, config.ChannelIndexer, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(a.IndexConsumer)

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("nsq consumer connect error: %w", err)
	}
	slog.Info("index consumer connected", "topic", config.TopicIndexSync, "channel", config.ChannelIndexer)
	return consumer, nil
}

func (a *App) Run(ctx context.Context) error {
	port := a.cfg.ServerPort
	if port == 0 {
		port = 8081
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases model clients and the query log.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
}
