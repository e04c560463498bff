package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/CodeAtlas/internal/adapter/github"
	cahttp "github.com/Strob0t/CodeAtlas/internal/adapter/http"
	"github.com/Strob0t/CodeAtlas/internal/adapter/litellm"
	camcp "github.com/Strob0t/CodeAtlas/internal/adapter/mcp"
	canats "github.com/Strob0t/CodeAtlas/internal/adapter/nats"
	caotel "github.com/Strob0t/CodeAtlas/internal/adapter/otel"
	"github.com/Strob0t/CodeAtlas/internal/adapter/postgres"
	"github.com/Strob0t/CodeAtlas/internal/adapter/ristretto"
	"github.com/Strob0t/CodeAtlas/internal/adapter/sourcecache"
	"github.com/Strob0t/CodeAtlas/internal/config"
	"github.com/Strob0t/CodeAtlas/internal/logger"
	"github.com/Strob0t/CodeAtlas/internal/middleware"
	"github.com/Strob0t/CodeAtlas/internal/port/reposource"
	"github.com/Strob0t/CodeAtlas/internal/resilience"
	"github.com/Strob0t/CodeAtlas/internal/service"
)

func main() {
	// Bootstrap logger so config load failures are still structured.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"wiki_workers", cfg.Analysis.WikiWorkers,
	)

	ctx := context.Background()

	// --- Telemetry ---

	shutdownTelemetry, err := caotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := caotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	// Run migrations
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := canats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// --- Repository source ---

	var source reposource.Source = github.NewSource(cfg.GitHub.Token, cfg.GitHub.Timeout)
	if cfg.Cache.Enabled {
		contentCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
		if err != nil {
			return fmt.Errorf("source cache: %w", err)
		}
		defer contentCache.Close()
		source = sourcecache.New(source, contentCache, cfg.Cache.TTL)
		slog.Info("source cache enabled", "max_size_mb", cfg.Cache.MaxSizeMB, "ttl", cfg.Cache.TTL)
	}

	// --- LLM ---

	llm := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	llm.SetTimeout(cfg.LiteLLM.Timeout)
	llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	if ok, err := llm.Health(ctx); err != nil || !ok {
		slog.Warn("litellm health check failed", "url", cfg.LiteLLM.URL, "error", err)
	}

	// --- Services ---

	store := postgres.NewStore(pool)
	classifier := service.NewClassifierService(llm, source, &cfg.Analysis, &cfg.Limits)
	generator := service.NewGeneratorService(llm, source, &cfg.Analysis, &cfg.Limits)
	analysisSvc := service.NewAnalysisService(store, queue, source, classifier)
	wikiSvc := service.NewWikiService(store, generator, cfg.Analysis.WikiWorkers)
	repoSvc := service.NewRepositoryService(store)

	analysisSvc.SetOnAnalysisComplete(wikiSvc.HandleAnalysisCompleted)
	analysisSvc.SetMetrics(metrics)
	wikiSvc.SetMetrics(metrics)

	// Start NATS subscriber (runs analysis jobs published by the API)
	cancelAnalysis, err := analysisSvc.StartSubscriber(ctx)
	if err != nil {
		return fmt.Errorf("analysis subscriber: %w", err)
	}
	defer cancelAnalysis()

	// --- MCP ---

	var mcpSrv *camcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = camcp.NewServer(camcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "codeatlas",
			Version: "0.1.0",
		}, camcp.ServerDeps{
			Repositories: repoSvc,
			Jobs:         analysisSvc,
			Wiki:         wikiSvc,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		slog.Info("mcp server started", "addr", cfg.MCP.Addr)
	}

	// --- HTTP ---

	handlers := &cahttp.Handlers{
		Repositories: repoSvc,
		Analysis:     analysisSvc,
		Wiki:         wikiSvc,
		BodyLimit:    cfg.Limits.MaxRequestBodySize,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()

	// Middleware
	r.Use(cahttp.SecurityHeaders)
	r.Use(cahttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cahttp.Logger)
	r.Use(limiter.Handler)
	r.Use(caotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.Recoverer)
	// Wiki generation holds the request while pages render, so the
	// per-request budget is generous.
	r.Use(chimw.Timeout(3 * time.Minute))

	// Health endpoint with service status
	r.Get("/health", healthHandler(cfg, llm))

	// API routes
	cahttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Must outlast the slowest generation request.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Error("mcp shutdown failed", "error", err)
		}
	}

	if err := queue.Drain(); err != nil {
		slog.Error("nats drain failed", "error", err)
	}

	return srv.Shutdown(shutdownCtx)
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(cfg *config.Config, llm *litellm.Client) http.HandlerFunc {
	type healthStatus struct {
		Status     string `json:"status"`
		NATS       string `json:"nats"`
		LiteLLM    string `json:"litellm"`
		LLMCircuit string `json:"llm_circuit"`
		MCP        bool   `json:"mcp"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:     "ok",
			NATS:       cfg.NATS.URL,
			LiteLLM:    cfg.LiteLLM.URL,
			LLMCircuit: llm.CircuitState(),
			MCP:        cfg.MCP.Enabled,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
