package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/config"
	dbRedis "github.com/caseflow/navsearch/internal/db/redis"
	"github.com/caseflow/navsearch/internal/domain"
	logpkg "github.com/caseflow/navsearch/internal/logger"
	"github.com/caseflow/navsearch/internal/metrics"
	"github.com/caseflow/navsearch/internal/registry"
	budgetrepo "github.com/caseflow/navsearch/internal/repository/budget"
	cacherepo "github.com/caseflow/navsearch/internal/repository/cache"
	"github.com/caseflow/navsearch/internal/repository/embcache"
	embrepo "github.com/caseflow/navsearch/internal/repository/embedding"
	entityrepo "github.com/caseflow/navsearch/internal/repository/entity"
	searchlogrepo "github.com/caseflow/navsearch/internal/repository/searchlog"
	chiTransport "github.com/caseflow/navsearch/internal/transport/chi"
	openaiTransport "github.com/caseflow/navsearch/internal/transport/openai"
	budgetuc "github.com/caseflow/navsearch/internal/usecase/budget"
	cacheuc "github.com/caseflow/navsearch/internal/usecase/cache"
	classifyuc "github.com/caseflow/navsearch/internal/usecase/classify"
	"github.com/caseflow/navsearch/internal/usecase/embeddings"
	enforceuc "github.com/caseflow/navsearch/internal/usecase/enforce"
	healthuc "github.com/caseflow/navsearch/internal/usecase/health"
	navigateuc "github.com/caseflow/navsearch/internal/usecase/navigate"
	searchuc "github.com/caseflow/navsearch/internal/usecase/search"
	"github.com/caseflow/navsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting navsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Navigation registry with live portal context
	live := entityrepo.NewLiveSource(store)
	reg, err := registry.Load(cfg.Registry.TargetsPath, live)
	if err != nil {
		logger.Fatal("Failed to load navigation targets", zap.Error(err))
	}
	logger.Info("Navigation registry loaded", zap.Int("targets", len(reg.AllTargets())))

	// Structured indexes per entity type, vector index for embeddings
	entityRepo := entityrepo.New(store)
	var searchableTypes, tagFields []string
	seenField := map[string]bool{}
	for _, t := range reg.AllTargets() {
		if t.EntityType == "" {
			continue
		}
		if err := entityRepo.EnsureIndex(ctx, t.EntityType, t.FilterableFields); err != nil {
			logger.Fatal("Failed to ensure entity index",
				zap.String("entity_type", t.EntityType), zap.Error(err))
		}
		if t.Searchable {
			searchableTypes = append(searchableTypes, t.EntityType)
			for _, f := range t.FilterableFields {
				if !seenField[f] {
					seenField[f] = true
					tagFields = append(tagFields, f)
				}
			}
		}
	}

	embRepo := embrepo.New(store, cfg.Embedding.Dimensions, tagFields).
		WithHNSW(cfg.Embedding.HNSWM, cfg.Embedding.HNSWEFConstr)
	if err := embRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure embedding index", zap.Error(err))
	}

	// Shared token budget tracker for both provider chains.
	var tracker *budgetuc.Tracker
	if cfg.Budget.DailyTokenLimit > 0 || cfg.Budget.MonthlyTokenLimit > 0 {
		action := budgetuc.ActionWarn
		if cfg.Budget.Action == "reject" {
			action = budgetuc.ActionReject
		}
		tracker = budgetuc.NewTracker(
			"openai", cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit, action, logger,
		).WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
		logger.Info("Token budget tracker enabled",
			zap.Int64("daily_limit", cfg.Budget.DailyTokenLimit),
			zap.Int64("monthly_limit", cfg.Budget.MonthlyTokenLimit),
			zap.String("action", string(action)),
		)
	}

	// Embedder chain: OpenAI -> budget guard -> cached
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	var providerEmbedder domain.Embedder = baseEmbedder
	if tracker != nil {
		providerEmbedder = budgetuc.NewGuardedEmbedder(baseEmbedder, "openai", tracker, logger)
	}
	var embedder domain.Embedder = embcache.New(
		providerEmbedder, store, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, logger,
	)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	reasoner := openaiTransport.NewReasoner(&openaiTransport.ReasonerConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxOutputToken,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		MaxRetries:  cfg.LLM.MaxRetries,
		Logger:      logger,
	})
	var reasoningClient classifyuc.ReasoningClient = reasoner
	if tracker != nil {
		reasoningClient = budgetuc.NewGuardedReasoner(reasoner, "openai", tracker, logger)
	}

	// Use case services
	cacheSvc := cacheuc.New(
		cacherepo.New(store),
		cfg.Cache.MemoryEntries,
		time.Duration(cfg.Cache.TTLSec)*time.Second,
		logger,
	)
	classifySvc := classifyuc.New(reasoningClient, reg, logger)
	enforcer := enforceuc.New(cfg.Enforcement.TriggerPhrases, cfg.Enforcement.DomainKeywords, logger)
	searchSvc := searchuc.New(
		entityRepo, embRepo, embedder,
		cfg.Embedding.Model,
		cfg.Search.MinSimilarity, cfg.Search.DefaultLimit, cfg.Search.MaxLimit,
		logger,
	)
	auditLog := searchlogrepo.New(store, cfg.Cache.LogCap)
	navigateSvc := navigateuc.New(cacheSvc, classifySvc, enforcer, searchSvc, reg, auditLog, logger)

	// Background embedding generator
	generator, err := embeddings.New(
		entityRepo, embRepo, reg, embedder,
		cfg.Embedding.Model,
		cfg.Embedding.Workers, cfg.Embedding.QueueSize,
		time.Duration(cfg.Embedding.SweepSec)*time.Second,
		searchableTypes,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create embedding generator", zap.Error(err))
	}
	generator.Start(ctx)
	defer generator.Close()

	healthSvc := healthuc.New(store, reasoner, baseEmbedder)

	server := chiTransport.NewServer(navigateSvc, reg, generator, cacheSvc, healthSvc, cfg.Search.MaxLimit, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
