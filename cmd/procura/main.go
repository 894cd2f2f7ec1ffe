package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/catalog"
	"github.com/stroysnab-cloud/procura/internal/config"
	"github.com/stroysnab-cloud/procura/internal/db"
	dbFile "github.com/stroysnab-cloud/procura/internal/db/file"
	dbRedis "github.com/stroysnab-cloud/procura/internal/db/redis"
	"github.com/stroysnab-cloud/procura/internal/domain"
	"github.com/stroysnab-cloud/procura/internal/index"
	logpkg "github.com/stroysnab-cloud/procura/internal/logger"
	"github.com/stroysnab-cloud/procura/internal/metrics"
	"github.com/stroysnab-cloud/procura/internal/repository/embcache"
	chiTransport "github.com/stroysnab-cloud/procura/internal/transport/chi"
	openaiTransport "github.com/stroysnab-cloud/procura/internal/transport/openai"
	decomposeuc "github.com/stroysnab-cloud/procura/internal/usecase/decompose"
	healthuc "github.com/stroysnab-cloud/procura/internal/usecase/health"
	quoteuc "github.com/stroysnab-cloud/procura/internal/usecase/quote"
	searchuc "github.com/stroysnab-cloud/procura/internal/usecase/search"
	"github.com/stroysnab-cloud/procura/internal/version"
)

func main() {
	// .env is optional, real env vars win
	_ = godotenv.Load()

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

	logger.Info("Starting procura API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	ctx := context.Background()

	store, hasRedis := buildStore(ctx, cfg, logger)
	defer store.Close()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	// Embedder chains — composition root. Separate document and query chains:
	// the instruction prefix differs and the cache key includes it.
	docEmbedder := buildEmbedder(cfg, cfg.Embedding.DocumentInstruction, store, hasRedis, logger)
	queryEmbedder := buildEmbedder(cfg, cfg.Embedding.QueryInstruction, store, hasRedis, logger)

	holder := index.NewHolder(loadOrBuildIndex(ctx, cfg, store, docEmbedder, logger))

	var parser decomposeuc.RequestParser
	if cfg.Parser.Model != "" {
		parser = openaiTransport.NewParser(&openaiTransport.ParserConfig{
			APIKey:  cfg.Parser.APIKey,
			BaseURL: cfg.Parser.BaseURL,
			Model:   cfg.Parser.Model,
			Logger:  logger,
		})
		logger.Info("Structured request parser enabled", zap.String("model", cfg.Parser.Model))
	} else {
		logger.Info("Structured request parser disabled, using rule-based decomposition")
	}

	decomposeSvc := decomposeuc.New(parser, logger)
	searchSvc := searchuc.New(holder, queryEmbedder)
	quoteSvc := quoteuc.New(decomposeSvc, searchSvc, cfg.Search.ScoreThreshold, logger)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(queryEmbedder), holder)

	server := chiTransport.NewServer(
		quoteSvc, searchSvc, healthSvc,
		cfg.Search.DefaultTopK, cfg.Search.MaxTopK,
		logger,
	)

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

// buildStore picks the key-value backend: Redis when addresses are configured,
// the local disk store otherwise. The second return reports whether a shared
// cache backend is available.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (db.Store, bool) {
	if len(cfg.Database.Addrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create Redis store", zap.Error(err))
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		logger.Info("Connected to Redis", zap.Strings("addrs", cfg.Database.Addrs))
		return store, true
	}

	store, err := dbFile.NewStore(cfg.Index.SnapshotDir)
	if err != nil {
		logger.Fatal("Failed to create file store", zap.Error(err))
	}
	logger.Info("Running without Redis, snapshots on local disk",
		zap.String("dir", cfg.Index.SnapshotDir))
	return store, false
}

// loadOrBuildIndex tries to load a persisted catalog index and falls back to
// a full rebuild from the CSV catalog. The fresh index is persisted for the
// next start; a failed persist is not fatal.
func loadOrBuildIndex(
	ctx context.Context,
	cfg config.Config,
	store db.Store,
	embedder domain.Embedder,
	logger *zap.Logger,
) *index.CatalogIndex {
	if !cfg.Index.ForceRebuild {
		idx, err := index.Load(ctx, store, cfg.Index.SnapshotKey)
		if err == nil {
			logger.Info("Loaded catalog index snapshot",
				zap.Int("records", idx.Len()), zap.Int("dim", idx.Dim()))
			return idx
		}
		if !errors.Is(err, domain.ErrIndexNotFound) {
			logger.Fatal("Failed to load index snapshot", zap.Error(err))
		}
		logger.Info("No index snapshot found, building from catalog")
	}

	records, err := catalog.NewLoader(logger).LoadAll(cfg.Catalog.CSVPaths)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	logger.Info("Catalog loaded", zap.Int("records", len(records)))

	idx, err := index.Build(ctx, records, embedder, cfg.Embedding.BatchSize)
	if err != nil {
		logger.Fatal("Failed to build catalog index", zap.Error(err))
	}
	logger.Info("Catalog index built",
		zap.Int("records", idx.Len()), zap.Int("dim", idx.Dim()))

	if err := idx.Persist(ctx, store, cfg.Index.SnapshotKey); err != nil {
		logger.Warn("Failed to persist index snapshot", zap.Error(err))
	}

	return idx
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction.
func buildEmbedder(
	cfg config.Config,
	instruction string,
	store db.Store,
	cache bool,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	if cache {
		embedder = embcache.New(embedder, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
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
