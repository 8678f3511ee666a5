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

	"github.com/kailas-cloud/facetdex/internal/config"
	"github.com/kailas-cloud/facetdex/internal/index"
	logpkg "github.com/kailas-cloud/facetdex/internal/logger"
	"github.com/kailas-cloud/facetdex/internal/metrics"
	"github.com/kailas-cloud/facetdex/internal/source"
	srcRedis "github.com/kailas-cloud/facetdex/internal/source/redis"
	srcSqlite "github.com/kailas-cloud/facetdex/internal/source/sqlite"
	chiTransport "github.com/kailas-cloud/facetdex/internal/transport/chi"
	facetsuc "github.com/kailas-cloud/facetdex/internal/usecase/facets"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
	rebuilduc "github.com/kailas-cloud/facetdex/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/facetdex/internal/usecase/search"
	taxonomyuc "github.com/kailas-cloud/facetdex/internal/usecase/taxonomy"
	"github.com/kailas-cloud/facetdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting facetdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("source_driver", cfg.Source.Driver),
	)

	// Classification configuration: taxonomy, rules, filter definitions
	defs, err := config.LoadDefinitions(cfg.Definitions)
	if err != nil {
		logger.Fatal("Failed to load definitions", zap.Error(err))
	}
	logger.Info("Definitions loaded",
		zap.Int("nodes", len(defs.Forest.Nodes())),
		zap.Int("rules", len(defs.Rules)),
		zap.Int("filters", len(defs.Filters)),
	)

	// Create catalog source based on driver
	src, err := newSource(cfg.Source)
	if err != nil {
		logger.Fatal("Failed to create catalog source", zap.Error(err))
	}
	defer func() { _ = src.Close() }()

	ctx := context.Background()
	readyCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Source.ReadinessTimeout)*time.Second)
	err = src.Ping(readyCtx)
	cancel()
	if err != nil {
		logger.Fatal("Catalog source not ready", zap.Error(err))
	}
	logger.Info("Connected to catalog source")

	// Register index metrics explicitly (no init())
	metrics.RegisterIndexMetrics()

	// Index store and use case services — composition root
	store := index.NewStore()

	rebuildSvc := rebuilduc.New(src, defs.Forest, defs.Rules, defs.Filters, store, rebuilduc.Config{
		Builder: index.BuilderConfig{
			BatchSize: cfg.Rebuild.BatchSize,
			Workers:   cfg.Rebuild.Workers,
			FacetTopN: cfg.Query.FacetTopN,
		},
		PhaseRetries: cfg.Rebuild.PhaseRetries,
		MinInterval:  time.Duration(cfg.Rebuild.MinIntervalSec) * time.Second,
	}, logger)

	searchSvc := searchuc.New(store, cfg.Query.ExactCountThreshold, logger)
	facetsSvc, err := facetsuc.New(store, cfg.Query.FacetMemoSize, cfg.Query.FacetTopN, logger)
	if err != nil {
		logger.Fatal("Failed to create facet service", zap.Error(err))
	}
	taxonomySvc := taxonomyuc.New(store)
	healthSvc := healthuc.New(src, store)

	if cfg.Rebuild.OnStartup {
		report, err := rebuildSvc.Rebuild(ctx)
		if err != nil {
			logger.Error("Startup rebuild failed", zap.Error(err))
		} else {
			logger.Info("Startup rebuild complete",
				zap.String("generation_id", report.GenerationID),
				zap.Int("items", report.Items),
			)
		}
	}

	// Create chi server
	server := chiTransport.NewServer(
		searchSvc, facetsSvc, taxonomySvc, rebuildSvc, healthSvc,
		time.Duration(cfg.Query.TimeoutSec)*time.Second,
		cfg.Auth.AdminTokens,
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
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

func newSource(cfg config.SourceConfig) (source.Source, error) {
	switch cfg.Driver {
	case "sqlite":
		return srcSqlite.New(srcSqlite.Config{Path: cfg.Path})
	case "redis":
		return srcRedis.New(srcRedis.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			KeyPrefix: cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Driver)
	}
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
