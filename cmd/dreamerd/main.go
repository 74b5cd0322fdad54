// Command dreamerd serves the adaptive proposal pipeline: telemetry
// ingestion, analysis runs, the review workflow and evidence export.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sagelight/dreamer/pkg/api"
	"github.com/sagelight/dreamer/pkg/audit"
	"github.com/sagelight/dreamer/pkg/config"
	"github.com/sagelight/dreamer/pkg/dreamer"
	"github.com/sagelight/dreamer/pkg/evidence"
	"github.com/sagelight/dreamer/pkg/governance"
	"github.com/sagelight/dreamer/pkg/healing"
	"github.com/sagelight/dreamer/pkg/metering"
	"github.com/sagelight/dreamer/pkg/observability"
	"github.com/sagelight/dreamer/pkg/review"
	"github.com/sagelight/dreamer/pkg/store"

	_ "github.com/lib/pq" // Postgres driver
)

// Review quota when Redis is configured: 20 actions/minute, burst 5.
const (
	reviewQuotaPerMinute = 20
	reviewQuotaBurst     = 5
	apiRequestsPerSecond = 10
	apiBurst             = 20
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default().With("component", "dreamerd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Observability first so everything after it is traced.
	if cfg.OTLPEndpoint != "" {
		obsCfg := observability.DefaultConfig()
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
		obsCfg.Insecure = true
		provider, err := observability.New(ctx, obsCfg)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	proposalStore, err := store.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	eventStore, err := store.NewEventStore(db)
	if err != nil {
		return err
	}
	logger.Info("sqlite ready", "path", cfg.DatabasePath)

	auditor, err := openAuditLog(cfg.AuditLogPath)
	if err != nil {
		return err
	}

	engine, err := governance.NewEngine()
	if err != nil {
		return err
	}
	if cfg.PolicyFile != "" {
		n, err := governance.LoadPolicyFile(engine, cfg.PolicyFile)
		if err != nil {
			return err
		}
		logger.Info("operator policies loaded", "file", cfg.PolicyFile, "count", n)
	}
	checker := governance.NewChecker(engine)

	meter, err := openMeter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var quota review.QuotaLimiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		quota = review.NewRedisQuota(client, reviewQuotaPerMinute, reviewQuotaBurst)
		logger.Info("redis quota ready", "addr", cfg.RedisAddr)
	}

	monitor := healing.NewMonitor(healing.NewDetector(nil))

	svc := dreamer.New(dreamer.Config{
		Events:  eventStore,
		Checker: checker,
		Store:   proposalStore,
		Monitor: monitor,
		Auditor: auditor,
		Meter:   meter,
	})
	workflow := review.NewWorkflow(proposalStore, review.NewActionLimiter(review.MinActionGap), quota, auditor, meter)

	server := api.NewServer(svc, workflow)
	server.EnableIngestion(eventStore)
	server.EnableEvidence(evidence.NewExporter(auditor), openPackStore(ctx, cfg, logger))

	limiter := api.NewGlobalRateLimiter(apiRequestsPerSecond, apiBurst)
	mux := http.NewServeMux()
	mux.Handle("/api/", limiter.Middleware(api.MonitorMiddleware(monitor)(server.Routes())))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openAuditLog(path string) (*audit.Log, error) {
	if path == "" {
		return audit.NewLog(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return audit.NewLog(f), nil
}

func openMeter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metering.Meter, error) {
	if cfg.PostgresURL == "" {
		return metering.NewMemoryMeter(), nil
	}
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	meter := metering.NewPostgresMeter(db)
	if err := meter.Init(ctx); err != nil {
		return nil, err
	}
	logger.Info("postgres metering ready")
	return meter, nil
}

// openPackStore returns nil when no bucket is configured; evidence packs
// are then served to the caller without archival.
func openPackStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) evidence.ObjectStore {
	if cfg.EvidenceBucket == "" {
		return nil
	}
	switch cfg.EvidenceStore {
	case "gcs":
		s, err := evidence.NewGCSStore(ctx, evidence.GCSStoreConfig{Bucket: cfg.EvidenceBucket, Prefix: "packs/"})
		if err != nil {
			logger.Error("gcs evidence store unavailable", "error", err)
			return nil
		}
		return s
	default:
		s, err := evidence.NewS3Store(ctx, evidence.S3StoreConfig{
			Bucket: cfg.EvidenceBucket,
			Region: cfg.AWSRegion,
			Prefix: "packs/",
		})
		if err != nil {
			logger.Error("s3 evidence store unavailable", "error", err)
			return nil
		}
		return s
	}
}
