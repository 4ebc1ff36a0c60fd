package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "go.uber.org/automaxprocs"

	"github.com/okian/framerank/internal/adapters/counter"
	"github.com/okian/framerank/internal/adapters/http/api"
	"github.com/okian/framerank/internal/adapters/http/swagger"
	"github.com/okian/framerank/internal/adapters/mq/queue"
	"github.com/okian/framerank/internal/adapters/mq/worker"
	"github.com/okian/framerank/internal/adapters/remote"
	app "github.com/okian/framerank/internal/app"
	"github.com/okian/framerank/internal/config"
	"github.com/okian/framerank/internal/domain/keypoint"
	"github.com/okian/framerank/pkg/logger"
	"github.com/okian/framerank/pkg/metrics"
)

// HTTP server timeout constants. Writes must outlive the remote timeout.
const (
	readTimeout               = 15 * time.Second
	writeTimeoutSlack         = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if cfg.LogFile != "" {
		if err := logger.Init(logger.WithFile(cfg.LogFile)); err != nil {
			os.Stderr.WriteString("failed to open log file: " + err.Error() + "\n")
			return
		}
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	limiter := newRateLimiter(cfg, log)
	if limiter != nil {
		go limiter.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, limiter, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.RemoteTimeout() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
}

// buildService wires the analysis service from cfg.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	opts := []app.Option{
		app.WithLogger(log),
		app.WithRemoteTimeout(cfg.RemoteTimeout()),
		app.WithDeriver(keypoint.NewDeriver(
			keypoint.WithAttentionWeights(cfg.AttentionWeights),
			keypoint.WithPostureWeights(cfg.PostureWeights),
		)),
	}

	switch {
	case !cfg.RemoteEnabled:
		log.Info(ctx, "remote analysis disabled; ranking from detections only")
	case cfg.GeminiAPIKey == "":
		log.Warn(ctx, "remote analysis enabled but gemini_api_key is empty; ranking from detections only")
	default:
		vision, err := remote.NewGeminiVision(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		// Workers outlive ctx; the service's Stop drains them through the closer.
		pool := worker.NewPool(cfg.RemoteWorkers,
			queue.NewInMemoryQueue(queue.WithCapacity(cfg.RemoteQueueSize)),
			remote.New(vision, remote.WithLogger(log)),
			worker.WithLogger(log),
		)
		pool.Start(context.WithoutCancel(ctx))
		opts = append(opts,
			app.WithRemote(pool),
			app.WithCloser(pool),
			app.WithCloser(vision),
		)
	}

	if cfg.CounterBackend == config.CounterRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn(ctx, "redis unreachable at startup; scan counts may be unavailable",
				logger.String("addr", cfg.RedisAddr), logger.Error(err))
		}
		opts = append(opts,
			app.WithCounter(counter.NewRedis(client, cfg.CounterKey)),
			app.WithCloser(client),
		)
	}

	return app.New(opts...), nil
}

func newRateLimiter(cfg *config.Config, log logger.Logger) *api.RateLimiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	return api.NewRateLimiter(
		api.WithRate(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithLimiterLogger(log),
	)
}

// newHandler registers every route on a fresh mux.
func newHandler(ctx context.Context, svc *app.Service, limiter *api.RateLimiter, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	opts := []api.Option{api.WithLogger(log)}
	if limiter != nil {
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	api.NewServer(svc, opts...).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
