package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/smartsplit/internal/config"
	"github.com/mmynk/smartsplit/internal/idempotency"
	"github.com/mmynk/smartsplit/internal/metrics"
	"github.com/mmynk/smartsplit/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.App.SlogLevel())

	if err := run(cfg); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()
	slog.Info("Storage initialized", "driver", cfg.DB.Driver)

	var guard *idempotency.Guard
	if cfg.Redis.Enabled() {
		redisStore, rerr := idempotency.NewRedisStore(ctx, cfg.Redis.URL, idempotency.RedisOptions{
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if rerr != nil {
			return rerr
		}
		defer func() { err = multierr.Append(err, redisStore.Close()) }()
		guard = idempotency.NewGuard(redisStore, cfg.Idempotency.TTL)
		slog.Info("Idempotency keys enabled", "ttl", cfg.Idempotency.TTL)
	} else {
		slog.Warn("SMARTSPLIT_REDIS_URL not set, Idempotency-Key headers are ignored")
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	router := newRouter(routerDeps{
		cfg:      cfg,
		store:    store,
		guard:    guard,
		metrics:  metrics.New(registerer(registry)),
		registry: registry,
		logger:   slog.Default(),
	})

	server := &http.Server{
		Addr: cfg.App.Addr(),
		// h2c serves HTTP/2 without TLS, which gRPC clients of Connect need.
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down", "timeout", cfg.App.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// registerer avoids handing metrics.New a typed nil interface.
func registerer(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}
