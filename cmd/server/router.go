package main

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/smartsplit/internal/auth"
	"github.com/mmynk/smartsplit/internal/config"
	"github.com/mmynk/smartsplit/internal/idempotency"
	"github.com/mmynk/smartsplit/internal/metrics"
	"github.com/mmynk/smartsplit/internal/middleware"
	"github.com/mmynk/smartsplit/internal/service"
	"github.com/mmynk/smartsplit/internal/storage"
	"github.com/mmynk/smartsplit/pkg/api/apiconnect"
)

type routerDeps struct {
	cfg      *config.Config
	store    storage.Store
	guard    *idempotency.Guard
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	logger   *slog.Logger
}

func newRouter(d routerDeps) http.Handler {
	jwtManager := auth.NewJWTManager(d.cfg.JWT.Secret, d.cfg.JWT.TTL)
	authenticator := auth.NewPasswordAuthenticator(d.store, d.cfg.Auth.BcryptCost)
	resetter := auth.NewPasswordResetter(d.store, authenticator, auth.LogNotifier{}, d.cfg.Auth.ResetTokenTTL)

	// Logging and metrics wrap auth so rejected tokens are recorded too.
	interceptors := connect.WithInterceptors(
		middleware.MetricsInterceptor(d.metrics),
		middleware.LoggingInterceptor(d.logger),
		middleware.RequireAuth(jwtManager, apiconnect.PublicProcedures...),
	)

	ledgerOpts := []service.LedgerOption{service.WithMetrics(d.metrics)}
	if d.guard != nil {
		ledgerOpts = append(ledgerOpts, service.WithIdempotency(d.guard))
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.RequestLogger(d.logger),
		chimw.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: d.cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept", "Authorization", "Content-Type",
				"Connect-Protocol-Version", "Connect-Timeout-Ms",
				apiconnect.IdempotencyKeyHeader,
			},
			ExposedHeaders:   []string{"Connect-Protocol-Version", "Connect-Timeout-Ms"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.registry != nil {
		r.Handle(d.cfg.Metrics.Path, promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}

	r.Mount(apiconnect.NewAuthServiceHandler(
		service.NewAuthService(authenticator, resetter, jwtManager, d.store, d.logger,
			service.WithExposedResetToken(d.cfg.Auth.ExposeResetToken)),
		interceptors,
	))
	r.Mount(apiconnect.NewGroupServiceHandler(service.NewGroupService(d.store, d.logger), interceptors))
	r.Mount(apiconnect.NewLedgerServiceHandler(service.NewLedgerService(d.store, d.logger, ledgerOpts...), interceptors))

	return r
}
