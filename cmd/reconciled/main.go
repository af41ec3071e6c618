package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/arcsign/opsengine/internal/catalogue"
	"github.com/arcsign/opsengine/internal/config"
	"github.com/arcsign/opsengine/internal/delegatekeys"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/executor"
	"github.com/arcsign/opsengine/internal/gateway"
	"github.com/arcsign/opsengine/internal/httpapi"
	"github.com/arcsign/opsengine/internal/httpclient"
	"github.com/arcsign/opsengine/internal/metrics"
	"github.com/arcsign/opsengine/internal/middleware"
	"github.com/arcsign/opsengine/internal/planner"
	"github.com/arcsign/opsengine/internal/query"
	"github.com/arcsign/opsengine/internal/ratelimit"
	"github.com/arcsign/opsengine/internal/reconciler"
	"github.com/arcsign/opsengine/internal/store"
	"github.com/arcsign/opsengine/internal/swaprouter"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the engine's YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("failed to load config")
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("starting opsengine reconciled service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.Watch(ctx, *configPath, func(reloaded *config.Config, err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("config reload failed, keeping current logging level")
			return
		}
		level, parseErr := zerolog.ParseLevel(reloaded.Logging.Level)
		if parseErr != nil {
			logger.Warn().Err(parseErr).Str("level", reloaded.Logging.Level).Msg("config reload: invalid log level, ignoring")
			return
		}
		zerolog.SetGlobalLevel(level)
		logger.Info().Str("level", level.String()).Msg("log level reloaded from config")
	}); err != nil {
		logger.Warn().Err(err).Msg("config hot-reload watcher failed to start, continuing with static config")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	recordStore, err := setupStore(cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize record store")
	}

	gatewayHTTP, err := httpclient.New(cfg.Gateway.Endpoints, cfg.Gateway.Timeout,
		httpclient.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Gateway.RequestsPerSecond), cfg.Gateway.Burst)),
		httpclient.WithHeader("Authorization", "Bearer "+cfg.Gateway.APIKey),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gateway http client")
	}
	gatewayClient := gateway.New(gatewayHTTP, m)

	swapRouterHTTP, err := httpclient.New(cfg.SwapRouter.Endpoints, cfg.SwapRouter.Timeout,
		httpclient.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.SwapRouter.RequestsPerSecond), cfg.SwapRouter.Burst)),
		httpclient.WithHeader("Authorization", "Bearer "+cfg.SwapRouter.APIKey),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build swap router http client")
	}
	swapRouterClient := swaprouter.New(swapRouterHTTP, m)

	chainCatalogue := catalogue.NewDefaultCatalogue()

	// Delegate keys are provisioned by an external enrollment flow (spec.md
	// §1 treats delegate-key custody as an external collaborator); Source
	// starts empty and is populated out-of-band via Put.
	delegateKeySource := delegatekeys.NewSource(os.Getenv("DELEGATE_KEY_PASSPHRASE"))

	p := planner.New(chainCatalogue, gatewayClient, swapRouterClient, recordStore, m, logger)
	e := executor.New(recordStore, gatewayClient, delegateKeySource, cfg.Gateway.RelayerPrivateKey, m, logger)
	rec := reconciler.New(recordStore, gatewayClient, swapRouterClient, chainCatalogue, delegateKeySource, cfg.Gateway.RelayerPrivateKey, m, logger)
	q := query.New(recordStore)

	rec.Start(ctx)
	defer rec.Stop()

	router := setupRouter(p, e, rec, q, m, reg, logger, os.Getenv("SESSION_TOKEN_SECRET"))

	server := &http.Server{
		Addr:         cfg.Metrics.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	rec.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	logger.Info().Msg("stopped gracefully")
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStore(cfg config.StoreConfig) (engineext.RecordStore, error) {
	if cfg.Driver == "file" {
		return store.NewFileStore(cfg.FilePath)
	}
	return store.NewMemoryStore(), nil
}

func setupRouter(p *planner.Planner, e *executor.Executor, rec *reconciler.Reconciler, q *query.Service, m *metrics.Metrics, reg *prometheus.Registry, logger zerolog.Logger, sessionSecret string) http.Handler {
	mux := http.NewServeMux()

	// Public: no session token required.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Protected: every v1/operations route is scoped to the bearer token's
	// user (spec.md §6). Every v1 route, not only submissions, also passes a
	// per-user rate limit (20 requests a minute) after Auth.
	submitLimiter := ratelimit.New(20, time.Minute)
	protected := http.NewServeMux()
	api := httpapi.New(p, e, rec, q, logger)
	api.Register(protected)
	mux.Handle("/v1/", middleware.Chain(protected,
		middleware.Auth(sessionSecret),
		middleware.RateLimit(submitLimiter),
	))

	return middleware.Chain(mux,
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Metrics(m),
	)
}
