// Package main is the entry point for the SkyRisk API server.
//
// It loads the configuration, wires the upstream clients, the climatology
// source and the dashboard controller into the HTTP chassis, and starts
// serving.
//
// When AWS_LAMBDA_RUNTIME_API is set the router is served through the API
// Gateway (HTTP API v2) adapter; otherwise it runs as a standard HTTP server
// on the configured port with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"

	"skyrisk/internal/api/handlers"
	"skyrisk/internal/climatology"
	"skyrisk/internal/config"
	"skyrisk/internal/core"
	"skyrisk/internal/dashboard"
	"skyrisk/internal/db"
	"skyrisk/internal/external"
	"skyrisk/internal/location"
	"skyrisk/internal/risk"
	"skyrisk/internal/telemetry"
	"skyrisk/internal/types"
)

// rateLimitSweepInterval is how often idle client buckets are dropped.
const rateLimitSweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// Secrets come from *_FILE variables; nil uses the filesystem provider.
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("skyrisk API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"climatology_source", cfg.Climatology.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	app.startBackground(ctx)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		logger.Info("starting in Lambda mode")
		lambda.StartWithOptions(app.lambdaHandler(), lambda.WithEnableSIGTERM(func() {
			stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = app.srv.Shutdown(shutdownCtx)
		}))
		return nil
	}

	return serveHTTP(ctx, cfg, app, logger)
}

// application is the fully wired server plus the background loops that
// keep its in-memory state bounded.
type application struct {
	srv        *core.Server
	controller *dashboard.Controller
	metrics    *telemetry.Publisher
	background []func(ctx context.Context)
}

// appDeps overrides infrastructure in tests. Nil fields use the real
// implementation derived from the configuration.
type appDeps struct {
	CloudWatch  telemetry.CloudWatchClient
	Climatology types.ClimatologySource
	HTTPClient  *http.Client
}

// buildApplication wires every component from cfg.
func buildApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *appDeps) (*application, error) {
	if deps == nil {
		deps = &appDeps{}
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	app := &application{srv: srv}

	// Telemetry.
	var recorder dashboard.LookupRecorder
	var registryOpts []external.RegistryOption
	if cfg.Observability.MetricsEnabled {
		cw := deps.CloudWatch
		if cw == nil {
			cw, err = newCloudWatchClient(ctx, cfg.AWS)
			if err != nil {
				return nil, err
			}
		}
		pub := telemetry.NewPublisher(cw, cfg.Observability.MetricNamespace, logger)
		app.metrics = pub
		srv.Metrics = pub
		recorder = pub
		registryOpts = append(registryOpts,
			external.WithBaseClientOptions(external.WithFailureObserver(pub.RecordUpstreamFailure)))
		app.background = append(app.background, func(ctx context.Context) {
			pub.Run(ctx, cfg.Observability.MetricsFlushInterval)
		})
		srv.OnShutdown(pub.Flush)
	}

	// Upstream clients.
	if deps.HTTPClient != nil {
		registryOpts = append(registryOpts, external.WithHTTPClient(deps.HTTPClient))
	}
	registry := external.NewClientRegistry(cfg.Upstream, logger, registryOpts...)
	if cfg.Upstream.CacheTTL > 0 {
		app.background = append(app.background, func(ctx context.Context) {
			every(ctx, cfg.Upstream.CacheTTL, func() {
				if n := registry.Forecast.SweepCache(); n > 0 {
					logger.Debug("expired cached forecasts", "removed", n)
				}
			})
		})
	}

	// Climatology.
	clim := deps.Climatology
	if clim == nil {
		clim, err = openClimatology(ctx, cfg, srv, logger)
		if err != nil {
			return nil, err
		}
	}

	// Dashboard.
	evaluator := risk.NewEvaluator(risk.WithThresholds(risk.Thresholds{
		HotC:     cfg.Risk.HotC,
		ColdC:    cfg.Risk.ColdC,
		WetMM:    cfg.Risk.WetMM,
		WindyKmh: cfg.Risk.WindyKmh,
	}))
	store := dashboard.NewStore(cfg.Session.TTL, types.RealClock{})
	app.controller = dashboard.NewController(dashboard.Deps{
		Store:       store,
		Cities:      location.NewCitySearcher(registry.Geocoder, logger),
		Forecast:    registry.Forecast,
		Climatology: clim,
		Evaluator:   evaluator,
		Recorder:    recorder,
		Logger:      logger,
	})
	app.background = append(app.background, func(ctx context.Context) {
		store.RunSweeper(ctx, cfg.Session.SweepInterval, logger)
	})

	// Per-client rate limiting.
	if cfg.Server.RateLimitRPS > 0 {
		limits := core.NewMemoryRateLimitStore(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 0, nil)
		srv.RateLimitStore = limits
		app.background = append(app.background, func(ctx context.Context) {
			every(ctx, rateLimitSweepInterval, func() { limits.Sweep() })
		})
	}

	// Routes.
	sessions := handlers.NewSessionHandler(app.controller, srv.Validator, logger)
	riskHandler := handlers.NewRiskHandler(app.controller, clim, nil, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { r.Route("/sessions", sessions.RegisterRoutes) },
		riskHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	return app, nil
}

// openClimatology returns the configured climatology source. The Postgres
// source registers its pool for shutdown and a health probe.
func openClimatology(ctx context.Context, cfg *config.Config, srv *core.Server, logger *slog.Logger) (types.ClimatologySource, error) {
	if cfg.Climatology.Source != config.ClimatologyPostgres {
		return climatology.NewStaticSource(), nil
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening climatology database: %w", err)
	}
	srv.OnShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})

	src := climatology.NewPostgresSource(pool)
	if cfg.Climatology.SeedOnStart {
		if err := src.Seed(ctx); err != nil {
			return nil, fmt.Errorf("seeding climatology: %w", err)
		}
		logger.Info("climatology table seeded")
	}
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{ProbeName: "climatology", Fn: src.Check})
	return src, nil
}

// newCloudWatchClient loads the default AWS credential chain. EndpointURL
// points the client at LocalStack in development.
func newCloudWatchClient(ctx context.Context, cfg config.AWSConfig) (*cloudwatch.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	}), nil
}

func (a *application) startBackground(ctx context.Context) {
	for _, fn := range a.background {
		go fn(ctx)
	}
}

// lambdaHandler serves one API Gateway event and flushes metrics before
// the execution environment is frozen.
func (a *application) lambdaHandler() core.LambdaHandlerFunc {
	h := core.LambdaHandler(a.srv.Handler())
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		resp, err := h(ctx, req)
		if a.metrics != nil {
			_ = a.metrics.Flush(ctx)
		}
		return resp, err
	}
}

// serveHTTP runs the HTTP server until ctx is cancelled, then drains
// in-flight requests and releases server resources.
func serveHTTP(ctx context.Context, cfg *config.Config, app *application, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           app.srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// every calls fn at each interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
