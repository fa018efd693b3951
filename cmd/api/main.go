package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/dataset"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/experiment"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/llm"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/metrics"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/server"
	"github.com/mosaictheory-jt/unstructured-analytics/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultHTTPAddr    = "0.0.0.0:8000"
	defaultMetricsAddr = "0.0.0.0:0"
	defaultDataDir     = "data"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	enablePprofFlag := flag.Bool("enable-pprof", false, "Enable pprof server")
	httpAddrFlag := flag.String("http-addr", defaultHTTPAddr, "Address to listen on for the HTTP API")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	dataDirFlag := flag.String("data-dir", defaultDataDir, "Directory holding the dataset CSV files and schema metadata")
	modelFlag := flag.String("model", llm.DefaultModel, "Default Gemini model for experiment runs")
	retryFlag := flag.Bool("retry", true, "Retry transient LLM failures once with backoff")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 30*time.Second, "Maximum time to wait for in-flight requests during graceful shutdown")

	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	if !llm.KnownModel(*modelFlag) {
		return fmt.Errorf("unknown model %q", *modelFlag)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Release:          version,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("sentry tracing enabled")
	}

	if *enablePprofFlag {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	model, err := dataset.Load(*dataDirFlag, log)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	mirror, err := dataset.NewSQLMirror(ctx, model)
	if err != nil {
		return fmt.Errorf("failed to build SQL mirror: %w", err)
	}
	defer mirror.Close()

	client, err := llm.NewGeminiClient(ctx, log)
	if err != nil {
		return err
	}

	runner, err := experiment.NewRunner(model, experiment.Config{
		Client:       client,
		Logger:       log,
		DefaultModel: *modelFlag,
		EnableRetry:  *retryFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to build experiment runner: %w", err)
	}

	srv := server.New(server.Config{
		Addr:            *httpAddrFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
	}, log, model, mirror, runner)

	log.Info("starting api server",
		"version", version,
		"addr", *httpAddrFlag,
		"model", *modelFlag,
	)
	return srv.Run(ctx)
}
