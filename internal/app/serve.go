package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jd-d/ai-monitor/internal/cli"
	"github.com/jd-d/ai-monitor/internal/config"
	"github.com/jd-d/ai-monitor/internal/db"
	"github.com/jd-d/ai-monitor/internal/httpapi"
	"github.com/jd-d/ai-monitor/internal/ingest"
	"github.com/jd-d/ai-monitor/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Listen host (defaults to AIM_HTTP_HOST)")
	port := fs.Int("port", 0, "Listen port (defaults to AIM_HTTP_PORT)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve command failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := ingest.NewService(pool, logger)
	if err := svc.LoadState(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to load event ledger")
		fmt.Fprintf(os.Stderr, "Failed to load event ledger: %v\n", err)
		return 1
	}

	serverHost := cfg.HTTPHost
	if *host != "" {
		serverHost = *host
	}
	serverPort := cfg.HTTPPort
	if *port > 0 {
		serverPort = *port
	}

	server := httpapi.NewServer(pool, svc, logger, httpapi.Options{
		Host:            serverHost,
		Port:            serverPort,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		IngestTokenHash: cfg.IngestTokenHash,
		AllowedOrigins:  cfg.CORSAllowedOriginsList(),
	})

	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	logger.Info().Msg("server stopped")
	return 0
}
