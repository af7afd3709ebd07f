package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jd-d/ai-monitor/internal/cli"
	"github.com/jd-d/ai-monitor/internal/config"
	"github.com/jd-d/ai-monitor/internal/db"
	"github.com/jd-d/ai-monitor/internal/ingest"
	"github.com/jd-d/ai-monitor/internal/logging"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	file := fs.String("file", "-", "Packet JSON file, or - for stdin")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	raw, err := readPacketInput(strings.TrimSpace(*file))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read packet: %v\n", err)
		return 1
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("ingest command failed to connect to database")
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

	result, err := svc.IngestOne(ctx, raw)
	if err != nil {
		logger.Error().Err(err).Msg("ingest failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"ingest decision=%s fingerprint=%s match_score=%.3f\n",
		result.Decision,
		result.Fingerprint,
		result.MatchScore,
	)
	return 0
}

func readPacketInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
