package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jd-d/ai-monitor/internal/cli"
	"github.com/jd-d/ai-monitor/internal/config"
	"github.com/jd-d/ai-monitor/internal/db"
	"github.com/jd-d/ai-monitor/internal/ingest"
	"github.com/jd-d/ai-monitor/internal/logging"
)

type processResult struct {
	Processed  int
	Created    int
	Merged     int
	Duplicates int
	Failed     int
}

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	dir := fs.String("dir", "testdata/packets", "Directory containing .json packet files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")
	failFast := fs.Bool("fail-fast", false, "Stop at the first packet that fails")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	files, err := collectJSONFiles(strings.TrimSpace(*dir), *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Process setup failed: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Process failed: no .json files found under %s\n", strings.TrimSpace(*dir))
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
		logger.Error().Err(err).Msg("process command failed to connect to database")
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

	// Files are processed in sorted filename order so batches replay
	// deterministically.
	result := processResult{}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			result.Failed++
			logger.Error().Err(err).Str("file", path).Msg("packet read failed")
			if *failFast {
				break
			}
			continue
		}

		ingestResult, err := svc.IngestOne(ctx, raw)
		if err != nil {
			result.Failed++
			logger.Error().Err(err).Str("file", path).Msg("packet ingest failed")
			if *failFast {
				break
			}
			continue
		}

		result.Processed++
		switch ingestResult.Decision {
		case ingest.DecisionCreated:
			result.Created++
		case ingest.DecisionDuplicate:
			result.Duplicates++
		default:
			result.Merged++
		}
	}

	logger.Info().
		Int("files", len(files)).
		Int("processed", result.Processed).
		Int("created", result.Created).
		Int("merged", result.Merged).
		Int("duplicates", result.Duplicates).
		Int("failed", result.Failed).
		Msg("process completed")
	fmt.Printf(
		"process files=%d processed=%d created=%d merged=%d duplicates=%d failed=%d\n",
		len(files),
		result.Processed,
		result.Created,
		result.Merged,
		result.Duplicates,
		result.Failed,
	)

	if result.Failed > 0 {
		return 1
	}
	return 0
}
