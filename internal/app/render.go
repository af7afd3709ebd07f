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
	"github.com/jd-d/ai-monitor/internal/event"
	"github.com/jd-d/ai-monitor/internal/logging"
	"github.com/jd-d/ai-monitor/internal/render"
)

func runRender(args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	fingerprint := fs.String("fingerprint", "", "Event fingerprint to render")
	out := fs.String("out", "-", "Output file, or - for stdout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*fingerprint) == "" {
		fmt.Fprintln(os.Stderr, "--fingerprint is required")
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("render command failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	events, err := pool.LoadEvents(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load event ledger")
		fmt.Fprintf(os.Stderr, "Failed to load event ledger: %v\n", err)
		return 1
	}

	target, ok := events[event.Fingerprint(strings.TrimSpace(*fingerprint))]
	if !ok {
		fmt.Fprintf(os.Stderr, "No event with fingerprint %s\n", strings.TrimSpace(*fingerprint))
		return 1
	}

	html := render.ArticleHistorySection(target)
	if strings.TrimSpace(*out) == "" || strings.TrimSpace(*out) == "-" {
		fmt.Print(html)
		return 0
	}

	if err := os.WriteFile(strings.TrimSpace(*out), []byte(html), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", strings.TrimSpace(*out), err)
		return 1
	}
	fmt.Printf("render fingerprint=%s entries=%d out=%s\n", target.Fingerprint, len(target.ArticleHistory), strings.TrimSpace(*out))
	return 0
}
