package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/slowlog/internal/config"
	"github.com/crimson-sun/slowlog/internal/engine"
	"github.com/crimson-sun/slowlog/internal/engine/heuristic"
	"github.com/crimson-sun/slowlog/internal/logging"
	"github.com/crimson-sun/slowlog/internal/notifier"
	"github.com/crimson-sun/slowlog/internal/notifier/archive"
	"github.com/crimson-sun/slowlog/internal/notifier/file"
	"github.com/crimson-sun/slowlog/internal/notifier/multi"
	"github.com/crimson-sun/slowlog/internal/notifier/rollbar"
	"github.com/crimson-sun/slowlog/internal/notifier/stdout"
	"github.com/crimson-sun/slowlog/internal/notifier/webhook"
	"github.com/crimson-sun/slowlog/internal/pipeline"
	"github.com/crimson-sun/slowlog/internal/source"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	cfg := config.Load()
	var thresholds []string

	cmd := &cobra.Command{
		Use:   "slowlog [flags] access_token",
		Short: "Report slow MySQL queries to Rollbar",
		Long: "slowlog reads a MySQL slow query log from stdin (or follows a file), " +
			"scores every query against duration, lock and row-count thresholds " +
			"and reports findings at or above the chosen level.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.AccessToken = args[0]
			for _, t := range thresholds {
				key, bounds, ok := strings.Cut(t, "=")
				if !ok {
					return fmt.Errorf("invalid --threshold %q: want key=b0,b1,b2,b3,b4", t)
				}
				if cfg.Thresholds == nil {
					cfg.Thresholds = make(map[string]string)
				}
				cfg.Thresholds[key] = bounds
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logging.Init(cfg.Debug, logging.ParseLevel(cfg.LogLevel))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, in, out)
		},
	}

	cmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetIn(in)
	cmd.SetOut(out)

	f := cmd.Flags()
	f.StringVarP(&cfg.Environment, "environment", "e", cfg.Environment, "Rollbar environment name")
	f.IntVarP(&cfg.Level, "level", "l", cfg.Level, "Minimum level to report, 0 (debug) to 4 (critical)")
	f.BoolVarP(&cfg.Debug, "debug", "D", cfg.Debug, "Print reports to stdout instead of sending them")
	f.BoolVar(&cfg.Output.JSON, "json", cfg.Output.JSON, "With --debug, print reports as NDJSON")
	f.StringVar(&cfg.Follow, "follow", cfg.Follow, "Tail this log file instead of reading stdin")
	f.BoolVar(&cfg.FromStart, "from-start", cfg.FromStart, "With --follow, read the existing file contents first")
	f.StringVar(&cfg.Rollbar.Endpoint, "endpoint", cfg.Rollbar.Endpoint, "Rollbar API base URL")
	f.Float64Var(&cfg.Rollbar.RateLimit, "rate-limit", cfg.Rollbar.RateLimit, "Rollbar items per second, 0 disables limiting")
	f.IntVar(&cfg.Rollbar.RateBurst, "rate-burst", cfg.Rollbar.RateBurst, "Rollbar burst size")
	f.StringVar(&cfg.Output.WebhookURL, "webhook", cfg.Output.WebhookURL, "Also POST findings in batches to this URL")
	f.StringVar(&cfg.Output.FindingsFile, "findings-file", cfg.Output.FindingsFile, "Also append findings as NDJSON to this file")
	f.StringVar(&cfg.Output.ArchivePath, "archive", cfg.Output.ArchivePath, "Also record findings in this SQLite database")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	f.StringArrayVar(&thresholds, "threshold", nil, "Override heuristic boundaries, key=b0,b1,b2,b3,b4 (repeatable)")

	return cmd
}

// run wires the pipeline and processes input until it ends or ctx is cancelled.
func run(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) error {
	overrides, err := cfg.Overrides()
	if err != nil {
		return err
	}
	hs, err := heuristic.Configure(overrides)
	if err != nil {
		return err
	}

	n, err := buildNotifier(cfg, out)
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			slog.Warn("notifier close failed", "error", err)
		}
	}()

	src, err := openSource(cfg, in)
	if err != nil {
		return err
	}

	p := pipeline.New(src, engine.New(hs, cfg.MinLevel(), n))
	defer p.Close()

	slog.Info("slowlog starting",
		"environment", cfg.Environment,
		"min_level", cfg.MinLevel().String(),
		"debug", cfg.Debug,
		"follow", cfg.Follow,
	)

	stats, err := p.Run(ctx)
	slog.Info("slowlog finished",
		"lines", stats.Lines,
		"headers", stats.Headers,
		"events", stats.Events,
		"ignored", stats.Ignored,
		"findings", stats.Findings,
		"notify_errors", stats.NotifyErrors,
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildNotifier returns the primary notifier (debug output or Rollbar)
// fanned out with any configured extra sinks.
func buildNotifier(cfg config.Config, out io.Writer) (notifier.Notifier, error) {
	var ns []notifier.Notifier
	closeAll := func() {
		for _, n := range ns {
			n.Close()
		}
	}

	switch {
	case cfg.Debug && cfg.Output.JSON:
		ns = append(ns, stdout.NewJSON(out, false))
	case cfg.Debug:
		ns = append(ns, stdout.New(out, cfg.Environment))
	default:
		opts := []rollbar.Option{
			rollbar.WithRateLimit(cfg.Rollbar.RateLimit, cfg.Rollbar.RateBurst),
			rollbar.WithVersion(version),
		}
		if cfg.Rollbar.Endpoint != "" {
			opts = append(opts, rollbar.WithEndpoint(cfg.Rollbar.Endpoint))
		}
		ns = append(ns, rollbar.New(cfg.AccessToken, cfg.Environment, opts...))
	}

	if cfg.Output.WebhookURL != "" {
		ns = append(ns, webhook.New(cfg.Output.WebhookURL))
	}
	if cfg.Output.FindingsFile != "" {
		fn, err := file.New(cfg.Output.FindingsFile)
		if err != nil {
			closeAll()
			return nil, err
		}
		ns = append(ns, fn)
	}
	if cfg.Output.ArchivePath != "" {
		a, err := archive.New(cfg.Output.ArchivePath, cfg.Environment)
		if err != nil {
			closeAll()
			return nil, err
		}
		ns = append(ns, a)
	}

	if len(ns) == 1 {
		return ns[0], nil
	}
	return multi.New(ns...), nil
}

func openSource(cfg config.Config, in io.Reader) (source.LineReader, error) {
	if cfg.Follow != "" {
		return source.Follow(cfg.Follow, !cfg.FromStart)
	}
	return source.NewReader(in), nil
}
