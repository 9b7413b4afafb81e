package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/reqtrace/internal/config"
	"github.com/alfredjeanlab/reqtrace/internal/events"
	"github.com/alfredjeanlab/reqtrace/internal/service"
	"github.com/alfredjeanlab/reqtrace/internal/store"
	"github.com/alfredjeanlab/reqtrace/internal/store/postgres"
	"github.com/alfredjeanlab/reqtrace/internal/ui"
)

var (
	jsonOutput bool
	noColor    bool
	actor      string

	cfg    *config.Config
	logger *slog.Logger
)

func defaultActor() string {
	if s := os.Getenv("REQTRACE_ACTOR"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

var rootCmd = &cobra.Command{
	Use:           "reqtrace <command>",
	Short:         "Requirements traceability: import, versioning and the traceability matrix",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)
		if noColor || !ui.ShouldUseColor(os.Stdout) {
			ui.ForceNoColor()
		}
		return nil
	},
}

// backend is an opened store plus the publisher and service built on it.
type backend struct {
	store     store.Store
	publisher events.Publisher
	svc       *service.Service
}

func (b *backend) Close() {
	b.publisher.Close()
	b.store.Close()
}

// openBackend connects to Postgres and, when configured, NATS.
func openBackend() (*backend, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	st, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return newBackend(st), nil
}

// newBackend wraps st with the configured publisher. A publisher that
// cannot connect degrades to a no-op; events are best-effort.
func newBackend(st store.Store) *backend {
	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logger.Warn("events disabled", "nats_url", cfg.NATSURL, "error", err)
		} else {
			publisher = pub
			logger.Debug("events enabled", "nats_url", cfg.NATSURL)
		}
	}
	svc := service.New(st, service.Options{
		Publisher: publisher,
		Logger:    logger,
		IDs:       cfg.IDOptions(),
	})
	return &backend{store: st, publisher: publisher, svc: svc}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name recorded in history")

	rootCmd.AddGroup(
		&cobra.Group{ID: "requirements", Title: "Requirements:"},
		&cobra.Group{ID: "trace", Title: "Traceability:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Requirements
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(deleteCmd)

	// Traceability
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(matrixCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
