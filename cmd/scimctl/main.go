// Package main provides scimctl, the batch CLI of the scientometrics service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixir/scientometrics-service/internal/app"
	"github.com/helixir/scientometrics-service/internal/authz"
	"github.com/helixir/scientometrics-service/internal/config"
	"github.com/helixir/scientometrics-service/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Batch jobs act with full rights.
	ctx = authz.WithPrincipal(ctx, authz.SystemPrincipal())

	if err := (builder{open: connect}).root().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// connect loads configuration and wires the reconciler.
func connect(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Console logs on stderr keep stdout for command output.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "scimctl").Logger()

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	return &env{
		metrics: a.Service,
		users:   a.Users,
		enabled: app.EnabledSources(cfg),
		close:   a.Close,
	}, nil
}
