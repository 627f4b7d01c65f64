// atelier serves the graph execution engine over MCP stdio.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/atelier-studio/atelier/internal/engine"
	"github.com/atelier-studio/atelier/internal/guidance"
	"github.com/atelier-studio/atelier/internal/logging"
	"github.com/atelier-studio/atelier/internal/registry"
	"github.com/atelier-studio/atelier/internal/scheduler"
	"github.com/atelier-studio/atelier/internal/store"
	"github.com/atelier-studio/atelier/internal/validation"
	"github.com/atelier-studio/atelier/pkg/generate"
	"github.com/atelier-studio/atelier/pkg/mcp"
	"github.com/atelier-studio/atelier/pkg/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "atelier: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. MCP traffic runs over stdio, so logs go to stderr and the
	// db lives under the user's atelier dir by default.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	events := store.NewEventLog(st)

	// Engine.
	reg := registry.Builtin()
	generator := generate.NewHTTP(cfg.BackendURL,
		generate.WithLogger(logger),
		generate.WithRetry(generate.RetryPolicy{
			Max:     cfg.RetryMax,
			Backoff: "exponential",
			Delay:   cfg.retryDelay(),
		}),
	)
	eng := engine.New(engine.Config{
		Registry:   reg,
		Generator:  generator,
		Events:     events,
		Runs:       st,
		Logger:     logger,
		Synthesize: guidance.Synthesize,
	})

	validator, err := validation.NewGraphValidator(reg)
	if err != nil {
		return fmt.Errorf("compile graph schema: %w", err)
	}

	// Scheduler for recurring re-runs.
	sched := scheduler.NewScheduler(schedulerRunner{eng: eng}, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	srv := mcp.NewAtelierServer(mcp.AtelierServerDeps{
		Executor:  eng,
		Validator: validator,
		Store:     st,
		Scheduler: sched,
		Logger:    logger,
	})

	logger.Info("atelier started",
		slog.String("backend", cfg.BackendURL),
		slog.String("db", cfg.DBPath),
	)
	return srv.Serve(ctx)
}

// schedulerRunner adapts the engine to the scheduler's runner interface;
// scheduled runs have no connected client, so no status callback.
type schedulerRunner struct {
	eng *engine.Engine
}

func (r schedulerRunner) Execute(ctx context.Context, nodes []schema.Node, edges []schema.Edge) error {
	return r.eng.Execute(ctx, nodes, edges, nil)
}

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
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
