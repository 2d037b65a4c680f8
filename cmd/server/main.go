// Package main is the entry point for the Runbox sandbox server.
//
// Runbox executes AI-generated Python code on behalf of a chat application:
// each request gets an isolated workspace directory, a bounded child process
// (plain script, ReportLab PDF generation, or Manim animation rendering), and
// its produced files are relocated into a public output tree for HTTP
// retrieval. A background sweep reclaims stale workspaces. The executor is
// exposed over the Model Context Protocol on stdio or HTTP.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/businessastra/runbox/config"
	"github.com/businessastra/runbox/logger"
	"github.com/businessastra/runbox/mcpserver"
	"github.com/businessastra/runbox/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Sandbox core
			sandbox.NewConfig,
			sandbox.NewWorkspaceManager,
			sandbox.NewHarvester,
			newExecutor,

			// MCP Server
			mcpserver.New,
		),

		fx.Invoke(
			runSweeper,
			serveMetrics,
			startTransport,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

// newExecutor adapts the variadic executor constructor for fx.
func newExecutor(log *zap.Logger, cfg *sandbox.Config, manager *sandbox.WorkspaceManager, harvester *sandbox.Harvester) sandbox.CodeExecutor {
	return sandbox.NewExecutor(log, cfg, manager, harvester)
}

// runSweeper purges leftover workspaces from a prior run at startup and keeps
// the periodic staleness sweep running until shutdown.
func runSweeper(lc fx.Lifecycle, cfg *sandbox.Config, manager *sandbox.WorkspaceManager) {
	sweepCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := manager.PurgeAll(); err != nil {
				return err
			}
			go func() {
				defer close(done)
				manager.RunSweeper(sweepCtx, cfg.SweepInterval, cfg.MaxAge)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

// serveMetrics exposes the Prometheus registry when a metrics port is set.
// The listener drains on shutdown through the same lifecycle as the sweeper.
func serveMetrics(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) {
	if cfg.Server.MetricsPort <= 0 {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics listener", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics listener stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// startTransport starts the configured MCP transport.
func startTransport(cfg *config.Config, server *mcpserver.MCPServer) {
	switch cfg.Server.Transport {
	case "stdio":
		go func() {
			if err := server.ServeStdio(); err != nil {
				panic(err)
			}
		}()
	case "http":
		go func() {
			if err := server.ServeHTTP(); err != nil {
				panic(err)
			}
		}()
	default:
		panic("unsupported transport: " + cfg.Server.Transport)
	}
}
