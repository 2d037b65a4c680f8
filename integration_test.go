package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/businessastra/runbox/config"
	"github.com/businessastra/runbox/logger"
	"github.com/businessastra/runbox/mcpserver"
	"github.com/businessastra/runbox/sandbox"
)

func integrationConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: config.SandboxConfig{
			BaseDir:            filepath.Join(base, "workspaces"),
			OutputDir:          filepath.Join(base, "outputs"),
			PublicPrefix:       "/static/outputs",
			PythonBin:          "python3",
			RenderBin:          "manim",
			TimeoutSec:         30,
			RenderTimeoutSec:   60,
			SweepIntervalSec:   300,
			MaxWorkspaceAgeSec: 600,
		},
		Logging: config.LoggingConfig{
			Mode:  "development",
			Level: "debug",
		},
	}
}

// TestIntegrationConfigLoggerSandbox tests the wiring between config, logger
// and the sandbox packages, mirroring what cmd/server assembles through fx.
func TestIntegrationConfigLoggerSandbox(t *testing.T) {
	t.Run("ConfigAndLoggerIntegration", func(t *testing.T) {
		cfg := integrationConfig(t)

		log, err := logger.NewFromConfig(cfg)
		require.NoError(t, err)
		assert.NotNil(t, log)
		log.Sync()
	})

	t.Run("SandboxConstruction", func(t *testing.T) {
		cfg := integrationConfig(t)
		log := zaptest.NewLogger(t)
		sandboxCfg := sandbox.NewConfig(cfg)

		assert.Equal(t, cfg.Sandbox.BaseDir, sandboxCfg.BaseDir)
		assert.Equal(t, cfg.Sandbox.Timeout(), sandboxCfg.Timeout)
		assert.Equal(t, cfg.Sandbox.RenderTimeout(), sandboxCfg.RenderTimeout)

		manager, err := sandbox.NewWorkspaceManager(log, sandboxCfg)
		require.NoError(t, err)
		harvester, err := sandbox.NewHarvester(log, sandboxCfg)
		require.NoError(t, err)

		executor := sandbox.NewExecutor(log, sandboxCfg, manager, harvester)
		require.NotNil(t, executor)
	})

	t.Run("MCPServerOverSandbox", func(t *testing.T) {
		cfg := integrationConfig(t)
		log := zaptest.NewLogger(t)
		sandboxCfg := sandbox.NewConfig(cfg)

		manager, err := sandbox.NewWorkspaceManager(log, sandboxCfg)
		require.NoError(t, err)
		harvester, err := sandbox.NewHarvester(log, sandboxCfg)
		require.NoError(t, err)
		executor := sandbox.NewExecutor(log, sandboxCfg, manager, harvester)

		server, err := mcpserver.New(cfg, log, executor)
		require.NoError(t, err)
		assert.NotNil(t, server)
	})

	t.Run("PurgeAllOnStartup", func(t *testing.T) {
		cfg := integrationConfig(t)
		log := zaptest.NewLogger(t)
		sandboxCfg := sandbox.NewConfig(cfg)

		manager, err := sandbox.NewWorkspaceManager(log, sandboxCfg)
		require.NoError(t, err)

		// Leave a workspace behind, as a crashed prior run would.
		_, _, err = manager.Create()
		require.NoError(t, err)

		require.NoError(t, manager.PurgeAll())

		id, path, err := manager.Create()
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.DirExists(t, path)
	})

	t.Run("EmptySourceRejectedEndToEnd", func(t *testing.T) {
		cfg := integrationConfig(t)
		log := zaptest.NewLogger(t)
		sandboxCfg := sandbox.NewConfig(cfg)

		manager, err := sandbox.NewWorkspaceManager(log, sandboxCfg)
		require.NoError(t, err)
		harvester, err := sandbox.NewHarvester(log, sandboxCfg)
		require.NoError(t, err)
		executor := sandbox.NewExecutor(log, sandboxCfg, manager, harvester)

		_, execErr := executor.Execute(context.Background(), sandbox.ExecuteRequest{
			Mode: sandbox.ModeGeneric,
			Code: "",
		})
		assert.ErrorIs(t, execErr, sandbox.ErrEmptySource)
	})
}
