package sandbox

import (
	"github.com/businessastra/runbox/config"
)

// NewConfig maps the application configuration onto the executor's runtime
// parameters.
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		BaseDir:       cfg.Sandbox.BaseDir,
		OutputDir:     cfg.Sandbox.OutputDir,
		PublicPrefix:  cfg.Sandbox.PublicPrefix,
		PythonBin:     cfg.Sandbox.PythonBin,
		RenderBin:     cfg.Sandbox.RenderBin,
		Timeout:       cfg.Sandbox.Timeout(),
		RenderTimeout: cfg.Sandbox.RenderTimeout(),
		SweepInterval: cfg.Sandbox.SweepInterval(),
		MaxAge:        cfg.Sandbox.MaxWorkspaceAge(),
	}
}
