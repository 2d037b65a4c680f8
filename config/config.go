package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport   string `mapstructure:"transport"`
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	BaseDir            string `mapstructure:"base_dir"`
	OutputDir          string `mapstructure:"output_dir"`
	PublicPrefix       string `mapstructure:"public_prefix"`
	PythonBin          string `mapstructure:"python_bin"`
	RenderBin          string `mapstructure:"render_bin"`
	TimeoutSec         int    `mapstructure:"timeout_sec"`
	RenderTimeoutSec   int    `mapstructure:"render_timeout_sec"`
	SweepIntervalSec   int    `mapstructure:"sweep_interval_sec"`
	MaxWorkspaceAgeSec int    `mapstructure:"max_workspace_age_sec"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.metrics_port", 9090)

	viper.SetDefault("sandbox.base_dir", filepath.Join(os.TempDir(), "runbox-workspaces"))
	viper.SetDefault("sandbox.output_dir", filepath.Join("static", "outputs"))
	viper.SetDefault("sandbox.public_prefix", "/static/outputs")
	viper.SetDefault("sandbox.python_bin", "python3")
	viper.SetDefault("sandbox.render_bin", "manim")
	viper.SetDefault("sandbox.timeout_sec", 30)
	viper.SetDefault("sandbox.render_timeout_sec", 60)
	viper.SetDefault("sandbox.sweep_interval_sec", 300)
	viper.SetDefault("sandbox.max_workspace_age_sec", 600)

	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	if c.Sandbox.BaseDir == "" {
		return fmt.Errorf("sandbox.base_dir must not be empty")
	}

	if c.Sandbox.OutputDir == "" {
		return fmt.Errorf("sandbox.output_dir must not be empty")
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.RenderTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.render_timeout_sec must be positive, got: %d", c.Sandbox.RenderTimeoutSec)
	}

	if c.Sandbox.SweepIntervalSec <= 0 {
		return fmt.Errorf("sandbox.sweep_interval_sec must be positive, got: %d", c.Sandbox.SweepIntervalSec)
	}

	if c.Sandbox.MaxWorkspaceAgeSec <= 0 {
		return fmt.Errorf("sandbox.max_workspace_age_sec must be positive, got: %d", c.Sandbox.MaxWorkspaceAgeSec)
	}

	return nil
}

// Timeout returns the generic/report execution timeout as a duration
func (c *SandboxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// RenderTimeout returns the animation rendering timeout as a duration
func (c *SandboxConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSec) * time.Second
}

// SweepInterval returns the background sweep interval as a duration
func (c *SandboxConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// MaxWorkspaceAge returns the workspace staleness threshold as a duration
func (c *SandboxConfig) MaxWorkspaceAge() time.Duration {
	return time.Duration(c.MaxWorkspaceAgeSec) * time.Second
}
