package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/businessastra/runbox/telemetry"
)

// WorkspaceManager allocates and reclaims the isolated per-execution
// directories under a single base directory. One instance exists per server
// process; concurrent executions each own a distinct workspace, so the manager
// itself needs no locking.
type WorkspaceManager struct {
	baseDir string
	logger  *zap.Logger
	fs      FileSystem
}

// WorkspaceManagerOption defines a functional option for WorkspaceManager
type WorkspaceManagerOption func(*WorkspaceManager)

// WithManagerFileSystem sets the FileSystem for WorkspaceManager
func WithManagerFileSystem(fs FileSystem) WorkspaceManagerOption {
	return func(m *WorkspaceManager) {
		m.fs = fs
	}
}

// NewWorkspaceManager creates a WorkspaceManager rooted at cfg.BaseDir,
// creating the base directory if needed.
func NewWorkspaceManager(logger *zap.Logger, cfg *Config, opts ...WorkspaceManagerOption) (*WorkspaceManager, error) {
	m := &WorkspaceManager{
		baseDir: cfg.BaseDir,
		logger:  logger,
		fs:      &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.fs.MkdirAll(m.baseDir, DirPermission); err != nil {
		return nil, fmt.Errorf("%w: creating base directory %s: %v", ErrStorage, m.baseDir, err)
	}

	logger.Info("workspace base directory ready", zap.String("base_dir", m.baseDir))
	return m, nil
}

// BaseDir returns the directory all workspaces live under.
func (m *WorkspaceManager) BaseDir() string {
	return m.baseDir
}

// Create allocates a fresh workspace with a collision-resistant random
// identifier and returns both the identifier and the directory path.
func (m *WorkspaceManager) Create() (id, path string, err error) {
	id = uuid.NewString()
	path = filepath.Join(m.baseDir, id)
	if err := m.fs.MkdirAll(path, DirPermission); err != nil {
		return "", "", fmt.Errorf("%w: creating workspace %s: %v", ErrStorage, id, err)
	}
	return id, path, nil
}

// Path returns the workspace directory for an existing identifier.
func (m *WorkspaceManager) Path(id string) string {
	return filepath.Join(m.baseDir, id)
}

// Destroy recursively deletes a workspace. Failure is logged, not fatal.
func (m *WorkspaceManager) Destroy(path string) {
	if err := m.fs.RemoveAll(path); err != nil {
		m.logger.Warn("failed to remove workspace", zap.String("path", path), zap.Error(err))
	}
}

// SweepStale deletes every immediate child of the base directory older than
// maxAge. Per-entry failures are collected and do not abort the sweep of the
// remaining entries. Returns the number of workspaces removed.
func (m *WorkspaceManager) SweepStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading base directory: %w", err)
	}

	now := time.Now()
	removed := 0
	var sweepErr error

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			sweepErr = multierr.Append(sweepErr, fmt.Errorf("stat %s: %w", entry.Name(), infoErr))
			continue
		}

		// Aged by modification time, not creation time: every write into a
		// reused workspace refreshes its clock, so only idle ones expire.
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}

		path := filepath.Join(m.baseDir, entry.Name())
		if rmErr := m.fs.RemoveAll(path); rmErr != nil {
			m.logger.Warn("failed to remove stale workspace",
				zap.String("workspace_id", entry.Name()),
				zap.Error(rmErr))
			sweepErr = multierr.Append(sweepErr, fmt.Errorf("remove %s: %w", entry.Name(), rmErr))
			continue
		}

		m.logger.Debug("removed stale workspace", zap.String("workspace_id", entry.Name()))
		removed++
	}

	if removed > 0 {
		telemetry.Metrics.SweepDeletions.Add(float64(removed))
		m.logger.Info("swept stale workspaces", zap.Int("removed", removed))
	}

	return removed, sweepErr
}

// PurgeAll removes every workspace under the base directory and recreates it.
// Called once at process startup so leftovers from a prior crash cannot poison
// a fresh run.
func (m *WorkspaceManager) PurgeAll() error {
	if err := m.fs.RemoveAll(m.baseDir); err != nil {
		return fmt.Errorf("%w: purging base directory: %v", ErrStorage, err)
	}
	if err := m.fs.MkdirAll(m.baseDir, DirPermission); err != nil {
		return fmt.Errorf("%w: recreating base directory: %v", ErrStorage, err)
	}
	m.logger.Info("purged all workspaces on startup")
	return nil
}

// RunSweeper runs SweepStale on a fixed interval until ctx is cancelled.
// Sweep errors are logged; they never stop the loop.
func (m *WorkspaceManager) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	m.logger.Info("started periodic workspace sweep",
		zap.Duration("interval", interval),
		zap.Duration("max_age", maxAge))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("workspace sweep stopped")
			return
		case <-ticker.C:
			if _, err := m.SweepStale(maxAge); err != nil {
				m.logger.Warn("workspace sweep finished with errors", zap.Error(err))
			}
		}
	}
}
