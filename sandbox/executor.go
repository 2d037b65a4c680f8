package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/businessastra/runbox/telemetry"
)

// matplotlibHeader forces a non-interactive rendering backend so plotting code
// writes files instead of opening windows on the server.
const matplotlibHeader = `import matplotlib
matplotlib.use('Agg')
import matplotlib.pyplot as plt
plt.ioff()

`

// reportPreamble is prepended to every report-mode script so generated PDFs
// work without the model having to emit boilerplate imports.
const reportPreamble = `import os
import sys
from reportlab.pdfgen import canvas
from reportlab.lib.pagesizes import letter, A4
from reportlab.platypus import SimpleDocTemplate, Paragraph, Spacer, Table, TableStyle
from reportlab.lib.styles import getSampleStyleSheet, ParagraphStyle
from reportlab.lib.units import inch
from reportlab.lib import colors

`

// Executor runs user-supplied Python source in an isolated workspace as a
// bounded child process and harvests whatever files it produced. It is safe
// for concurrent use; each invocation owns its workspace exclusively.
type Executor struct {
	logger    *zap.Logger
	config    *Config
	manager   *WorkspaceManager
	harvester *Harvester
	preproc   *Preprocessor
	runner    CommandRunner
	fs        FileSystem

	reportAvailable bool
}

// ExecutorOption defines a functional option for Executor
type ExecutorOption func(*Executor)

// WithCommandRunner sets the CommandRunner for Executor
func WithCommandRunner(runner CommandRunner) ExecutorOption {
	return func(e *Executor) {
		e.runner = runner
	}
}

// WithFileSystem sets the FileSystem for Executor
func WithFileSystem(fs FileSystem) ExecutorOption {
	return func(e *Executor) {
		e.fs = fs
	}
}

// NewExecutor creates an Executor and probes the Python environment once for
// the ReportLab dependency. Report-mode requests fail fast for the lifetime of
// the process when the probe fails.
func NewExecutor(logger *zap.Logger, cfg *Config, manager *WorkspaceManager, harvester *Harvester, opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger:    logger,
		config:    cfg,
		manager:   manager,
		harvester: harvester,
		preproc:   NewPreprocessor(cfg.PublicPrefix),
		runner:    &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(e)
	}

	e.reportAvailable = e.probeReportBackend()
	if !e.reportAvailable {
		logger.Warn("reportlab probe failed; report mode disabled",
			zap.String("python_bin", cfg.PythonBin))
	}

	return e
}

// probeReportBackend checks once at startup whether the Python interpreter can
// import reportlab.
func (e *Executor) probeReportBackend() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _, exitCode, err := e.runner.RunCommand(ctx, "", os.Environ(),
		[]string{e.config.PythonBin, "-c", "import reportlab"})
	return err == nil && exitCode == 0
}

// ReportAvailable reports whether the ReportLab probe succeeded at startup.
func (e *Executor) ReportAvailable() bool {
	return e.reportAvailable
}

// Execute runs one request to completion. Only InvalidInput,
// DependencyUnavailable and workspace-creation failures surface as Go errors,
// all before any process is spawned; every execution fault is folded into the
// returned ExecuteResult with Success=false. The workspace survives the call
// so follow-up requests can reuse its identifier; the sweeper reclaims it.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return ExecuteResult{}, ErrEmptySource
	}
	if !req.Mode.Valid() {
		return ExecuteResult{}, fmt.Errorf("unsupported execution mode: %q", req.Mode)
	}
	if req.Mode == ModeReport && !e.reportAvailable {
		return ExecuteResult{}, ErrReportBackendUnavailable
	}

	workspaceID, workspacePath, err := e.resolveWorkspace(req.WorkspaceID)
	if err != nil {
		return ExecuteResult{}, err
	}

	start := time.Now()
	result := e.execute(ctx, workspaceID, workspacePath, req)
	telemetry.ObserveExecution(string(req.Mode), result.Success, result.ExitCode, time.Since(start))

	return result, nil
}

// resolveWorkspace reuses an existing workspace id or allocates a fresh one.
// Reuse ids must be a plain directory name; issued identifiers always are,
// so anything else is a caller trying to address a path outside the base
// directory.
func (e *Executor) resolveWorkspace(id string) (string, string, error) {
	if id == "" {
		return e.manager.Create()
	}

	if filepath.Base(id) != id || id == "." || id == ".." {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidWorkspaceID, id)
	}

	path := e.manager.Path(id)
	if err := e.fs.MkdirAll(path, DirPermission); err != nil {
		return "", "", fmt.Errorf("%w: reopening workspace %s: %v", ErrStorage, id, err)
	}
	return id, path, nil
}

// execute dispatches the mode recipe, runs the child process and harvests the
// workspace. Harvesting runs regardless of how the process ended: a failed
// script may still have written partial artifacts.
func (e *Executor) execute(ctx context.Context, workspaceID, workspacePath string, req ExecuteRequest) ExecuteResult {
	var (
		args       []string
		timeout    time.Duration
		extensions []string
	)

	switch req.Mode {
	case ModeAnimation:
		if err := e.fs.WriteFile(filepath.Join(workspacePath, FilenameScene), []byte(req.Code), FilePermission); err != nil {
			return failedResult(workspaceID, fmt.Sprintf("Failed to write scene file: %v", err))
		}
		args = []string{e.config.RenderBin, FilenameScene, "-ql"}
		timeout = e.config.RenderTimeout
		extensions = animationExtensions

	default: // generic and report share the python driver
		e.seedInputFiles(workspacePath, req.InputFiles)

		code := e.preproc.RewriteOutputPaths(req.Code)
		switch req.Mode {
		case ModeReport:
			code = reportPreamble + code
			extensions = reportExtensions
		default:
			if usesMatplotlib(code) {
				code = matplotlibHeader + code
			}
			extensions = genericExtensions
		}

		if err := e.fs.WriteFile(filepath.Join(workspacePath, FilenameScript), []byte(code), FilePermission); err != nil {
			return failedResult(workspaceID, fmt.Sprintf("Failed to write script file: %v", err))
		}
		args = []string{e.config.PythonBin, FilenameScript}
		timeout = e.config.Timeout
	}

	stdout, stderr, exitCode, timedOut, runErr := e.run(ctx, workspacePath, timeout, args)

	result := ExecuteResult{
		Stdout:      stdout,
		Stderr:      stderr,
		ExitCode:    exitCode,
		WorkspaceID: workspaceID,
	}

	switch {
	case timedOut:
		result.Success = false
		result.ExitCode = -1
		result.Stderr = appendLine(stderr, fmt.Sprintf("Code execution timed out after %s", timeout))
	case runErr != nil:
		result.Success = false
		result.ExitCode = -1
		result.Stderr = appendLine(stderr, fmt.Sprintf("Execution error: %v", runErr))
	default:
		result.Success = exitCode == 0
	}

	result.OutputFiles = e.harvester.Collect(workspacePath, workspaceID, extensions)

	e.logger.Info("code execution completed",
		zap.String("workspace_id", workspaceID),
		zap.String("mode", string(req.Mode)),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("timed_out", timedOut),
		zap.Int("output_files", len(result.OutputFiles)))

	return result
}

// run spawns the child process with the workspace as working directory and a
// restricted environment, enforcing the wall-clock timeout via the context.
func (e *Executor) run(ctx context.Context, workspacePath string, timeout time.Duration, args []string) (stdout, stderr string, exitCode int, timedOut bool, err error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, exitCode, err = e.runner.RunCommand(runCtx, workspacePath, e.buildEnv(workspacePath), args)

	if runCtx.Err() == context.DeadlineExceeded {
		return stdout, stderr, exitCode, true, nil
	}
	return stdout, stderr, exitCode, false, err
}

// buildEnv copies the parent environment and constrains the Python runtime to
// the workspace: no bytecode cache files, unbuffered output, module search
// path rooted at the workspace.
func (e *Executor) buildEnv(workspacePath string) []string {
	env := os.Environ()
	env = append(env,
		"PYTHONPATH="+workspacePath,
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONUNBUFFERED=1",
	)
	return env
}

// seedInputFiles writes previously uploaded file contents into the workspace.
// Best-effort: a failed copy is logged and execution proceeds without it.
func (e *Executor) seedInputFiles(workspacePath string, files map[string]string) {
	for name, content := range files {
		// Uploaded names are flat; drop anything trying to traverse out.
		base := filepath.Base(name)
		if base != name || name == "" || name == "." {
			e.logger.Warn("skipping input file with unsafe name", zap.String("filename", name))
			continue
		}

		path := filepath.Join(workspacePath, base)
		if err := e.fs.WriteFile(path, []byte(content), FilePermission); err != nil {
			e.logger.Warn("failed to copy input file into workspace",
				zap.String("filename", base), zap.Error(err))
			continue
		}
		e.logger.Debug("copied input file into workspace", zap.String("filename", base))
	}
}

// usesMatplotlib detects plotting code that needs the non-interactive backend.
func usesMatplotlib(code string) bool {
	lower := strings.ToLower(code)
	for _, marker := range []string{"matplotlib", "plt.", "pyplot"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// failedResult shapes a pre-spawn fault inside the workspace (e.g. the driver
// file could not be written) as a failed execution.
func failedResult(workspaceID, message string) ExecuteResult {
	return ExecuteResult{
		Success:     false,
		ExitCode:    -1,
		Stderr:      message,
		OutputFiles: []OutputFile{},
		WorkspaceID: workspaceID,
	}
}

func appendLine(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
