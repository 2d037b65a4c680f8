package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Mode selects one of the three execution recipes.
type Mode string

// Execution modes
const (
	ModeGeneric   Mode = "generic"
	ModeReport    Mode = "report"
	ModeAnimation Mode = "animation"
)

// Valid reports whether m is a known execution mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeGeneric, ModeReport, ModeAnimation:
		return true
	}
	return false
}

// Category classifies a harvested output file by extension.
type Category string

// Output file categories
const (
	CategoryImage    Category = "image"
	CategoryDocument Category = "document"
	CategoryVideo    Category = "video"
	CategoryOther    Category = "other"
)

// ExecuteRequest represents the parameters for one code execution.
type ExecuteRequest struct {
	Mode Mode
	Code string

	// WorkspaceID reuses an existing workspace when set; a fresh workspace
	// is allocated otherwise.
	WorkspaceID string

	// InputFiles are previously uploaded file contents (filename -> text)
	// seeded into the workspace before execution. Copy failures are logged
	// and execution proceeds without the file.
	InputFiles map[string]string
}

// OutputFile describes a single harvested artifact under the public output tree.
type OutputFile struct {
	Filename     string   `json:"filename"`      // workspace-id-prefixed name on disk
	OriginalName string   `json:"original_name"` // name the script wrote
	Type         string   `json:"type"`          // extension without the dot
	Size         int64    `json:"size"`
	Category     Category `json:"category"`
	PublicPath   string   `json:"path"` // URL path for HTTP retrieval
}

// ExecuteResult represents the outcome of one code execution. Exactly one of
// success, timeout or runtime failure holds; timeout and runtime failures are
// reported here, never as Go errors.
type ExecuteResult struct {
	Success     bool         `json:"success"`
	ExitCode    int          `json:"exit_code"`
	Stdout      string       `json:"stdout"`
	Stderr      string       `json:"stderr"`
	OutputFiles []OutputFile `json:"output_files"`
	WorkspaceID string       `json:"workspace_id"`
}

// Request-level errors. Anything that happens after a process is spawned is
// folded into the ExecuteResult instead.
var (
	// ErrEmptySource rejects empty or whitespace-only source before any
	// workspace is created.
	ErrEmptySource = errors.New("source code is empty")

	// ErrInvalidWorkspaceID rejects reuse identifiers that are not a plain
	// directory name. Identifiers are issued as random tokens; anything with
	// a path separator or dot component could address a directory outside
	// the base directory.
	ErrInvalidWorkspaceID = errors.New("invalid workspace identifier")

	// ErrReportBackendUnavailable is returned for report mode when the
	// ReportLab probe failed at startup. No process is spawned.
	ErrReportBackendUnavailable = errors.New("reportlab is not available in the python environment")

	// ErrStorage wraps workspace directory failures (permissions, disk full).
	ErrStorage = errors.New("workspace storage error")
)

// CodeExecutor is the single synchronous call exposed to the serving layer.
type CodeExecutor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// CommandRunner defines an interface for spawning the child process.
type CommandRunner interface {
	RunCommand(ctx context.Context, dir string, env []string, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using os/exec.
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments, working directory and
// environment, capturing stdout and stderr. A non-zero exit is reported via
// exitCode, not err.
func (RealCommandRunner) RunCommand(ctx context.Context, dir string, env []string, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Safe as this is controlled input
	cmd.Dir = dir
	cmd.Env = env

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	exitCode = 0
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			exitCode = exitError.ExitCode()
			err = nil
		} else {
			return stdoutBuf.String(), stderrBuf.String(), 0, err
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, err
}

// FileSystem defines an interface for the file system operations the executor
// and workspace manager perform.
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
	FileExists(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations.
type RealFileSystem struct{}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (RealFileSystem) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// File permission constants
const (
	DirPermission  = 0755
	FilePermission = 0644
)

// Reserved driver filenames, never harvested even when their extension matches.
const (
	FilenameScript = "main.py"
	FilenameScene  = "manim_scene.py"
	FilenameTex    = "document.tex"
)

// Config holds the executor's runtime parameters, mapped from the application
// configuration by NewConfig.
type Config struct {
	BaseDir       string
	OutputDir     string
	PublicPrefix  string
	PythonBin     string
	RenderBin     string
	Timeout       time.Duration
	RenderTimeout time.Duration
	SweepInterval time.Duration
	MaxAge        time.Duration
}
