package sandbox

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requirePython skips the test when no python3 interpreter is on PATH, so the
// suite stays runnable on build machines without a Python toolchain.
func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available, skipping integration test")
	}
}

func TestIntegrationGenericPrint(t *testing.T) {
	requirePython(t)

	cfg := testConfig(t)
	executor := newTestExecutor(t, cfg, &RealCommandRunner{})

	result, err := executor.Execute(context.Background(), ExecuteRequest{
		Mode: ModeGeneric,
		Code: `print("hi")`,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.ExitCode)
	assert.Contains(t, result.Stdout, "hi")
	assert.Empty(t, result.OutputFiles)
}

func TestIntegrationGenericProducesArtifact(t *testing.T) {
	requirePython(t)

	cfg := testConfig(t)
	executor := newTestExecutor(t, cfg, &RealCommandRunner{})

	// Writes through the public-path literal, which the preprocessor rewrites
	// into a workspace-relative name.
	code := `
with open('/static/outputs/images/out.png', 'wb') as f:
    f.write(b'\x89PNG fake image bytes')
print('written')
`
	result, err := executor.Execute(context.Background(), ExecuteRequest{Mode: ModeGeneric, Code: code})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Contains(t, result.Stdout, "written")
	require.Len(t, result.OutputFiles, 1)

	file := result.OutputFiles[0]
	assert.Equal(t, CategoryImage, file.Category)
	assert.Equal(t, "out.png", file.OriginalName)
	assert.True(t, strings.HasSuffix(file.PublicPath, "_out.png"),
		"public path %q should end in _out.png", file.PublicPath)
	assert.Equal(t, int64(len("\x89PNG fake image bytes")), file.Size)
}

func TestIntegrationScriptFailure(t *testing.T) {
	requirePython(t)

	cfg := testConfig(t)
	executor := newTestExecutor(t, cfg, &RealCommandRunner{})

	result, err := executor.Execute(context.Background(), ExecuteRequest{
		Mode: ModeGeneric,
		Code: `raise RuntimeError("deliberate")`,
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotZero(t, result.ExitCode)
	assert.Contains(t, result.Stderr, "deliberate")
}

func TestIntegrationTimeout(t *testing.T) {
	requirePython(t)

	cfg := testConfig(t)
	cfg.Timeout = 1 * time.Second
	executor := newTestExecutor(t, cfg, &RealCommandRunner{})

	start := time.Now()
	result, err := executor.Execute(context.Background(), ExecuteRequest{
		Mode: ModeGeneric,
		Code: "import time\ntime.sleep(30)",
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Stderr, "timed out")
	// Timeout plus a small grace bound, far below the sleep duration.
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestIntegrationInputFileReadable(t *testing.T) {
	requirePython(t)

	cfg := testConfig(t)
	executor := newTestExecutor(t, cfg, &RealCommandRunner{})

	result, err := executor.Execute(context.Background(), ExecuteRequest{
		Mode: ModeGeneric,
		Code: "print(open('data.txt').read())",
		InputFiles: map[string]string{
			"data.txt": "uploaded contents",
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Contains(t, result.Stdout, "uploaded contents")
}
