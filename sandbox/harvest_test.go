package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHarvester(t *testing.T) (*Harvester, string) {
	t.Helper()
	outputDir := filepath.Join(t.TempDir(), "outputs")
	cfg := &Config{OutputDir: outputDir, PublicPrefix: "/static/outputs"}
	h, err := NewHarvester(zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	return h, outputDir
}

func writeWorkspaceFile(t *testing.T, workspace, name, content string) {
	t.Helper()
	path := filepath.Join(workspace, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestHarvesterCreatesOutputTree(t *testing.T) {
	_, outputDir := newTestHarvester(t)

	for _, sub := range []string{"", "images", "documents", "videos"} {
		info, err := os.Stat(filepath.Join(outputDir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestHarvesterClassification(t *testing.T) {
	h, outputDir := newTestHarvester(t)
	workspace := t.TempDir()
	const id = "ws-classify"

	writeWorkspaceFile(t, workspace, "chart.png", "png-bytes")
	writeWorkspaceFile(t, workspace, "report.pdf", "pdf-bytes")
	writeWorkspaceFile(t, workspace, "clip.mp4", "mp4-bytes")

	files := h.Collect(workspace, id, genericExtensions)
	require.Len(t, files, 3)

	byName := map[string]OutputFile{}
	for _, f := range files {
		byName[f.OriginalName] = f
	}

	chart := byName["chart.png"]
	assert.Equal(t, CategoryImage, chart.Category)
	assert.Equal(t, "/static/outputs/images/ws-classify_chart.png", chart.PublicPath)
	assert.Equal(t, "png", chart.Type)
	assert.Equal(t, "ws-classify_chart.png", chart.Filename)
	assert.Equal(t, int64(len("png-bytes")), chart.Size)
	assert.FileExists(t, filepath.Join(outputDir, "images", "ws-classify_chart.png"))

	report := byName["report.pdf"]
	assert.Equal(t, CategoryDocument, report.Category)
	assert.Equal(t, "/static/outputs/documents/ws-classify_report.pdf", report.PublicPath)
	assert.FileExists(t, filepath.Join(outputDir, "documents", "ws-classify_report.pdf"))

	clip := byName["clip.mp4"]
	assert.Equal(t, CategoryVideo, clip.Category)
	assert.Equal(t, "/static/outputs/videos/ws-classify_clip.mp4", clip.PublicPath)
	assert.FileExists(t, filepath.Join(outputDir, "videos", "ws-classify_clip.mp4"))
}

func TestHarvesterSkipsReservedFilenames(t *testing.T) {
	h, _ := newTestHarvester(t)
	workspace := t.TempDir()

	writeWorkspaceFile(t, workspace, FilenameScript, "print('x')")
	writeWorkspaceFile(t, workspace, FilenameScene, "scene code")
	writeWorkspaceFile(t, workspace, FilenameTex, "\\documentclass{article}")
	writeWorkspaceFile(t, workspace, "legit.txt", "keep me")

	files := h.Collect(workspace, "ws-reserved", genericExtensions)
	require.Len(t, files, 1)
	assert.Equal(t, "legit.txt", files[0].OriginalName)
}

func TestHarvesterExtensionFilter(t *testing.T) {
	h, _ := newTestHarvester(t)
	workspace := t.TempDir()

	writeWorkspaceFile(t, workspace, "out.pdf", "pdf")
	writeWorkspaceFile(t, workspace, "out.mp4", "mp4")
	writeWorkspaceFile(t, workspace, "out.png", "png")

	files := h.Collect(workspace, "ws-filter", animationExtensions)
	require.Len(t, files, 1)
	assert.Equal(t, "out.mp4", files[0].OriginalName)
}

func TestHarvesterWalksNestedDirectories(t *testing.T) {
	h, _ := newTestHarvester(t)
	workspace := t.TempDir()

	// Manim writes its renders under a media/ subtree.
	writeWorkspaceFile(t, workspace, filepath.Join("media", "videos", "scene", "480p15", "Scene.mp4"), "render")

	files := h.Collect(workspace, "ws-nested", animationExtensions)
	require.Len(t, files, 1)
	assert.Equal(t, "Scene.mp4", files[0].OriginalName)
	assert.Equal(t, CategoryVideo, files[0].Category)
}

func TestHarvesterLeavesWorkspaceIntact(t *testing.T) {
	h, _ := newTestHarvester(t)
	workspace := t.TempDir()

	writeWorkspaceFile(t, workspace, "keep.png", "bytes")
	files := h.Collect(workspace, "ws-copy", genericExtensions)
	require.Len(t, files, 1)

	// Copy, not move: the original stays in the workspace.
	assert.FileExists(t, filepath.Join(workspace, "keep.png"))
}

func TestHarvesterMissingWorkspace(t *testing.T) {
	h, _ := newTestHarvester(t)

	files := h.Collect(filepath.Join(t.TempDir(), "does-not-exist"), "ws-missing", genericExtensions)
	assert.Empty(t, files)
}

func TestClassifyExtension(t *testing.T) {
	cases := map[string]Category{
		".png":  CategoryImage,
		".jpeg": CategoryImage,
		".svg":  CategoryImage,
		".pdf":  CategoryDocument,
		".csv":  CategoryDocument,
		".json": CategoryDocument,
		".mp4":  CategoryVideo,
		".webm": CategoryVideo,
		".xyz":  CategoryOther,
		"":      CategoryOther,
	}

	for ext, want := range cases {
		assert.Equal(t, want, ClassifyExtension(ext), "extension %q", ext)
	}
}
