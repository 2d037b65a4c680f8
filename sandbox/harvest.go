package sandbox

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/businessastra/runbox/telemetry"
)

// Accepted extensions per mode. Generic accepts the full set; report and
// animation accept only what their recipes can produce.
var (
	genericExtensions   = []string{".png", ".jpg", ".jpeg", ".gif", ".mp4", ".pdf", ".svg", ".txt", ".csv", ".json"}
	reportExtensions    = []string{".pdf", ".png", ".jpg"}
	animationExtensions = []string{".mp4", ".gif"}
)

// Extension sets used for category classification.
var (
	imageExtensions    = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true}
	documentExtensions = map[string]bool{".pdf": true, ".txt": true, ".csv": true, ".json": true}
	videoExtensions    = map[string]bool{".mp4": true, ".avi": true, ".mov": true, ".webm": true}
)

// reservedFilenames are driver files the executor writes itself; they are
// never harvested even when their extension is accepted.
var reservedFilenames = map[string]bool{
	FilenameScript: true,
	FilenameScene:  true,
	FilenameTex:    true,
}

// ClassifyExtension maps a lowercase file extension (with dot) to its category.
func ClassifyExtension(ext string) Category {
	switch {
	case imageExtensions[ext]:
		return CategoryImage
	case documentExtensions[ext]:
		return CategoryDocument
	case videoExtensions[ext]:
		return CategoryVideo
	default:
		return CategoryOther
	}
}

// Harvester relocates files a script produced in its workspace into the
// category-specific public output directories for later HTTP retrieval.
type Harvester struct {
	logger       *zap.Logger
	outputDir    string
	imagesDir    string
	documentsDir string
	videosDir    string
	publicPrefix string
}

// NewHarvester creates a Harvester and ensures the public output tree exists.
func NewHarvester(logger *zap.Logger, cfg *Config) (*Harvester, error) {
	h := &Harvester{
		logger:       logger,
		outputDir:    cfg.OutputDir,
		imagesDir:    filepath.Join(cfg.OutputDir, "images"),
		documentsDir: filepath.Join(cfg.OutputDir, "documents"),
		videosDir:    filepath.Join(cfg.OutputDir, "videos"),
		publicPrefix: cfg.PublicPrefix,
	}

	for _, dir := range []string{h.outputDir, h.imagesDir, h.documentsDir, h.videosDir} {
		if err := os.MkdirAll(dir, DirPermission); err != nil {
			return nil, fmt.Errorf("%w: creating output directory %s: %v", ErrStorage, dir, err)
		}
	}

	logger.Info("public output directory ready", zap.String("output_dir", h.outputDir))
	return h, nil
}

// Collect walks the workspace recursively and copies every accepted,
// non-reserved file into its category directory under a workspace-id-prefixed
// name. The workspace is left intact. Collect never fails: per-file errors are
// logged and the file is omitted from the returned slice.
func (h *Harvester) Collect(workspacePath, workspaceID string, extensions []string) []OutputFile {
	accepted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		accepted[strings.ToLower(ext)] = true
	}

	outputs := []OutputFile{}

	walkErr := filepath.WalkDir(workspacePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			h.logger.Warn("error walking workspace", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !accepted[ext] || reservedFilenames[name] {
			return nil
		}

		category := ClassifyExtension(ext)
		targetDir, publicPath := h.destination(category, workspaceID, name)

		outputName := workspaceID + "_" + name
		targetPath := filepath.Join(targetDir, outputName)

		size, copyErr := copyFile(path, targetPath)
		if copyErr != nil {
			h.logger.Warn("failed to relocate output file",
				zap.String("file", name),
				zap.String("workspace_id", workspaceID),
				zap.Error(copyErr))
			return nil
		}

		telemetry.Metrics.HarvestedFiles.WithLabelValues(string(category)).Inc()

		outputs = append(outputs, OutputFile{
			Filename:     outputName,
			OriginalName: name,
			Type:         strings.TrimPrefix(ext, "."),
			Size:         size,
			Category:     category,
			PublicPath:   publicPath,
		})
		return nil
	})
	if walkErr != nil {
		h.logger.Warn("error collecting output files",
			zap.String("workspace_id", workspaceID),
			zap.Error(walkErr))
	}

	return outputs
}

// destination returns the on-disk target directory and the public URL path for
// a harvested file of the given category.
func (h *Harvester) destination(category Category, workspaceID, name string) (dir, publicPath string) {
	switch category {
	case CategoryImage:
		return h.imagesDir, fmt.Sprintf("%s/images/%s_%s", h.publicPrefix, workspaceID, name)
	case CategoryDocument:
		return h.documentsDir, fmt.Sprintf("%s/documents/%s_%s", h.publicPrefix, workspaceID, name)
	case CategoryVideo:
		return h.videosDir, fmt.Sprintf("%s/videos/%s_%s", h.publicPrefix, workspaceID, name)
	default:
		return h.outputDir, fmt.Sprintf("%s/%s_%s", h.publicPrefix, workspaceID, name)
	}
}

// copyFile copies src to dst (copy, not move) and returns the byte size.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	return size, out.Close()
}
