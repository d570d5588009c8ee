// Package source collects the reviewable files of a local directory
// into a single prompt payload.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codeready-toolchain/revue/pkg/config"
)

// DirectoryCollector walks a directory tree and concatenates the
// selected files with per-file headers. The payload is bounded both
// per file and in total; files past the total budget are skipped and
// counted.
type DirectoryCollector struct {
	cfg    config.SourceConfig
	logger *slog.Logger
}

// NewDirectoryCollector creates a collector with the given bounds.
func NewDirectoryCollector(cfg config.SourceConfig, logger *slog.Logger) *DirectoryCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryCollector{cfg: cfg, logger: logger}
}

// Collect walks dir and returns the concatenated payload. File order
// is deterministic (lexicographic walk order) so repeated collections
// of an unchanged tree produce identical payloads.
func (c *DirectoryCollector) Collect(ctx context.Context, dir string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve source directory %s: %w", dir, err)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if c.excludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !c.wantedExtension(path) {
			return nil
		}
		return c.appendPath(&paths, path)
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk source directory %s: %w", root, err)
	}
	sort.Strings(paths)

	var b strings.Builder
	var total int64
	skipped := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("Skipping unreadable source file", "path", path, "error", err)
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		entry := fmt.Sprintf("--- %s ---\n%s\n\n", filepath.ToSlash(rel), data)
		if c.cfg.MaxTotalBytes > 0 && total+int64(len(entry)) > c.cfg.MaxTotalBytes {
			skipped++
			continue
		}
		b.WriteString(entry)
		total += int64(len(entry))
	}

	if skipped > 0 {
		fmt.Fprintf(&b, "(%d files omitted: total source budget reached)\n", skipped)
	}
	c.logger.Info("Collected source files",
		"directory", root, "files", len(paths)-skipped, "skipped", skipped, "bytes", total)
	return b.String(), nil
}

func (c *DirectoryCollector) appendPath(paths *[]string, path string) error {
	if c.cfg.MaxFileBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil
		}
		if info.Size() > c.cfg.MaxFileBytes {
			c.logger.Debug("Skipping oversized source file", "path", path, "bytes", info.Size())
			return nil
		}
	}
	*paths = append(*paths, path)
	return nil
}

func (c *DirectoryCollector) excludedDir(name string) bool {
	for _, d := range c.cfg.ExcludeDirs {
		if name == d {
			return true
		}
	}
	return false
}

func (c *DirectoryCollector) wantedExtension(path string) bool {
	if len(c.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.cfg.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
