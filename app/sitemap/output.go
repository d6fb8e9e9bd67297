package sitemap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

// WriteFiles writes every document of result into dir. Each file is
// replaced atomically, and numbered sitemaps or an index left over from
// a larger previous run are removed.
func WriteFiles(dir string, cfg Config, result *GenerationResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	written := make(map[string]bool, len(result.Sitemaps)+1)
	var paths []string

	write := func(name, content string) error {
		path, err := writeAtomic(dir, name, content)
		if err != nil {
			return err
		}
		written[name] = true
		paths = append(paths, path)
		return nil
	}

	for _, f := range result.Sitemaps {
		if err := write(f.Filename, f.Content); err != nil {
			return paths, err
		}
	}
	if result.SitemapIndex != nil {
		if err := write(result.SitemapIndex.Filename, result.SitemapIndex.Content); err != nil {
			return paths, err
		}
	}

	// A failed run produces no files; keep the previous set on disk.
	if len(result.Sitemaps) == 0 {
		return paths, nil
	}

	if err := removeStale(dir, cfg, written); err != nil {
		return paths, err
	}

	return paths, nil
}

func writeAtomic(dir, name, content string) (string, error) {
	path := filepath.Join(dir, name)
	tempPath := filepath.Join(dir, "."+name+".tmp")

	if err := os.WriteFile(tempPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s to temporary file: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return path, nil
}

func removeStale(dir string, cfg Config, written map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list output directory: %w", err)
	}

	numbered := numberedPattern(cfg.Filename)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || written[name] {
			continue
		}
		if name != cfg.IndexFilename && !numbered.MatchString(name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to remove stale %s: %w", name, err)
		}
		slog.Debug("Removed stale sitemap file", "file", name)
	}

	return nil
}

func numberedPattern(filename string) *regexp.Regexp {
	ext := filepath.Ext(filename)
	stem := filename[:len(filename)-len(ext)]
	return regexp.MustCompile(`^` + regexp.QuoteMeta(stem) + `-[0-9]+` + regexp.QuoteMeta(ext) + `$`)
}
