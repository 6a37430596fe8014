// Package assets implements the static asset collection preparation step.
//
// Collection gathers files from local source directories and an optional S3
// source into a single output directory. Sources are consulted in order and
// earlier sources win when the same relative path appears more than once;
// the S3 source is considered last. Files already present in the output with
// matching size and a modification time no older than the source are
// skipped, so a second pass over unchanged inputs is a no-op.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/marmos91/stevedore/internal/logger"
	"github.com/marmos91/stevedore/pkg/metrics"
)

// Stats summarizes one collection pass.
type Stats struct {
	Copied  int   // files written this pass
	Skipped int   // files already up to date or shadowed by an earlier source
	Bytes   int64 // bytes written this pass
}

// Config describes where assets come from and where they are collected to.
type Config struct {
	// SourceDirs are local directories scanned in order. A configured
	// directory that does not exist fails the step.
	SourceDirs []string

	// S3 optionally adds a remote bucket prefix as the last source.
	S3 *S3Config

	// OutputDir is the serving directory assets are collected into.
	OutputDir string

	// Clean removes the output directory contents before collecting.
	Clean bool
}

// Collector gathers static assets into the output directory.
type Collector struct {
	cfg     Config
	metrics metrics.PrepareMetrics
}

// NewCollector creates a Collector. A nil metrics implementation disables
// collection metrics.
func NewCollector(cfg Config, m metrics.PrepareMetrics) *Collector {
	return &Collector{
		cfg:     cfg,
		metrics: m,
	}
}

// Name implements prepare.Step.
func (c *Collector) Name() string {
	return "assets"
}

// Run implements prepare.Step.
func (c *Collector) Run(ctx context.Context) error {
	_, err := c.Collect(ctx)
	return err
}

// Collect runs one collection pass and reports what it did.
func (c *Collector) Collect(ctx context.Context) (*Stats, error) {
	if c.cfg.OutputDir == "" {
		return nil, errors.New("output directory not configured")
	}

	if c.cfg.Clean {
		if err := cleanDir(c.cfg.OutputDir); err != nil {
			return nil, fmt.Errorf("cleaning output directory: %w", err)
		}
	}

	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	stats := &Stats{}
	seen := make(map[string]bool)

	for _, src := range c.cfg.SourceDirs {
		if err := c.collectDir(ctx, src, seen, stats); err != nil {
			return nil, fmt.Errorf("collecting from %s: %w", src, err)
		}
	}

	if c.cfg.S3 != nil && c.cfg.S3.Bucket != "" {
		source, err := NewS3Source(ctx, *c.cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("creating s3 source: %w", err)
		}
		if err := source.Download(ctx, c.cfg.OutputDir, seen, stats); err != nil {
			return nil, fmt.Errorf("downloading from s3://%s: %w", c.cfg.S3.Bucket, err)
		}
	}

	if c.metrics != nil {
		c.metrics.RecordAssetsCollected(stats.Copied, stats.Bytes)
	}

	logger.InfoCtx(ctx, "Asset collection complete",
		logger.Files(stats.Copied),
		"skipped", stats.Skipped,
		logger.Bytes(stats.Bytes),
		logger.Path(c.cfg.OutputDir))

	return stats, nil
}

func (c *Collector) collectDir(ctx context.Context, src string, seen map[string]bool, stats *Stats) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			logger.DebugCtx(ctx, "Skipping non-regular file", logger.Path(path))
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if seen[rel] {
			stats.Skipped++
			return nil
		}
		seen[rel] = true

		copied, n, err := copyFile(path, filepath.Join(c.cfg.OutputDir, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		if copied {
			stats.Copied++
			stats.Bytes += n
		} else {
			stats.Skipped++
		}
		return nil
	})
}

// copyFile copies src to dst unless dst is already up to date. Returns
// whether a copy happened and the number of bytes written.
func copyFile(src, dst string) (bool, int64, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, 0, err
	}

	if upToDate(srcInfo, dst) {
		return false, 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return false, 0, err
	}
	defer func() { _ = in.Close() }()

	// Write to a temporary file first, then rename for atomicity
	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return false, 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return false, 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return false, 0, err
	}

	// Preserve the source mtime so the next pass can skip unchanged files.
	if err := os.Chtimes(tmp, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		_ = os.Remove(tmp)
		return false, 0, err
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return false, 0, err
	}

	return true, n, nil
}

// upToDate reports whether dst exists with the same size and a modification
// time no older than src.
func upToDate(srcInfo os.FileInfo, dst string) bool {
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return dstInfo.Size() == srcInfo.Size() && !dstInfo.ModTime().Before(srcInfo.ModTime())
}

// cleanDir removes the contents of dir without removing dir itself. A
// missing dir is not an error.
func cleanDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if abs == string(os.PathSeparator) {
		return errors.New("refusing to clean filesystem root")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
