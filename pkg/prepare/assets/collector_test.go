package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestCollector_Name(t *testing.T) {
	c := NewCollector(Config{OutputDir: t.TempDir()}, nil)
	assert.Equal(t, "assets", c.Name())
}

func TestCollect_CopiesFromSources(t *testing.T) {
	src1 := t.TempDir()
	src2 := t.TempDir()
	out := t.TempDir()

	writeFile(t, src1, "css/app.css", "body {}")
	writeFile(t, src1, "js/app.js", "console.log(1)")
	writeFile(t, src2, "img/logo.svg", "<svg/>")

	c := NewCollector(Config{SourceDirs: []string{src1, src2}, OutputDir: out}, nil)
	stats, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Copied)
	assert.Zero(t, stats.Skipped)
	assert.Equal(t, "body {}", readFile(t, out, "css/app.css"))
	assert.Equal(t, "console.log(1)", readFile(t, out, "js/app.js"))
	assert.Equal(t, "<svg/>", readFile(t, out, "img/logo.svg"))
}

func TestCollect_SecondRunIsNoop(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "css/app.css", "body {}")
	writeFile(t, src, "robots.txt", "User-agent: *")

	c := NewCollector(Config{SourceDirs: []string{src}, OutputDir: out}, nil)

	first, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Copied)

	second, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Copied, "unchanged inputs must not be copied again")
	assert.Equal(t, 2, second.Skipped)
	assert.Zero(t, second.Bytes)
}

func TestCollect_EarlierSourceWins(t *testing.T) {
	src1 := t.TempDir()
	src2 := t.TempDir()
	out := t.TempDir()

	writeFile(t, src1, "css/app.css", "first")
	writeFile(t, src2, "css/app.css", "second")

	c := NewCollector(Config{SourceDirs: []string{src1, src2}, OutputDir: out}, nil)
	stats, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Copied)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, "first", readFile(t, out, "css/app.css"))
}

func TestCollect_UpdatedFileRecopied(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	path := writeFile(t, src, "css/app.css", "old")

	c := NewCollector(Config{SourceDirs: []string{src}, OutputDir: out}, nil)
	_, err := c.Collect(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("newer"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	stats, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Copied)
	assert.Equal(t, "newer", readFile(t, out, "css/app.css"))
}

func TestCollect_CleanRemovesStaleFiles(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "css/app.css", "body {}")
	writeFile(t, out, "stale/old.css", "stale")

	c := NewCollector(Config{SourceDirs: []string{src}, OutputDir: out, Clean: true}, nil)
	_, err := c.Collect(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(out, "stale"))
	assert.True(t, os.IsNotExist(err), "clean must remove previous output contents")
	assert.Equal(t, "body {}", readFile(t, out, "css/app.css"))
}

func TestCollect_MissingSourceFails(t *testing.T) {
	out := t.TempDir()
	c := NewCollector(Config{
		SourceDirs: []string{filepath.Join(t.TempDir(), "does-not-exist")},
		OutputDir:  out,
	}, nil)

	_, err := c.Collect(context.Background())
	assert.Error(t, err)
}

func TestCollect_NoSources(t *testing.T) {
	out := filepath.Join(t.TempDir(), "static")

	c := NewCollector(Config{OutputDir: out}, nil)
	stats, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.Copied)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "output directory must be created even with nothing to collect")
}

func TestCollect_MissingOutputDir(t *testing.T) {
	c := NewCollector(Config{}, nil)
	_, err := c.Collect(context.Background())
	assert.Error(t, err)
}

func TestCollect_CancelledContext(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "css/app.css", "body {}")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(Config{SourceDirs: []string{src}, OutputDir: t.TempDir()}, nil)
	_, err := c.Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
