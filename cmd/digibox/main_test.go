package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"digibox/internal/nav"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with fresh flag state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	verbose, configPath, dataDir, ephemeral = false, "", "", false
	articleBody, articleBodyFile = "", ""
	analyzeProvider, analyzeParallel = "", 4

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func clearKeys(t *testing.T) {
	for _, name := range []string{"API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY", "DIGIBOX_PROVIDER", "DIGIBOX_DATA_DIR"} {
		t.Setenv(name, "")
	}
}

func TestArticlesCommands(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	base := []string{"--config", filepath.Join(dir, "config.yaml"), "--data-dir", dir}
	run := func(args ...string) (string, error) {
		return execute(t, append(append([]string{}, base...), args...)...)
	}

	out, err := run("articles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "装机猿")

	out, err = run("articles", "add", "Test", "--body", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Created article 5")

	// Reopened from disk.
	out, err = run("articles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Test")

	out, err = run("articles", "show", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")

	_, err = run("articles", "delete", "5")
	require.NoError(t, err)
	_, err = run("articles", "show", "5")
	assert.Error(t, err)

	_, err = run("articles", "add", "  ")
	assert.Error(t, err)
	_, err = run("articles", "delete", "abc")
	assert.Error(t, err)
}

func TestAnalyzeReportsBadImage(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	notImage := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("plain text"), 0o644))

	out, err := execute(t, "--config", filepath.Join(dir, "config.yaml"), "--ephemeral", "analyze", notImage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1")
	assert.Contains(t, out, notImage)
	assert.Contains(t, out, "!")
	assert.Contains(t, out, "error: invalid image data")
}

func TestThemeSwitchPersists(t *testing.T) {
	clearKeys(t)
	saved := themeTiming
	themeTiming = nav.Timing{
		ThemeExit:  time.Millisecond,
		ThemeHold:  time.Millisecond,
		ThemeEnter: time.Millisecond,
	}
	t.Cleanup(func() { themeTiming = saved })

	dir := t.TempDir()
	base := []string{"--config", filepath.Join(dir, "config.yaml"), "--data-dir", dir}
	run := func(args ...string) (string, error) {
		return execute(t, append(append([]string{}, base...), args...)...)
	}

	out, err := run("theme")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme: stereo")

	out, err = run("theme", "flat")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme: flat")

	// Reopened from disk.
	out, err = run("theme")
	require.NoError(t, err)
	assert.Contains(t, out, "Theme: flat")

	_, err = run("theme", "neon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neon")
}

func TestAnalyzeRejectsUnknownProvider(t *testing.T) {
	_, err := execute(t, "--ephemeral", "analyze", "--provider", "bogus", "x.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestConfigInitAndShow(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	out, err := execute(t, "--config", path, "--data-dir", dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = execute(t, "--config", path, "config", "init")
	assert.Error(t, err)

	out, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "data_dir: "+dir)
}

func TestParseID(t *testing.T) {
	id, err := parseID("12")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	for _, bad := range []string{"", "0", "-3", "x"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
