package commands

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config.yaml backed by a sqlite file in a temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "log:\n  level: error\n" +
		"database:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "fv.db") + "\n  log_level: silent\n" +
		"auth:\n  bcrypt_cost: 4\n" +
		"media:\n  driver: inline\n  max_payload_bytes: 4096\n  chunk_size: 64\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o600))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	if args == nil {
		// nil makes cobra fall back to os.Args
		args = []string{}
	}
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	_, err := rootCmd.ExecuteC()
	return buf.String(), err
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, err := execute(t)
	assert.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "friendlyvoice")
	for _, name := range []string{"serve", "migrate", "seed", "record", "bench"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := execute(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2026-01-01)", rootCmd.Version)
}

func TestRecordCommand_StoresInlineDataURI(t *testing.T) {
	dir := writeConfig(t)
	clip := bytes.Repeat([]byte{0x4f, 0x67, 0x67, 0x53}, 100)
	path := filepath.Join(dir, "clip.ogg")
	require.NoError(t, os.WriteFile(path, clip, 0o600))

	out, err := execute(t, "record", "--config", dir, "--mime", "audio/ogg", path)
	require.NoError(t, err)

	uri := strings.TrimSpace(out)
	payload, ok := strings.CutPrefix(uri, "data:audio/ogg;base64,")
	require.True(t, ok, uri)
	data, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, clip, data)
}

func TestRecordCommand_TooLarge(t *testing.T) {
	dir := writeConfig(t)
	path := filepath.Join(dir, "long.webm")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0o600))

	_, err := execute(t, "record", "--config", dir, "--mime", "audio/webm", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture")
}

func TestSeedThenBench(t *testing.T) {
	dir := writeConfig(t)

	out, err := execute(t, "seed", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 4 users, 3 voces, 4 messages, 4 ecosystems")

	// idempotent
	_, err = execute(t, "seed", "--config", dir)
	require.NoError(t, err)

	out, err = execute(t, "bench", "follow", "--config", dir, "-n", "20", "--conc", "4", "--page", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "N=20, CONC=4, PAGE=5")
	assert.Contains(t, out, "followers now 20/20")
}

func TestBenchMirrorAndFeed(t *testing.T) {
	dir := writeConfig(t)

	out, err := execute(t, "bench", "mirror", "--config", dir, "--profiles", "30", "--reads", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "driver=memory, profiles=30, reads=100")
	assert.Contains(t, out, "misses: 30")
	assert.Contains(t, out, "hits: 100, misses: 0")

	out, err = execute(t, "bench", "feed", "--config", dir, "--authors", "5", "--voces", "40", "--following", "2", "--reads", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "authors=5, voces=40, following=2, reads=10")
	assert.Contains(t, out, "Feed(40 items)")
}

func TestMigrateCommand(t *testing.T) {
	dir := writeConfig(t)
	_, err := execute(t, "migrate", "--config", dir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "fv.db"))
	assert.NoError(t, err)
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 0.5))
	vs := []int{5, 1, 4, 2, 3}
	ds := make([]time.Duration, len(vs))
	for i, v := range vs {
		ds[i] = time.Duration(v) * time.Millisecond
	}
	assert.Equal(t, 3*time.Millisecond, percentile(ds, 0.50))
	assert.Equal(t, 5*time.Millisecond, percentile(ds, 0.99))
	assert.Equal(t, 1*time.Millisecond, percentile(ds, 0))
}
