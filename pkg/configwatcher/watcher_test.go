package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"tuteck_exam_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path string, maxPause int) {
	t.Helper()
	body := "storage:\n  type: minio\nexam:\n  max_pause_minutes: " + strconv.Itoa(maxPause) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatchConfigReloadsValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, path, func(cfg *config.Config) { reloaded <- cfg })
	}()

	// the watcher registers asynchronously, so keep touching the file
	var got *config.Config
	deadline := time.After(10 * time.Second)
	for got == nil {
		writeConfig(t, path, -1) // invalid, must be ignored
		writeConfig(t, path, 15)
		select {
		case got = <-reloaded:
		case <-time.After(1500 * time.Millisecond):
		case <-deadline:
			t.Fatal("config was never reloaded")
		}
	}
	assert.Equal(t, 15, got.Exam.MaxPauseMinutes)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchConfigMissingDir(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "nope", "config.yaml"), func(*config.Config) {})
	assert.Error(t, err)
}
