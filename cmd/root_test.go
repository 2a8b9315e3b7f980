package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/observerkit/internal/config"
	"github.com/zjrosen/observerkit/internal/watcher"
	"github.com/zjrosen/observerkit/pkg/center"
)

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a polling test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// prepare points the root command at a fresh default config file and
// captures its output.
func prepare(t *testing.T, args ...string) (stdout, stderr *syncBuffer) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(configPath))

	stdout, stderr = &syncBuffer{}, &syncBuffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	return stdout, stderr
}

func TestRenderEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	out := renderEvent(watcher.FileEvent{Path: "/tmp/a.txt", Op: "WRITE", At: at})

	require.Contains(t, out, "15:04:05.000")
	require.Contains(t, out, "WRITE")
	require.Contains(t, out, "/tmp/a.txt")
}

func TestPrimaryOp(t *testing.T) {
	require.Equal(t, "CREATE", primaryOp("CREATE|WRITE"))
	require.Equal(t, "REMOVE", primaryOp("WRITE|REMOVE"))
	require.Equal(t, "WRITE", primaryOp("WRITE"))
	require.Equal(t, "CHMOD", primaryOp("CHMOD"))
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary(center.Stats{Posts: 3, Dropped: 1, Skipped: 2}, 2)
	require.Contains(t, out, "3 posted, 2 printed, 1 dropped, 2 skipped")
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.yaml")

	stdout, _ := prepare(t, "config", "init", "--path", target)
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, stdout.String(), "wrote "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))

	// Refuses to overwrite without --force
	prepare(t, "config", "init", "--path", target)
	err = rootCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestExplicitConfigMustExist(t *testing.T) {
	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "config", "init", "--path", filepath.Join(t.TempDir(), "x.yaml")})
	rootCmd.SetOut(&syncBuffer{})
	rootCmd.SetErr(&syncBuffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		cfgFile = ""
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config")
}

func TestWatch_PrintsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout, stderr := prepare(t, "watch", dir, "--debounce", "20ms", "--async")
	done := make(chan error, 1)
	go func() {
		done <- rootCmd.ExecuteContext(ctx)
	}()

	// Keep writing until the watcher is up and a change is printed.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(time.Now().String()), 0644)
		return strings.Contains(stdout.String(), "notes.txt")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit after cancel")
	}

	require.Contains(t, stdout.String(), "WRITE")
	require.Contains(t, stderr.String(), "watching "+dir)
	require.Contains(t, stderr.String(), "posted")
}
