package watcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/observerkit/internal/watcher"
	"github.com/zjrosen/observerkit/pkg/center"
	"github.com/zjrosen/observerkit/pkg/notify"
)

type change struct {
	event  watcher.FileEvent
	sender *watcher.Watcher
}

// startWatcher creates a watcher over dir posting to its own center and
// returns a channel of every delivery.
func startWatcher(t *testing.T, dir string, dedupe time.Duration) (*watcher.Watcher, <-chan change) {
	t.Helper()

	c := center.New()
	w, err := watcher.New(watcher.Config{
		Paths:        []string{dir},
		Debounce:     50 * time.Millisecond,
		DedupeWindow: dedupe,
		Center:       c,
	})
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	changes := make(chan change, 16)
	obs := notify.NewObserver(w.Changes(), func(ev watcher.FileEvent, sender *watcher.Watcher) {
		changes <- change{event: ev, sender: sender}
	}, notify.WithCenter(c))
	t.Cleanup(obs.Dispose)

	require.NoError(t, w.Start(context.Background()), "failed to start watcher")
	return w, changes
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("test"), 0644), "failed to create test file")

	w, changes := startWatcher(t, dir, 0)

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("test%d", i)), 0644), "failed to write file")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case got := <-changes:
		require.Equal(t, path, got.event.Path)
		require.Contains(t, got.event.Op, "WRITE")
		require.Same(t, w, got.sender)
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case got := <-changes:
		t.Fatalf("unexpected second notification: %+v", got.event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_SuppressesDuplicatesInsideWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("test"), 0644))

	_, changes := startWatcher(t, dir, time.Minute)

	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected first notification")
	}

	// Past the debounce but inside the dedupe window
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("two"), 0644))

	select {
	case got := <-changes:
		t.Fatalf("duplicate should be suppressed: %+v", got.event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_DistinctPathsPostSeparately(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0644))

	_, changes := startWatcher(t, dir, time.Minute)

	require.NoError(t, os.WriteFile(b, []byte("b2"), 0644))
	require.NoError(t, os.WriteFile(a, []byte("a2"), 0644))

	var got []string
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case c := <-changes:
			got = append(got, c.event.Path)
		case <-timeout:
			t.Fatalf("expected two notifications, got %v", got)
		}
	}
	// Flushed in path order
	require.Equal(t, []string{a, b}, got)
}

func TestWatcher_IgnoresSwapFiles(t *testing.T) {
	dir := t.TempDir()
	swap := filepath.Join(dir, ".notes.txt.swp")
	require.NoError(t, os.WriteFile(swap, []byte("initial"), 0644))

	_, changes := startWatcher(t, dir, 0)

	require.NoError(t, os.WriteFile(swap, []byte("other content"), 0644))

	select {
	case got := <-changes:
		t.Fatalf("should not notify for swap files: %+v", got.event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_OtherWatchersDoNotReceive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("test"), 0644))

	c := center.New()
	w, err := watcher.New(watcher.Config{Paths: []string{dir}, Debounce: 20 * time.Millisecond, Center: c})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	other, err := watcher.New(watcher.Config{Paths: []string{t.TempDir()}, Center: c})
	require.NoError(t, err)
	defer func() { _ = other.Stop() }()

	mine := make(chan struct{}, 4)
	theirs := make(chan struct{}, 4)
	obs := notify.NewObserver(w.Changes(), func(watcher.FileEvent, *watcher.Watcher) { mine <- struct{}{} }, notify.WithCenter(c))
	defer obs.Dispose()
	otherObs := notify.NewObserver(other.Changes(), func(watcher.FileEvent, *watcher.Watcher) { theirs <- struct{}{} }, notify.WithCenter(c))
	defer otherObs.Dispose()

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, os.WriteFile(path, []byte("changed"), 0644))

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatal("expected notification for own watcher")
	}
	select {
	case <-theirs:
		t.Fatal("observer scoped to another watcher was notified")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()

	w, err := watcher.New(watcher.DefaultConfig(dir))
	require.NoError(t, err, "failed to create watcher")
	require.NoError(t, w.Start(context.Background()), "failed to start watcher")

	// Stop should not hang or panic
	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop(), "Stop returned error")
		assert.NoError(t, w.Stop(), "second Stop returned error")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestWatcher_StartMissingPath(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	require.Error(t, w.Start(context.Background()))
}

func TestNew_NoPaths(t *testing.T) {
	_, err := watcher.New(watcher.Config{})
	require.ErrorIs(t, err, watcher.ErrNoPaths)
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/a", "/b")

	assert.Equal(t, []string{"/a", "/b"}, cfg.Paths)
	assert.Equal(t, 100*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 2*time.Second, cfg.DedupeWindow)
	assert.Nil(t, cfg.Center)
}
