package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestNewWatcher(t *testing.T) {
	if _, err := NewWatcher("", 0, nil); err == nil {
		t.Error("expected error for empty path")
	}

	w, err := NewWatcher("envroute.yaml", 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if w.debounce.interval != DefaultDebounceInterval {
		t.Errorf("interval = %v, want default", w.debounce.interval)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_Relevant(t *testing.T) {
	w := &Watcher{path: filepath.Clean("/etc/envroute/envroute.yaml")}

	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/etc/envroute/envroute.yaml", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/etc/envroute/envroute.yaml", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/etc/envroute/envroute.yaml", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/etc/envroute/envroute.yaml", Op: fsnotify.Remove}, false},
		{fsnotify.Event{Name: "/etc/envroute/other.yaml", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.event); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: memory\n")

	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	reloaded := make(chan *Config, 4)
	var calls atomic.Int32
	go func() {
		_ = w.Watch(context.Background(), func(cfg *Config) error {
			calls.Add(1)
			reloaded <- cfg
			return nil
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is skipped.
	if err := os.WriteFile(path, []byte("storage:\n  backend: redis\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("invalid config was delivered")
	}

	if err := os.WriteFile(path, []byte("storage:\n  backend: memory\ninterceptor:\n  poll_attempts: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Interceptor.PollAttempts != 2 {
			t.Errorf("poll attempts = %d, want 2", cfg.Interceptor.PollAttempts)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	path := writeConfig(t, "")

	w, err := NewWatcher(path, 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, func(*Config) error { return nil }) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestDebouncer_Trigger(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { count.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(120 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("callback count = %d, want 1", got)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var count atomic.Int32
	d.Trigger(func() { count.Add(1) })
	d.Stop()
	d.Stop()

	time.Sleep(80 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Errorf("callback ran after Stop: %d", got)
	}
}
