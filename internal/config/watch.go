package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Watcher polls a config file and reloads it when its modification time
// moves forward. Useful for tuning thresholds from an editor while the
// tracker runs.
type Watcher struct {
	path     string
	interval time.Duration
	baseline time.Time
	onChange func(*Config)
	logger   *log.Logger
}

// NewWatcher records the file's current modification time as the baseline.
// onChange is called from the Run goroutine with each successfully loaded
// config.
func NewWatcher(path string, interval time.Duration, onChange func(*Config), logger *log.Logger) (*Watcher, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		path:     path,
		interval: interval,
		baseline: info.ModTime(),
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Path returns the resolved file being watched.
func (w *Watcher) Path() string { return w.path }

// Run checks the file every interval until ctx ends.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check reloads the file if it changed since the last successful load and
// reports whether onChange ran. A file that fails to parse is logged and the
// baseline is still advanced, so the same broken save is reported once.
func (w *Watcher) Check() bool {
	info, err := os.Stat(w.path)
	if err != nil || !info.ModTime().After(w.baseline) {
		return false
	}
	w.baseline = info.ModTime()

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Printf("Config: reload %s: %v", w.path, err)
		return false
	}
	w.logger.Printf("Config: reloaded %s (bounds %s)", w.path, cfg.Bounds)
	if w.onChange != nil {
		w.onChange(cfg)
	}
	return true
}
