package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Sweeper deletes artifact files whose last modification is older than the
// retention window. It runs on a fixed interval and does not coordinate
// with the job store: a fetch racing a sweep gets a file-not-found response,
// which is accepted behavior.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// New creates a sweeper over dir, deleting files older than maxAge on every
// interval tick.
func New(dir string, maxAge, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on every tick until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(); err != nil {
				s.logger.Warn("artifact sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce removes aged files from the artifact directory. Files already
// deleted by a concurrent sweep are skipped silently. Subdirectories are
// left alone.
func (s *Sweeper) SweepOnce() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading artifact directory: %w", err)
	}

	cutoff := time.Now().Add(-s.maxAge)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.logger.Warn("removing aged artifact", "path", path, "error", err)
			continue
		}
		s.logger.Info("removed aged artifact", "path", path, "age", time.Since(info.ModTime()).Round(time.Second))
	}

	return nil
}
