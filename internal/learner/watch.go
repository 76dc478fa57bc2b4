package learner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce collapses the write bursts a busy session produces into one
// gate check.
const debounce = 2 * time.Second

// Watch follows the observation log and runs an analysis whenever the
// auto-learn gate opens. It blocks until ctx is cancelled.
//
// The watch is placed on the log's directory rather than the file so
// rotation (rename plus recreate) does not orphan it.
func (l *Learner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.log.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	l.logger.Info("watching observation log", zap.String("dir", dir))

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if event.Name != l.log.Path() || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			report, err := l.Run(ctx, Options{})
			if err != nil {
				l.logger.Error("watch-triggered analysis failed", zap.Error(err))
				continue
			}
			if report.SkippedReason == "" {
				l.logger.Info("watch-triggered analysis",
					zap.Int("patterns", report.PatternsDetected),
					zap.Int("created", report.InstinctsCreated),
					zap.Int("updated", report.InstinctsUpdated),
				)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			l.logger.Warn("watcher error", zap.Error(err))
		}
	}
}
