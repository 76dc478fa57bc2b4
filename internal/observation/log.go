package observation

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/config"
)

// ErrLockContention is returned when the log's advisory lock could not be
// acquired within the configured retry budget. Callers treat this as
// best-effort failure; it must never fail the tool invocation the write
// piggybacks on.
var ErrLockContention = errors.New("observation log is locked by another writer")

// Log is the durable append log for observations.
//
// Appends take an exclusive advisory lock on a sidecar lock file, write one
// full line, flush, and release, so concurrent hook processes never
// interleave partial lines. The sidecar (rather than the data file itself)
// carries the lock so rotation and append serialize through the same file
// across renames.
type Log struct {
	path       string
	archiveDir string
	cfg        config.ObservationsConfig
	logger     *zap.Logger
}

// NewLog creates a Log rooted at the configured observations file.
func NewLog(cfg *config.Config, logger *zap.Logger) (*Log, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Log{
		path:       cfg.ObservationsFile(),
		archiveDir: cfg.ArchiveDir(),
		cfg:        cfg.Observations,
		logger:     logger,
	}, nil
}

// Path returns the active log file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one observation under the log's exclusive lock, rotating
// the file first when it has outgrown the size threshold.
func (l *Log) Append(obs Observation) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	obs.Input = Truncate(obs.Input, l.cfg.MaxContentLength)
	obs.Output = Truncate(obs.Output, l.cfg.MaxContentLength)

	line, err := obs.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode observation: %w", err)
	}

	unlock, err := l.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	l.rotateLocked()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open observation log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append observation: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush observation log: %w", err)
	}
	return nil
}

// acquireLock takes the sidecar advisory lock with bounded retries.
func (l *Log) acquireLock() (func(), error) {
	fl := flock.New(l.path + ".lock")
	for attempt := 0; ; attempt++ {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire observation log lock: %w", err)
		}
		if locked {
			return func() {
				if err := fl.Unlock(); err != nil {
					l.logger.Warn("failed to release observation log lock", zap.Error(err))
				}
			}, nil
		}
		if attempt >= l.cfg.LockRetries {
			return nil, ErrLockContention
		}
		time.Sleep(l.cfg.LockRetryDelay)
	}
}

// rotateLocked archives the active log when it exceeds the size threshold.
// Caller holds the lock. Rotation is a rename plus fresh file, so a reader
// sees either the old complete log or the new empty one; duplicate lines
// across the boundary are tolerated downstream via evidence
// de-duplication.
func (l *Log) rotateLocked() {
	info, err := os.Stat(l.path)
	if err != nil || info.Size() < l.cfg.MaxFileSizeBytes {
		return
	}

	if err := os.MkdirAll(l.archiveDir, 0o700); err != nil {
		l.logger.Warn("failed to create archive directory", zap.Error(err))
		return
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	archive := filepath.Join(l.archiveDir, fmt.Sprintf("observations-%s-%d.jsonl", stamp, os.Getpid()))
	if err := os.Rename(l.path, archive); err != nil {
		if os.IsNotExist(err) {
			// Another process rotated first.
			return
		}
		l.logger.Warn("failed to rotate observation log", zap.Error(err))
		return
	}
	l.logger.Info("rotated observation log",
		zap.String("archive", archive),
		zap.Int64("size", info.Size()),
	)
}

// ReadAll reads observations from the active log, oldest first, bounded by
// the configured maximum line count. Malformed lines are skipped and
// counted, never fatal. A missing log yields an empty slice.
func (l *Log) ReadAll() ([]Observation, int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to open observation log: %w", err)
	}
	defer f.Close()

	var (
		observations []Observation
		skipped      int
		lines        int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines++
		if lines > l.cfg.MaxLines {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		obs, err := Parse(line)
		if err != nil {
			skipped++
			continue
		}
		observations = append(observations, obs)
	}
	if err := scanner.Err(); err != nil {
		// A truncated tail under concurrent writes is not fatal; report
		// what was read.
		l.logger.Warn("observation log scan stopped early", zap.Error(err))
	}
	if skipped > 0 {
		l.logger.Debug("skipped malformed observation lines", zap.Int("count", skipped))
	}
	return observations, skipped, nil
}

// Count returns the number of lines in the active log. Best effort: a
// missing or unreadable log counts as zero.
func (l *Log) Count() int {
	f, err := os.Open(l.path)
	if err != nil {
		return 0
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		n++
	}
	return n
}
