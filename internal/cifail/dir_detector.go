package cifail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var (
	// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
	ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")
)

// DirDetector reads failure drops from a directory. A drop is a JSON file
// containing a list of Records, written by an external CI log scraper.
// Each Detect pass reads every *.json file in the directory, oldest first,
// and removes consumed drops so a failure is reported once per write.
type DirDetector struct {
	dir     string
	consume bool
	logger  *zap.Logger
}

// NewDirDetector creates a detector over dir. When consume is true,
// successfully parsed drop files are deleted after reading.
func NewDirDetector(dir string, consume bool, logger *zap.Logger) *DirDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirDetector{dir: dir, consume: consume, logger: logger}
}

// Detect implements Detector.
func (d *DirDetector) Detect(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading drop directory %s: %w", d.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var records []Record
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(d.dir, name)
		recs, err := ReadDropFile(path)
		if err != nil {
			// A malformed drop is skipped, not fatal: the next pass may see
			// a complete rewrite of the same file.
			d.logger.Warn("skipping malformed failure drop",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		records = append(records, recs...)
		if d.consume {
			if err := os.Remove(path); err != nil {
				d.logger.Warn("failed to remove consumed drop",
					zap.String("path", path),
					zap.Error(err))
			}
		}
	}
	return records, nil
}

// ReadDropFile parses one drop file. Accepts either a bare array of
// records or an object with a "failures" field.
func ReadDropFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Failures []Record `json:"failures"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing drop: %w", err)
	}
	return wrapped.Failures, nil
}

// WatchDetector wraps a DirDetector with an fsnotify watcher so callers
// can block until a new drop arrives instead of polling. The coordinator
// uses Wait between cycles when watch-triggered detection is configured.
type WatchDetector struct {
	*DirDetector

	watcher *fsnotify.Watcher
	wake    chan struct{}
	stop    chan struct{}
	logger  *zap.Logger
}

// NewWatchDetector creates a watch-backed detector over dir. The directory
// is created if it does not exist.
func NewWatchDetector(dir string, logger *zap.Logger) (*WatchDetector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating drop directory %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	d := &WatchDetector{
		DirDetector: NewDirDetector(dir, true, logger),
		watcher:     watcher,
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		logger:      logger,
	}
	go d.processEvents()
	return d, nil
}

// Wait blocks until a new drop file is written, the timeout elapses, or
// ctx is cancelled. It returns true when a drop arrived.
func (d *WatchDetector) Wait(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-d.wake:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	case <-d.stop:
		return false
	}
}

// Stop stops the watcher and releases resources.
func (d *WatchDetector) Stop() {
	select {
	case <-d.stop:
		// Already stopped.
	default:
		close(d.stop)
		_ = d.watcher.Close()
	}
}

func (d *WatchDetector) processEvents() {
	for {
		select {
		case <-d.stop:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			// Coalesce: one pending wake is enough.
			select {
			case d.wake <- struct{}{}:
			default:
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("failure drop watcher error", zap.Error(err))
		}
	}
}
