package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"

	"github.com/nhle/registry-portal/internal/store"
	"github.com/nhle/registry-portal/internal/subscription"
)

// SQLite companion files whose writes also mean the slot changed.
var companionSuffixes = []string{"-wal", "-shm", "-journal"}

// FileFeed turns writes to the shared SQLite slot file (and its WAL/SHM
// companions) into change events. The publication is the file write itself,
// so Publish does nothing. Writes made by this instance are observed too;
// receivers re-read storage and drop unchanged values.
type FileFeed struct {
	path   string
	logger *slog.Logger
	subs   subscription.Registry[Event]
}

var _ Feed = (*FileFeed)(nil)

// NewFileFeed watches the database file at path.
func NewFileFeed(path string, logger *slog.Logger) *FileFeed {
	return &FileFeed{path: filepath.Clean(path), logger: logger}
}

func (f *FileFeed) Publish(context.Context, string) error {
	return nil
}

func (f *FileFeed) Subscribe(fn func(Event)) *subscription.Subscription {
	return f.subs.Subscribe(fn)
}

// Run watches the file's directory until ctx is cancelled.
func (f *FileFeed) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if f.relevant(ev) {
				f.subs.Publish(Event{Origin: ev.Name, Key: store.SlotIdentity})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("slot file watcher error",
				slog.String("path", f.path),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (f *FileFeed) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == f.path {
		return true
	}
	return slices.ContainsFunc(companionSuffixes, func(suffix string) bool {
		return name == f.path+suffix
	})
}
