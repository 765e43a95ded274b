// Package inbox watches the bundle drop directory. Proof bundles arrive as
// JSON files; the watcher reports each candidate file to the keeper, which
// verifies it and moves it to the accepted or rejected subdirectory.
//
// Only the top of the inbox is watched, so the accepted/ and rejected/
// subdirectories never feed back into the event stream. Producers should
// write bundles elsewhere and rename them into the inbox so the keeper
// never sees a half-written file.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// BundleEvent reports one candidate bundle file.
type BundleEvent struct {
	Path string
}

// ErrorCallback is called when an error occurs during watching.
type ErrorCallback func(err error)

// ErrDirNotExist is returned when the inbox directory does not exist.
var ErrDirNotExist = errors.New("inbox: directory does not exist")

// ErrNotDirectory is returned when the inbox path is not a directory.
var ErrNotDirectory = errors.New("inbox: path is not a directory")

// Watcher monitors the inbox directory for arriving bundle files.
type Watcher struct {
	dir    string
	events chan<- BundleEvent
	fsw    *fsnotify.Watcher

	// Error handling
	onError      ErrorCallback
	droppedCount atomic.Int64

	// Cancellation
	done chan struct{}
}

// NewWatcher creates a watcher for the given inbox directory.
// Returns an error if the directory does not exist or is not a directory.
func NewWatcher(dir string, events chan<- BundleEvent) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotExist, dir)
		}
		return nil, fmt.Errorf("cannot access inbox directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		dir:    dir,
		events: events,
		fsw:    fsw,
		done:   make(chan struct{}),
	}, nil
}

// Pending lists bundle files already sitting in the inbox, in name order.
// The keeper drains these before watching so a restart loses nothing.
func (w *Watcher) Pending() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("scan inbox: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isBundleFile(entry.Name()) {
			paths = append(paths, filepath.Join(w.dir, entry.Name()))
		}
	}
	return paths, nil
}

// SetErrorCallback sets a callback function that will be called when errors occur.
func (w *Watcher) SetErrorCallback(cb ErrorCallback) {
	w.onError = cb
}

// DroppedEventCount returns the number of events that were dropped due to channel full.
func (w *Watcher) DroppedEventCount() int64 {
	return w.droppedCount.Load()
}

// isBundleFile reports whether a path looks like a bundle drop.
func isBundleFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Start begins watching for events (blocking).
// Returns when the context is cancelled or Close() is called.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isBundleFile(event.Name) {
				continue
			}
			// Directories named like bundles are not bundles.
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}

			// Non-blocking send to prevent blocking when channel is full
			select {
			case w.events <- BundleEvent{Path: event.Name}:
				// Event sent successfully
			default:
				// Channel full, drop the event and count it
				w.droppedCount.Add(1)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Report error via callback if set
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Close stops the watcher and signals Start() to return.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		// Already closed
	default:
		close(w.done)
	}
	return w.fsw.Close()
}
