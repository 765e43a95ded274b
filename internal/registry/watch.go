// Package registry maintains the guardian registry.
package registry

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch hot-reloads the registry whenever its snapshot file is republished.
// It blocks until the context is cancelled. Reload failures are logged and
// the previous guardian set stays active.
//
// The parent directory is watched rather than the file itself, so atomic
// republishes (write temp, rename over) are picked up.
func (r *Registry) Watch(ctx context.Context, logger *slog.Logger) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(r.path)); err != nil {
		return err
	}

	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			if err := r.Reload(); err != nil {
				logger.Warn("registry reload failed, keeping previous snapshot",
					"path", r.path, "error", err)
				continue
			}

			root, version := r.Root()
			logger.Info("registry reloaded",
				"version", version,
				"guardians", r.Size(),
				"root", root.String())

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("registry watcher error", "error", err)
		}
	}
}
