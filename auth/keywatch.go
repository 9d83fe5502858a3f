package auth

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchKeyFile invalidates the gate's cached keys whenever the JWK set file
// at path changes. It blocks until ctx is done or the watcher fails.
//
// The parent directory is watched rather than the file so atomic renames and
// Kubernetes-style "..data" symlink swaps are observed.
func (g *Gate) WatchKeyFile(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create key file watcher: %w", err)
	}
	defer w.Close()

	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(ev.Name)
			if base != name && !strings.HasPrefix(base, "..") {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			g.InvalidateKeys()
			g.log.InfoContext(ctx, "auth.keys.invalidate", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			g.log.WarnContext(ctx, "auth.keys.watch.err", slog.String("err", err.Error()))
		}
	}
}
