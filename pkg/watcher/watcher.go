// Package watcher turns filesystem activity under a project tree into a
// debounced change signal, driving the live-reload loop of the supervisor.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 500 * time.Millisecond

// Watcher observes one project tree recursively.
type Watcher struct {
	root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) *Watcher {
	return &Watcher{root: root, logger: logger}
}

// Watch emits one signal per burst of filesystem changes until ctx is
// canceled. Events closer together than the debounce window collapse into a
// single signal so a save-all in an editor triggers one rebuild.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs, err := watchDirs(w.root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer fsw.Close()
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !relevant(ev) {
					continue
				}
				w.logger.Debug("source change detected", "file", ev.Name, "op", ev.Op.String())
				if timer == nil {
					timer = time.NewTimer(debounce)
					fire = timer.C
				} else {
					timer.Reset(debounce)
				}
			case <-fire:
				timer = nil
				fire = nil
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	return changes, nil
}

func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(ev.Name)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~")
}

// watchDirs collects every directory under root worth watching, skipping
// hidden trees and directories that never hold buildable sources.
func watchDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata" || name == "node_modules") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}
