package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

// watchConfig calls onChange with the reloaded config each time the file at path is
// written or replaced, until ctx is done. Configs that fail to load or validate are logged
// and skipped. The parent directory is watched so that editors saving through a rename are
// still seen.
func watchConfig(ctx context.Context, path string, onChange func(trail.Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Config] Watch error: %v", err)
		case <-pending:
			pending = nil
			cfg, err := trail.LoadConfig(abs)
			if err != nil {
				log.Printf("[Config] Ignoring %s: %v", path, err)
				continue
			}
			onChange(cfg)
		}
	}
}
