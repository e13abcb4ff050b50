package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"laser-engraver-go/pkg/log"
)

// Watch watches a config file and calls onChange with the reloaded config
// whenever it is rewritten. It blocks until the context is cancelled.
//
// The containing directory is watched rather than the file itself, so the
// common editor pattern of replacing the file is handled. Events are
// debounced; files that fail to load are reported and skipped.
func Watch(ctx context.Context, path string, logger *log.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	if err := watcher.Add(dir); err != nil {
		return err
	}

	logger.Info("watching %s for changes", path)

	const debounce = 500 * time.Millisecond
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	reload := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := Load(path)
			if err != nil {
				logger.Error("config reload failed: %v", err)
				continue
			}
			logger.Info("config reloaded from %s", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher: %v", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
