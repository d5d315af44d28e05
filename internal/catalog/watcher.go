package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce coalesces editor save bursts into one reload.
const debounce = 250 * time.Millisecond

// Watch re-seeds the store whenever the seed file changes. Blocks until
// ctx is cancelled. Reload failures are logged and the previous catalog
// contents stay live.
func (s *Store) Watch(ctx context.Context, seedPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save
	// and the inode-level watch would be lost.
	dir := filepath.Dir(seedPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(seedPath)

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			n, err := s.SeedFromFile(ctx, seedPath)
			if err != nil {
				s.logger.Warn("catalog reload failed, keeping previous contents",
					zap.String("path", seedPath), zap.Error(err))
				continue
			}
			s.logger.Info("catalog reloaded", zap.Int("candidates", n))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}
