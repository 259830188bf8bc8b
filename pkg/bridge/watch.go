package bridge

import (
	"context"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Watch clears the whole cache whenever a file under any search root
// changes. Per-key invalidation is deliberately not attempted: override
// files can hold many keys, so a wholesale clear is the only safe answer.
// Watch blocks until the context is cancelled.
func (b *Bridge) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	watched := 0
	for _, root := range b.locator.Roots() {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(root); err != nil {
			b.log.WithError(err).Warnf("cannot watch %s", root)
			continue
		}
		watched++
	}
	if watched == 0 {
		b.log.Debug("no override roots to watch")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				b.log.WithField("file", event.Name).Debug("override changed, clearing cache")
				b.ClearCache()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.log.WithError(err).Warn("override watcher error")
		}
	}
}
