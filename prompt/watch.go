package prompt

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates cached templates when files in the override
// directory change, so prompt tweaks apply without a restart. It blocks
// until ctx is done. A loader without an override directory has nothing
// to watch and returns immediately.
func (l *Loader) Watch(ctx context.Context) error {
	if l.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}
	log.Printf("[PROMPT] watching %s for template changes", l.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			base := filepath.Base(event.Name)
			if !strings.HasSuffix(base, ".txt") {
				continue
			}
			name := strings.TrimSuffix(base, ".txt")
			l.invalidate(name)
			log.Printf("[PROMPT] reloaded template %q after %s", name, event.Op)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[PROMPT] watcher error: %v", err)
		}
	}
}
