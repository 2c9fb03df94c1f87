package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillgraph/pkg/logger"
)

// DefaultDebounce is the quiet period after the last filesystem event
// before the change callback fires. Editors often write SKILL.md in
// several bursts; one rebuild per burst is enough.
const DefaultDebounce = 500 * time.Millisecond

// Watcher invokes a callback when skill directories change on disk.
// Events across files collapse into a single callback per quiet period,
// since any catalog change means the whole graph is rebuilt anyway.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	onChange func(context.Context)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher over the given skill directories.
func NewWatcher(dirs []string, debounce time.Duration, onChange func(context.Context)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dirs:     dirs,
		debounce: debounce,
		onChange: onChange,
	}
}

// Run watches until the context is cancelled. Directories that do not
// exist yet are skipped; newly created skill directories are picked up
// as they appear under a watched root.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()
	defer w.stopTimer()

	watched := 0
	for _, dir := range w.dirs {
		if err := addRecursive(watcher, dir); err != nil {
			logger.G(ctx).WithError(err).WithField("directory", dir).Warn("Failed to watch skill directory")
			continue
		}
		watched++
	}
	if watched == 0 {
		return errors.New("no skill directories could be watched")
	}

	logger.G(ctx).WithField("directories", watched).Info("Skill watcher initialized")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			// new skill directories need their own watch
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, event.Name); err != nil {
						logger.G(ctx).WithError(err).WithField("directory", event.Name).Warn("Failed to watch new skill directory")
					}
				}
			}
			logger.G(ctx).WithFields(map[string]interface{}{
				"file":      event.Name,
				"operation": event.Op.String(),
			}).Debug("Skill change detected")
			w.schedule(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Error("Error watching skill directories")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// relevant filters the event stream down to changes that can alter the
// catalog: SKILL.md writes and directory create/remove/rename.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if filepath.Base(event.Name) == skillFileName {
		return true
	}
	// directory-level events: removes and renames can't be stat'ed, so
	// let them through rather than miss a deleted skill
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		return true
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange(ctx)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
