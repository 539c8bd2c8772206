package bundle

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces bursts of file events into one run.
const DefaultDebounce = 300 * time.Millisecond

// skipDirs are never watched.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// Watcher reruns a verification whenever watched sources change.
type Watcher struct {
	Dirs     []string
	Ignore   []string // paths whose events are dropped, typically the artifact's directory
	Debounce time.Duration
}

// Run calls fn once, then again after each debounced burst of changes, until
// ctx is done. Runs are serialized; changes during a run schedule one more.
func (w Watcher) Run(ctx context.Context, fn func(context.Context)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	w.Ignore = w.effectiveIgnore()
	for _, dir := range w.Dirs {
		if err := w.addTree(fsw, dir); err != nil {
			return err
		}
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	fn(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, ev.Name); err != nil {
						log.Warn().Err(err).Str("dir", ev.Name).Msg("Failed to watch new directory")
					}
				}
			}
			log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Source changed")
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")

		case <-timer.C:
			fn(ctx)
		}
	}
}

func (w Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (skipDirs[d.Name()] || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w Watcher) ignored(path string) bool {
	for _, ig := range w.Ignore {
		if within(path, ig) {
			return true
		}
	}
	return false
}

// effectiveIgnore drops entries that would cover a whole watched root.
func (w Watcher) effectiveIgnore() []string {
	out := make([]string, 0, len(w.Ignore))
	for _, ig := range w.Ignore {
		covers := false
		for _, dir := range w.Dirs {
			if within(dir, ig) {
				covers = true
				break
			}
		}
		if covers {
			log.Warn().Str("ignore", ig).Msg("Ignore path covers a watched directory, not ignoring it")
			continue
		}
		out = append(out, ig)
	}
	return out
}

// IgnoreFor returns the paths a watch over roots should ignore for artifact:
// its directory when that is strictly below a watched root, otherwise the
// artifact file alone.
func IgnoreFor(artifact string, roots []string) []string {
	dir := filepath.Dir(artifact)
	for _, root := range roots {
		if within(root, dir) {
			return []string{artifact}
		}
	}
	for _, root := range roots {
		if within(dir, root) {
			return []string{dir}
		}
	}
	return []string{artifact}
}

// within reports whether path is base or lies below it.
func within(path, base string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	return abs == baseAbs || strings.HasPrefix(abs, baseAbs+string(filepath.Separator))
}
