package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/artpar/modforge/core/schema"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher rebuilds whenever a module source changes.
type Watcher struct {
	service  *BuildService
	logger   zerolog.Logger
	debounce time.Duration

	mu      sync.Mutex
	onBuild []func(Outcome, error)
}

// NewWatcher creates a watcher. Bursts of changes closer together than
// debounce trigger a single build.
func NewWatcher(service *BuildService, logger zerolog.Logger, debounce time.Duration) *Watcher {
	return &Watcher{
		service:  service,
		logger:   logger,
		debounce: debounce,
	}
}

// OnBuild registers a callback run after every build, failed ones included.
func (w *Watcher) OnBuild(fn func(Outcome, error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onBuild = append(w.onBuild, fn)
}

// Run builds once, then rebuilds on every change under paths until ctx is
// cancelled. Build failures are reported to callbacks, never returned.
func (w *Watcher) Run(ctx context.Context, paths ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	set := newWatchSet(watcher)
	for _, p := range paths {
		if err := set.add(p); err != nil {
			return err
		}
	}

	w.build(ctx, paths)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(set, event) {
				continue
			}

			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("module source changed")
			timer.Reset(w.debounce)

		case <-timer.C:
			w.build(ctx, paths)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("file watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}

// watchSet tracks what a Run watches: directory trees, where any module
// file counts, and single files, whose parent directory is watched so atomic
// saves are seen but whose siblings are ignored.
type watchSet struct {
	watcher *fsnotify.Watcher
	trees   map[string]bool
	files   map[string]bool
}

func newWatchSet(watcher *fsnotify.Watcher) *watchSet {
	return &watchSet{
		watcher: watcher,
		trees:   make(map[string]bool),
		files:   make(map[string]bool),
	}
}

// add watches p, walking directories recursively.
func (s *watchSet) add(p string) error {
	p = filepath.Clean(p)
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("watch %s: %w", p, err)
	}
	if !info.IsDir() {
		s.files[p] = true
		return s.watcher.Add(filepath.Dir(p))
	}

	return filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := s.watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			s.trees[path] = true
		}
		return nil
	})
}

// covers reports whether name is a watched file or a module file inside a
// watched tree.
func (s *watchSet) covers(name string) bool {
	name = filepath.Clean(name)
	if s.files[name] {
		return true
	}
	return s.trees[filepath.Dir(name)] && schema.IsModuleFile(filepath.Base(name))
}

func (w *Watcher) relevant(set *watchSet, event fsnotify.Event) bool {
	if event.Op&fsnotify.Create != 0 && set.trees[filepath.Dir(filepath.Clean(event.Name))] {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := set.add(event.Name); err != nil {
				w.logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
			}
			return true
		}
	}
	if !set.covers(event.Name) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *Watcher) build(ctx context.Context, paths []string) {
	out, err := w.service.Build(ctx, paths...)
	if err != nil {
		w.logger.Error().Err(err).Str("build_id", out.Build.ID).Msg("rebuild failed, keeping previous modules")
	}

	w.mu.Lock()
	callbacks := slices.Clone(w.onBuild)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(out, err)
	}
}
