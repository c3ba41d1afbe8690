// Package config loads operator edited trace configuration files and keeps
// the stored configuration in sync with them.
package config

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/structs"

	goccy "github.com/goccy/go-json"
)

const (
	DefaultDebounce = 100 * time.Millisecond
)

// Load reads a JSON trace configuration file. A missing file yields a nil
// config, which disables tracing.
func Load(path string) (*structs.TraceConfig, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, ticktrace.WithStack(err)
	}
	result := &structs.TraceConfig{}
	if err := goccy.Unmarshal(b, result); err != nil {
		return nil, errors.Wrapf(err, "parsing %q", path)
	}
	return result, nil
}

type ApplyFunc func(context.Context, *structs.TraceConfig) error

// Watcher reapplies a trace configuration file whenever it changes.
type Watcher struct {
	path     string
	debounce time.Duration
	apply    ApplyFunc
	watcher  *fsnotify.Watcher
}

func NewWatcher(path string, debounce time.Duration, apply ApplyFunc) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ticktrace.WithStack(err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ticktrace.WithStack(err)
	}
	// Editors often replace files instead of writing them, so watch the
	// directory and filter on the name.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, ticktrace.WithStack(err)
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		apply:    apply,
		watcher:  watcher,
	}, nil
}

func (w *Watcher) Close() error {
	return ticktrace.WithStack(w.watcher.Close())
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		log.Printf("keeping previous trace config: %v", err)
		return
	}
	if err := w.apply(ctx, cfg); err != nil {
		log.Printf("applying trace config from %q: %v", w.path, err)
		return
	}
	log.Printf("trace config reloaded from %q: %s", w.path, cfg.Describe())
}

// Start applies the file once, then again after every burst of changes,
// until the context is cancelled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) error {
	w.reload(ctx)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watching %q: %v", w.path, err)
		case <-timer.C:
			w.reload(ctx)
		}
	}
}
