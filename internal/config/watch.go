package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds a live, atomically-swappable Config and reloads it from
// disk whenever the backing file is written, skipping any revision that
// fails validation.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	onErr   func(error)
	watcher *fsnotify.Watcher
}

// NewWatcher loads path once, then starts watching it for writes. onErr
// (may be nil) is invoked for reload failures; the previously-loaded
// config remains live in that case.
func NewWatcher(path string, onErr func(error)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{path: path, onErr: onErr, watcher: fw}
	w.current.Store(cfg)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				if w.onErr != nil {
					w.onErr(err)
				}
				continue
			}
			w.current.Store(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onErr != nil {
				w.onErr(err)
			}
		}
	}
}

// Current returns the most recently validated config.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
