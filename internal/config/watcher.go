package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alucardeht/birdwatch-mcp/internal/logger"
)

var log = logger.ForComponent("config")

const DefaultReloadWindow = 250 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path      string
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	onChange  func(*Config)
	done      chan struct{}
	closeOnce sync.Once
}

// Watch starts watching path. onChange receives every config that loads and
// validates; a broken file is logged and the previous config stays in effect.
// The parent directory is watched so that editors replacing the file by
// rename are noticed.
func Watch(path string, window time.Duration, onChange func(*Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		path:      abs,
		fsWatcher: fsWatcher,
		onChange:  onChange,
		done:      make(chan struct{}),
	}
	w.debouncer = NewDebouncer(window, w.reload)

	go w.handleEvents()

	log.Info("watching config", "path", abs)
	return w, nil
}

func (w *Watcher) handleEvents() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				log.Debug("config event", "path", event.Name, "op", event.Op.String())
				w.debouncer.Trigger()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Warn("reloaded config is invalid", "path", w.path, "error", err)
		return
	}

	log.Info("config reloaded", "path", w.path)
	w.onChange(cfg)
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.debouncer.Stop()
		err = w.fsWatcher.Close()
		<-w.done
	})
	return err
}

// ApplyLogLevel is the onChange hook used by the server: only the log level
// is reloadable, everything else needs a restart.
func ApplyLogLevel(cfg *Config) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return
	}
	if level != logger.Level() {
		log.Info("log level changed", "from", logger.Level().String(), "to", level.String())
		logger.SetLevel(level)
	}
}
