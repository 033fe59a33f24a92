package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ConfigReloader watches the config file and re-applies rotation policy
// changes to a running service. Only the rotation section is hot-applied;
// everything else requires a restart.
type ConfigReloader struct {
	path    string
	logger  *logrus.Logger
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)

	done chan struct{}
	once sync.Once
}

// NewConfigReloader creates a reloader for the given config path. An empty
// path yields an inert reloader that never fires.
func NewConfigReloader(path string, cfg *Config, logger *logrus.Logger) (*ConfigReloader, error) {
	if logger == nil {
		logger = logrus.New()
	}

	r := &ConfigReloader{
		path:    path,
		logger:  logger,
		current: cfg,
		done:    make(chan struct{}),
	}

	if path == "" {
		return r, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors commonly replace the file, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	r.watcher = watcher

	go r.watch()
	return r, nil
}

// Current returns the most recently loaded configuration.
func (r *ConfigReloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnChange registers a callback invoked with each successfully reloaded
// configuration.
func (r *ConfigReloader) OnChange(fn func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Stop ends watching. Safe to call more than once.
func (r *ConfigReloader) Stop() {
	r.once.Do(func() {
		close(r.done)
		if r.watcher != nil {
			r.watcher.Close()
		}
	})
}

func (r *ConfigReloader) watch() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			r.reload()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.WithError(err).Warn("Config watcher error")
		}
	}
}

func (r *ConfigReloader) reload() {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		r.logger.WithError(err).Warn("Ignoring invalid config change")
		return
	}

	r.mu.Lock()
	r.current = cfg
	callbacks := make([]func(*Config), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"gracePeriod":   cfg.Rotation.GracePeriod,
		"checkInterval": cfg.Rotation.CheckInterval,
	}).Info("Configuration reloaded")

	for _, fn := range callbacks {
		fn(cfg)
	}
}
