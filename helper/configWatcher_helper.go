package helper

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"pr_panel/log"
	"pr_panel/model"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback receives the freshly loaded config after the file changed.
type ReloadCallback func(cfg *model.Config)

// ConfigWatcher reloads the config file when it changes on disk.
// The parent directory is watched so editors that replace the file are picked up too.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload ReloadCallback
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

func NewConfigWatcher(path string, onReload ReloadCallback) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir of %s: %w", abs, err)
	}

	return &ConfigWatcher{
		path:     abs,
		watcher:  watcher,
		onReload: onReload,
		debounce: 500 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

func (cw *ConfigWatcher) Start() {
	go cw.watchLoop()
}

func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()
	err := cw.watcher.Close()
	<-cw.done
	return err
}

func (cw *ConfigWatcher) watchLoop() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debugf("Config watcher detected %s on %s", event.Op, event.Name)
			cw.scheduleReload()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("Config watcher error: %v", err)
		}
	}
}

func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, cw.reload)
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadConfigFile(cw.path)
	if err != nil {
		log.Errorf("Config reload failed, keeping previous settings: %v", err)
		return
	}
	log.Infof("Config reloaded from %s", cw.path)
	cw.onReload(cfg)
}
