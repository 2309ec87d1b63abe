// Package configwatcher reloads the engine tunables when the config file
// changes on disk.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/actlife/pkg/activity"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/plugins"
)

// Loader builds an engine config from the file at path, starting from base.
type Loader func(path string, base activity.Config) (activity.Config, error)

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin watches one config file and applies it with Engine.UpdateConfig.
// Editors that replace the file by rename are handled by watching the
// parent directory.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	load          Loader

	engine   plugins.Engine
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// New creates a config watcher plugin.
func New(cfg Config, load Loader) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		load:          load,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching. A plugin without a path does nothing.
func (p *Plugin) Initialize(ctx context.Context, cfg plugins.Config) error {
	p.mu.Lock()
	p.engine = cfg.Engine
	if cfg.Logger != nil {
		p.logger = cfg.Logger.With(log.String("plugin", p.Name()))
	}
	p.mu.Unlock()

	if p.path == "" || p.engine == nil {
		p.logger.Warn("config watcher disabled: no config file or engine")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("config watcher started", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reloads reports how many reloads changed the engine config.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload applies the file. A broken file leaves the running config alone.
func (p *Plugin) reload() {
	current := p.engine.Config()
	next, err := p.load(p.path, current)
	if err != nil {
		p.logger.Warn("config reload failed, keeping current config", log.Err(err))
		return
	}
	if next == current {
		return
	}
	if err := p.engine.UpdateConfig(next); err != nil {
		p.logger.Warn("config reload rejected", log.Err(err))
		return
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	p.logger.Info("config file applied", log.String("path", p.path))
}

var _ plugins.Plugin = (*Plugin)(nil)
