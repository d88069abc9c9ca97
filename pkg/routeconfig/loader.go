/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package routeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/freepik-company/staticroute/pkg/staticroute"
)

// Loader loads and watches a directory of static-route configuration
// files, merging them by routing instance name.
type Loader struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	byInstance map[string][]staticroute.StaticRouteConfig

	watcher  *fsnotify.Watcher
	onChange func(instance string, configs []staticroute.StaticRouteConfig)
}

// NewLoader returns a loader watching dir for *.json configuration files.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	return &Loader{
		dir:        dir,
		logger:     logger,
		byInstance: make(map[string][]staticroute.StaticRouteConfig),
	}
}

// Load reads every configuration file in the watched directory and
// replaces the loader's in-memory view. Malformed entries are logged and
// skipped rather than failing the whole load, matching the directory
// loader's tolerance for one bad file among many.
func (l *Loader) Load() error {
	files, err := filepath.Glob(filepath.Join(l.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("routeconfig: glob %s: %w", l.dir, err)
	}

	merged := make(map[string][]staticroute.StaticRouteConfig)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("routeconfig: read %s: %w", path, err)
		}

		f, err := ParseFile(data)
		if err != nil {
			l.logger.Warn("skipping unparseable config file", zap.String("path", path), zap.Error(err))
			continue
		}
		if f.RoutingInstance == "" {
			l.logger.Warn("skipping config file with no routingInstance", zap.String("path", path))
			continue
		}

		for _, e := range f.Routes {
			cfg, err := e.ToStaticRouteConfig()
			if err != nil {
				l.logger.Warn("skipping unparseable route entry", zap.String("path", path), zap.Error(err))
				continue
			}
			merged[f.RoutingInstance] = append(merged[f.RoutingInstance], cfg)
		}
	}

	l.mu.Lock()
	l.byInstance = merged
	l.mu.Unlock()
	return nil
}

// Configs returns the current merged configuration for one routing
// instance.
func (l *Loader) Configs(instance string) []staticroute.StaticRouteConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]staticroute.StaticRouteConfig(nil), l.byInstance[instance]...)
}

// Instances returns the set of routing instance names with at least one
// configured route.
func (l *Loader) Instances() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.byInstance))
	for name := range l.byInstance {
		out = append(out, name)
	}
	return out
}

// Watch starts watching the loader's directory for file changes, invoking
// onChange with the reloaded configuration for every routing instance
// after each reload. onChange is called once per instance present after
// the reload, and once with nil configs for every instance that had routes
// before the reload and has none after it, so a caller using this to drive
// StaticRouteManager.UpdateStaticRouteConfig still sees removal of a
// now-empty instance's last route.
func (l *Loader) Watch(onChange func(instance string, configs []staticroute.StaticRouteConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("routeconfig: new watcher: %w", err)
	}
	l.watcher = watcher
	l.onChange = onChange

	go l.watchLoop()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("routeconfig: watch %s: %w", l.dir, err)
	}
	return nil
}

func (l *Loader) watchLoop() {
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			l.reload()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (l *Loader) reload() {
	previous := l.Instances()
	if err := l.Load(); err != nil {
		l.logger.Error("failed to reload route configuration", zap.Error(err))
		return
	}
	if l.onChange == nil {
		return
	}
	for _, instance := range l.Instances() {
		l.onChange(instance, l.Configs(instance))
	}
	for _, instance := range previous {
		if len(l.Configs(instance)) == 0 {
			l.onChange(instance, nil)
		}
	}
}

// Close stops the directory watcher.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}
