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

package staticroute

import (
	"sync"
	"time"
)

// resolveTrigger coalesces many requests to "resolve the configuration
// again" into a single debounced callback. Set re-arms itself at most
// once per debounce window; a Cancel during the window suppresses the
// pending fire.
type resolveTrigger struct {
	mu       sync.Mutex
	debounce time.Duration
	fn       func()
	armed    bool
	timer    *time.Timer
	cancelled bool
}

func newResolveTrigger(debounce time.Duration, fn func()) *resolveTrigger {
	return &resolveTrigger{debounce: debounce, fn: fn}
}

// Set arms the trigger if it is not already armed. Calling Set repeatedly
// within one debounce window has no additional effect: the callback fires
// once, debounce after the first Set in the burst.
func (t *resolveTrigger) Set() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		return
	}
	t.armed = true
	t.cancelled = false
	t.timer = time.AfterFunc(t.debounce, t.fire)
}

func (t *resolveTrigger) fire() {
	t.mu.Lock()
	cancelled := t.cancelled
	t.armed = false
	t.mu.Unlock()
	if !cancelled {
		t.fn()
	}
}

// Cancel suppresses a pending fire, if one is armed. Used by
// StaticRouteManager.Shutdown.
func (t *resolveTrigger) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.armed = false
}
