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

package ribtable

import (
	"net/netip"
	"sort"
	"sync"

	"github.com/freepik-company/staticroute/pkg/staticroute"
)

// entry is one routing-table node: a prefix together with the paths
// advertised to it, keyed internally by staticroute.PathID so lookups by
// id agree with the key the core uses to install/withdraw. order records
// the sequence paths were first inserted in, since map iteration order is
// randomized and Paths' tiebreak needs a real insertion order to be
// stable against.
type entry struct {
	mu      sync.Mutex
	prefix  netip.Prefix
	paths   map[uint32]staticroute.Path
	order   []uint32
	deleted bool
}

func newEntry(prefix netip.Prefix) *entry {
	return &entry{prefix: prefix, paths: make(map[uint32]staticroute.Path)}
}

// Prefix implements staticroute.Entry.
func (e *entry) Prefix() netip.Prefix { return e.prefix }

// insertPath installs or replaces the path keyed by id, appending id to
// order only the first time it is seen so later replacements keep their
// original insertion slot.
func (e *entry) insertPath(id uint32, p staticroute.Path) {
	e.mu.Lock()
	if _, exists := e.paths[id]; !exists {
		e.order = append(e.order, id)
	}
	e.paths[id] = p
	e.deleted = false
	e.mu.Unlock()
}

// removePath withdraws the path keyed by id, reporting whether it existed,
// and marks the entry deleted once no paths remain.
func (e *entry) removePath(id uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.paths[id]; !ok {
		return false
	}
	delete(e.paths, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	if len(e.paths) == 0 {
		e.deleted = true
	}
	return true
}

// Paths implements staticroute.Entry, returning paths best-path first:
// feasible before infeasible, higher local preference before lower, with
// insertion order as the final, stable tiebreak.
func (e *entry) Paths() []staticroute.Path {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]staticroute.Path, 0, len(e.order))
	for _, id := range e.order {
		if p, ok := e.paths[id]; ok {
			out = append(out, p)
		}
	}
	sortBestPathOrder(out)
	return out
}

// BestPath implements staticroute.Entry.
func (e *entry) BestPath() (staticroute.Path, bool) {
	ps := e.Paths()
	if len(ps) == 0 {
		return nil, false
	}
	return ps[0], true
}

// IsDeleted implements staticroute.Entry.
func (e *entry) IsDeleted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleted
}

func (e *entry) empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.paths) == 0
}

func sortBestPathOrder(paths []staticroute.Path) {
	localPref := func(p staticroute.Path) uint32 {
		if a := p.Attr(); a != nil {
			return a.LocalPref
		}
		return 0
	}
	sort.SliceStable(paths, func(i, j int) bool {
		pi, pj := paths[i], paths[j]
		if pi.IsFeasible() != pj.IsFeasible() {
			return pi.IsFeasible()
		}
		li, lj := localPref(pi), localPref(pj)
		if li != lj {
			return li > lj
		}
		return false
	})
}
