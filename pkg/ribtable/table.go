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
	"sync"

	"github.com/gaissmai/bart"

	"github.com/freepik-company/staticroute/pkg/staticroute"
)

// Table is a reference staticroute.Table backed by a bart.Table for
// longest-prefix-match storage, keyed by the exact prefix the core
// operates on (the static-route core never does a true LPM lookup itself,
// only exact Lookup/LookupPath by the prefix it was configured with, but a
// real partition would share this storage with peers that do).
type Table struct {
	mu       sync.RWMutex
	name     string
	family   staticroute.Family
	bt       *bart.Table[*entry]
	listener *Listener
}

// NewTable returns an empty table. listener may be nil for a table that is
// only ever a synthesized-route publication target and never matched
// against (it will then simply never deliver events).
func NewTable(name string, family staticroute.Family, listener *Listener) *Table {
	return &Table{name: name, family: family, bt: &bart.Table[*entry]{}, listener: listener}
}

// Name implements staticroute.Table.
func (t *Table) Name() string { return t.name }

// Family implements staticroute.Table.
func (t *Table) Family() staticroute.Family { return t.family }

// Lookup implements staticroute.Table.
func (t *Table) Lookup(prefix netip.Prefix) (staticroute.Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.bt.Get(prefix)
	if !ok {
		return nil, false
	}
	return e, true
}

// LookupPath implements staticroute.Table.
func (t *Table) LookupPath(prefix netip.Prefix, id uint32) (staticroute.Path, bool) {
	t.mu.RLock()
	e, ok := t.bt.Get(prefix)
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.paths[id]
	return p, ok
}

// InsertPath implements staticroute.Table, keying the path by
// staticroute.PathID(p.NextHop()) so the core's own id-based lookups agree
// with this table's storage.
func (t *Table) InsertPath(prefix netip.Prefix, p staticroute.Path) {
	t.mu.Lock()
	e, ok := t.bt.Get(prefix)
	if !ok {
		e = newEntry(prefix)
		t.bt.Insert(prefix, e)
	}
	e.insertPath(staticroute.PathID(p.NextHop()), p)
	t.mu.Unlock()

	t.notifyListener(e, false)
}

// RemovePath implements staticroute.Table, deleting the entry from the
// underlying bart.Table once its last path is withdrawn.
func (t *Table) RemovePath(prefix netip.Prefix, id uint32) bool {
	t.mu.Lock()
	e, ok := t.bt.Get(prefix)
	if !ok {
		t.mu.Unlock()
		return false
	}

	existed := e.removePath(id)
	empty := e.empty()
	if empty {
		t.bt.Delete(prefix)
	}
	t.mu.Unlock()

	if existed {
		t.notifyListener(e, empty)
	}
	return existed
}

// Notify implements staticroute.Table.
func (t *Table) Notify(prefix netip.Prefix) {
	t.mu.RLock()
	e, ok := t.bt.Get(prefix)
	t.mu.RUnlock()
	if !ok {
		return
	}
	t.notifyListener(e, e.IsDeleted())
}

func (t *Table) notifyListener(e *entry, deleted bool) {
	if t.listener != nil {
		t.listener.deliver(t, e, deleted)
	}
}

// Instance is a reference staticroute.RoutingInstance: a named collection
// of per-family tables, standing in for a VRF.
type Instance struct {
	mu      sync.RWMutex
	name    string
	deleted bool
	tables  map[staticroute.Family]*Table
}

// NewInstance returns an empty routing instance.
func NewInstance(name string) *Instance {
	return &Instance{name: name, tables: make(map[staticroute.Family]*Table)}
}

// Name implements staticroute.RoutingInstance.
func (ri *Instance) Name() string { return ri.name }

// Deleted implements staticroute.RoutingInstance.
func (ri *Instance) Deleted() bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return ri.deleted
}

// SetDeleted marks the instance as torn down; subsequent debounced config
// resolves will no-op rather than race a concurrent deletion.
func (ri *Instance) SetDeleted(v bool) {
	ri.mu.Lock()
	ri.deleted = v
	ri.mu.Unlock()
}

// GetTable implements staticroute.RoutingInstance.
func (ri *Instance) GetTable(f staticroute.Family) (staticroute.Table, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	t, ok := ri.tables[f]
	return t, ok
}

// AddTable registers t under its own family, replacing any existing table
// for that family.
func (ri *Instance) AddTable(t *Table) {
	ri.mu.Lock()
	ri.tables[t.Family()] = t
	ri.mu.Unlock()
}
