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

import "net/netip"

// Entry is one routing-table entry: a prefix together with the paths
// advertised to it. The nexthop entry (matched by a StaticRouteMatch's
// condition) and the synthesized route entry (the match's own publication
// target) are both Entry values from the core's point of view.
type Entry interface {
	Prefix() netip.Prefix
	// Paths returns this entry's paths in best-path order, best first.
	Paths() []Path
	BestPath() (Path, bool)
	IsDeleted() bool
}

// Table is the narrow slice of the routing database's partition interface
// the static-route core depends on. Everything about partitioning,
// notification delivery, and storage internals belongs to the database;
// this is only the contract the core calls through.
//
// InsertPath, RemovePath and the mutating half of Notify are
// only ever called from the static_route task domain; Lookup and
// LookupPath may be called from any domain for read access.
type Table interface {
	Name() string
	Family() Family

	Lookup(prefix netip.Prefix) (Entry, bool)
	LookupPath(prefix netip.Prefix, id uint32) (Path, bool)

	// InsertPath installs (or replaces) a path at prefix keyed by its
	// path-id. The first InsertPath at a given prefix creates the entry;
	// if the entry existed but was tombstoned, InsertPath implicitly
	// clears the tombstone.
	InsertPath(prefix netip.Prefix, p Path)
	// RemovePath removes the path keyed by id at prefix, reports whether
	// it existed, and deletes the entry once its last path is gone.
	RemovePath(prefix netip.Prefix, id uint32) bool
	// Notify re-emits a change notification for prefix to downstream
	// listeners, without altering its path set.
	Notify(prefix netip.Prefix)
}

// RoutingInstance is a logical routing-table namespace (a VRF): the
// collaborator a StaticRouteManager is instantiated per-instance against.
type RoutingInstance interface {
	Name() string
	// Deleted reports whether the routing instance itself is being torn
	// down; the manager checks this when a debounced resolve fires, before
	// reconciling.
	Deleted() bool
	GetTable(Family) (Table, bool)
}
