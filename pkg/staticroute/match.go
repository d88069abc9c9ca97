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
	"net/netip"
	"sync"
)

// StaticRouteMatch is the condition and publisher for one configured
// static prefix. One instance exists per configured prefix: created on
// first configuration, destroyed only once unregistered from the
// condition listener and its match-state count has drained to zero.
type StaticRouteMatch struct {
	manager *StaticRouteManager // back-reference, non-owning
	prefix  netip.Prefix        // immutable key

	mu           sync.Mutex
	nexthop      netip.Addr
	nexthopEntry Entry // weak: resolved nexthop entry, may be nil
	pathIDs      map[uint32]struct{}
	routeTargets []RouteTarget
	unregistered bool
	deleted      bool
	numStates    int
}

func newStaticRouteMatch(mgr *StaticRouteManager, prefix netip.Prefix, cfg StaticRouteConfig) *StaticRouteMatch {
	return &StaticRouteMatch{
		manager:      mgr,
		prefix:       prefix,
		nexthop:      cfg.NexthopAddress,
		routeTargets: ParseRouteTargetList(mgr.logger, cfg.RouteTargets),
		pathIDs:      make(map[uint32]struct{}),
	}
}

// Prefix returns the match's immutable key.
func (m *StaticRouteMatch) Prefix() netip.Prefix { return m.prefix }

// Nexthop returns the currently configured nexthop address.
func (m *StaticRouteMatch) Nexthop() netip.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nexthop
}

// RouteTargets returns a copy of the currently configured route targets.
func (m *StaticRouteMatch) RouteTargets() []RouteTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RouteTarget(nil), m.routeTargets...)
}

// PathIDs returns the set of path-ids currently believed to be installed
// in the synthesized route, for introspection and tests.
func (m *StaticRouteMatch) PathIDs() map[uint32]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint32]struct{}, len(m.pathIDs))
	for id := range m.pathIDs {
		out[id] = struct{}{}
	}
	return out
}

func (m *StaticRouteMatch) snapshotPathIDs() map[uint32]struct{} { return m.PathIDs() }

func (m *StaticRouteMatch) setNexthopEntry(e Entry) {
	m.mu.Lock()
	m.nexthopEntry = e
	m.mu.Unlock()
}

func (m *StaticRouteMatch) clearNexthopEntry() {
	m.mu.Lock()
	m.nexthopEntry = nil
	m.mu.Unlock()
}

// Unregistered reports whether the condition listener has fully
// unregistered this match; it transitions false→true exactly once.
func (m *StaticRouteMatch) Unregistered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unregistered
}

// SetUnregistered flips the unregistered flag. It is only ever called once,
// from Phase B of teardown.
func (m *StaticRouteMatch) SetUnregistered() {
	m.mu.Lock()
	invariant(!m.unregistered, "match for prefix %s unregistered twice", m.prefix)
	m.unregistered = true
	m.mu.Unlock()
}

// Deleted reports whether RemoveStaticRoutePrefix has begun tearing this
// match down.
func (m *StaticRouteMatch) Deleted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted
}

// SetDeleted marks teardown as started. Idempotent by contract of the
// caller (RemoveStaticRoutePrefix checks Deleted before calling this).
func (m *StaticRouteMatch) SetDeleted() {
	m.mu.Lock()
	m.deleted = true
	m.mu.Unlock()
}

// NumMatchState returns the number of live StaticRouteMatchState handles
// outstanding against this match.
func (m *StaticRouteMatch) NumMatchState() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numStates
}

func (m *StaticRouteMatch) incrementMatchState() int {
	m.mu.Lock()
	m.numStates++
	n := m.numStates
	m.mu.Unlock()
	return n
}

func (m *StaticRouteMatch) decrementMatchState() int {
	m.mu.Lock()
	invariant(m.numStates > 0, "match-state count underflow for prefix %s", m.prefix)
	m.numStates--
	n := m.numStates
	m.mu.Unlock()
	return n
}

// CompareConfig classifies how cfg differs from the configuration this
// match currently reflects, returning the coarsest change tier: prefix is
// checked first, then nexthop, then the route-target multiset.
func (m *StaticRouteMatch) CompareConfig(cfg StaticRouteConfig) ChangeType {
	if cfg.Prefix() != m.prefix {
		return PrefixChange
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.NexthopAddress != m.nexthop {
		return NexthopChange
	}

	parsed := ParseRouteTargetList(m.manager.logger, cfg.RouteTargets)
	if !routeTargetsEqual(m.routeTargets, parsed) {
		return RTargetChange
	}

	return NoChange
}

// UpdateRouteTargets replaces the configured route-target set and, if the
// synthesized route already exists, re-splices every installed path's
// extended-community list in place without touching nexthops or labels.
func (m *StaticRouteMatch) UpdateRouteTargets(raw []string) {
	parsed := ParseRouteTargetList(m.manager.logger, raw)

	m.mu.Lock()
	m.routeTargets = parsed
	hasRoute := len(m.pathIDs) > 0
	m.mu.Unlock()

	if hasRoute {
		m.UpdateStaticRoute()
	}
}

// Match is the ConditionMatch predicate registered with the condition
// listener: it reports whether entry is this match's nexthop-of-interest,
// and if so drives the MatchState lifecycle and enqueues a request onto
// the manager's queue. It never touches the database directly.
func (m *StaticRouteMatch) Match(table Table, entry Entry, deleted bool) bool {
	m.mu.Lock()
	if m.unregistered {
		m.mu.Unlock()
		return false
	}
	want := netip.PrefixFrom(m.nexthop, m.nexthop.BitLen())
	m.mu.Unlock()

	if entry.Prefix() != want {
		return false
	}

	mgr := m.manager
	state, ok := mgr.listener.GetMatchState(table, entry, m)
	if !ok {
		if deleted {
			// Never matched before; nothing pins this entry, so a
			// delete event for it is simply not interesting.
			return true
		}
		state = newStaticRouteMatchState(m)
		mgr.listener.SetMatchState(table, entry, m, state)
		m.incrementMatchState()
	}

	ms := state.(*StaticRouteMatchState)
	ms.IncrementRefCnt()

	kind := RequestNexthopAddChg
	if deleted {
		kind = RequestNexthopDelete
	}
	mgr.enqueue(&Request{Kind: kind, Table: table, Entry: entry, Match: m, State: ms})
	return true
}

// ecmpPlateau walks paths (assumed best-path ordered) and returns the
// leading run that is feasible and ties the best path on ECMP-significant
// attributes, modeled here as local preference.
func ecmpPlateau(paths []Path) []Path {
	if len(paths) == 0 {
		return nil
	}
	best := paths[0]
	if !best.IsFeasible() {
		return nil
	}
	plateau := make([]Path, 0, len(paths))
	plateau = append(plateau, best)
	bestAttr := best.Attr()
	for _, p := range paths[1:] {
		if !p.IsFeasible() {
			break
		}
		attr := p.Attr()
		if bestAttr == nil || attr == nil || attr.LocalPref != bestAttr.LocalPref {
			break
		}
		plateau = append(plateau, p)
	}
	return plateau
}

// AddStaticRoute recomputes the synthesized route's path set from the
// current nexthop entry and publishes it. oldPathIDs is the path-id set
// believed installed before this call; any id no longer present
// afterward is withdrawn.
func (m *StaticRouteMatch) AddStaticRoute(oldPathIDs map[uint32]struct{}) {
	m.mu.Lock()
	entry := m.nexthopEntry
	rtargets := append([]RouteTarget(nil), m.routeTargets...)
	m.mu.Unlock()

	mgr := m.manager
	table := mgr.table

	if entry == nil || entry.IsDeleted() {
		return
	}

	plateau := ecmpPlateau(entry.Paths())
	if len(plateau) == 0 {
		return
	}

	seenForwarding := make(map[forwardingKey]bool, len(plateau))
	newIDs := make(map[uint32]struct{}, len(plateau))

	for _, p := range plateau {
		fk := newForwardingKey(p)
		if seenForwarding[fk] {
			continue
		}
		seenForwarding[fk] = true

		newAttr := ExtCommunityRouteTargetList(mgr.attrDB, p.Attr(), rtargets)
		if newAttr == nil {
			newAttr = p.Attr()
		}
		if p.IsReplicated() {
			if rd := p.SourceRouteDistinguisher(); rd != "" {
				newAttr = mgr.attrDB.ReplaceSourceRdAndLocate(newAttr, rd)
			}
		}

		id := PathID(p.NextHop())
		newIDs[id] = struct{}{}

		existing, ok := table.LookupPath(m.prefix, id)
		if ok && attrEqual(existing.Attr(), newAttr) && existing.Label() == p.Label() {
			continue
		}

		stale := false
		if ok {
			stale = existing.IsStale()
			table.RemovePath(m.prefix, id)
		}

		newPath := p.WithAttr(newAttr)
		newPath.SetStale(stale)
		table.InsertPath(m.prefix, newPath)
		table.Notify(m.prefix)
	}

	for oldID := range oldPathIDs {
		if _, ok := newIDs[oldID]; !ok {
			if table.RemovePath(m.prefix, oldID) {
				table.Notify(m.prefix)
			}
		}
	}

	m.mu.Lock()
	m.pathIDs = newIDs
	m.mu.Unlock()
}

// RemoveStaticRoute removes every path this match previously installed. If
// that empties the synthesized route, the table deletes the entry as a
// side effect of the last RemovePath; otherwise the entry is merely
// notified.
func (m *StaticRouteMatch) RemoveStaticRoute() {
	m.mu.Lock()
	ids := m.pathIDs
	m.pathIDs = make(map[uint32]struct{})
	m.mu.Unlock()

	table := m.manager.table
	removedAny := false
	for id := range ids {
		if table.RemovePath(m.prefix, id) {
			removedAny = true
		}
	}
	if removedAny {
		if _, ok := table.Lookup(m.prefix); ok {
			table.Notify(m.prefix)
		}
	}
}

// UpdateStaticRoute re-splices the configured route-target list into every
// currently installed path without changing nexthops or labels.
func (m *StaticRouteMatch) UpdateStaticRoute() {
	m.mu.Lock()
	ids := make([]uint32, 0, len(m.pathIDs))
	for id := range m.pathIDs {
		ids = append(ids, id)
	}
	rtargets := append([]RouteTarget(nil), m.routeTargets...)
	m.mu.Unlock()

	mgr := m.manager
	table := mgr.table
	changed := false

	for _, id := range ids {
		p, ok := table.LookupPath(m.prefix, id)
		if !ok {
			continue
		}
		newAttr := ExtCommunityRouteTargetList(mgr.attrDB, p.Attr(), rtargets)
		if newAttr == nil {
			newAttr = p.Attr()
		}
		if attrEqual(newAttr, p.Attr()) {
			continue
		}
		table.RemovePath(m.prefix, id)
		replacement := p.WithAttr(newAttr)
		replacement.SetStale(p.IsStale())
		table.InsertPath(m.prefix, replacement)
		changed = true
	}

	if changed {
		table.Notify(m.prefix)
	}
}

// NotifyRoute re-emits a change notification for the synthesized route
// without altering it.
func (m *StaticRouteMatch) NotifyRoute() {
	m.manager.table.Notify(m.prefix)
}
