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
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/client-go/util/workqueue"
)

// DefaultResolveDebounce is how long UpdateStaticRouteConfig waits after the
// first config change of a burst before reconciling, coalescing edits (e.g. a
// directory of files all touched by the same deploy) into one pass.
const DefaultResolveDebounce = 200 * time.Millisecond

// ManagerOptions configures a StaticRouteManager.
type ManagerOptions struct {
	// Instance is the routing instance this manager resolves static route
	// nexthops and publishes synthesized routes against.
	Instance RoutingInstance
	// Family selects which table of Instance both the nexthop lookup and
	// the synthesized route publication use.
	Family Family
	// Listener is the condition-matching publish/subscribe facility the
	// manager registers StaticRouteMatch conditions against.
	Listener ConditionListener
	// Logger receives structured diagnostics. Required.
	Logger *zap.Logger
	// ResolveDebounce overrides DefaultResolveDebounce when non-zero.
	ResolveDebounce time.Duration
}

// StaticRouteManager is the static_route task domain: the single consumer
// of nexthop-reachability events for one routing instance, and the only
// writer of the routes it synthesizes. One manager exists per
// (routing instance, address family) pair.
type StaticRouteManager struct {
	logger    *zap.Logger
	instance  RoutingInstance
	family    Family
	listener  ConditionListener
	table     Table
	attrDB    *AttributeDB
	extCommDB *ExtCommunityDB

	mu            sync.RWMutex
	matches       map[netip.Prefix]*StaticRouteMatch
	pendingConfig []StaticRouteConfig

	trigger *resolveTrigger
	queue   workqueue.TypedInterface[*Request]

	shutdownOnce sync.Once
}

// NewStaticRouteManager validates opts and returns a manager ready to have
// its Run loop started.
func NewStaticRouteManager(opts ManagerOptions) (*StaticRouteManager, error) {
	if opts.Instance == nil {
		return nil, fmt.Errorf("staticroute: ManagerOptions.Instance is required")
	}
	if opts.Listener == nil {
		return nil, fmt.Errorf("staticroute: ManagerOptions.Listener is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("staticroute: ManagerOptions.Logger is required")
	}
	table, ok := opts.Instance.GetTable(opts.Family)
	if !ok {
		return nil, fmt.Errorf("staticroute: routing instance %q has no table for family %s", opts.Instance.Name(), opts.Family)
	}

	debounce := opts.ResolveDebounce
	if debounce == 0 {
		debounce = DefaultResolveDebounce
	}

	mgr := &StaticRouteManager{
		logger:    opts.Logger.With(zap.String("routing_instance", opts.Instance.Name()), zap.Stringer("family", opts.Family)),
		instance:  opts.Instance,
		family:    opts.Family,
		listener:  opts.Listener,
		table:     table,
		attrDB:    NewAttributeDB(),
		extCommDB: NewExtCommunityDB(),
		matches:   make(map[netip.Prefix]*StaticRouteMatch),
		queue:     workqueue.NewTyped[*Request](),
	}
	mgr.trigger = newResolveTrigger(debounce, mgr.resolveNow)
	return mgr, nil
}

func (mgr *StaticRouteManager) nexthopTable() (Table, bool) {
	return mgr.instance.GetTable(mgr.family)
}

func prefixLess(a, b netip.Prefix) bool {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c < 0
	}
	return a.Bits() < b.Bits()
}

// LocateStaticRoutePrefix returns the match registered for prefix, if any.
func (mgr *StaticRouteManager) LocateStaticRoutePrefix(prefix netip.Prefix) (*StaticRouteMatch, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.matches[prefix]
	return m, ok
}

// StaticRouteMap returns a point-in-time snapshot of every configured
// prefix's match, for introspection.
func (mgr *StaticRouteManager) StaticRouteMap() map[netip.Prefix]*StaticRouteMatch {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	out := make(map[netip.Prefix]*StaticRouteMatch, len(mgr.matches))
	for p, m := range mgr.matches {
		out[p] = m
	}
	return out
}

// UpdateStaticRouteConfig records the latest full desired configuration and
// schedules a debounced reconciliation. Safe to call repeatedly in a burst
// (e.g. from a directory watcher delivering one event per file).
func (mgr *StaticRouteManager) UpdateStaticRouteConfig(configs []StaticRouteConfig) {
	mgr.mu.Lock()
	mgr.pendingConfig = configs
	mgr.mu.Unlock()
	mgr.trigger.Set()
}

// resolveNow is the resolveTrigger's callback. It re-checks that the
// routing instance has not been deleted out from under a pending config
// change before reconciling — the debounce window is long enough that a
// concurrent instance teardown can race ahead of it.
func (mgr *StaticRouteManager) resolveNow() {
	if mgr.instance.Deleted() {
		mgr.logger.Debug("dropping deferred config resolve, routing instance deleted")
		return
	}
	mgr.mu.Lock()
	configs := mgr.pendingConfig
	mgr.mu.Unlock()
	mgr.ProcessStaticRouteConfig(configs)
}

// ProcessStaticRouteConfig reconciles the manager's live matches against
// configs by a sorted merge-join on prefix: prefixes present only in
// configs are added, present only in the live set are removed, and
// prefixes in both are compared and reconciled by reconcileMatch when they
// differ (route targets in place, a nexthop change by remove and re-add).
func (mgr *StaticRouteManager) ProcessStaticRouteConfig(configs []StaticRouteConfig) {
	sorted := append([]StaticRouteConfig(nil), configs...)
	sort.Slice(sorted, func(i, j int) bool { return prefixLess(sorted[i].Prefix(), sorted[j].Prefix()) })

	mgr.mu.RLock()
	existing := make([]netip.Prefix, 0, len(mgr.matches))
	for p := range mgr.matches {
		existing = append(existing, p)
	}
	mgr.mu.RUnlock()
	sort.Slice(existing, func(i, j int) bool { return prefixLess(existing[i], existing[j]) })

	i, j := 0, 0
	for i < len(sorted) && j < len(existing) {
		cfgPrefix := sorted[i].Prefix()
		exPrefix := existing[j]
		switch {
		case prefixLess(cfgPrefix, exPrefix):
			mgr.addStaticRouteMatch(sorted[i])
			i++
		case prefixLess(exPrefix, cfgPrefix):
			mgr.RemoveStaticRoutePrefix(exPrefix)
			j++
		default:
			mgr.reconcileMatch(exPrefix, sorted[i])
			i++
			j++
		}
	}
	for ; i < len(sorted); i++ {
		mgr.addStaticRouteMatch(sorted[i])
	}
	for ; j < len(existing); j++ {
		mgr.RemoveStaticRoutePrefix(existing[j])
	}
}

func (mgr *StaticRouteManager) reconcileMatch(prefix netip.Prefix, cfg StaticRouteConfig) {
	mgr.mu.RLock()
	match, ok := mgr.matches[prefix]
	mgr.mu.RUnlock()
	if !ok {
		return
	}

	switch match.CompareConfig(cfg) {
	case NoChange:
		return
	case RTargetChange:
		match.UpdateRouteTargets(cfg.RouteTargets)
	case NexthopChange:
		mgr.RemoveStaticRoutePrefix(prefix)
		mgr.addStaticRouteMatch(cfg)
	case PrefixChange:
		invariant(false, "PrefixChange observed for existing prefix %s", prefix)
	}
}

// addStaticRouteMatch creates and registers a match for cfg's prefix. A
// prefix occupied by a match that is still mid-teardown (Deleted but not
// yet removed from mgr.matches by finalizeMatchTeardown) is replaced
// immediately rather than skipped: NexthopChange reconciliation removes
// the old match and adds the new one back to back, and the old match's
// eventual finalizeMatchTeardown call is guarded to only ever delete its
// own entry (see finalizeMatchTeardown), so this race is safe.
func (mgr *StaticRouteManager) addStaticRouteMatch(cfg StaticRouteConfig) {
	mgr.mu.Lock()
	if existing, exists := mgr.matches[cfg.Prefix()]; exists && !existing.Deleted() {
		mgr.mu.Unlock()
		return
	}
	match := newStaticRouteMatch(mgr, cfg.Prefix(), cfg)
	mgr.matches[cfg.Prefix()] = match
	mgr.mu.Unlock()

	nhTable, ok := mgr.nexthopTable()
	if !ok {
		mgr.logger.Warn("nexthop table unavailable, static route configured but unresolved",
			zap.Stringer("prefix", cfg.Prefix()))
		return
	}
	mgr.listener.AddMatchCondition(nhTable, match, nil)
}

// RemoveStaticRoutePrefix begins Phase A of the three-phase teardown
// protocol for prefix: it marks the match deleted and asks the condition
// listener to unregister it. Phase A runs wherever the caller runs (the
// config task in production); it never touches the output table — that is
// reserved for the static_route task processing the resulting
// RequestDeleteStaticRouteDone (Phase B).
func (mgr *StaticRouteManager) RemoveStaticRoutePrefix(prefix netip.Prefix) {
	mgr.mu.RLock()
	match, ok := mgr.matches[prefix]
	mgr.mu.RUnlock()
	if !ok || match.Deleted() {
		return
	}
	match.SetDeleted()

	nhTable, ok := mgr.nexthopTable()
	if !ok {
		// Never registered (the table vanished before AddMatchCondition
		// ran); nothing to unregister, and no paths were ever installed.
		match.SetUnregistered()
		mgr.finalizeMatchTeardown(match)
		return
	}
	mgr.listener.RemoveMatchCondition(nhTable, match, func() {
		mgr.enqueue(&Request{Kind: RequestDeleteStaticRouteDone, Match: match})
	})
}

func (mgr *StaticRouteManager) enqueue(req *Request) {
	mgr.queue.Add(req)
}

// Run drains the static_route task's request queue until stopCh closes. It
// is meant to run on its own goroutine for the manager's lifetime.
func (mgr *StaticRouteManager) Run(stopCh <-chan struct{}) {
	go func() {
		<-stopCh
		mgr.queue.ShutDown()
	}()

	for {
		req, shutdown := mgr.queue.Get()
		if shutdown {
			return
		}
		mgr.processRequest(req)
		mgr.queue.Done(req)
	}
}

func (mgr *StaticRouteManager) processRequest(req *Request) {
	switch req.Kind {
	case RequestNexthopAddChg:
		mgr.handleNexthopAddChg(req)
	case RequestNexthopDelete:
		mgr.handleNexthopDelete(req)
	case RequestDeleteStaticRouteDone:
		mgr.handleDeleteStaticRouteDone(req)
	default:
		mgr.logger.Warn("dropping request of unknown kind", zap.Stringer("kind", req.Kind))
	}
}

func (mgr *StaticRouteManager) handleNexthopAddChg(req *Request) {
	invariant(req.State != nil, "%s request for prefix %s has no match state", req.Kind, req.Match.Prefix())
	req.State.ResetDeleted()
	old := req.Match.snapshotPathIDs()
	req.Match.setNexthopEntry(req.Entry)
	req.Match.AddStaticRoute(old)
	mgr.finishState(req)
}

func (mgr *StaticRouteManager) handleNexthopDelete(req *Request) {
	invariant(req.State != nil, "%s request for prefix %s has no match state", req.Kind, req.Match.Prefix())
	req.Match.clearNexthopEntry()
	req.Match.RemoveStaticRoute()
	req.State.SetDeleted()
	mgr.finishState(req)
}

// finishState is Phase C's trigger point: it releases the request's
// reference on the matched entry's state, and once the state has drained
// to zero references and was marked deleted, unregisters the state from
// the listener and checks whether the owning match can now be finalized.
func (mgr *StaticRouteManager) finishState(req *Request) {
	if req.State.DecrementRefCnt() > 0 {
		return
	}
	if !req.State.Deleted() {
		return
	}
	mgr.listener.RemoveMatchState(req.Table, req.Entry, req.Match)
	if req.Match.decrementMatchState() == 0 {
		mgr.finalizeMatchTeardown(req.Match)
	}
}

// handleDeleteStaticRouteDone is Phase B: the condition listener has
// confirmed no further events will be delivered to this match. It withdraws
// whatever paths the match still has installed (a RequestNexthopDelete may
// already have withdrawn them) before marking the match unregistered.
func (mgr *StaticRouteManager) handleDeleteStaticRouteDone(req *Request) {
	req.Match.RemoveStaticRoute()
	req.Match.SetUnregistered()
	mgr.finalizeMatchTeardown(req.Match)
}

// finalizeMatchTeardown removes match from the live set once both Phase B
// (unregistered) and Phase C (no outstanding match states) have completed,
// in either order. It only ever deletes its own map entry: a nexthop
// change may already have replaced match with a fresh one at the same
// prefix by the time this fires, and that replacement must survive.
func (mgr *StaticRouteManager) finalizeMatchTeardown(match *StaticRouteMatch) {
	if !match.Unregistered() || match.NumMatchState() != 0 {
		return
	}
	if nhTable, ok := mgr.nexthopTable(); ok {
		mgr.listener.UnregisterCondition(nhTable, match)
	}
	mgr.mu.Lock()
	if cur, ok := mgr.matches[match.Prefix()]; ok && cur == match {
		delete(mgr.matches, match.Prefix())
	}
	mgr.mu.Unlock()
}

// NotifyAllRoutes re-emits a change notification for every synthesized
// route without altering any of them.
func (mgr *StaticRouteManager) NotifyAllRoutes() {
	for _, m := range mgr.StaticRouteMap() {
		m.NotifyRoute()
	}
}

// FlushStaticRouteConfig requests removal of every currently configured
// static route, walking the full live set and starting Phase A of the
// three-phase teardown for each prefix in turn.
func (mgr *StaticRouteManager) FlushStaticRouteConfig() {
	for prefix := range mgr.StaticRouteMap() {
		mgr.RemoveStaticRoutePrefix(prefix)
	}
}

// Shutdown cancels any pending debounced resolve and stops the request
// queue, causing Run to return once it drains in-flight work.
func (mgr *StaticRouteManager) Shutdown() {
	mgr.shutdownOnce.Do(func() {
		mgr.trigger.Cancel()
		mgr.queue.ShutDown()
	})
}
