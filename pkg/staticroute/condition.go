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

// MatchState is the per-(table, entry, match) slot the condition listener
// manages on the core's behalf. It is opaque to the listener — the
// listener only ever stores and returns it — and concretely is always a
// *StaticRouteMatchState in this package, but the interface keeps the
// listener contract honest about what it actually needs to know.
type MatchState interface {
	IncrementRefCnt()
	// DecrementRefCnt decrements and returns the resulting count.
	DecrementRefCnt() int
	RefCnt() int
	SetDeleted()
	ResetDeleted()
	Deleted() bool
}

// ConditionMatch is the predicate a ConditionListener invokes for every
// entry add/change/delete event on the table it's registered against.
// StaticRouteMatch is the only implementation in this package.
type ConditionMatch interface {
	// Match is invoked on the database's work thread (db_table domain).
	// It must never mutate the database directly — only enqueue.
	Match(table Table, entry Entry, deleted bool) bool
}

// ConditionListener is the routing database's condition-matching
// publish/subscribe facility: consumed, not implemented, by this package.
// A reference implementation lives in pkg/ribtable for tests and for the
// example daemon.
type ConditionListener interface {
	// AddMatchCondition registers match against table. doneCb, when
	// non-nil, is invoked once registration has taken effect; the core
	// never needs this on the add path and always passes nil.
	AddMatchCondition(table Table, match ConditionMatch, doneCb func())
	// RemoveMatchCondition stops delivering new events to match and
	// invokes doneCb once every in-flight delivery has drained.
	RemoveMatchCondition(table Table, match ConditionMatch, doneCb func())

	GetMatchState(table Table, entry Entry, match ConditionMatch) (MatchState, bool)
	SetMatchState(table Table, entry Entry, match ConditionMatch, state MatchState)
	RemoveMatchState(table Table, entry Entry, match ConditionMatch)

	// UnregisterCondition fully removes match's registration bookkeeping
	// once Phase B of the teardown protocol (see StaticRouteManager) has
	// determined no further events or in-flight states remain.
	UnregisterCondition(table Table, match ConditionMatch)
}
