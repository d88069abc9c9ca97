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
	"sync"

	"github.com/freepik-company/staticroute/pkg/staticroute"
)

// Listener is a reference staticroute.ConditionListener: condition
// registrations and match-state bookkeeping live entirely in memory,
// guarded by one mutex. A production routing database partitions this
// across many db_table workers; this package trades that concurrency for
// an implementation simple enough to reason about in tests.
type Listener struct {
	mu     sync.Mutex
	regs   map[staticroute.Table]map[staticroute.ConditionMatch]struct{}
	states map[stateKey]staticroute.MatchState
}

type stateKey struct {
	table staticroute.Table
	entry staticroute.Entry
	match staticroute.ConditionMatch
}

// NewListener returns an empty condition listener.
func NewListener() *Listener {
	return &Listener{
		regs:   make(map[staticroute.Table]map[staticroute.ConditionMatch]struct{}),
		states: make(map[stateKey]staticroute.MatchState),
	}
}

// AddMatchCondition implements staticroute.ConditionListener.
func (l *Listener) AddMatchCondition(table staticroute.Table, match staticroute.ConditionMatch, doneCb func()) {
	l.mu.Lock()
	set, ok := l.regs[table]
	if !ok {
		set = make(map[staticroute.ConditionMatch]struct{})
		l.regs[table] = set
	}
	set[match] = struct{}{}
	l.mu.Unlock()

	if doneCb != nil {
		doneCb()
	}
}

// RemoveMatchCondition implements staticroute.ConditionListener. Beyond
// dropping the registration (which stops future live delivery), it replays
// a synthetic deleted event for every entry this match still holds state
// against, so those states drain through the normal Match/request pipeline
// before doneCb fires — otherwise a match whose nexthop never itself
// changed would sit with a permanently non-zero match-state count and
// never finalize the last phase of its teardown.
func (l *Listener) RemoveMatchCondition(table staticroute.Table, match staticroute.ConditionMatch, doneCb func()) {
	l.mu.Lock()
	if set, ok := l.regs[table]; ok {
		delete(set, match)
		if len(set) == 0 {
			delete(l.regs, table)
		}
	}
	var stale []staticroute.Entry
	for key := range l.states {
		if key.table == table && key.match == match {
			stale = append(stale, key.entry)
		}
	}
	l.mu.Unlock()

	for _, entry := range stale {
		match.Match(table, entry, true)
	}

	if doneCb != nil {
		doneCb()
	}
}

// GetMatchState implements staticroute.ConditionListener.
func (l *Listener) GetMatchState(table staticroute.Table, entry staticroute.Entry, match staticroute.ConditionMatch) (staticroute.MatchState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.states[stateKey{table, entry, match}]
	return s, ok
}

// SetMatchState implements staticroute.ConditionListener.
func (l *Listener) SetMatchState(table staticroute.Table, entry staticroute.Entry, match staticroute.ConditionMatch, state staticroute.MatchState) {
	l.mu.Lock()
	l.states[stateKey{table, entry, match}] = state
	l.mu.Unlock()
}

// RemoveMatchState implements staticroute.ConditionListener.
func (l *Listener) RemoveMatchState(table staticroute.Table, entry staticroute.Entry, match staticroute.ConditionMatch) {
	l.mu.Lock()
	delete(l.states, stateKey{table, entry, match})
	l.mu.Unlock()
}

// UnregisterCondition implements staticroute.ConditionListener. In this
// reference implementation registration and unregistration share no extra
// state beyond the regs map, so this is equivalent to RemoveMatchCondition
// with no completion callback.
func (l *Listener) UnregisterCondition(table staticroute.Table, match staticroute.ConditionMatch) {
	l.RemoveMatchCondition(table, match, nil)
}

// deliver invokes every condition currently registered against table with
// entry. Table calls this on every InsertPath, RemovePath and Notify.
func (l *Listener) deliver(table staticroute.Table, entry staticroute.Entry, deleted bool) {
	l.mu.Lock()
	set := l.regs[table]
	matches := make([]staticroute.ConditionMatch, 0, len(set))
	for m := range set {
		matches = append(matches, m)
	}
	l.mu.Unlock()

	for _, m := range matches {
		m.Match(table, entry, deleted)
	}
}
