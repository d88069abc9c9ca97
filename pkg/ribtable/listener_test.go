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
	"testing"

	"github.com/freepik-company/staticroute/pkg/staticroute"
)

// recordingMatch is a minimal staticroute.ConditionMatch that records every
// call it receives, for asserting on delivery and replay behavior without
// pulling in the full StaticRouteManager.
type recordingMatch struct {
	calls []recordedCall
}

type recordedCall struct {
	entry   staticroute.Entry
	deleted bool
}

func (m *recordingMatch) Match(table staticroute.Table, entry staticroute.Entry, deleted bool) bool {
	m.calls = append(m.calls, recordedCall{entry: entry, deleted: deleted})
	return true
}

func TestListenerDeliversToRegisteredMatch(t *testing.T) {
	listener := NewListener()
	tbl := NewTable("default.inet.0", staticroute.FamilyInetUnicast, listener)
	m := &recordingMatch{}

	registered := false
	listener.AddMatchCondition(tbl, m, func() { registered = true })
	if !registered {
		t.Fatalf("expected AddMatchCondition's doneCb to fire synchronously")
	}

	prefix := netip.MustParsePrefix("10.0.0.1/32")
	tbl.InsertPath(prefix, NewPath(netip.MustParseAddr("10.0.0.1"), 1, &staticroute.Attr{LocalPref: 100}))

	if len(m.calls) != 1 || m.calls[0].deleted {
		t.Fatalf("expected exactly one non-deleted delivery, got %+v", m.calls)
	}
}

func TestListenerStopsDeliveryAfterRemoveMatchCondition(t *testing.T) {
	listener := NewListener()
	tbl := NewTable("default.inet.0", staticroute.FamilyInetUnicast, listener)
	m := &recordingMatch{}
	listener.AddMatchCondition(tbl, m, nil)

	done := false
	listener.RemoveMatchCondition(tbl, m, func() { done = true })
	if !done {
		t.Fatalf("expected RemoveMatchCondition's doneCb to fire")
	}

	prefix := netip.MustParsePrefix("10.0.0.1/32")
	tbl.InsertPath(prefix, NewPath(netip.MustParseAddr("10.0.0.1"), 1, &staticroute.Attr{LocalPref: 100}))

	if len(m.calls) != 0 {
		t.Fatalf("expected no further deliveries after unregistration, got %+v", m.calls)
	}
}

func TestListenerReplaysDeletedForOutstandingStatesOnRemove(t *testing.T) {
	listener := NewListener()
	tbl := NewTable("default.inet.0", staticroute.FamilyInetUnicast, listener)
	m := &recordingMatch{}
	listener.AddMatchCondition(tbl, m, nil)

	prefix := netip.MustParsePrefix("10.0.0.1/32")
	tbl.InsertPath(prefix, NewPath(netip.MustParseAddr("10.0.0.1"), 1, &staticroute.Attr{LocalPref: 100}))
	e, ok := tbl.Lookup(prefix)
	if !ok {
		t.Fatalf("expected entry to exist")
	}
	listener.SetMatchState(tbl, e, m, &staticroute.StaticRouteMatchState{})

	m.calls = nil
	listener.RemoveMatchCondition(tbl, m, nil)

	if len(m.calls) != 1 || !m.calls[0].deleted {
		t.Fatalf("expected exactly one synthetic deleted replay for the outstanding state, got %+v", m.calls)
	}
}

func TestListenerMatchStateRoundTrip(t *testing.T) {
	listener := NewListener()
	tbl := NewTable("default.inet.0", staticroute.FamilyInetUnicast, listener)
	m := &recordingMatch{}
	prefix := netip.MustParsePrefix("10.0.0.1/32")
	tbl.InsertPath(prefix, NewPath(netip.MustParseAddr("10.0.0.1"), 1, &staticroute.Attr{LocalPref: 100}))
	e, _ := tbl.Lookup(prefix)

	if _, ok := listener.GetMatchState(tbl, e, m); ok {
		t.Fatalf("expected no match state before one is set")
	}

	state := &staticroute.StaticRouteMatchState{}
	listener.SetMatchState(tbl, e, m, state)
	got, ok := listener.GetMatchState(tbl, e, m)
	if !ok || got != state {
		t.Fatalf("expected GetMatchState to return the exact state set")
	}

	listener.RemoveMatchState(tbl, e, m)
	if _, ok := listener.GetMatchState(tbl, e, m); ok {
		t.Fatalf("expected match state to be gone after RemoveMatchState")
	}
}
