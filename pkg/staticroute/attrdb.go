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

import "sync"

// AttributeDB is an interning attribute-set store: equal inputs always
// locate the same pointer, so callers can skip a rewrite by comparing
// pointers instead of deep-comparing attribute sets. A real BGP server
// hash-conses one attribute database across the whole process; this
// package only needs the two splice operations it actually performs.
type AttributeDB struct {
	mu    sync.Mutex
	table map[string]*Attr
}

// NewAttributeDB returns an empty, ready-to-use attribute database.
func NewAttributeDB() *AttributeDB {
	return &AttributeDB{table: make(map[string]*Attr)}
}

func (db *AttributeDB) intern(a *Attr) *Attr {
	key := a.canonicalKey()
	db.mu.Lock()
	defer db.mu.Unlock()
	if existing, ok := db.table[key]; ok {
		return existing
	}
	db.table[key] = a
	return a
}

// ReplaceExtCommunityAndLocate returns an attribute set identical to attr
// except for its route-target list, reusing an existing interned instance
// when one already matches. A nil attr is returned unchanged.
func (db *AttributeDB) ReplaceExtCommunityAndLocate(attr *Attr, rtargets []RouteTarget) *Attr {
	if attr == nil {
		return nil
	}
	if routeTargetsEqual(attr.RouteTargets, rtargets) {
		return attr
	}
	next := attr.clone()
	next.RouteTargets = append([]RouteTarget(nil), rtargets...)
	return db.intern(next)
}

// ReplaceSourceRdAndLocate returns an attribute set identical to attr
// except for its source route distinguisher.
func (db *AttributeDB) ReplaceSourceRdAndLocate(attr *Attr, rd string) *Attr {
	if attr == nil || attr.SourceRD == rd {
		return attr
	}
	next := attr.clone()
	next.SourceRD = rd
	return db.intern(next)
}

// ExtCommunityRouteTargetList returns a fresh attribute set differing
// from attr only in its route-target list, or nil when the desired list
// is empty — callers are expected to reuse attr verbatim in that case
// rather than spuriously rewrite it.
func ExtCommunityRouteTargetList(db *AttributeDB, attr *Attr, rtargets []RouteTarget) *Attr {
	if len(rtargets) == 0 {
		return nil
	}
	return db.ReplaceExtCommunityAndLocate(attr, rtargets)
}

// ExtCommunityDB interns route-target lists themselves, as opposed to
// whole attribute sets, so two matches sharing an identical route-target
// list share its backing slice too.
type ExtCommunityDB struct {
	mu    sync.Mutex
	table map[string][]RouteTarget
}

// NewExtCommunityDB returns an empty, ready-to-use route-target list
// database.
func NewExtCommunityDB() *ExtCommunityDB {
	return &ExtCommunityDB{table: make(map[string][]RouteTarget)}
}

// ReplaceRTargetAndLocate returns desired, interned, unless it is
// multiset-equal to current (in which case current is reused verbatim).
func (db *ExtCommunityDB) ReplaceRTargetAndLocate(current, desired []RouteTarget) []RouteTarget {
	if routeTargetsEqual(current, desired) {
		return current
	}
	key := routeTargetSetKey(desired)
	db.mu.Lock()
	defer db.mu.Unlock()
	if existing, ok := db.table[key]; ok {
		return existing
	}
	clone := append([]RouteTarget(nil), desired...)
	db.table[key] = clone
	return clone
}
