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

import "testing"

func TestAttributeDBInterningReusesPointer(t *testing.T) {
	db := NewAttributeDB()
	rtA, _ := ParseRouteTarget("target:64512:1")
	rtB, _ := ParseRouteTarget("target:64512:2")

	base := &Attr{LocalPref: 100}

	first := db.ReplaceExtCommunityAndLocate(base, []RouteTarget{rtA, rtB})
	second := db.ReplaceExtCommunityAndLocate(base, []RouteTarget{rtB, rtA})

	if first != second {
		t.Fatalf("two route-target lists differing only in order should intern to the same pointer, got %p and %p", first, second)
	}
}

func TestAttributeDBReplaceExtCommunityNoopWhenUnchanged(t *testing.T) {
	db := NewAttributeDB()
	rt, _ := ParseRouteTarget("target:64512:1")
	base := &Attr{LocalPref: 100, RouteTargets: []RouteTarget{rt}}

	got := db.ReplaceExtCommunityAndLocate(base, []RouteTarget{rt})
	if got != base {
		t.Fatalf("replacing with an identical route-target set should return the original pointer unchanged")
	}
}

func TestAttributeDBReplaceExtCommunityNilAttr(t *testing.T) {
	db := NewAttributeDB()
	rt, _ := ParseRouteTarget("target:64512:1")
	if got := db.ReplaceExtCommunityAndLocate(nil, []RouteTarget{rt}); got != nil {
		t.Fatalf("replacing on a nil attribute set should return nil, got %+v", got)
	}
}

func TestAttributeDBReplaceSourceRd(t *testing.T) {
	db := NewAttributeDB()
	base := &Attr{LocalPref: 100, SourceRD: "64512:1"}

	unchanged := db.ReplaceSourceRdAndLocate(base, "64512:1")
	if unchanged != base {
		t.Fatal("replacing with the same route distinguisher should be a no-op")
	}

	changed := db.ReplaceSourceRdAndLocate(base, "64512:2")
	if changed == base {
		t.Fatal("replacing with a different route distinguisher should produce a new attribute set")
	}
	if changed.SourceRD != "64512:2" || changed.LocalPref != 100 {
		t.Fatalf("unexpected result of ReplaceSourceRdAndLocate: %+v", changed)
	}
}

func TestExtCommunityDBReusesEqualLists(t *testing.T) {
	db := NewExtCommunityDB()
	rtA, _ := ParseRouteTarget("target:64512:1")
	rtB, _ := ParseRouteTarget("target:64512:2")

	first := db.ReplaceRTargetAndLocate(nil, []RouteTarget{rtA, rtB})
	second := db.ReplaceRTargetAndLocate(nil, []RouteTarget{rtB, rtA})

	if len(first) != 2 {
		t.Fatalf("expected 2 route targets, got %d", len(first))
	}
	if routeTargetSetKey(first) != routeTargetSetKey(second) {
		t.Fatalf("expected equal canonical keys, got %q and %q", routeTargetSetKey(first), routeTargetSetKey(second))
	}
}
