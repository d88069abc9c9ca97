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
	"testing"

	"go.uber.org/zap"
)

func TestParseRouteTarget(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantOK  bool
		wantStr string
	}{
		{name: "asn form", input: "target:64512:100", wantOK: true, wantStr: "target:64512:100"},
		{name: "ip form", input: "target:10.0.0.1:5", wantOK: true, wantStr: "target:10.0.0.1:5"},
		{name: "missing target prefix", input: "64512:100", wantOK: false},
		{name: "too few fields", input: "target:64512", wantOK: false},
		{name: "too many fields", input: "target:64512:100:5", wantOK: false},
		{name: "non-numeric value", input: "target:64512:abc", wantOK: false},
		{name: "non-numeric asn and non-ip", input: "target:notanasn:5", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, ok := ParseRouteTarget(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseRouteTarget(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && rt.String() != tt.wantStr {
				t.Fatalf("ParseRouteTarget(%q).String() = %q, want %q", tt.input, rt.String(), tt.wantStr)
			}
		})
	}
}

func TestParseRouteTargetListDropsMalformed(t *testing.T) {
	logger := zap.NewNop()
	in := []string{"target:64512:100", "garbage", "target:64512:200"}
	got := ParseRouteTargetList(logger, in)
	if len(got) != 2 {
		t.Fatalf("got %d route targets, want 2 (malformed entry should be dropped): %+v", len(got), got)
	}
}

func TestRouteTargetsEqualIgnoresOrder(t *testing.T) {
	a, _ := ParseRouteTarget("target:64512:100")
	b, _ := ParseRouteTarget("target:64512:200")

	if !routeTargetsEqual([]RouteTarget{a, b}, []RouteTarget{b, a}) {
		t.Fatal("route-target sets differing only in order should compare equal")
	}
	if routeTargetsEqual([]RouteTarget{a}, []RouteTarget{a, b}) {
		t.Fatal("route-target sets of different size should not compare equal")
	}
}
