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
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// RouteTarget is a parsed route-target extended community, either
// AS-number-keyed ("target:64512:1") or IP-address-keyed
// ("target:192.0.2.1:1").
type RouteTarget struct {
	AS    uint32
	IP    netip.Addr
	Value uint64
}

// String renders the canonical form of a route target.
func (rt RouteTarget) String() string {
	if rt.IP.IsValid() {
		return "target:" + rt.IP.String() + ":" + strconv.FormatUint(rt.Value, 10)
	}
	return "target:" + strconv.FormatUint(uint64(rt.AS), 10) + ":" + strconv.FormatUint(rt.Value, 10)
}

// ParseRouteTarget parses a single canonical route-target string. It
// reports false for anything malformed instead of returning an error: a
// malformed route target is dropped, not surfaced to the caller.
func ParseRouteTarget(s string) (RouteTarget, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] != "target" {
		return RouteTarget{}, false
	}

	value, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return RouteTarget{}, false
	}

	if asn, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
		return RouteTarget{AS: uint32(asn), Value: value}, true
	}

	if ip, err := netip.ParseAddr(parts[1]); err == nil && ip.Is4() {
		return RouteTarget{IP: ip, Value: value}, true
	}

	return RouteTarget{}, false
}

// ParseRouteTargetList parses an ordered list of route-target strings,
// silently dropping (and debug-logging) anything malformed. logger may be
// nil, in which case dropped entries are simply not logged.
func ParseRouteTargetList(logger *zap.Logger, in []string) []RouteTarget {
	out := make([]RouteTarget, 0, len(in))
	for _, s := range in {
		rt, ok := ParseRouteTarget(s)
		if !ok {
			if logger != nil {
				logger.Debug("dropping malformed route-target", zap.String("value", s))
			}
			continue
		}
		out = append(out, rt)
	}
	return out
}

// routeTargetSetKey returns a canonical, order-independent key for a
// route-target list, used both for multiset-equality comparisons and as
// the interning key in ExtCommunityDB.
func routeTargetSetKey(rtargets []RouteTarget) string {
	parts := make([]string, 0, len(rtargets))
	for _, rt := range rtargets {
		parts = append(parts, rt.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func routeTargetsEqual(a, b []RouteTarget) bool {
	return routeTargetSetKey(a) == routeTargetSetKey(b)
}
