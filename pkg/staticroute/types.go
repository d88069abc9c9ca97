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

// Family identifies an address family's routing table. Only IPv4 unicast
// is modeled; IPv6 and multicast are out of scope.
type Family int

const (
	// FamilyInetUnicast is the IPv4 unicast table of a routing instance.
	FamilyInetUnicast Family = iota
)

func (f Family) String() string {
	switch f {
	case FamilyInetUnicast:
		return "inet-unicast"
	default:
		return "unknown"
	}
}

// StaticRouteConfig is the structured record the core consumes. It is never
// retained by pointer past a single reconciliation call; the manager copies
// whatever it needs into the StaticRouteMatch it owns.
type StaticRouteConfig struct {
	// DestinationAddress and PrefixLength together form the static prefix,
	// the immutable key of the resulting StaticRouteMatch.
	DestinationAddress netip.Addr
	PrefixLength        int

	// NexthopAddress is the address whose /32 route is resolved and
	// stitched into the synthesized route.
	NexthopAddress netip.Addr

	// RouteTargets is the ordered list of route-target strings as
	// configured. Malformed entries are dropped at parse time, not here.
	RouteTargets []string
}

// Prefix returns the static destination prefix this config targets.
func (c StaticRouteConfig) Prefix() netip.Prefix {
	return netip.PrefixFrom(c.DestinationAddress, c.PrefixLength)
}

// ChangeType is the coarsest classification of how a new config differs
// from the StaticRouteMatch currently keyed by the same prefix.
type ChangeType int

const (
	// NoChange means the config is identical to what's already installed.
	NoChange ChangeType = iota
	// RTargetChange means only the route-target multiset differs.
	RTargetChange
	// NexthopChange means the nexthop address differs.
	NexthopChange
	// PrefixChange would mean the prefix itself differs; this can never
	// legitimately occur against an existing match keyed by the same
	// prefix and is treated as an invariant breach when it does.
	PrefixChange
)

func (c ChangeType) String() string {
	switch c {
	case NoChange:
		return "NoChange"
	case RTargetChange:
		return "RTargetChange"
	case NexthopChange:
		return "NexthopChange"
	case PrefixChange:
		return "PrefixChange"
	default:
		return "Unknown"
	}
}
