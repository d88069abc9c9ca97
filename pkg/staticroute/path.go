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
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
)

// Attr is the subset of a path's attribute set this package ever rewrites:
// the route-target extended-community list and the source route
// distinguisher. Real attribute sets carry far more, but nothing else here
// is ever spliced, so nothing else is modeled.
type Attr struct {
	RouteTargets []RouteTarget
	SourceRD     string
	LocalPref    uint32
}

func (a *Attr) clone() *Attr {
	if a == nil {
		return &Attr{}
	}
	return &Attr{
		RouteTargets: append([]RouteTarget(nil), a.RouteTargets...),
		SourceRD:     a.SourceRD,
		LocalPref:    a.LocalPref,
	}
}

// canonicalKey is the interning/equality key for an attribute set. Two
// attribute sets with the same key are considered identical and, via
// AttributeDB, share one pointer.
func (a *Attr) canonicalKey() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("rd=%s|lp=%d|rt=%s", a.SourceRD, a.LocalPref, routeTargetSetKey(a.RouteTargets))
}

// attrEqual compares two attribute sets by identity first (the common case
// once everything is interned through AttributeDB) and falls back to a
// value comparison.
func attrEqual(a, b *Attr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.canonicalKey() == b.canonicalKey()
}

// Path is the subset of a BGP path the static-route core needs: enough to
// pick the ECMP plateau, derive a path-id, and splice a new attribute set.
type Path interface {
	// NextHop is the path's IPv4 nexthop address, also used as the
	// synthesized route's path-id (see PathID).
	NextHop() netip.Addr
	Label() uint32
	IsFeasible() bool
	IsStale() bool
	SetStale(bool)
	// IsReplicated reports whether this path is a secondary import of a
	// primary path living in another (typically default/L3VPN) routing
	// instance.
	IsReplicated() bool
	// SourceRouteDistinguisher is the primary path's route distinguisher,
	// meaningful only when IsReplicated is true.
	SourceRouteDistinguisher() string
	Attr() *Attr
	// WithAttr returns a shallow copy of this path carrying a different
	// attribute set; nexthop, label, and path-id are preserved.
	WithAttr(attr *Attr) Path
}

// PathID derives the synthesized route's path key from a nexthop
// address: the big-endian uint32 of its IPv4 bytes. Table
// implementations must key InsertPath/RemovePath/LookupPath by this same
// function so the core's lookups by id resolve correctly.
func PathID(nh netip.Addr) uint32 {
	if nh.Is4In6() {
		nh = nh.Unmap()
	}
	b := nh.As4()
	return binary.BigEndian.Uint32(b[:])
}

// forwardingKey identifies "the same logical path learned twice via
// different protocol peers" for the dedup step of the path-selection
// algorithm.
type forwardingKey struct {
	nextHop netip.Addr
	label   uint32
}

func newForwardingKey(p Path) forwardingKey {
	return forwardingKey{nextHop: p.NextHop(), label: p.Label()}
}

func (k forwardingKey) String() string {
	var b strings.Builder
	b.WriteString(k.nextHop.String())
	b.WriteByte('/')
	fmt.Fprintf(&b, "%d", k.label)
	return b.String()
}
