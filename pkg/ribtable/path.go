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

// Package ribtable is a reference, in-memory routing-table implementation
// of the staticroute package's Table/Entry/ConditionListener contracts,
// backed by github.com/gaissmai/bart for longest-prefix-match storage. It
// exists for the example daemon in cmd/staticrouted and for tests; a
// production routing database's partitioned db_table implementation would
// satisfy the same interfaces without depending on this package.
package ribtable

import (
	"net/netip"

	"github.com/freepik-company/staticroute/pkg/staticroute"
)

// Path is a concrete staticroute.Path: a BGP-like path advertised to an
// Entry, enough of one to drive ECMP-plateau selection and attribute
// splicing.
type Path struct {
	nextHop    netip.Addr
	label      uint32
	feasible   bool
	stale      bool
	replicated bool
	sourceRD   string
	attr       *staticroute.Attr
}

// NewPath returns a feasible, non-replicated path with the given nexthop,
// label and attribute set.
func NewPath(nextHop netip.Addr, label uint32, attr *staticroute.Attr) *Path {
	return &Path{nextHop: nextHop, label: label, feasible: true, attr: attr}
}

// NewReplicatedPath returns a feasible path flagged as a secondary import
// of a primary path originated with route distinguisher sourceRD.
func NewReplicatedPath(nextHop netip.Addr, label uint32, attr *staticroute.Attr, sourceRD string) *Path {
	return &Path{nextHop: nextHop, label: label, feasible: true, replicated: true, sourceRD: sourceRD, attr: attr}
}

// NextHop implements staticroute.Path.
func (p *Path) NextHop() netip.Addr { return p.nextHop }

// Label implements staticroute.Path.
func (p *Path) Label() uint32 { return p.label }

// IsFeasible implements staticroute.Path.
func (p *Path) IsFeasible() bool { return p.feasible }

// SetFeasible marks the path feasible or infeasible, e.g. in response to a
// peer session flap, for test scenarios that exercise the ECMP plateau's
// infeasibility cutoff.
func (p *Path) SetFeasible(v bool) { p.feasible = v }

// IsStale implements staticroute.Path.
func (p *Path) IsStale() bool { return p.stale }

// SetStale implements staticroute.Path.
func (p *Path) SetStale(v bool) { p.stale = v }

// IsReplicated implements staticroute.Path.
func (p *Path) IsReplicated() bool { return p.replicated }

// SourceRouteDistinguisher implements staticroute.Path.
func (p *Path) SourceRouteDistinguisher() string { return p.sourceRD }

// Attr implements staticroute.Path.
func (p *Path) Attr() *staticroute.Attr { return p.attr }

// WithAttr implements staticroute.Path.
func (p *Path) WithAttr(attr *staticroute.Attr) staticroute.Path {
	clone := *p
	clone.attr = attr
	clone.stale = false
	return &clone
}
