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

package staticroute_test

import (
	"net/netip"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/freepik-company/staticroute/pkg/ribtable"
	"github.com/freepik-company/staticroute/pkg/staticroute"
)

func TestStaticRouteScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "static route manager scenarios")
}

// harness wires one manager against a ribtable-backed instance, running
// its request queue on a background goroutine for the duration of a spec.
type harness struct {
	mgr      *staticroute.StaticRouteManager
	instance *ribtable.Instance
	table    *ribtable.Table
	stop     chan struct{}
}

func newHarness() *harness {
	listener := ribtable.NewListener()
	instance := ribtable.NewInstance("default")
	table := ribtable.NewTable("default.inet.0", staticroute.FamilyInetUnicast, listener)
	instance.AddTable(table)

	mgr, err := staticroute.NewStaticRouteManager(staticroute.ManagerOptions{
		Instance:        instance,
		Family:          staticroute.FamilyInetUnicast,
		Listener:        listener,
		Logger:          zap.NewNop(),
		ResolveDebounce: 5 * time.Millisecond,
	})
	Expect(err).NotTo(HaveOccurred())

	h := &harness{mgr: mgr, instance: instance, table: table, stop: make(chan struct{})}
	go mgr.Run(h.stop)
	return h
}

func (h *harness) close() {
	close(h.stop)
	h.mgr.Shutdown()
}

func cfg(prefix, nexthop string, rtargets ...string) staticroute.StaticRouteConfig {
	p := netip.MustParsePrefix(prefix)
	return staticroute.StaticRouteConfig{
		DestinationAddress: p.Addr(),
		PrefixLength:       p.Bits(),
		NexthopAddress:     netip.MustParseAddr(nexthop),
		RouteTargets:       rtargets,
	}
}

var _ = Describe("StaticRouteManager", func() {
	var h *harness

	AfterEach(func() {
		if h != nil {
			h.close()
		}
	})

	It("stitches a basic static route onto a single reachable nexthop", func() {
		h = newHarness()
		h.mgr.ProcessStaticRouteConfig([]staticroute.StaticRouteConfig{cfg("192.0.2.0/24", "10.0.0.1")})

		h.table.InsertPath(netip.MustParsePrefix("10.0.0.1/32"), ribtable.NewPath(netip.MustParseAddr("10.0.0.1"), 42, &staticroute.Attr{LocalPref: 100}))

		Eventually(func() bool {
			_, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			return ok
		}, time.Second).Should(BeTrue())
	})

	It("installs the full ECMP plateau and drops a later infeasible path", func() {
		h = newHarness()
		h.mgr.ProcessStaticRouteConfig([]staticroute.StaticRouteConfig{cfg("192.0.2.0/24", "10.0.0.1")})

		nh := netip.MustParsePrefix("10.0.0.1/32")
		good1 := ribtable.NewPath(netip.MustParseAddr("10.0.0.1"), 10, &staticroute.Attr{LocalPref: 100})
		good2 := ribtable.NewPath(netip.MustParseAddr("10.0.0.2"), 20, &staticroute.Attr{LocalPref: 100})
		bad := ribtable.NewPath(netip.MustParseAddr("10.0.0.3"), 30, &staticroute.Attr{LocalPref: 100})
		bad.SetFeasible(false)
		h.table.InsertPath(nh, good1)
		h.table.InsertPath(nh, good2)
		h.table.InsertPath(nh, bad)

		var entry staticroute.Entry
		Eventually(func() int {
			e, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			if !ok {
				return 0
			}
			entry = e
			return len(e.Paths())
		}, time.Second).Should(Equal(2))
		_ = entry
	})

	It("re-splices route targets in place on a route-target-only change", func() {
		h = newHarness()
		h.mgr.ProcessStaticRouteConfig([]staticroute.StaticRouteConfig{cfg("192.0.2.0/24", "10.0.0.1", "target:64512:1")})

		nh := netip.MustParsePrefix("10.0.0.1/32")
		h.table.InsertPath(nh, ribtable.NewPath(netip.MustParseAddr("10.0.0.1"), 42, &staticroute.Attr{LocalPref: 100}))

		Eventually(func() bool {
			e, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			return ok && len(e.Paths()) == 1
		}, time.Second).Should(BeTrue())

		h.mgr.ProcessStaticRouteConfig([]staticroute.StaticRouteConfig{cfg("192.0.2.0/24", "10.0.0.1", "target:64512:2")})

		Eventually(func() string {
			e, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			if !ok || len(e.Paths()) == 0 {
				return ""
			}
			rts := e.Paths()[0].Attr().RouteTargets
			if len(rts) == 0 {
				return ""
			}
			return rts[0].String()
		}, time.Second).Should(Equal("target:64512:2"))
	})

	It("re-resolves against the new nexthop on a nexthop change", func() {
		h = newHarness()
		h.mgr.ProcessStaticRouteConfig([]staticroute.StaticRouteConfig{cfg("192.0.2.0/24", "10.0.0.1")})

		h.table.InsertPath(netip.MustParsePrefix("10.0.0.1/32"), ribtable.NewPath(netip.MustParseAddr("10.0.0.1"), 1, &staticroute.Attr{LocalPref: 100}))
		Eventually(func() bool {
			_, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			return ok
		}, time.Second).Should(BeTrue())

		h.mgr.ProcessStaticRouteConfig([]staticroute.StaticRouteConfig{cfg("192.0.2.0/24", "10.0.0.9")})
		h.table.InsertPath(netip.MustParsePrefix("10.0.0.9/32"), ribtable.NewPath(netip.MustParseAddr("10.0.0.9"), 2, &staticroute.Attr{LocalPref: 100}))

		Eventually(func() netip.Addr {
			e, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			if !ok || len(e.Paths()) == 0 {
				return netip.Addr{}
			}
			return e.Paths()[0].NextHop()
		}, time.Second).Should(Equal(netip.MustParseAddr("10.0.0.9")))
	})

	It("withdraws the synthesized route when the configured prefix is removed mid-stitch", func() {
		h = newHarness()
		h.mgr.ProcessStaticRouteConfig([]staticroute.StaticRouteConfig{cfg("192.0.2.0/24", "10.0.0.1")})
		h.table.InsertPath(netip.MustParsePrefix("10.0.0.1/32"), ribtable.NewPath(netip.MustParseAddr("10.0.0.1"), 1, &staticroute.Attr{LocalPref: 100}))

		Eventually(func() bool {
			_, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			return ok
		}, time.Second).Should(BeTrue())

		h.mgr.ProcessStaticRouteConfig(nil)

		Eventually(func() bool {
			_, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			return ok
		}, time.Second).Should(BeFalse())

		Eventually(func() int {
			return len(h.mgr.StaticRouteMap())
		}, time.Second).Should(Equal(0))
	})

	It("overwrites the route distinguisher on a replicated primary path", func() {
		h = newHarness()
		h.mgr.ProcessStaticRouteConfig([]staticroute.StaticRouteConfig{cfg("192.0.2.0/24", "10.0.0.1")})

		nh := netip.MustParsePrefix("10.0.0.1/32")
		replicated := ribtable.NewReplicatedPath(netip.MustParseAddr("10.0.0.1"), 1, &staticroute.Attr{LocalPref: 100, SourceRD: "64512:99"}, "64512:1")
		h.table.InsertPath(nh, replicated)

		Eventually(func() string {
			e, ok := h.table.Lookup(netip.MustParsePrefix("192.0.2.0/24"))
			if !ok || len(e.Paths()) == 0 {
				return ""
			}
			a := e.Paths()[0].Attr()
			if a == nil {
				return ""
			}
			return a.SourceRD
		}, time.Second).Should(Equal("64512:1"))
	})
})
