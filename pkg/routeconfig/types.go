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

// Package routeconfig loads static-route configuration files from disk and
// watches a directory for changes, translating the file format into
// staticroute.StaticRouteConfig values the core can reconcile against.
package routeconfig

import (
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/freepik-company/staticroute/pkg/staticroute"
)

// Entry is the on-disk representation of one configured static route.
type Entry struct {
	Prefix       string   `json:"prefix"`
	Nexthop      string   `json:"nexthop"`
	RouteTargets []string `json:"routeTargets,omitempty"`
}

// File is the top-level structure of one configuration file. Multiple
// files in a watched directory are merged by RoutingInstance name.
type File struct {
	Version        int              `json:"version"`
	RoutingInstance string          `json:"routingInstance"`
	Routes         []Entry          `json:"routes"`
}

// ToStaticRouteConfig translates e into the core's configuration type.
func (e Entry) ToStaticRouteConfig() (staticroute.StaticRouteConfig, error) {
	prefix, err := netip.ParsePrefix(e.Prefix)
	if err != nil {
		return staticroute.StaticRouteConfig{}, fmt.Errorf("routeconfig: invalid prefix %q: %w", e.Prefix, err)
	}
	nexthop, err := netip.ParseAddr(e.Nexthop)
	if err != nil {
		return staticroute.StaticRouteConfig{}, fmt.Errorf("routeconfig: invalid nexthop %q: %w", e.Nexthop, err)
	}
	return staticroute.StaticRouteConfig{
		DestinationAddress: prefix.Addr(),
		PrefixLength:       prefix.Bits(),
		NexthopAddress:     nexthop,
		RouteTargets:       append([]string(nil), e.RouteTargets...),
	}, nil
}

// ParseFile parses one configuration file's raw JSON bytes.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("routeconfig: parse: %w", err)
	}
	return &f, nil
}
