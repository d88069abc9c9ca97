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

// Package staticroute materializes operator-configured static prefixes into
// a routing table by stitching path attributes from a dynamically
// discovered nexthop route.
//
// The package does not implement the routing database, the BGP session
// state machine, or configuration transport: it consumes narrow interfaces
// for all three (RoutingInstance, ConditionListener, StaticRouteConfig) and
// owns only the reconciliation, condition-matching, and teardown logic that
// stitches one into the other.
package staticroute
