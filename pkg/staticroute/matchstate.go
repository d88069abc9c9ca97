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

// StaticRouteMatchState is the per-(table, matched-entry) handle that pins
// a matched nexthop entry against deletion while requests referencing it
// are in flight. It holds a strong reference to its owning
// StaticRouteMatch; the match itself never holds a reference back — only
// an integer count of how many states exist.
type StaticRouteMatchState struct {
	mu      sync.Mutex
	match   *StaticRouteMatch
	refcnt  int
	deleted bool
}

func newStaticRouteMatchState(match *StaticRouteMatch) *StaticRouteMatchState {
	return &StaticRouteMatchState{match: match}
}

// IncrementRefCnt adds a reference. A work item holds exactly one
// reference for as long as it sits on the queue or is being processed.
func (s *StaticRouteMatchState) IncrementRefCnt() {
	s.mu.Lock()
	s.refcnt++
	s.mu.Unlock()
}

// DecrementRefCnt releases a reference and returns the resulting count.
func (s *StaticRouteMatchState) DecrementRefCnt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	invariant(s.refcnt > 0, "match-state refcount underflow for prefix %s", s.match.Prefix())
	s.refcnt--
	return s.refcnt
}

// RefCnt returns the current reference count.
func (s *StaticRouteMatchState) RefCnt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refcnt
}

// SetDeleted marks the matched entry as deleted; the state itself is only
// destroyed once RefCnt reaches zero.
func (s *StaticRouteMatchState) SetDeleted() {
	s.mu.Lock()
	s.deleted = true
	s.mu.Unlock()
}

// ResetDeleted clears the deleted flag — the matched entry slot may have
// been reused by the database for a different generation of the same
// prefix.
func (s *StaticRouteMatchState) ResetDeleted() {
	s.mu.Lock()
	s.deleted = false
	s.mu.Unlock()
}

// Deleted reports the current deleted flag.
func (s *StaticRouteMatchState) Deleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}
