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

import "fmt"

// invariant panics when cond is false. It exists for the handful of
// conditions that indicate a program bug rather than a runtime error: a
// PrefixChange observed against an existing match, or a RequestNexthopAddChg
// / RequestNexthopDelete request arriving with no MatchState. These can
// only fire if the caller broke the contracts this package documents, so
// there is no sensible error-return recovery path.
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("staticroute: invariant violated: "+format, args...))
	}
}
