// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yep-mem/yepmem/pkg/ingestion"
)

const sharedBody = `func validate(x int) bool {
	if x < 0 {
		return false
	}
	if x > 100 {
		return false
	}
	return true
}`

func TestDuplicateClusters_GroupsNearIdenticalBodies(t *testing.T) {
	symbols := []ingestion.Symbol{
		{Name: "validateA", Path: "pkg/a/a.go", Body: sharedBody},
		{Name: "validateB", Path: "pkg/b/b.go", Body: sharedBody},
		{Name: "unrelated", Path: "pkg/c/c.go", Body: "func totallyDifferent() string { return \"hello world, nothing alike here at all\" }"},
	}

	clusters := DuplicateClusters(symbols)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Symbols, 2)
	require.GreaterOrEqual(t, clusters[0].Similarity, duplicateJaccardThreshold)
}

func TestDuplicateClusters_NoClusterBelowThreshold(t *testing.T) {
	symbols := []ingestion.Symbol{
		{Name: "a", Path: "pkg/a/a.go", Body: "func a() { return 1 }"},
		{Name: "b", Path: "pkg/b/b.go", Body: "func b() string { return \"completely different implementation here\" }"},
	}
	require.Empty(t, DuplicateClusters(symbols))
}

func TestDuplicateClusters_FewerThanTwoSymbolsNoop(t *testing.T) {
	require.Empty(t, DuplicateClusters(nil))
	require.Empty(t, DuplicateClusters([]ingestion.Symbol{{Name: "solo", Body: "func solo() {}"}}))
}
