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
)

func TestCyclomaticComplexity_NoBranches(t *testing.T) {
	require.Equal(t, 1, CyclomaticComplexity("func f() { return 1 }"))
}

func TestCyclomaticComplexity_CountsEachBranchToken(t *testing.T) {
	body := `
func f(x int) int {
	if x > 0 {
		for i := 0; i < x; i++ {
			if x > 1 && x < 10 {
				return i
			}
		}
	}
	return 0
}`
	// 1 base + if + for + if + && = 5
	require.Equal(t, 5, CyclomaticComplexity(body))
}

func TestCognitiveComplexity_NestingIncreasesWeight(t *testing.T) {
	shallow := `
func f(x int) {
	if x > 0 {
		doThing()
	}
}`
	nested := `
func f(x int) {
	if x > 0 {
		if x > 1 {
			if x > 2 {
				doThing()
			}
		}
	}
}`
	require.Less(t, CognitiveComplexity(shallow), CognitiveComplexity(nested))
}
