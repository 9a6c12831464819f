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

package search

import "strings"

// minTokenLen is the shortest token kept by Tokenize; anything shorter is
// noise (articles, operators) that would otherwise dominate an AND'd FTS
// query or the keyword-density score.
const minTokenLen = 3

// tokenBoundary is every rune that splits a query or embedding text into
// tokens.
const tokenBoundary = " \t\n/.,;:!?()[]{}<>'\"=+-*&#@|\\`~^"

// Tokenize lowercases s, splits it on tokenBoundary, and drops tokens of
// length <= 2. Token order is stable (first occurrence order, duplicates
// kept) so callers needing a set can dedupe themselves.
func Tokenize(s string) []string {
	lower := strings.ToLower(s)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return strings.ContainsRune(tokenBoundary, r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > minTokenLen-1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// tokenSet returns the distinct tokens of s as a set, for overlap/density
// computations where duplicates don't matter.
func tokenSet(s string) map[string]struct{} {
	tokens := Tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
