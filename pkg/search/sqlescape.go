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

// escapeFTS prepares a value for substitution into an FTS5 MATCH pattern:
// backslashes and quotes are escaped and NUL bytes are stripped. The
// backend still binds every non-predicate value as a parameter; this
// escaping is only for the MATCH pattern text itself, which FTS5 has no
// placeholder syntax for token-level boolean operators.
func escapeFTS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "''")
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ftsQuery builds an FTS5 MATCH pattern that ANDs every token of the query
// together, each token individually escaped and quoted.
func ftsQuery(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = "\"" + escapeFTS(t) + "\""
	}
	return strings.Join(quoted, " AND ")
}
