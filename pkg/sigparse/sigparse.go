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

// Package sigparse parses Go function signature strings (the kind stored
// alongside a symbol as its textual signature) into parameter name/type
// pairs, without needing a full AST — used where only the signature text
// survived (e.g. a cached symbol) and parsing the declaration again isn't
// worth it.
package sigparse

import "strings"

// ParamInfo holds a parsed parameter's name and normalized base type.
type ParamInfo struct {
	Name string
	Type string
}

// ParseGoParams parses a Go function signature string and returns each
// parameter's name and base type. Parameters declared together with a
// shared type ("a, b, c int") all receive that type. Receiver parameters
// are excluded.
func ParseGoParams(signature string) []ParamInfo {
	paramStr := ExtractParamString(signature)
	if paramStr == "" {
		return nil
	}

	tokens := splitTopLevelCommas(paramStr)
	var params []ParamInfo
	var pendingNames []string

	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		name, rawType, hasType := splitNameAndType(tok)
		if !hasType {
			pendingNames = append(pendingNames, name)
			continue
		}

		typ := NormalizeType(rawType)
		for _, pending := range pendingNames {
			params = append(params, ParamInfo{Name: pending, Type: typ})
		}
		pendingNames = nil
		params = append(params, ParamInfo{Name: name, Type: typ})
	}

	return params
}

// splitNameAndType splits "name type" on the first run of whitespace. A
// token with no whitespace (just "name") is a grouped parameter still
// waiting for its type to appear later in the list.
func splitNameAndType(tok string) (name, rawType string, hasType bool) {
	idx := strings.IndexAny(tok, " \t")
	if idx < 0 {
		return tok, "", false
	}
	name = tok[:idx]
	rawType = strings.TrimSpace(tok[idx+1:])
	return name, rawType, true
}

// NormalizeType strips slice/pointer/variadic markers and package
// qualifiers from a type string, and collapses function-literal types to
// the bare keyword "func".
func NormalizeType(t string) string {
	t = strings.TrimSpace(t)
	if strings.HasPrefix(t, "func") {
		return "func"
	}

	for {
		switch {
		case strings.HasPrefix(t, "..."):
			t = t[3:]
		case strings.HasPrefix(t, "[]"):
			t = t[2:]
		case strings.HasPrefix(t, "*"):
			t = t[1:]
		default:
			if idx := strings.LastIndex(t, "."); idx >= 0 {
				return t[idx+1:]
			}
			return t
		}
	}
}

// ExtractParamString returns the text inside a Go function signature's
// parameter list, excluding a method receiver's own parenthesized group.
func ExtractParamString(signature string) string {
	idx := strings.Index(signature, "func")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimLeft(signature[idx+len("func"):], " \t")

	groups := extractTopLevelParenGroups(rest)
	if len(groups) == 0 {
		return ""
	}

	if strings.HasPrefix(rest, "(") {
		// First group is the method receiver; params are the next group.
		if len(groups) >= 2 {
			return groups[1]
		}
		return ""
	}

	return groups[0]
}

// extractTopLevelParenGroups returns the contents of every top-level
// (...) group in s, in order, skipping nested parens inside each group.
func extractTopLevelParenGroups(s string) []string {
	var groups []string
	depth := 0
	start := -1

	for i, r := range s {
		switch r {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					groups = append(groups, s[start:i])
					start = -1
				}
			}
		}
	}

	return groups
}

// splitTopLevelCommas splits s on commas that are not nested inside
// parens, brackets, or braces.
func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	last := 0

	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}
