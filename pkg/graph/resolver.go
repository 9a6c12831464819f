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

package graph

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/yep-mem/yepmem/pkg/ingestion"
)

// Resolver builds the edge set for one ingest pass from the full parsed
// symbol set. Cross-file call resolution is intentionally approximate
// (name matching only, never true type- or scope-aware resolution) — this
// mirrors the teacher's CallResolver, generalized from Go-only package/
// import matching to every supported language by falling back to a global
// simple-name index when no import match narrows the candidates.
type Resolver struct {
	// byQualifiedName: "dir/name" -> node key, for import-qualified lookups
	byQualifiedName map[string]string

	// bySimpleName: "name" -> node keys, for the approximate fallback
	bySimpleName map[string][]string

	// fileImports: file path -> alias -> import path (or referenced package name)
	fileImports map[string]map[string]string
}

// NewResolver builds a Resolver's indices from every symbol parsed this
// pass. symbols need not all come from one file.
func NewResolver(symbols []ingestion.Symbol) *Resolver {
	r := &Resolver{
		byQualifiedName: make(map[string]string),
		bySimpleName:    make(map[string][]string),
		fileImports:     make(map[string]map[string]string),
	}

	for _, sym := range symbols {
		key := NodeKey(sym.Path, sym.Name)
		dir := filepath.Dir(sym.Path)
		simple := simpleName(sym.Name)

		r.byQualifiedName[dir+"/"+simple] = key
		r.bySimpleName[simple] = append(r.bySimpleName[simple], key)

		if len(sym.Imports) > 0 {
			if r.fileImports[sym.Path] == nil {
				r.fileImports[sym.Path] = make(map[string]string)
			}
			for _, imp := range sym.Imports {
				alias := filepath.Base(imp)
				r.fileImports[sym.Path][alias] = imp
			}
		}
	}

	return r
}

// simpleName strips a "Receiver." or "Type." qualifier from a method name.
func simpleName(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// ResolveCalls walks every symbol's Calls list and emits a "calls" Edge for
// each call name it can approximately resolve to another parsed symbol.
// Unresolvable calls (into stdlib, third-party code, or anything outside
// the parsed set) are silently dropped, not reported as errors — they are
// the expected common case.
func (r *Resolver) ResolveCalls(symbols []ingestion.Symbol, now time.Time) []Edge {
	var edges []Edge
	seen := make(map[string]bool)

	for _, sym := range symbols {
		sourceKey := NodeKey(sym.Path, sym.Name)
		for _, call := range sym.Calls {
			targetKey := r.resolveOne(sym.Path, call)
			if targetKey == "" || targetKey == sourceKey {
				continue
			}
			id := ID(sourceKey, targetKey, EdgeCalls)
			if seen[id] {
				continue
			}
			seen[id] = true
			edges = append(edges, Edge{
				ID:           id,
				Source:       sourceKey,
				Target:       targetKey,
				EdgeType:     EdgeCalls,
				SourceFile:   sym.Path,
				Count:        1,
				LastModified: now,
			})
		}
	}

	return edges
}

// resolveOne resolves a single call name seen in filePath to a node key.
func (r *Resolver) resolveOne(filePath, callName string) string {
	name := callName
	if idx := strings.LastIndex(callName, "."); idx >= 0 {
		alias := callName[:idx]
		name = callName[idx+1:]

		if imports, ok := r.fileImports[filePath]; ok {
			if importPath, ok := imports[alias]; ok {
				if key, ok := r.byQualifiedName[importPath+"/"+name]; ok {
					return key
				}
			}
		}
	}

	candidates := r.bySimpleName[name]
	if len(candidates) == 0 {
		return ""
	}
	// Prefer a symbol declared in the same directory (same package/module)
	// before falling back to the first match found anywhere, since the
	// index has no notion of scope beyond file location.
	dir := filepath.Dir(filePath)
	for _, c := range candidates {
		if filepath.Dir(strings.SplitN(c, "#", 2)[0]) == dir {
			return c
		}
	}
	return candidates[0]
}

// ImportEdges emits one "imports" edge per distinct (file, import) pair
// seen across the parsed symbol set.
func ImportEdges(symbols []ingestion.Symbol, now time.Time) []Edge {
	seen := make(map[string]bool)
	var edges []Edge
	for _, sym := range symbols {
		for _, imp := range sym.Imports {
			id := ID(sym.Path, imp, EdgeImports)
			if seen[id] {
				continue
			}
			seen[id] = true
			edges = append(edges, Edge{
				ID:           id,
				Source:       sym.Path,
				Target:       imp,
				EdgeType:     EdgeImports,
				SourceFile:   sym.Path,
				Count:        1,
				LastModified: now,
			})
		}
	}
	return edges
}

// ContainsEdges emits one "contains" edge per symbol, linking its file to
// its node key.
func ContainsEdges(symbols []ingestion.Symbol, now time.Time) []Edge {
	edges := make([]Edge, 0, len(symbols))
	for _, sym := range symbols {
		target := NodeKey(sym.Path, sym.Name)
		edges = append(edges, Edge{
			ID:           ID(sym.Path, target, EdgeContains),
			Source:       sym.Path,
			Target:       target,
			EdgeType:     EdgeContains,
			SourceFile:   sym.Path,
			Count:        1,
			LastModified: now,
		})
	}
	return edges
}
