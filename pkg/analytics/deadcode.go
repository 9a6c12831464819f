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
	"path"
	"strings"

	"github.com/yep-mem/yepmem/pkg/graph"
	"github.com/yep-mem/yepmem/pkg/ingestion"
)

// entryPointNames never count as dead, regardless of caller/importer count:
// every language's runtime entry point is invoked by something outside the
// parsed set.
var entryPointNames = map[string]bool{
	"main":    true,
	"init":    true,
	"default": true,
}

// DeadCode returns every symbol with zero callers AND zero importers of its
// declaring file, excluding exported entry points (main, default exports,
// UI components) per spec.
func DeadCode(symbols []ingestion.Symbol, store *graph.Store) []ingestion.Symbol {
	importersByPath := countImportersByPath(symbols, store)

	var dead []ingestion.Symbol
	for _, sym := range symbols {
		if isEntryPoint(sym) {
			continue
		}
		key := graph.NodeKey(sym.Path, sym.Name)
		if store.CallerCount(key) > 0 {
			continue
		}
		if importersByPath[sym.Path] > 0 {
			continue
		}
		dead = append(dead, sym)
	}
	return dead
}

func isEntryPoint(sym ingestion.Symbol) bool {
	if entryPointNames[sym.Name] {
		return true
	}
	if sym.SymbolType == ingestion.SymbolComponent {
		return true
	}
	return false
}

// countImportersByPath counts, per declaring file path, how many other
// files import it. Import edges carry the raw import string (a package
// path, not the file path itself), so a file is considered imported by
// another file if any of that file's Imports ends with the declaring
// file's package directory -- an approximation in the same spirit as the
// call graph's name-only resolution (store.CallerCount is exact; this is
// not, since the parser never resolves import strings to file paths).
func countImportersByPath(symbols []ingestion.Symbol, store *graph.Store) map[string]int {
	counts := make(map[string]int, len(symbols))
	for _, target := range symbols {
		dir := path.Dir(target.Path)
		for _, importer := range symbols {
			if importer.Path == target.Path {
				continue
			}
			for _, imp := range importer.Imports {
				if strings.HasSuffix(imp, dir) {
					counts[target.Path]++
					break
				}
			}
		}
	}
	return counts
}
