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

package ingestion

import (
	"fmt"
	"sort"
	"strings"
)

// maxEmbeddingTextChars is the simple-mode truncation limit for embeddingText.
const maxEmbeddingTextChars = 2048

// CodeChunk is one retrievable, embeddable unit produced from a parsed
// Symbol: a function, method, type, or other declaration plus enough
// surrounding text to make the embedding and the search snippet useful on
// their own, without needing the whole source file.
type CodeChunk struct {
	ID            string
	Symbol        Symbol
	Language      string
	LastModified  string
	Commit        string
	Summary       string
	EmbeddingText string
	Embedding     []float32
	Truncated     bool
	EmbedError    string
}

// EmbedText returns the text handed to the embedding provider. It is
// EmbeddingText when the chunker has already built one (graph-enriched or
// not); otherwise it falls back to the bare doc-comment-plus-body form so a
// chunk constructed outside the chunker still embeds sensibly.
func (c *CodeChunk) EmbedText() string {
	if c.EmbeddingText != "" {
		return c.EmbeddingText
	}
	if c.Symbol.JSDoc == "" {
		return c.Symbol.Body
	}
	return c.Symbol.JSDoc + "\n" + c.Symbol.Body
}

// ChunkFileSymbols turns the Symbols extracted from one file into CodeChunks
// in simple mode: embeddingText is "{symbolType} {name}\n{jsDoc?}\n{body}",
// truncated to maxEmbeddingTextChars, with no graph context.
func ChunkFileSymbols(symbols []Symbol, language, lastModified, commit string) []CodeChunk {
	chunks := make([]CodeChunk, 0, len(symbols))
	for _, sym := range symbols {
		chunks = append(chunks, CodeChunk{
			ID:            GenerateChunkID(sym.Path, sym.Name, sym.StartLine),
			Symbol:        sym,
			Language:      language,
			LastModified:  lastModified,
			Commit:        commit,
			EmbeddingText: truncateEmbeddingText(simpleEmbeddingText(sym)),
		})
	}
	return chunks
}

// GraphContext supplies the caller/callee neighborhoods a graph-aware chunker
// needs to enrich embeddingText; pkg/graph.Store satisfies this without the
// ingestion package importing pkg/graph directly.
type GraphContext interface {
	// TopCallers returns up to k symbols that call symbol, ordered by call
	// count desc then lexicographically.
	TopCallers(symbol string, k int) []string
	// TopCallees returns up to k symbols that symbol calls, in the same order.
	TopCallees(symbol string, k int) []string
}

// topK is the number of callers/callees folded into enriched embeddingText.
const topK = 5

// graphNodeKey mirrors pkg/graph.NodeKey's "path#name" format without
// importing pkg/graph, since a symbol's bare name collides across files but
// GraphContext implementations (pkg/graph.Store) key their caller/callee
// indexes by the full path-qualified node key.
func graphNodeKey(path, name string) string {
	return path + "#" + name
}

// ChunkFileSymbolsEnriched builds CodeChunks the same way as
// ChunkFileSymbols, but prefixes a signature line (when metadata carries
// one) and appends "used by"/"calls" lines sourced from graph, plus terse
// flags (async/exported/public/private) from the symbol's metadata.
func ChunkFileSymbolsEnriched(symbols []Symbol, language, lastModified, commit string, graph GraphContext) []CodeChunk {
	chunks := make([]CodeChunk, 0, len(symbols))
	for _, sym := range symbols {
		chunks = append(chunks, CodeChunk{
			ID:            GenerateChunkID(sym.Path, sym.Name, sym.StartLine),
			Symbol:        sym,
			Language:      language,
			LastModified:  lastModified,
			Commit:        commit,
			EmbeddingText: truncateEmbeddingText(enrichedEmbeddingText(sym, graph)),
		})
	}
	return chunks
}

func simpleEmbeddingText(sym Symbol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", sym.SymbolType, sym.Name)
	if sym.JSDoc != "" {
		b.WriteString(sym.JSDoc)
		b.WriteByte('\n')
	}
	b.WriteString(sym.Body)
	return b.String()
}

func enrichedEmbeddingText(sym Symbol, graph GraphContext) string {
	var b strings.Builder

	if sig := signatureLine(sym); sig != "" {
		b.WriteString(sig)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%s %s\n", sym.SymbolType, sym.Name)
	if sym.JSDoc != "" {
		b.WriteString(sym.JSDoc)
		b.WriteByte('\n')
	}
	b.WriteString(sym.Body)

	if graph != nil {
		key := graphNodeKey(sym.Path, sym.Name)
		if callers := graph.TopCallers(key, topK); len(callers) > 0 {
			fmt.Fprintf(&b, "\nused by: %s", strings.Join(callers, ", "))
		}
		if callees := graph.TopCallees(key, topK); len(callees) > 0 {
			fmt.Fprintf(&b, "\ncalls: %s", strings.Join(callees, ", "))
		}
	}

	if flags := metadataFlags(sym); flags != "" {
		b.WriteByte('\n')
		b.WriteString(flags)
	}

	return b.String()
}

func signatureLine(sym Symbol) string {
	returnType := sym.Metadata.ReturnType
	if returnType == "" && len(sym.Metadata.Parameters) == 0 {
		return ""
	}
	return fmt.Sprintf("signature: %s %s(%s)", returnType, sym.Name, strings.Join(sym.Metadata.Parameters, ", "))
}

func metadataFlags(sym Symbol) string {
	var flags []string
	if sym.Metadata.IsAsync {
		flags = append(flags, "async")
	}
	if sym.Metadata.IsExported {
		flags = append(flags, "exported")
	}
	switch sym.Metadata.Visibility {
	case "public", "private":
		flags = append(flags, sym.Metadata.Visibility)
	}
	sort.Strings(flags)
	return strings.Join(flags, " ")
}

func truncateEmbeddingText(text string) string {
	if len(text) <= maxEmbeddingTextChars {
		return text
	}
	return text[:maxEmbeddingTextChars]
}
