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
	"log/slog"
	"strings"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// defaultMaxCodeTextSize is the default ceiling for Symbol.Body, matching the
// teacher's MaxCodeTextBytes default (100KB).
const defaultMaxCodeTextSize = 100 * 1024

// TreeSitterParser extracts Symbols using Tree-sitter grammars. It is the
// accurate, AST-based backend behind CodeParser (spec section 4.1) and
// supports TS/TSX/JS/JSX, Python, Go, and Rust.
type TreeSitterParser struct {
	logger *slog.Logger

	goParser   *sitter.Parser
	tsParser   *sitter.Parser
	tsxParser  *sitter.Parser
	jsParser   *sitter.Parser
	pyParser   *sitter.Parser
	rustParser *sitter.Parser

	maxCodeTextSize int64
	truncatedCount  int64 // atomic
}

// NewTreeSitterParser constructs a TreeSitterParser with one sitter.Parser per
// grammar, each reused across files (tree-sitter parsers are not goroutine-safe
// but this type is only ever driven by a single parse worker at a time).
func NewTreeSitterParser() *TreeSitterParser {
	mk := func(lang *sitter.Language) *sitter.Parser {
		p := sitter.NewParser()
		p.SetLanguage(lang)
		return p
	}
	return &TreeSitterParser{
		logger:          slog.Default(),
		goParser:        mk(golang.GetLanguage()),
		tsParser:        mk(typescript.GetLanguage()),
		tsxParser:       mk(tsx.GetLanguage()),
		jsParser:        mk(javascript.GetLanguage()),
		pyParser:        mk(python.GetLanguage()),
		rustParser:      mk(rust.GetLanguage()),
		maxCodeTextSize: defaultMaxCodeTextSize,
	}
}

// SetMaxCodeTextSize sets the maximum size for Symbol.Body (in bytes).
func (p *TreeSitterParser) SetMaxCodeTextSize(size int64) {
	if size > 0 {
		p.maxCodeTextSize = size
	}
}

// GetTruncatedCount returns the number of bodies that were truncated.
func (p *TreeSitterParser) GetTruncatedCount() int {
	return int(atomic.LoadInt64(&p.truncatedCount))
}

// ResetTruncatedCount resets the truncation counter.
func (p *TreeSitterParser) ResetTruncatedCount() {
	atomic.StoreInt64(&p.truncatedCount, 0)
}

// SupportedExtensions implements CodeParser.
func (p *TreeSitterParser) SupportedExtensions() []string {
	return []string{".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs", ".proto"}
}

// IsSupported implements CodeParser.
func (p *TreeSitterParser) IsSupported(ext string) bool {
	for _, e := range p.SupportedExtensions() {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// ParseFile implements CodeParser, dispatching by extension to the matching
// Tree-sitter grammar.
func (p *TreeSitterParser) ParseFile(fileInfo FileInfo) ([]Symbol, error) {
	switch extOf(fileInfo.Path) {
	case ".go":
		return p.parseGo(fileInfo.Content, fileInfo.Path)
	case ".ts":
		return p.parseTSFamily(fileInfo.Content, fileInfo.Path, p.tsParser, false)
	case ".tsx":
		return p.parseTSFamily(fileInfo.Content, fileInfo.Path, p.tsxParser, true)
	case ".js", ".jsx":
		return p.parseTSFamily(fileInfo.Content, fileInfo.Path, p.jsParser, true)
	case ".py":
		return p.parsePython(fileInfo.Content, fileInfo.Path)
	case ".rs":
		return p.parseRust(fileInfo.Content, fileInfo.Path)
	case ".proto":
		return p.parseProtobuf(fileInfo.Content, fileInfo.Path)
	default:
		return nil, nil
	}
}

// truncateCodeText enforces maxCodeTextSize on a Symbol body, tracking how
// many bodies were cut.
func (p *TreeSitterParser) truncateCodeText(text string) string {
	if int64(len(text)) <= p.maxCodeTextSize {
		return text
	}
	atomic.AddInt64(&p.truncatedCount, 1)
	return text[:p.maxCodeTextSize]
}

// countErrors counts ERROR nodes in a parse tree (Tree-sitter is error
// tolerant, so a non-zero count is a warning, not a failure).
func countErrors(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	if node.IsError() {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countErrors(node.Child(i))
	}
	return count
}

// nearestLeadingComment returns the text of the comment node immediately
// preceding node (with only whitespace between them), stripped of comment
// markers — used for Symbol.JSDoc across all languages (spec section 4.1).
func nearestLeadingComment(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	prev := node.PrevSibling()
	if prev == nil || !isCommentNode(prev.Type()) {
		return ""
	}
	// Require the comment to be adjacent (no blank line of other code between).
	gap := string(content[prev.EndByte():node.StartByte()])
	if strings.Count(gap, "\n") > 2 {
		return ""
	}
	text := string(content[prev.StartByte():prev.EndByte()])
	return stripCommentMarkers(text)
}

func isCommentNode(t string) bool {
	switch t {
	case "comment", "line_comment", "block_comment":
		return true
	}
	return false
}

func stripCommentMarkers(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "/**")
		l = strings.TrimPrefix(l, "/*")
		l = strings.TrimSuffix(l, "*/")
		l = strings.TrimPrefix(l, "///")
		l = strings.TrimPrefix(l, "//")
		l = strings.TrimPrefix(l, "#")
		l = strings.TrimPrefix(l, "*")
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func isPascalCase(name string) bool {
	if name == "" {
		return false
	}
	r := rune(name[0])
	return r >= 'A' && r <= 'Z'
}

// looksLikeMarkup is a light heuristic for JSX/TSX component bodies: a
// component's body must contain a JSX element or fragment.
func looksLikeMarkup(body string) bool {
	return strings.Contains(body, "<") && (strings.Contains(body, "/>") || strings.Contains(body, "</"))
}
