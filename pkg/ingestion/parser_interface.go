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

import "strings"

// CodeParser defines the interface for code parsing implementations.
// This allows switching between Tree-sitter and simplified parsers, and lets
// the ingest pipeline depend on a single dispatch surface (C1: parser registry).
type CodeParser interface {
	// ParseFile parses a source file and extracts Symbol records (spec section 4.1).
	// Unparseable files return an empty slice, not an error; IO errors propagate.
	ParseFile(fileInfo FileInfo) ([]Symbol, error)

	// IsSupported reports whether ext (including the leading dot) has a
	// registered language backend.
	IsSupported(ext string) bool

	// SupportedExtensions lists every extension this parser can handle.
	SupportedExtensions() []string
}

// Ensure implementations satisfy the interface.
var _ CodeParser = (*TreeSitterParser)(nil)
var _ CodeParser = (*SimplifiedParser)(nil)

// ParserMode determines which parser implementation to use.
type ParserMode string

const (
	// ParserModeTreeSitter uses Tree-sitter for accurate AST-based parsing.
	// Requires CGO and tree-sitter libraries.
	ParserModeTreeSitter ParserMode = "treesitter"

	// ParserModeSimplified uses regex/string matching (fallback).
	// Does not require CGO, but has limitations with complex code.
	ParserModeSimplified ParserMode = "simplified"

	// ParserModeAuto selects Tree-sitter; NewCodeParser builds a
	// TreeSitterParser for it and does not fall back to the simplified parser.
	ParserModeAuto ParserMode = "auto"
)

// DefaultParserMode is the default parser mode.
// Set to Auto, which selects Tree-sitter.
const DefaultParserMode = ParserModeAuto

// NewCodeParser constructs the configured CodeParser implementation.
// ParserModeSimplified yields a SimplifiedParser; every other mode,
// ParserModeAuto included, yields a TreeSitterParser.
func NewCodeParser(mode ParserMode) CodeParser {
	switch mode {
	case ParserModeSimplified:
		return NewSimplifiedParser()
	default:
		return NewTreeSitterParser()
	}
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i:])
}
