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
	"strings"
)

// SimplifiedParser extracts Symbols using line-based pattern matching
// instead of Tree-sitter. It trades accuracy (no call-graph resolution,
// no nested-type awareness) for a build with no grammar dependency, and
// is selected only via ParserModeSimplified; NewCodeParser never picks it
// as a fallback.
//
// Limitations: complex generic signatures may be truncated, call extraction
// is same-file identifier matching only, and class/interface bodies are not
// parsed for nested members.
type SimplifiedParser struct {
	maxCodeTextSize int
}

// NewSimplifiedParser constructs a SimplifiedParser with the default body
// size ceiling.
func NewSimplifiedParser() *SimplifiedParser {
	return &SimplifiedParser{maxCodeTextSize: defaultMaxCodeTextSize}
}

func (p *SimplifiedParser) SupportedExtensions() []string {
	return []string{".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs", ".proto"}
}

func (p *SimplifiedParser) IsSupported(ext string) bool {
	for _, e := range p.SupportedExtensions() {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func (p *SimplifiedParser) ParseFile(fileInfo FileInfo) ([]Symbol, error) {
	content := string(fileInfo.Content)
	switch extOf(fileInfo.Path) {
	case ".go":
		return p.parseGoSimplified(content, fileInfo.Path), nil
	case ".ts", ".tsx", ".js", ".jsx":
		return p.parseBraceLanguage(content, fileInfo.Path, "function", "=>", "class"), nil
	case ".rs":
		return p.parseBraceLanguage(content, fileInfo.Path, "fn", "", "struct"), nil
	case ".py":
		return p.parsePythonSimplified(content, fileInfo.Path), nil
	case ".proto":
		return p.parseBraceLanguage(content, fileInfo.Path, "rpc", "", "message"), nil
	default:
		return nil, nil
	}
}

func (p *SimplifiedParser) truncate(text string) string {
	if len(text) <= p.maxCodeTextSize {
		return text
	}
	return text[:p.maxCodeTextSize]
}

// parseGoSimplified detects "func ..." declarations by brace counting, the
// same heuristic the Tree-sitter parser's predecessor used before grammars
// were wired up for every supported extension.
func (p *SimplifiedParser) parseGoSimplified(content, filePath string) []Symbol {
	lines := strings.Split(content, "\n")

	var symbols []Symbol
	var cur *Symbol
	var curLines []string
	var startLine int

	flush := func(endLine int) {
		if cur == nil {
			return
		}
		cur.EndLine = endLine
		body := strings.Join(curLines, "\n")
		cur.Body = p.truncate(body)
		cur.Calls = dedupPreserveOrder(findGoCallsSimplified(body))
		symbols = append(symbols, *cur)
		cur = nil
		curLines = nil
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "func ") {
			flush(lineNum - 1)

			name, kind := extractGoSimplifiedName(trimmed)
			if name == "" {
				continue
			}
			simple := name
			if idx := strings.LastIndex(name, "."); idx >= 0 {
				simple = name[idx+1:]
			}
			cur = &Symbol{
				Name:       name,
				SymbolType: kind,
				Path:       filePath,
				StartLine:  lineNum,
			}
			cur.Metadata.IsExported = isGoExported(simple)
			if cur.Metadata.IsExported {
				cur.Metadata.Visibility = "public"
			} else {
				cur.Metadata.Visibility = "private"
			}
			startLine = lineNum
			curLines = []string{line}
		} else if cur != nil {
			curLines = append(curLines, line)
			if trimmed == "}" && len(curLines) > 1 {
				balance := 0
				for _, l := range curLines {
					balance += strings.Count(l, "{") - strings.Count(l, "}")
				}
				if balance == 0 {
					flush(lineNum)
				}
			}
		}
		_ = startLine
	}
	flush(len(lines))

	return symbols
}

// extractGoSimplifiedName returns the declared (possibly receiver-qualified)
// name and symbol kind for a "func ..." line.
func extractGoSimplifiedName(line string) (string, SymbolType) {
	rest := strings.TrimPrefix(line, "func ")
	if rest == line {
		return "", ""
	}
	kind := SymbolFunction
	if strings.HasPrefix(rest, "(") {
		idx := strings.Index(rest, ")")
		if idx == -1 {
			return "", ""
		}
		receiver := rest[1:idx]
		rest = strings.TrimSpace(rest[idx+1:])
		kind = SymbolMethod
		fields := strings.Fields(receiver)
		if len(fields) == 2 {
			recvType := strings.TrimPrefix(fields[1], "*")
			if paren := strings.Index(recvType, "["); paren > 0 {
				recvType = recvType[:paren]
			}
			nameEnd := strings.IndexAny(rest, "([ ")
			if nameEnd > 0 {
				return recvType + "." + rest[:nameEnd], kind
			}
		}
	}
	parenIdx := strings.IndexAny(rest, "([")
	if parenIdx == -1 {
		return "", ""
	}
	return strings.TrimSpace(rest[:parenIdx]), kind
}

// findGoCallsSimplified extracts potential function call names via a
// hand-rolled scan that skips string and comment contents.
func findGoCallsSimplified(code string) []string {
	var calls []string
	inString, inBlockComment, inLineComment := false, false, false

	i := 0
	for i < len(code) {
		if !inString && i+1 < len(code) {
			if code[i] == '/' && code[i+1] == '/' {
				inLineComment = true
				i += 2
				continue
			}
			if code[i] == '/' && code[i+1] == '*' {
				inBlockComment = true
				i += 2
				continue
			}
		}
		if inLineComment && code[i] == '\n' {
			inLineComment = false
			i++
			continue
		}
		if inBlockComment && i+1 < len(code) && code[i] == '*' && code[i+1] == '/' {
			inBlockComment = false
			i += 2
			continue
		}
		if inBlockComment || inLineComment {
			i++
			continue
		}
		if code[i] == '"' && (i == 0 || code[i-1] != '\\') {
			inString = !inString
			i++
			continue
		}
		if code[i] == '`' {
			i++
			for i < len(code) && code[i] != '`' {
				i++
			}
			i++
			continue
		}
		if inString {
			i++
			continue
		}
		if isIdentStart(code[i]) {
			start := i
			for i < len(code) && isIdentChar(code[i]) {
				i++
			}
			name := code[start:i]
			j := i
			for j < len(code) && (code[j] == ' ' || code[j] == '\t' || code[j] == '\n') {
				j++
			}
			if j < len(code) && code[j] == '(' {
				if !isGoKeyword(name) {
					calls = append(calls, name)
				}
			}
			continue
		}
		i++
	}
	return calls
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isGoKeyword(name string) bool {
	switch name {
	case "break", "case", "chan", "const", "continue", "default", "defer",
		"else", "fallthrough", "for", "func", "go", "goto", "if", "import",
		"interface", "map", "package", "range", "return", "select",
		"struct", "switch", "type", "var", "make", "new", "append", "copy",
		"delete", "len", "cap", "close", "panic", "recover", "print",
		"println", "complex", "real", "imag":
		return true
	}
	return false
}

// parseBraceLanguage is a generic fallback for brace-delimited languages
// (TS/JS/Rust/Protobuf): it looks for a declaration keyword at the start of
// a trimmed line and then balances braces to find the end of the body.
func (p *SimplifiedParser) parseBraceLanguage(content, filePath, fnKeyword, arrowToken, typeKeyword string) []Symbol {
	lines := strings.Split(content, "\n")

	var symbols []Symbol
	var cur *Symbol
	var curLines []string

	flush := func(endLine int) {
		if cur == nil {
			return
		}
		cur.EndLine = endLine
		body := strings.Join(curLines, "\n")
		cur.Body = p.truncate(body)
		symbols = append(symbols, *cur)
		cur = nil
		curLines = nil
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.Contains(trimmed, fnKeyword+" ") && !strings.HasPrefix(trimmed, "//"):
			flush(lineNum - 1)
			name := extractDeclaredName(trimmed, fnKeyword)
			if name == "" {
				continue
			}
			kind := SymbolFunction
			if isPascalCase(name) {
				kind = SymbolComponent
			}
			cur = &Symbol{Name: name, SymbolType: kind, Path: filePath, StartLine: lineNum}
			cur.Metadata.IsExported = strings.Contains(trimmed, "export") || strings.HasPrefix(trimmed, "pub ")
			if cur.Metadata.IsExported {
				cur.Metadata.Visibility = "public"
			} else {
				cur.Metadata.Visibility = "private"
			}
			curLines = []string{line}
		case typeKeyword != "" && strings.Contains(trimmed, typeKeyword+" ") && !strings.HasPrefix(trimmed, "//"):
			flush(lineNum - 1)
			name := extractDeclaredName(trimmed, typeKeyword)
			if name == "" {
				continue
			}
			cur = &Symbol{Name: name, SymbolType: SymbolClass, Path: filePath, StartLine: lineNum}
			cur.Metadata.IsExported = strings.Contains(trimmed, "export") || strings.HasPrefix(trimmed, "pub ")
			curLines = []string{line}
		case cur != nil:
			curLines = append(curLines, line)
			if trimmed == "}" || trimmed == "};" {
				balance := 0
				for _, l := range curLines {
					balance += strings.Count(l, "{") - strings.Count(l, "}")
				}
				if balance <= 0 {
					flush(lineNum)
				}
			}
		}
	}
	flush(len(lines))

	return symbols
}

func extractDeclaredName(line, keyword string) string {
	idx := strings.Index(line, keyword+" ")
	if idx == -1 {
		return ""
	}
	rest := strings.TrimSpace(line[idx+len(keyword)+1:])
	end := strings.IndexAny(rest, "(<{ :")
	if end == -1 {
		end = len(rest)
	}
	name := strings.TrimSpace(rest[:end])
	if name == "" || strings.ContainsAny(name, "{}();") {
		return ""
	}
	return name
}

// parsePythonSimplified detects "def"/"class" blocks using indentation
// instead of braces.
func (p *SimplifiedParser) parsePythonSimplified(content, filePath string) []Symbol {
	lines := strings.Split(content, "\n")

	var symbols []Symbol
	var cur *Symbol
	var curLines []string
	var bodyIndent int

	indentOf := func(s string) int {
		n := 0
		for _, r := range s {
			if r == ' ' {
				n++
			} else if r == '\t' {
				n += 8
			} else {
				break
			}
		}
		return n
	}

	flush := func(endLine int) {
		if cur == nil {
			return
		}
		cur.EndLine = endLine
		body := strings.Join(curLines, "\n")
		cur.Body = p.truncate(strings.TrimRight(body, "\n"))
		symbols = append(symbols, *cur)
		cur = nil
		curLines = nil
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)
		indent := indentOf(line)

		isDecl := strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async def ") || strings.HasPrefix(trimmed, "class ")
		if isDecl {
			flush(lineNum - 1)
			kind := SymbolFunction
			kw := "def "
			if strings.HasPrefix(trimmed, "class ") {
				kind = SymbolClass
				kw = "class "
			} else if strings.HasPrefix(trimmed, "async def ") {
				kw = "async def "
			}
			name := extractDeclaredName(kw+trimmed[len(kw):], strings.TrimSpace(kw))
			if name == "" {
				i2 := strings.Index(trimmed[len(kw):], "(")
				if i2 == -1 {
					i2 = strings.IndexAny(trimmed[len(kw):], ": ")
				}
				if i2 > 0 {
					name = trimmed[len(kw) : len(kw)+i2]
				}
			}
			if name == "" {
				continue
			}
			cur = &Symbol{Name: name, SymbolType: kind, Path: filePath, StartLine: lineNum}
			cur.Metadata.IsAsync = strings.HasPrefix(trimmed, "async ")
			cur.Metadata.IsExported = !strings.HasPrefix(name, "_")
			if cur.Metadata.IsExported {
				cur.Metadata.Visibility = "public"
			} else {
				cur.Metadata.Visibility = "private"
			}
			bodyIndent = indent
			curLines = []string{line}
			continue
		}

		if cur != nil {
			if strings.TrimSpace(line) == "" {
				curLines = append(curLines, line)
				continue
			}
			if indent <= bodyIndent {
				flush(lineNum - 1)
			} else {
				curLines = append(curLines, line)
			}
		}
	}
	flush(len(lines))

	return symbols
}
