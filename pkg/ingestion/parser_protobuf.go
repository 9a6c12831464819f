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

// parseProtobuf extracts services, RPCs, messages, and enums from .proto
// files. Regex/line based since no Tree-sitter grammar for protobuf is
// bundled; kept as a supplemental fifth language alongside the AST-backed
// Go/TS/Python/Rust parsers.
func (p *TreeSitterParser) parseProtobuf(content []byte, filePath string) ([]Symbol, error) {
	return parseProtobufContent(string(content), filePath, p.truncateCodeText), nil
}

func parseProtobufContent(content, filePath string, truncate func(string) string) []Symbol {
	var symbols []Symbol

	lines := strings.Split(content, "\n")
	var currentService string
	var serviceStartLine int
	var serviceLines []string
	braceCount := 0

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") {
			continue
		}

		if strings.HasPrefix(trimmed, "service ") && strings.Contains(trimmed, "{") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				currentService = strings.TrimSuffix(parts[1], "{")
				serviceStartLine = lineNum
				serviceLines = []string{line}
				braceCount = strings.Count(trimmed, "{") - strings.Count(trimmed, "}")

				if braceCount == 0 {
					symbols = append(symbols, newProtobufSymbol(filePath, currentService, SymbolInterface, serviceStartLine, lineNum, strings.Join(serviceLines, "\n"), truncate))
					currentService = ""
				}
			}
			continue
		}

		if currentService != "" {
			serviceLines = append(serviceLines, line)
			braceCount += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")

			if strings.HasPrefix(trimmed, "rpc ") {
				rpcName := extractProtobufRPCName(trimmed)
				if rpcName != "" {
					fullName := currentService + "." + rpcName
					symbols = append(symbols, newProtobufSymbol(filePath, fullName, SymbolMethod, lineNum, lineNum, trimmed, truncate))
				}
			}

			if braceCount == 0 {
				symbols = append(symbols, newProtobufSymbol(filePath, currentService, SymbolInterface, serviceStartLine, lineNum, strings.Join(serviceLines, "\n"), truncate))
				currentService = ""
				serviceLines = nil
			}
			continue
		}

		if strings.HasPrefix(trimmed, "message ") && strings.Contains(trimmed, "{") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				msgName := strings.TrimSuffix(parts[1], "{")
				endLine := findProtobufBlockEnd(lines, i)
				codeText := strings.Join(lines[i:endLine], "\n")
				symbols = append(symbols, newProtobufSymbol(filePath, msgName, SymbolType_, lineNum, endLine, codeText, truncate))
			}
		}

		if strings.HasPrefix(trimmed, "enum ") && strings.Contains(trimmed, "{") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				enumName := strings.TrimSuffix(parts[1], "{")
				endLine := findProtobufBlockEnd(lines, i)
				codeText := strings.Join(lines[i:endLine], "\n")
				symbols = append(symbols, newProtobufSymbol(filePath, enumName, SymbolEnum, lineNum, endLine, codeText, truncate))
			}
		}
	}

	return symbols
}

func extractProtobufRPCName(line string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(line), "rpc ")
	parenIdx := strings.Index(trimmed, "(")
	if parenIdx == -1 {
		return ""
	}
	return strings.TrimSpace(trimmed[:parenIdx])
}

func newProtobufSymbol(filePath, name string, kind SymbolType, startLine, endLine int, body string, truncate func(string) string) Symbol {
	sym := Symbol{
		Name:       name,
		SymbolType: kind,
		Path:       filePath,
		StartLine:  startLine,
		EndLine:    endLine,
		Body:       truncate(body),
	}
	sym.Metadata.IsExported = true
	sym.Metadata.Visibility = "public"
	return sym
}

// findProtobufBlockEnd finds the end line of a brace-delimited block
// (message, enum) starting at lines[startIdx].
func findProtobufBlockEnd(lines []string, startIdx int) int {
	braceCount := 0
	started := false

	for i := startIdx; i < len(lines); i++ {
		line := lines[i]
		braceCount += strings.Count(line, "{") - strings.Count(line, "}")
		if !started && strings.Contains(line, "{") {
			started = true
		}
		if started && braceCount == 0 {
			return i + 1
		}
	}

	return len(lines)
}
