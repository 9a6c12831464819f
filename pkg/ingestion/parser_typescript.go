// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// parseTSFamily extracts Symbols from TypeScript/TSX/JavaScript/JSX source,
// all of which share the same function/class/interface node shapes in
// Tree-sitter's grammar family. jsx indicates whether component detection
// (PascalCase function returning markup) should run.
func (p *TreeSitterParser) parseTSFamily(content []byte, filePath string, parser *sitter.Parser, jsx bool) ([]Symbol, error) {
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if n := countErrors(root); n > 0 {
			p.logger.Warn("parser.treesitter.ts.syntax_errors", "path", filePath, "error_count", n)
		}
	}

	var symbols []Symbol
	anonCounter := 0
	walkTSNodes(root, content, filePath, jsx, &symbols, &anonCounter)
	return symbols, nil
}

func walkTSNodes(node *sitter.Node, content []byte, filePath string, jsx bool, out *[]Symbol, anonCounter *int) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_declaration":
		if sym := extractTSFunction(node, content, filePath, jsx); sym != nil {
			*out = append(*out, *sym)
		}
	case "variable_declarator":
		if sym := extractTSVariableFunction(node, content, filePath, jsx); sym != nil {
			*out = append(*out, *sym)
		}
	case "method_definition":
		if sym := extractTSMethod(node, content, filePath); sym != nil {
			*out = append(*out, *sym)
		}
	case "method_signature":
		if sym := extractTSSignature(node, content, filePath, SymbolMethod); sym != nil {
			*out = append(*out, *sym)
		}
	case "function_signature":
		if sym := extractTSSignature(node, content, filePath, SymbolFunction); sym != nil {
			*out = append(*out, *sym)
		}
	case "interface_declaration":
		if sym := extractTSTypeDecl(node, content, filePath, SymbolInterface); sym != nil {
			*out = append(*out, *sym)
		}
	case "class_declaration":
		if sym := extractTSTypeDecl(node, content, filePath, SymbolClass); sym != nil {
			*out = append(*out, *sym)
		}
	case "type_alias_declaration":
		if sym := extractTSTypeDecl(node, content, filePath, SymbolType_); sym != nil {
			*out = append(*out, *sym)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkTSNodes(node.Child(i), content, filePath, jsx, out, anonCounter)
	}
}

// extractTSFunction handles `function Name(...) {}` and, when jsx is set,
// reclassifies PascalCase functions returning markup as components.
func extractTSFunction(node *sitter.Node, content []byte, filePath string, jsx bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	return newTSSymbol(node, content, filePath, name, tsKindFor(name, node, content, jsx))
}

// extractTSVariableFunction handles `const Name = (...) => {}` /
// `const Name = function(...) {}`, including a one-level unwrap for
// higher-order-component wrappers like `const Name = memo((...) => {})`.
func extractTSVariableFunction(node *sitter.Node, content []byte, filePath string, jsx bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	valueNode := node.ChildByFieldName("value")
	if nameNode == nil || valueNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	switch valueNode.Type() {
	case "arrow_function", "function_expression", "function":
		return newTSSymbol(valueNode, content, filePath, name, tsKindFor(name, valueNode, content, jsx))
	case "call_expression":
		// Unwrap one level: const Foo = memo(props => <div/>) or
		// forwardRef((props, ref) => <div/>).
		for i := 0; i < int(valueNode.ChildCount()); i++ {
			child := valueNode.Child(i)
			if child.Type() == "arguments" {
				for j := 0; j < int(child.ChildCount()); j++ {
					arg := child.Child(j)
					if arg.Type() == "arrow_function" || arg.Type() == "function_expression" {
						return newTSSymbol(arg, content, filePath, name, tsKindFor(name, arg, content, jsx))
					}
				}
			}
		}
	}
	return nil
}

func extractTSMethod(node *sitter.Node, content []byte, filePath string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	return newTSSymbol(node, content, filePath, name, SymbolMethod)
}

// extractTSSignature handles ambient declarations (interface method
// signatures, `declare function` signatures) that have no body.
func extractTSSignature(node *sitter.Node, content []byte, filePath string, kind SymbolType) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	return newTSSymbol(node, content, filePath, name, kind)
}

func tsKindFor(name string, node *sitter.Node, content []byte, jsx bool) SymbolType {
	if jsx && isPascalCase(name) {
		body := goNodeText(node.ChildByFieldName("body"), content)
		if looksLikeMarkup(body) {
			return SymbolComponent
		}
	}
	return SymbolFunction
}

func newTSSymbol(node *sitter.Node, content []byte, filePath, name string, kind SymbolType) *Symbol {
	body := string(content[node.StartByte():node.EndByte()])
	sym := &Symbol{
		Name:       name,
		SymbolType: kind,
		Path:       filePath,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Body:       body,
		JSDoc:      nearestLeadingComment(node, content),
	}
	sym.Metadata.IsAsync = hasTSAsyncKeyword(node, content)
	sym.Metadata.Parameters = tsParamStrings(node.ChildByFieldName("parameters"), content)
	sym.Metadata.ReturnType = goNodeText(node.ChildByFieldName("return_type"), content)
	sym.Metadata.IsExported = isTSExported(node, content)
	if sym.Metadata.IsExported {
		sym.Metadata.Visibility = "public"
	} else {
		sym.Metadata.Visibility = "private"
	}
	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		sym.Calls = dedupPreserveOrder(extractTSCallNames(bodyNode, content))
	}
	return sym
}

func hasTSAsyncKeyword(node *sitter.Node, content []byte) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == "async" {
			return true
		}
	}
	return strings.HasPrefix(strings.TrimSpace(string(content[node.StartByte():node.EndByte()])), "async")
}

func tsParamStrings(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "required_parameter", "optional_parameter", "rest_pattern", "identifier":
			out = append(out, string(content[child.StartByte():child.EndByte()]))
		}
	}
	return out
}

// isTSExported walks up to the nearest statement ancestor and checks for a
// leading `export` keyword, since Tree-sitter hangs `export` off a wrapping
// export_statement rather than the declaration itself.
func isTSExported(node *sitter.Node, content []byte) bool {
	for n := node; n != nil; n = n.Parent() {
		if n.Type() == "export_statement" {
			return true
		}
	}
	return false
}

func extractTSCallNames(node *sitter.Node, content []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				if name := extractTSCalleeName(fn, content); name != "" {
					out = append(out, name)
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return out
}

func extractTSCalleeName(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier":
		return string(content[node.StartByte():node.EndByte()])
	case "member_expression":
		return string(content[node.StartByte():node.EndByte()])
	}
	return ""
}

func extractTSTypeDecl(node *sitter.Node, content []byte, filePath string, kind SymbolType) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	sym := &Symbol{
		Name:       name,
		SymbolType: kind,
		Path:       filePath,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Body:       string(content[node.StartByte():node.EndByte()]),
		JSDoc:      nearestLeadingComment(node, content),
	}
	sym.Metadata.IsExported = isTSExported(node, content)
	if sym.Metadata.IsExported {
		sym.Metadata.Visibility = "public"
	} else {
		sym.Metadata.Visibility = "private"
	}
	if params := node.ChildByFieldName("type_parameters"); params != nil {
		sym.Metadata.GenericParams = []string{goNodeText(params, content)}
	}
	return sym
}
