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
	"context"
	"fmt"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// parseGo extracts Symbols from Go source using Tree-sitter. This is the
// primary parser for the codebase.
func (p *TreeSitterParser) parseGo(content []byte, filePath string) ([]Symbol, error) {
	tree, err := p.goParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if n := countErrors(root); n > 0 {
			p.logger.Warn("parser.treesitter.go.syntax_errors", "path", filePath, "error_count", n)
		}
	}

	importAliases := collectGoImportAliases(root, content)

	var symbols []Symbol
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_declaration":
			if sym := extractGoFunction(child, content, filePath, importAliases); sym != nil {
				symbols = append(symbols, *sym)
			}
		case "method_declaration":
			if sym := extractGoMethod(child, content, filePath, importAliases); sym != nil {
				symbols = append(symbols, *sym)
			}
		case "type_declaration":
			symbols = append(symbols, extractGoTypeDeclarations(child, content, filePath)...)
		case "const_declaration":
			symbols = append(symbols, extractGoValueDeclarations(child, content, filePath, SymbolConstant)...)
		case "var_declaration":
			symbols = append(symbols, extractGoValueDeclarations(child, content, filePath, SymbolVariable)...)
		}
	}

	return symbols, nil
}

// collectGoImportAliases returns the set of local identifiers bound by the
// file's import declarations (package name or explicit alias), used to
// decide which identifiers referenced from a symbol's body count as imports
// (spec: "identifiers bound by import declarations that are referenced from
// the symbol's body").
func collectGoImportAliases(root *sitter.Node, content []byte) map[string]string {
	aliases := make(map[string]string)
	if root == nil {
		return aliases
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			spec := child.Child(j)
			switch spec.Type() {
			case "import_spec":
				addGoImportAlias(spec, content, aliases)
			case "import_spec_list":
				for k := 0; k < int(spec.ChildCount()); k++ {
					if sub := spec.Child(k); sub.Type() == "import_spec" {
						addGoImportAlias(sub, content, aliases)
					}
				}
			}
		}
	}
	return aliases
}

func addGoImportAlias(node *sitter.Node, content []byte, aliases map[string]string) {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	path := strings.Trim(string(content[pathNode.StartByte():pathNode.EndByte()]), `"`)

	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		alias := string(content[nameNode.StartByte():nameNode.EndByte()])
		if alias != "_" {
			aliases[alias] = path
		}
		return
	}

	// No explicit alias: bound identifier is the last path segment.
	segs := strings.Split(path, "/")
	aliases[segs[len(segs)-1]] = path
}

// extractGoFunction builds a Symbol for a top-level func declaration.
func extractGoFunction(node *sitter.Node, content []byte, filePath string, imports map[string]string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	sym := newGoSymbol(node, content, filePath, name, SymbolFunction, imports)
	sym.Metadata.Parameters = goParamStrings(node.ChildByFieldName("parameters"), content)
	sym.Metadata.ReturnType = goNodeText(node.ChildByFieldName("result"), content)
	sym.Metadata.GenericParams = goGenericParams(node.ChildByFieldName("type_parameters"), content)
	return sym
}

// extractGoMethod builds a Symbol for a method declaration, naming it
// "Receiver.Method" per the Symbol.Name convention.
func extractGoMethod(node *sitter.Node, content []byte, filePath string, imports map[string]string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	methodName := string(content[nameNode.StartByte():nameNode.EndByte()])

	receiverType := ""
	if recvNode := node.ChildByFieldName("receiver"); recvNode != nil {
		receiverType = extractGoReceiverType(recvNode, content)
	}

	fullName := methodName
	if receiverType != "" {
		fullName = receiverType + "." + methodName
	}

	sym := newGoSymbol(node, content, filePath, fullName, SymbolMethod, imports)
	sym.Metadata.Parameters = goParamStrings(node.ChildByFieldName("parameters"), content)
	sym.Metadata.ReturnType = goNodeText(node.ChildByFieldName("result"), content)
	sym.Metadata.GenericParams = goGenericParams(node.ChildByFieldName("type_parameters"), content)
	return sym
}

// newGoSymbol fills in the fields common to functions and methods: span,
// body, doc comment, exported/visibility, and the Calls/Imports extracted
// from the declaration's body.
func newGoSymbol(node *sitter.Node, content []byte, filePath, name string, kind SymbolType, imports map[string]string) *Symbol {
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

	simpleName := name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		simpleName = name[idx+1:]
	}
	sym.Metadata.IsExported = isGoExported(simpleName)
	if sym.Metadata.IsExported {
		sym.Metadata.Visibility = "public"
	} else {
		sym.Metadata.Visibility = "private"
	}

	if bodyNode := goFunctionBody(node); bodyNode != nil {
		sym.Calls = dedupPreserveOrder(extractGoCallNames(bodyNode, content))
		sym.Imports = dedupPreserveOrder(extractGoReferencedImports(bodyNode, content, imports))
	}

	return sym
}

func goFunctionBody(node *sitter.Node) *sitter.Node {
	if b := node.ChildByFieldName("body"); b != nil {
		return b
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == "block" {
			return child
		}
	}
	return nil
}

func isGoExported(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsUpper(rune(name[0]))
}

func goNodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

// goParamStrings splits a Go parameter_list into one string per parameter
// declaration ("name Type"), matching the source text of each.
func goParamStrings(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "parameter_declaration" || child.Type() == "variadic_parameter_declaration" {
			out = append(out, string(content[child.StartByte():child.EndByte()]))
		}
	}
	return out
}

func goGenericParams(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "type_parameter_declaration" {
			out = append(out, string(content[child.StartByte():child.EndByte()]))
		}
	}
	return out
}

// extractGoReceiverType extracts the receiver's base type name, e.g. from
// "(s *Server)" or "(s Server[T])" it returns "Server".
func extractGoReceiverType(receiverNode *sitter.Node, content []byte) string {
	for i := 0; i < int(receiverNode.ChildCount()); i++ {
		child := receiverNode.Child(i)
		if child.Type() == "parameter_declaration" {
			if typeNode := child.ChildByFieldName("type"); typeNode != nil {
				return extractGoBaseTypeName(typeNode, content)
			}
		}
	}
	return ""
}

// extractGoBaseTypeName strips pointer and generic-instantiation wrappers to
// find the underlying named type: *Server -> Server, Server[T] -> Server.
func extractGoBaseTypeName(typeNode *sitter.Node, content []byte) string {
	if typeNode == nil {
		return ""
	}
	switch typeNode.Type() {
	case "pointer_type":
		for i := 0; i < int(typeNode.ChildCount()); i++ {
			if child := typeNode.Child(i); child.Type() != "*" {
				return extractGoBaseTypeName(child, content)
			}
		}
	case "generic_type":
		if nameNode := typeNode.ChildByFieldName("type"); nameNode != nil {
			return string(content[nameNode.StartByte():nameNode.EndByte()])
		}
	case "type_identifier":
		return string(content[typeNode.StartByte():typeNode.EndByte()])
	}
	name := string(content[typeNode.StartByte():typeNode.EndByte()])
	name = strings.TrimPrefix(name, "*")
	if idx := strings.Index(name, "["); idx > 0 {
		name = name[:idx]
	}
	return name
}

// extractGoCallNames walks a function body collecting callee names, preferring
// the full dotted form (pkg.Foo, obj.Method) so later resolution can attempt
// name matching against package/receiver-qualified symbols (spec section 9:
// approximate, name-matching resolution only).
func extractGoCallNames(node *sitter.Node, content []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				if name := extractGoCalleeName(fn, content); name != "" {
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

// extractGoCalleeName returns the callee's full textual name: "foo" for a
// plain identifier call, "pkg.Foo" or "obj.Method" for a selector call, and
// recurses through index expressions for generic instantiations foo[T]().
func extractGoCalleeName(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier":
		return string(content[node.StartByte():node.EndByte()])
	case "selector_expression":
		return string(content[node.StartByte():node.EndByte()])
	case "index_expression":
		if operand := node.ChildByFieldName("operand"); operand != nil {
			return extractGoCalleeName(operand, content)
		}
	}
	return ""
}

// extractGoReferencedImports walks a function body and returns the import
// path for every import alias actually referenced inside it.
func extractGoReferencedImports(node *sitter.Node, content []byte, imports map[string]string) []string {
	if len(imports) == 0 {
		return nil
	}
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "selector_expression" {
			if operand := n.ChildByFieldName("operand"); operand != nil && operand.Type() == "identifier" {
				ident := string(content[operand.StartByte():operand.EndByte()])
				if path, ok := imports[ident]; ok {
					out = append(out, path)
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

// extractGoTypeDeclarations handles both single type declarations and type
// blocks ("type ( Foo struct {...}; Bar interface {...} )").
func extractGoTypeDeclarations(node *sitter.Node, content []byte, filePath string) []Symbol {
	var out []Symbol
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_spec":
			if sym := extractGoTypeSpec(child, content, filePath); sym != nil {
				out = append(out, *sym)
			}
		case "type_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "type_spec" {
					if sym := extractGoTypeSpec(spec, content, filePath); sym != nil {
						out = append(out, *sym)
					}
				}
			}
		}
	}
	return out
}

func extractGoTypeSpec(node *sitter.Node, content []byte, filePath string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	typeNode := node.ChildByFieldName("type")
	kind := determineGoTypeKind(typeNode)
	if kind == "" {
		return nil
	}

	sym := &Symbol{
		Name:       name,
		SymbolType: kind,
		Path:       filePath,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Body:       string(content[node.StartByte():node.EndByte()]),
		JSDoc:      nearestLeadingComment(node, content),
	}
	sym.Metadata.IsExported = isGoExported(name)
	if sym.Metadata.IsExported {
		sym.Metadata.Visibility = "public"
	} else {
		sym.Metadata.Visibility = "private"
	}
	if params := node.ChildByFieldName("type_parameters"); params != nil {
		sym.Metadata.GenericParams = goGenericParams(params, content)
	}
	return sym
}

func determineGoTypeKind(typeNode *sitter.Node) SymbolType {
	if typeNode == nil {
		return ""
	}
	switch typeNode.Type() {
	case "struct_type":
		return SymbolClass
	case "interface_type":
		return SymbolInterface
	case "type_identifier", "pointer_type", "array_type", "slice_type",
		"map_type", "channel_type", "function_type", "generic_type":
		return SymbolType_
	default:
		return ""
	}
}

// extractGoValueDeclarations extracts package-level const/var blocks as
// one Symbol per bound identifier.
func extractGoValueDeclarations(node *sitter.Node, content []byte, filePath string, kind SymbolType) []Symbol {
	var out []Symbol
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "const_spec" && spec.Type() != "var_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		names := []*sitter.Node{nameNode}
		// const/var specs may bind multiple names: a, b = 1, 2
		for j := 0; j < int(spec.ChildCount()); j++ {
			if child := spec.Child(j); child.Type() == "identifier" && child != nameNode {
				names = append(names, child)
			}
		}
		for _, n := range names {
			name := string(content[n.StartByte():n.EndByte()])
			sym := Symbol{
				Name:       name,
				SymbolType: kind,
				Path:       filePath,
				StartLine:  int(spec.StartPoint().Row) + 1,
				EndLine:    int(spec.EndPoint().Row) + 1,
				Body:       string(content[spec.StartByte():spec.EndByte()]),
				JSDoc:      nearestLeadingComment(spec, content),
			}
			sym.Metadata.IsExported = isGoExported(name)
			if sym.Metadata.IsExported {
				sym.Metadata.Visibility = "public"
			} else {
				sym.Metadata.Visibility = "private"
			}
			out = append(out, sym)
		}
	}
	return out
}
