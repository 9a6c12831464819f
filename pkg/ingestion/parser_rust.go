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

	sitter "github.com/smacker/go-tree-sitter"
)

// parseRust extracts Symbols from Rust source using Tree-sitter. Rust is
// carried as the fourth baseline grammar alongside Go/TypeScript/Python.
func (p *TreeSitterParser) parseRust(content []byte, filePath string) ([]Symbol, error) {
	tree, err := p.rustParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if n := countErrors(root); n > 0 {
			p.logger.Warn("parser.treesitter.rust.syntax_errors", "path", filePath, "error_count", n)
		}
	}

	var symbols []Symbol
	walkRustNodes(root, content, filePath, "", &symbols)
	return symbols, nil
}

// walkRustNodes walks function_item, impl_item, struct_item, enum_item and
// trait_item nodes. enclosingType carries the nearest impl/trait target type
// so associated functions are named "Type.method".
func walkRustNodes(node *sitter.Node, content []byte, filePath, enclosingType string, out *[]Symbol) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_item":
		if sym := extractRustFunction(node, content, filePath, enclosingType); sym != nil {
			*out = append(*out, *sym)
		}
		return
	case "impl_item":
		typeName := rustImplTypeName(node, content)
		if body := node.ChildByFieldName("body"); body != nil {
			walkRustNodes(body, content, filePath, typeName, out)
		}
		return
	case "struct_item":
		if sym := extractRustTypeDecl(node, content, filePath, SymbolClass); sym != nil {
			*out = append(*out, *sym)
		}
	case "enum_item":
		if sym := extractRustTypeDecl(node, content, filePath, SymbolEnum); sym != nil {
			*out = append(*out, *sym)
		}
	case "trait_item":
		if sym := extractRustTypeDecl(node, content, filePath, SymbolInterface); sym != nil {
			*out = append(*out, *sym)
		}
		if body := node.ChildByFieldName("body"); body != nil {
			walkRustNodes(body, content, filePath, enclosingType, out)
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkRustNodes(node.Child(i), content, filePath, enclosingType, out)
	}
}

// rustImplTypeName returns the base type an `impl [Trait for] Type` block
// targets, stripping generic parameters.
func rustImplTypeName(node *sitter.Node, content []byte) string {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return ""
	}
	name := string(content[typeNode.StartByte():typeNode.EndByte()])
	if idx := strings.Index(name, "<"); idx > 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

func extractRustFunction(node *sitter.Node, content []byte, filePath, enclosingType string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	kind := SymbolFunction
	if enclosingType != "" {
		kind = SymbolMethod
		name = enclosingType + "." + name
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
	sym.Metadata.Parameters = rustParamStrings(node.ChildByFieldName("parameters"), content)
	sym.Metadata.ReturnType = goNodeText(node.ChildByFieldName("return_type"), content)
	sym.Metadata.GenericParams = rustGenericParams(node.ChildByFieldName("type_parameters"), content)
	sym.Metadata.IsAsync = rustHasKeyword(node, "async")
	sym.Metadata.IsExported = rustHasKeyword(node, "pub")
	if sym.Metadata.IsExported {
		sym.Metadata.Visibility = "public"
	} else {
		sym.Metadata.Visibility = "private"
	}

	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		sym.Calls = dedupPreserveOrder(extractRustCallNames(bodyNode, content))
	}
	return sym
}

// rustHasKeyword reports whether keyword is a direct child of node or sits
// inside its visibility_modifier / function_modifiers child, which is where
// tree-sitter-rust places `pub` and `async`.
func rustHasKeyword(node *sitter.Node, keyword string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == keyword {
			return true
		}
		if child.Type() == "visibility_modifier" || child.Type() == "function_modifiers" {
			for j := 0; j < int(child.ChildCount()); j++ {
				if child.Child(j).Type() == keyword {
					return true
				}
			}
		}
	}
	return false
}

func rustParamStrings(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "parameter", "self_parameter":
			out = append(out, string(content[child.StartByte():child.EndByte()]))
		}
	}
	return out
}

func rustGenericParams(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_parameter", "lifetime", "const_parameter":
			out = append(out, string(content[child.StartByte():child.EndByte()]))
		}
	}
	return out
}

func extractRustTypeDecl(node *sitter.Node, content []byte, filePath string, kind SymbolType) *Symbol {
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
	sym.Metadata.IsExported = rustHasKeyword(node, "pub")
	if sym.Metadata.IsExported {
		sym.Metadata.Visibility = "public"
	} else {
		sym.Metadata.Visibility = "private"
	}
	sym.Metadata.GenericParams = rustGenericParams(node.ChildByFieldName("type_parameters"), content)
	return sym
}

func extractRustCallNames(node *sitter.Node, content []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil {
				switch fn.Type() {
				case "identifier", "field_expression", "scoped_identifier":
					out = append(out, string(content[fn.StartByte():fn.EndByte()]))
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
