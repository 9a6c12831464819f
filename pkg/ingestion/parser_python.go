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

// parsePython extracts Symbols from Python source using Tree-sitter,
// following the same walk-and-extract shape as parseGo.
func (p *TreeSitterParser) parsePython(content []byte, filePath string) ([]Symbol, error) {
	tree, err := p.pyParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if n := countErrors(root); n > 0 {
			p.logger.Warn("parser.treesitter.python.syntax_errors", "path", filePath, "error_count", n)
		}
	}

	var symbols []Symbol
	walkPythonNodes(root, content, filePath, "", &symbols)
	return symbols, nil
}

// walkPythonNodes walks function_definition and class_definition nodes.
// enclosingClass carries the nearest ancestor class name so methods are
// named "Class.method" consistent with the Go receiver-qualified naming.
func walkPythonNodes(node *sitter.Node, content []byte, filePath, enclosingClass string, out *[]Symbol) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_definition":
		if sym := extractPythonFunction(node, content, filePath, enclosingClass); sym != nil {
			*out = append(*out, *sym)
		}
		if body := node.ChildByFieldName("body"); body != nil {
			walkPythonNodes(body, content, filePath, enclosingClass, out)
		}
		return
	case "class_definition":
		nameNode := node.ChildByFieldName("name")
		className := enclosingClass
		if nameNode != nil {
			className = string(content[nameNode.StartByte():nameNode.EndByte()])
			if sym := extractPythonClass(node, content, filePath); sym != nil {
				*out = append(*out, *sym)
			}
		}
		if body := node.ChildByFieldName("body"); body != nil {
			walkPythonNodes(body, content, filePath, className, out)
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkPythonNodes(node.Child(i), content, filePath, enclosingClass, out)
	}
}

func extractPythonFunction(node *sitter.Node, content []byte, filePath, enclosingClass string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	kind := SymbolFunction
	if enclosingClass != "" {
		kind = SymbolMethod
		name = enclosingClass + "." + name
	}

	body := string(content[node.StartByte():node.EndByte()])
	sym := &Symbol{
		Name:       name,
		SymbolType: kind,
		Path:       filePath,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Body:       body,
		JSDoc:      pythonDocstring(node, content),
	}
	sym.Metadata.Parameters = pythonParamStrings(node.ChildByFieldName("parameters"), content)
	sym.Metadata.ReturnType = goNodeText(node.ChildByFieldName("return_type"), content)
	sym.Metadata.IsAsync = pythonHasAsync(node, content)

	simple := name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		simple = name[idx+1:]
	}
	sym.Metadata.IsExported = !strings.HasPrefix(simple, "_")
	if sym.Metadata.IsExported {
		sym.Metadata.Visibility = "public"
	} else {
		sym.Metadata.Visibility = "private"
	}

	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		sym.Calls = dedupPreserveOrder(extractPythonCallNames(bodyNode, content))
		sym.Imports = dedupPreserveOrder(extractPythonReferencedImports(bodyNode, content))
	}
	return sym
}

func extractPythonClass(node *sitter.Node, content []byte, filePath string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	sym := &Symbol{
		Name:       name,
		SymbolType: SymbolClass,
		Path:       filePath,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Body:       string(content[node.StartByte():node.EndByte()]),
		JSDoc:      pythonDocstring(node, content),
	}
	sym.Metadata.IsExported = !strings.HasPrefix(name, "_")
	if sym.Metadata.IsExported {
		sym.Metadata.Visibility = "public"
	} else {
		sym.Metadata.Visibility = "private"
	}
	return sym
}

// pythonDocstring returns the first statement's string literal when it is a
// bare expression_statement (Python's docstring convention), falling back to
// a preceding comment block.
func pythonDocstring(node *sitter.Node, content []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.ChildCount() == 0 {
		return nearestLeadingComment(node, content)
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return nearestLeadingComment(node, content)
	}
	str := first.Child(0)
	if str.Type() != "string" {
		return nearestLeadingComment(node, content)
	}
	text := string(content[str.StartByte():str.EndByte()])
	text = strings.Trim(text, `"'`)
	text = strings.TrimPrefix(text, `""`)
	text = strings.TrimSuffix(text, `""`)
	return strings.TrimSpace(text)
}

func pythonHasAsync(node *sitter.Node, content []byte) bool {
	text := string(content[node.StartByte():node.EndByte()])
	return strings.HasPrefix(strings.TrimSpace(text), "async ")
}

func pythonParamStrings(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "typed_parameter", "default_parameter",
			"typed_default_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, string(content[child.StartByte():child.EndByte()]))
		}
	}
	return out
}

func extractPythonCallNames(node *sitter.Node, content []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				switch fn.Type() {
				case "identifier", "attribute":
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

// extractPythonReferencedImports returns every dotted module prefix
// referenced via attribute access inside the body (e.g. `os.path.join(...)`
// contributes "os").
func extractPythonReferencedImports(node *sitter.Node, content []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "attribute" {
			if obj := n.ChildByFieldName("object"); obj != nil && obj.Type() == "identifier" {
				out = append(out, string(content[obj.StartByte():obj.EndByte()]))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return out
}
