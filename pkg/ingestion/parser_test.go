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

import "testing"

func findSymbol(symbols []Symbol, name string) *Symbol {
	for i := range symbols {
		if symbols[i].Name == name {
			return &symbols[i]
		}
	}
	return nil
}

func TestTreeSitterParser_Go(t *testing.T) {
	src := `package sample

import "fmt"

// Greet says hello to name.
func Greet(name string) string {
	fmt.Println(name)
	return "hello " + name
}

type Server struct{}

func (s *Server) Run() error {
	Greet("world")
	return nil
}
`
	p := NewTreeSitterParser()
	symbols, err := p.ParseFile(FileInfo{Path: "sample.go", Content: []byte(src)})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	greet := findSymbol(symbols, "Greet")
	if greet == nil {
		t.Fatal("expected to find Greet function")
	}
	if greet.SymbolType != SymbolFunction {
		t.Errorf("Greet.SymbolType = %q, want function", greet.SymbolType)
	}
	if !greet.Metadata.IsExported {
		t.Error("Greet should be exported")
	}
	if greet.JSDoc != "Greet says hello to name." {
		t.Errorf("Greet.JSDoc = %q", greet.JSDoc)
	}

	run := findSymbol(symbols, "Server.Run")
	if run == nil {
		t.Fatal("expected to find Server.Run method")
	}
	if run.SymbolType != SymbolMethod {
		t.Errorf("Server.Run.SymbolType = %q, want method", run.SymbolType)
	}
	found := false
	for _, c := range run.Calls {
		if c == "Greet" {
			found = true
		}
	}
	if !found {
		t.Errorf("Server.Run.Calls = %v, want to contain Greet", run.Calls)
	}
}

func TestTreeSitterParser_TSXComponent(t *testing.T) {
	src := `export function Button(props) {
	return <button onClick={props.onClick}>{props.label}</button>;
}

function helper() {
	return 1;
}
`
	p := NewTreeSitterParser()
	symbols, err := p.ParseFile(FileInfo{Path: "button.tsx", Content: []byte(src)})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	button := findSymbol(symbols, "Button")
	if button == nil {
		t.Fatal("expected to find Button")
	}
	if button.SymbolType != SymbolComponent {
		t.Errorf("Button.SymbolType = %q, want component", button.SymbolType)
	}
	if !button.Metadata.IsExported {
		t.Error("Button should be exported")
	}

	helper := findSymbol(symbols, "helper")
	if helper == nil {
		t.Fatal("expected to find helper")
	}
	if helper.SymbolType != SymbolFunction {
		t.Errorf("helper.SymbolType = %q, want function", helper.SymbolType)
	}
}

func TestTreeSitterParser_Python(t *testing.T) {
	src := `class Widget:
    """A widget."""

    def render(self):
        return helper()


def helper():
    return 1
`
	p := NewTreeSitterParser()
	symbols, err := p.ParseFile(FileInfo{Path: "widget.py", Content: []byte(src)})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	render := findSymbol(symbols, "Widget.render")
	if render == nil {
		t.Fatal("expected to find Widget.render")
	}
	if render.SymbolType != SymbolMethod {
		t.Errorf("Widget.render.SymbolType = %q, want method", render.SymbolType)
	}

	widget := findSymbol(symbols, "Widget")
	if widget == nil || widget.SymbolType != SymbolClass {
		t.Error("expected to find Widget class")
	}
}

func TestTreeSitterParser_Rust(t *testing.T) {
	src := `pub struct Counter {
    value: i32,
}

impl Counter {
    pub fn increment(&mut self) {
        self.value += 1;
    }
}
`
	p := NewTreeSitterParser()
	symbols, err := p.ParseFile(FileInfo{Path: "counter.rs", Content: []byte(src)})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	inc := findSymbol(symbols, "Counter.increment")
	if inc == nil {
		t.Fatal("expected to find Counter.increment")
	}
	if !inc.Metadata.IsExported {
		t.Error("Counter.increment should be exported (pub)")
	}
}

func TestTreeSitterParser_Protobuf(t *testing.T) {
	src := `syntax = "proto3";

service Greeter {
  rpc SayHello (HelloRequest) returns (HelloReply) {}
}

message HelloRequest {
  string name = 1;
}
`
	p := NewTreeSitterParser()
	symbols, err := p.ParseFile(FileInfo{Path: "greeter.proto", Content: []byte(src)})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	svc := findSymbol(symbols, "Greeter")
	if svc == nil || svc.SymbolType != SymbolInterface {
		t.Fatal("expected to find Greeter service as an interface symbol")
	}

	rpc := findSymbol(symbols, "Greeter.SayHello")
	if rpc == nil || rpc.SymbolType != SymbolMethod {
		t.Fatal("expected to find Greeter.SayHello rpc as a method symbol")
	}

	msg := findSymbol(symbols, "HelloRequest")
	if msg == nil || msg.SymbolType != SymbolType_ {
		t.Fatal("expected to find HelloRequest message as a type symbol")
	}
}

func TestSimplifiedParser_Go(t *testing.T) {
	src := `package sample

func Greet(name string) string {
	return helper(name)
}

func helper(name string) string {
	return name
}
`
	p := NewSimplifiedParser()
	symbols, err := p.ParseFile(FileInfo{Path: "sample.go", Content: []byte(src)})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	greet := findSymbol(symbols, "Greet")
	if greet == nil {
		t.Fatal("expected to find Greet")
	}
	if !greet.Metadata.IsExported {
		t.Error("Greet should be exported")
	}
}

func TestCodeParser_SupportedExtensions(t *testing.T) {
	for _, p := range []CodeParser{NewTreeSitterParser(), NewSimplifiedParser()} {
		if !p.IsSupported(".go") {
			t.Error("expected .go to be supported")
		}
		if p.IsSupported(".exe") {
			t.Error(".exe should not be supported")
		}
		if len(p.SupportedExtensions()) == 0 {
			t.Error("expected a non-empty extension list")
		}
	}
}

func TestNewCodeParser_Dispatch(t *testing.T) {
	if _, ok := NewCodeParser(ParserModeSimplified).(*SimplifiedParser); !ok {
		t.Error("ParserModeSimplified should construct *SimplifiedParser")
	}
	if _, ok := NewCodeParser(ParserModeTreeSitter).(*TreeSitterParser); !ok {
		t.Error("ParserModeTreeSitter should construct *TreeSitterParser")
	}
	if _, ok := NewCodeParser(ParserModeAuto).(*TreeSitterParser); !ok {
		t.Error("ParserModeAuto should prefer *TreeSitterParser")
	}
}
