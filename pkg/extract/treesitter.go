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

package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var errSyntax = errors.New("syntax errors in tree")

// classifier maps a node to a unit. It returns the node whose start ends the
// signature (usually the body) and whether walking should descend into node.
type classifier func(n *sitter.Node, w *walker) (u *Unit, body *sitter.Node, descend bool)

// treeSitterGrammar is a Grammar backed by one or more Tree-sitter languages.
// The first language that yields an error-free tree wins.
type treeSitterGrammar struct {
	lang     Language
	grammars []*sitter.Language
	classify classifier
}

func (g *treeSitterGrammar) Language() Language { return g.lang }

func (g *treeSitterGrammar) Units(content []byte) ([]Unit, error) {
	var lastErr error
	for _, tl := range g.grammars {
		units, err := g.parse(tl, content)
		if err == nil {
			return units, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (g *treeSitterGrammar) parse(tl *sitter.Language, content []byte) ([]Unit, error) {
	// Parsers are not safe for concurrent use, so each call gets its own.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tl)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%s: %w", g.lang, errSyntax)
	}

	w := &walker{content: content, classify: g.classify}
	w.walk(root)
	return w.units, nil
}

// walker collects units in a depth-first pass.
type walker struct {
	content  []byte
	classify classifier
	units    []Unit

	// scope is the stack of enclosing class names, "" marks a function scope.
	scope []string
}

func (w *walker) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	u, body, descend := w.classify(n, w)
	if u != nil {
		w.emit(n, u, body)
	}
	if !descend {
		return
	}

	pushed := false
	if u != nil {
		switch u.Kind {
		case KindClass:
			w.scope = append(w.scope, u.Name)
			pushed = true
		case KindFunction, KindMethod:
			w.scope = append(w.scope, "")
			pushed = true
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i))
	}
	if pushed {
		w.scope = w.scope[:len(w.scope)-1]
	}
}

func (w *walker) emit(n *sitter.Node, u *Unit, body *sitter.Node) {
	start, end := int(n.StartByte()), int(n.EndByte())
	u.StartByte = start
	u.EndByte = end
	u.StartLine = int(n.StartPoint().Row) + 1
	u.EndLine = int(n.EndPoint().Row) + 1
	u.Text = string(w.content[start:end])

	sigEnd := end
	if body != nil && int(body.StartByte()) > start {
		sigEnd = int(body.StartByte())
	}
	u.Signature = cleanSignature(string(w.content[start:sigEnd]))
	w.units = append(w.units, *u)
}

// class returns the innermost enclosing class name, or "" when the closest
// scope is a function or the file.
func (w *walker) class() string {
	if len(w.scope) == 0 {
		return ""
	}
	return w.scope[len(w.scope)-1]
}

// inFunction reports whether any enclosing scope is a function body.
func (w *walker) inFunction() bool {
	for _, s := range w.scope {
		if s == "" {
			return true
		}
	}
	return false
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(w.content[n.StartByte():n.EndByte()])
}

func cleanSignature(s string) string {
	if strings.HasPrefix(strings.TrimSpace(s), "@") {
		// Drop decorator lines before the definition line.
		lines := strings.Split(s, "\n")
		for j, l := range lines {
			t := strings.TrimSpace(l)
			if strings.HasPrefix(t, "def ") || strings.HasPrefix(t, "async def ") || strings.HasPrefix(t, "class ") {
				s = strings.Join(lines[j:], "\n")
				break
			}
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "{")
	s = strings.TrimSuffix(s, ":")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// =============================================================================
// PYTHON
// =============================================================================

// NewPythonGrammar returns the Tree-sitter grammar for Python.
func NewPythonGrammar() Grammar {
	return &treeSitterGrammar{
		lang:     LanguagePython,
		grammars: []*sitter.Language{python.GetLanguage()},
		classify: classifyPython,
	}
}

func classifyPython(n *sitter.Node, w *walker) (*Unit, *sitter.Node, bool) {
	switch n.Type() {
	case "decorated_definition":
		// The span starts at the first decorator.
		def := n.ChildByFieldName("definition")
		if def == nil {
			return nil, nil, true
		}
		return classifyPythonDefinition(def, w)

	case "function_definition", "class_definition":
		if p := n.Parent(); p != nil && p.Type() == "decorated_definition" {
			// Already emitted for the decorated parent, whose scope is active.
			return nil, nil, true
		}
		return classifyPythonDefinition(n, w)
	}
	return nil, nil, true
}

func classifyPythonDefinition(n *sitter.Node, w *walker) (*Unit, *sitter.Node, bool) {
	if w.inFunction() {
		return nil, nil, false
	}
	name := w.text(n.ChildByFieldName("name"))
	if name == "" {
		return nil, nil, false
	}
	body := n.ChildByFieldName("body")

	switch n.Type() {
	case "function_definition":
		u := &Unit{Kind: KindFunction, Name: name}
		if cls := w.class(); cls != "" {
			u.Kind = KindMethod
			u.Parent = cls
		}
		return u, body, true
	case "class_definition":
		return &Unit{Kind: KindClass, Name: name}, body, true
	}
	return nil, nil, true
}

// =============================================================================
// JAVASCRIPT / TYPESCRIPT
// =============================================================================

// NewJavaScriptGrammar returns the Tree-sitter grammar for JavaScript (incl. JSX).
func NewJavaScriptGrammar() Grammar {
	return &treeSitterGrammar{
		lang:     LanguageJavaScript,
		grammars: []*sitter.Language{javascript.GetLanguage()},
		classify: classifyECMAScript,
	}
}

// NewTypeScriptGrammar returns the Tree-sitter grammar for TypeScript.
// Sources that do not parse as plain TypeScript are retried as TSX.
func NewTypeScriptGrammar() Grammar {
	return &treeSitterGrammar{
		lang:     LanguageTypeScript,
		grammars: []*sitter.Language{typescript.GetLanguage(), tsx.GetLanguage()},
		classify: classifyECMAScript,
	}
}

func classifyECMAScript(n *sitter.Node, w *walker) (*Unit, *sitter.Node, bool) {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		if w.inFunction() {
			return nil, nil, false
		}
		name := w.text(n.ChildByFieldName("name"))
		if name == "" {
			return nil, nil, false
		}
		return &Unit{Kind: KindFunction, Name: name}, n.ChildByFieldName("body"), true

	case "class_declaration", "abstract_class_declaration", "interface_declaration":
		if w.inFunction() {
			return nil, nil, false
		}
		name := w.text(n.ChildByFieldName("name"))
		if name == "" {
			return nil, nil, false
		}
		return &Unit{Kind: KindClass, Name: name}, n.ChildByFieldName("body"), true

	case "method_definition", "abstract_method_signature":
		cls := w.class()
		if cls == "" {
			return nil, nil, false
		}
		name := w.text(n.ChildByFieldName("name"))
		if name == "" {
			return nil, nil, false
		}
		return &Unit{Kind: KindMethod, Name: name, Parent: cls}, n.ChildByFieldName("body"), true

	case "lexical_declaration", "variable_declaration":
		// const handler = (req) => { ... } at file or class scope.
		if w.inFunction() {
			return nil, nil, false
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			decl := n.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			value := decl.ChildByFieldName("value")
			if value == nil {
				continue
			}
			switch value.Type() {
			case "arrow_function", "function", "function_expression":
				name := w.text(decl.ChildByFieldName("name"))
				if name == "" {
					continue
				}
				return &Unit{Kind: KindFunction, Name: name}, value.ChildByFieldName("body"), true
			}
		}
		return nil, nil, false
	}
	return nil, nil, true
}

// =============================================================================
// GO
// =============================================================================

// NewGoGrammar returns the Tree-sitter grammar for Go.
func NewGoGrammar() Grammar {
	return &treeSitterGrammar{
		lang:     LanguageGo,
		grammars: []*sitter.Language{golang.GetLanguage()},
		classify: classifyGo,
	}
}

func classifyGo(n *sitter.Node, w *walker) (*Unit, *sitter.Node, bool) {
	switch n.Type() {
	case "function_declaration":
		name := w.text(n.ChildByFieldName("name"))
		if name == "" {
			return nil, nil, false
		}
		return &Unit{Kind: KindFunction, Name: name}, n.ChildByFieldName("body"), false

	case "method_declaration":
		name := w.text(n.ChildByFieldName("name"))
		if name == "" {
			return nil, nil, false
		}
		return &Unit{
			Kind:   KindMethod,
			Name:   name,
			Parent: goReceiverType(w.text(n.ChildByFieldName("receiver"))),
		}, n.ChildByFieldName("body"), false

	case "type_declaration":
		// One unit per declaration; grouped "type ( ... )" blocks use the
		// first spec's name.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			spec := n.NamedChild(i)
			if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
				continue
			}
			name := w.text(spec.ChildByFieldName("name"))
			if name == "" {
				continue
			}
			var body *sitter.Node
			if t := spec.ChildByFieldName("type"); t != nil {
				switch t.Type() {
				case "struct_type", "interface_type":
					body = t
				}
			}
			return &Unit{Kind: KindClass, Name: name}, body, false
		}
		return nil, nil, false

	case "function_literal", "func_literal":
		return nil, nil, false
	}
	return nil, nil, true
}

// goReceiverType extracts "Server" from "(s *Server)" or "(s Server[T])".
func goReceiverType(recv string) string {
	recv = strings.Trim(strings.TrimSpace(recv), "()")
	fields := strings.Fields(recv)
	if len(fields) == 0 {
		return ""
	}
	t := strings.TrimLeft(fields[len(fields)-1], "*")
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	return t
}
