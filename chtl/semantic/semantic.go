// Copyright 2024 The CHTL Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package semantic implements the namespace/symbol-table half of spec
// section 4.4: walking a parsed Document, registering every Template,
// Custom, and Origin definition into a namespace.Namespace tree
// (descending into [Namespace] blocks), and reporting (name, kind)
// collisions as the diagnostics the spec's "duplicate definition"
// error kind describes.
package semantic

import (
	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/namespace"
)

// Unit pairs a compiled Document with the file it came from, so a
// Registry spanning several imported files can still resolve a
// Symbol's Payload back to the right Arena.
type Unit struct {
	File string
	Doc  *ast.Document
}

// Registry is the semantic model for one compilation: a namespace
// tree rooted at the unnamed global namespace, plus the set of Units
// (this file and everything it transitively imported) needed to
// dereference a Symbol's Payload NodeID.
type Registry struct {
	Root  *namespace.Namespace
	units map[string]*Unit
	diags *errors.Bag
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{Root: namespace.New(""), units: make(map[string]*Unit), diags: errors.NewBag()}
}

// Diagnostics returns every semantic diagnostic collected across every
// RegisterFile call so far.
func (r *Registry) Diagnostics() *errors.Bag { return r.diags }

// Node resolves a Symbol's Payload back to the ast.Node that defines
// it, using the Unit the symbol's File names.
func (r *Registry) Node(sym namespace.Symbol) (*ast.Node, bool) {
	u, ok := r.units[sym.File]
	if !ok || sym.Payload == ast.NilNode {
		return nil, false
	}
	return u.Doc.Arena.Get(sym.Payload), true
}

// ArenaFor returns the Arena that owns file's nodes, so a caller
// holding a Symbol can clone its Payload subtree without mixing
// NodeIDs from two different arenas.
func (r *Registry) ArenaFor(file string) (*ast.Arena, bool) {
	u, ok := r.units[file]
	if !ok {
		return nil, false
	}
	return u.Doc.Arena, true
}

// RegisterFile walks doc (which must already be frozen by the parser)
// and registers every Template/Custom/Origin/Namespace it defines,
// descending into [Namespace] blocks and accumulating diagnostics for
// any (name, kind) collision.
func (r *Registry) RegisterFile(doc *ast.Document) {
	r.units[doc.Filename] = &Unit{File: doc.Filename, Doc: doc}
	for _, id := range doc.Children {
		r.registerTopLevel(doc, r.Root, id)
	}
}

func (r *Registry) registerTopLevel(doc *ast.Document, ns *namespace.Namespace, id ast.NodeID) {
	n := doc.Arena.Get(id)
	switch n.Kind {
	case ast.KindTemplate:
		r.registerDef(doc, ns, id, n, false)
	case ast.KindCustom:
		r.registerDef(doc, ns, id, n, true)
	case ast.KindOrigin:
		if n.OriginName != "" {
			r.register(ns, namespace.Symbol{
				Name: n.OriginName, Kind: originSymbolKind(n.OriginType),
				File: doc.Filename, Line: n.Pos.Line, Col: n.Pos.Column, Payload: id,
			})
		}
	// KindNamespace falls through below.
	case ast.KindNamespace:
		child := ns.Child(n.NSName)
		for _, cid := range n.Children {
			r.registerTopLevel(doc, child, cid)
		}
	}
}

// register wraps Namespace.Register, folding a collision into the
// registry's diagnostic bag instead of propagating a Go error.
func (r *Registry) register(ns *namespace.Namespace, sym namespace.Symbol) {
	if ns == nil {
		return
	}
	if err := ns.Register(sym); err != nil {
		r.diags.Addf(errors.KindSemantic, errors.SeverityError,
			errors.Position{File: sym.File, Line: sym.Line, Column: sym.Col}, "%s", err.Error())
	}
}

func (r *Registry) registerDef(doc *ast.Document, ns *namespace.Namespace, id ast.NodeID, n *ast.Node, isCustom bool) {
	kind := defSymbolKind(n.DefKind, isCustom)
	r.register(ns, namespace.Symbol{
		Name: n.Name, Kind: kind, File: doc.Filename,
		Line: n.Pos.Line, Col: n.Pos.Column, Payload: id,
	})
}

func defSymbolKind(dk ast.DefKind, isCustom bool) namespace.SymbolKind {
	switch {
	case !isCustom && dk == ast.DefStyle:
		return namespace.TemplateStyle
	case !isCustom && dk == ast.DefElement:
		return namespace.TemplateElement
	case !isCustom && dk == ast.DefVar:
		return namespace.TemplateVar
	case isCustom && dk == ast.DefStyle:
		return namespace.CustomStyle
	case isCustom && dk == ast.DefElement:
		return namespace.CustomElement
	default:
		return namespace.CustomVar
	}
}

func originSymbolKind(originType string) namespace.SymbolKind {
	switch originType {
	case "@Html":
		return namespace.OriginHtml
	case "@Style":
		return namespace.OriginStyle
	case "@JavaScript":
		return namespace.OriginJavascript
	default:
		return namespace.OriginHtml
	}
}

// LookupStyle finds a Style Template/Custom by name, templates first.
func LookupStyle(ns *namespace.Namespace, name string) (namespace.Symbol, bool) {
	if sym, ok := ns.LookupChain(namespace.TemplateStyle, name); ok {
		return sym, true
	}
	return ns.LookupChain(namespace.CustomStyle, name)
}

// LookupElement finds an Element Template/Custom by name.
func LookupElement(ns *namespace.Namespace, name string) (namespace.Symbol, bool) {
	if sym, ok := ns.LookupChain(namespace.TemplateElement, name); ok {
		return sym, true
	}
	return ns.LookupChain(namespace.CustomElement, name)
}

// LookupVar finds a Var Template/Custom by name.
func LookupVar(ns *namespace.Namespace, name string) (namespace.Symbol, bool) {
	if sym, ok := ns.LookupChain(namespace.TemplateVar, name); ok {
		return sym, true
	}
	return ns.LookupChain(namespace.CustomVar, name)
}

// ResolveNamespacePath walks "::"/"."-qualified path segments from
// root, the same lookup a "from NS.Sub;" clause (chtl/parser's
// FromClause) names.
func ResolveNamespacePath(root *namespace.Namespace, qualified string) (*namespace.Namespace, bool) {
	return namespace.Resolve(root, namespace.SplitQualified(qualified))
}
