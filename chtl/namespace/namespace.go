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

// Package namespace implements the symbol table and namespace tree
// from spec sections 3.3 and 4.4: a namespace owns child namespaces
// and symbols, symbols are unique per (name, kind), and two same-named
// namespaces merge only if none of their symbols collide.
package namespace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/armon/go-radix"
	"github.com/chtl-lang/chtl/chtl/ast"
)

// SymbolKind enumerates what a Symbol names.
type SymbolKind int

const (
	TemplateStyle SymbolKind = iota
	TemplateElement
	TemplateVar
	CustomStyle
	CustomElement
	CustomVar
	OriginHtml
	OriginStyle
	OriginJavascript
	NamespaceSymbol
)

func (k SymbolKind) String() string {
	return [...]string{
		"TemplateStyle", "TemplateElement", "TemplateVar",
		"CustomStyle", "CustomElement", "CustomVar",
		"OriginHtml", "OriginStyle", "OriginJavascript", "Namespace",
	}[k]
}

// Symbol is one registered definition.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Qualified  string // fully-qualified name, joined with "::"
	File       string
	Line, Col  int
	Payload    ast.NodeID // the defining node
}

// key is the (name, kind) uniqueness key radix.Tree requires as a
// string; kind is prefixed so that "foo" TemplateStyle and "foo"
// CustomStyle never collide with each other by accident of formatting.
func key(kind SymbolKind, name string) string {
	return fmt.Sprintf("%02d:%s", int(kind), name)
}

// Namespace is a named scope of definitions and child namespaces.
type Namespace struct {
	Name     string
	Parent   *Namespace
	Children map[string]*Namespace
	symbols  *radix.Tree
}

// New returns a root (parentless) namespace named name ("" for the
// unnamed global namespace).
func New(name string) *Namespace {
	return &Namespace{Name: name, Children: make(map[string]*Namespace), symbols: radix.New()}
}

// Qualified returns the "::"-joined fully-qualified name of ns.
func (ns *Namespace) Qualified() string {
	if ns.Parent == nil || ns.Parent.Name == "" {
		return ns.Name
	}
	parent := ns.Parent.Qualified()
	if parent == "" {
		return ns.Name
	}
	return parent + "::" + ns.Name
}

// Child returns (creating if absent) the child namespace named name.
func (ns *Namespace) Child(name string) *Namespace {
	if c, ok := ns.Children[name]; ok {
		return c
	}
	c := New(name)
	c.Parent = ns
	ns.Children[name] = c
	return c
}

// ConflictError reports a (name, kind) collision within one namespace.
type ConflictError struct {
	Namespace string
	Name      string
	Kind      SymbolKind
	PriorFile string
	PriorLine, PriorCol int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already defined in namespace %q (previous definition at %s:%d:%d)",
		e.Kind, e.Name, e.Namespace, e.PriorFile, e.PriorLine, e.PriorCol)
}

// Register adds sym to ns, failing with a ConflictError naming the
// prior definition's site if (sym.Name, sym.Kind) already exists.
func (ns *Namespace) Register(sym Symbol) error {
	k := key(sym.Kind, sym.Name)
	if v, ok := ns.symbols.Get(k); ok {
		prior := v.(Symbol)
		return &ConflictError{
			Namespace: ns.Qualified(), Name: sym.Name, Kind: sym.Kind,
			PriorFile: prior.File, PriorLine: prior.Line, PriorCol: prior.Col,
		}
	}
	sym.Qualified = joinQualified(ns.Qualified(), sym.Name)
	ns.symbols.Insert(k, sym)
	return nil
}

func joinQualified(nsQualified, name string) string {
	if nsQualified == "" {
		return name
	}
	return nsQualified + "::" + name
}

// Lookup finds a symbol of the given kind directly in ns (not parents).
func (ns *Namespace) Lookup(kind SymbolKind, name string) (Symbol, bool) {
	v, ok := ns.symbols.Get(key(kind, name))
	if !ok {
		return Symbol{}, false
	}
	return v.(Symbol), true
}

// LookupChain finds a symbol in ns, then its ancestors, outward.
func (ns *Namespace) LookupChain(kind SymbolKind, name string) (Symbol, bool) {
	for n := ns; n != nil; n = n.Parent {
		if sym, ok := n.Lookup(kind, name); ok {
			return sym, true
		}
	}
	return Symbol{}, false
}

// Suggestions returns up to limit symbol names in ns whose key shares
// the given prefix, sorted, for "did you mean" diagnostics; this is
// the namespace's one real use of the radix tree's ordered walk beyond
// plain lookup.
func (ns *Namespace) Suggestions(kind SymbolKind, prefix string, limit int) []string {
	var out []string
	ns.symbols.WalkPrefix(key(kind, prefix), func(k string, v interface{}) bool {
		out = append(out, v.(Symbol).Name)
		return len(out) >= limit
	})
	sort.Strings(out)
	return out
}

// All returns every symbol registered directly in ns, sorted by key for
// determinism (debug dumps, golden tests).
func (ns *Namespace) All() []Symbol {
	var out []Symbol
	ns.symbols.Walk(func(k string, v interface{}) bool {
		out = append(out, v.(Symbol))
		return false
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Merge merges other into ns in place. It succeeds (returning a nil
// error slice) iff no symbol in other collides with one already in ns;
// otherwise ns is left unchanged and every collision is reported.
func Merge(ns, other *Namespace) []error {
	if ns.Name != other.Name {
		return []error{fmt.Errorf("cannot merge namespace %q into %q: name mismatch", other.Name, ns.Name)}
	}
	var conflicts []error
	other.symbols.Walk(func(k string, v interface{}) bool {
		sym := v.(Symbol)
		if prior, ok := ns.symbols.Get(k); ok {
			p := prior.(Symbol)
			conflicts = append(conflicts, &ConflictError{
				Namespace: ns.Qualified(), Name: sym.Name, Kind: sym.Kind,
				PriorFile: p.File, PriorLine: p.Line, PriorCol: p.Col,
			})
		}
		return false
	})
	if len(conflicts) > 0 {
		return conflicts
	}
	other.symbols.Walk(func(k string, v interface{}) bool {
		ns.symbols.Insert(k, v)
		return false
	})
	for name, child := range other.Children {
		if existing, ok := ns.Children[name]; ok {
			if errs := Merge(existing, child); len(errs) > 0 {
				conflicts = append(conflicts, errs...)
			}
		} else {
			child.Parent = ns
			ns.Children[name] = child
		}
	}
	return conflicts
}

// SplitQualified splits a "::"- or "."-joined qualified name into its
// path segments, both separators accepted on input per section 4.4.
func SplitQualified(qualified string) []string {
	s := strings.ReplaceAll(qualified, "::", ".")
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// Resolve walks from root through the given path segments, returning
// the namespace at the end, or false if any segment is missing.
func Resolve(root *Namespace, path []string) (*Namespace, bool) {
	n := root
	for _, seg := range path {
		c, ok := n.Children[seg]
		if !ok {
			return nil, false
		}
		n = c
	}
	return n, true
}
