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

// Package constraint implements the context-sensitive syntax
// constrainer from spec section 4.5: each AST context (global style,
// local style, global script, local script, element body, template
// body) has a whitelist of construct kinds it permits, universally
// allowed constructs (generator comments, origin embeds) pass
// everywhere, and an [Except] node narrows a context's whitelist,
// forbidding the named constructs for the remainder of its enclosing
// scope.
package constraint

import (
	"fmt"
	"sort"

	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/state"
)

// Construct is one constrainable syntax category. A context's
// whitelist is a set of these, independent of AST Kind so that, e.g.,
// both "@Style reference" and "inline property" can be distinguished
// within the same StyleBlock node.
type Construct int

const (
	ConstructElement Construct = iota
	ConstructText
	ConstructInlineProperty
	ConstructStyleRule
	ConstructStyleReference
	ConstructVarReference
	ConstructLocalStyleBlock
	ConstructLocalScriptBlock
	ConstructTemplateRef
	ConstructCustomRef
	ConstructOrigin
	ConstructImport
	ConstructNamespace
	ConstructConfiguration
	ConstructExcept
	ConstructComment
	ConstructDelete
	ConstructInsert
	ConstructInherit
)

var constructNames = map[Construct]string{
	ConstructElement:          "element",
	ConstructText:             "text block",
	ConstructInlineProperty:   "inline property",
	ConstructStyleRule:        "style rule",
	ConstructStyleReference:   "@Style reference",
	ConstructVarReference:     "@Var reference",
	ConstructLocalStyleBlock:  "local style block",
	ConstructLocalScriptBlock: "local script block",
	ConstructTemplateRef:      "@Element reference",
	ConstructCustomRef:        "@Element reference",
	ConstructOrigin:           "[Origin] block",
	ConstructImport:           "[Import]",
	ConstructNamespace:        "[Namespace]",
	ConstructConfiguration:    "[Configuration]",
	ConstructExcept:           "except",
	ConstructComment:          "comment",
	ConstructDelete:           "delete",
	ConstructInsert:           "insert",
	ConstructInherit:          "inherit",
}

func (c Construct) String() string {
	if s, ok := constructNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Construct(%d)", int(c))
}

// universallyAllowed holds across every context per section 4.5: a
// generator comment or an [Origin] pass-through block can appear
// anywhere a statement can.
var universallyAllowed = map[Construct]bool{
	ConstructComment: true,
	ConstructOrigin:  true,
}

// baseWhitelist is the default table, keyed by state.ScopeKind, before
// any [Except] augmentation.
var baseWhitelist = map[state.ScopeKind]map[Construct]bool{
	state.ScopeGlobal: {
		ConstructElement:       true,
		ConstructTemplateRef:   true,
		ConstructImport:        true,
		ConstructNamespace:     true,
		ConstructConfiguration: true,
	},
	state.ScopeElement: {
		ConstructElement:          true,
		ConstructText:             true,
		ConstructInlineProperty:   true, // attributes
		ConstructTemplateRef:      true,
		ConstructLocalStyleBlock:  true,
		ConstructLocalScriptBlock: true,
		ConstructExcept:           true,
	},
	state.ScopeStyleBlock: {
		ConstructStyleRule:      true,
		ConstructStyleReference: true,
		ConstructVarReference:   true,
		ConstructInlineProperty: true,
		ConstructInherit:        true,
		ConstructDelete:         true,
	},
	state.ScopeScriptBlock: {
		// Raw script bodies are opaque to the CHTL parser; the
		// constrainer only ever sees a ConstructLocalScriptBlock node
		// as a whole, never its interior, so this whitelist is empty
		// by construction and exists for table completeness.
	},
	state.ScopeTemplate: {
		ConstructInherit:        true,
		ConstructInlineProperty: true,
		ConstructElement:        true,
		ConstructTemplateRef:    true,
		ConstructText:           true,
	},
	state.ScopeCustom: {
		ConstructInherit:        true,
		ConstructInlineProperty: true,
		ConstructElement:        true,
		ConstructTemplateRef:    true,
		ConstructText:           true,
		ConstructDelete:         true,
		ConstructInsert:         true,
	},
	state.ScopeNamespace: {
		ConstructElement:       true,
		ConstructTemplateRef:   true,
		ConstructImport:        true,
		ConstructNamespace:     true,
		ConstructConfiguration: true,
	},
}

// Violation is a single whitelist violation.
type Violation struct {
	Scope      state.ScopeKind
	Construct  Construct
	Pos        ast.Pos
	Suggestion string
}

// Checker walks an already-parsed AST re-deriving the same scope stack
// the parser built (state.Manager is stateless between runs, so the
// checker pushes/pops its own), checking each node kind against the
// current scope's effective whitelist.
type Checker struct {
	arena  *ast.Arena
	sm     *state.Manager
	diags  *errors.Bag
	forbid map[state.ScopeKind]map[Construct]bool // accumulated per-scope-kind except narrowing
}

// NewChecker returns a Checker over doc's arena.
func NewChecker(arena *ast.Arena) *Checker {
	return &Checker{
		arena:  arena,
		sm:     state.NewManager(),
		diags:  errors.NewBag(),
		forbid: make(map[state.ScopeKind]map[Construct]bool),
	}
}

// Diagnostics returns constraint violations found during Check.
func (c *Checker) Diagnostics() *errors.Bag { return c.diags }

// effectiveWhitelist is the base whitelist for kind with any [Except]
// narrowing recorded for it subtracted out.
func (c *Checker) effectiveWhitelist(kind state.ScopeKind) map[Construct]bool {
	base := baseWhitelist[kind]
	forbidden := c.forbid[kind]
	if len(forbidden) == 0 {
		return base
	}
	merged := make(map[Construct]bool, len(base))
	for k, v := range base {
		if forbidden[k] {
			continue
		}
		merged[k] = v
	}
	return merged
}

// forbidConstruct records that construct becomes forbidden in scope
// kind for the remainder of the enclosing scope (visit drops the
// record when it leaves the node that opened that scope): section 4.5 states except
// "augments the default rules with additional forbidden items", i.e.
// it narrows the whitelist, never widens it.
func (c *Checker) forbidConstruct(kind state.ScopeKind, constructs ...Construct) {
	m, ok := c.forbid[kind]
	if !ok {
		m = make(map[Construct]bool)
		c.forbid[kind] = m
	}
	for _, ct := range constructs {
		m[ct] = true
	}
}

// check reports a violation unless construct is universally allowed or
// present in the current scope's effective whitelist.
func (c *Checker) check(constructKind Construct, pos ast.Pos, scopeKind state.ScopeKind) {
	if universallyAllowed[constructKind] {
		return
	}
	if c.effectiveWhitelist(scopeKind)[constructKind] {
		return
	}
	c.diags.Addf(errors.KindConstraint, errors.SeverityWarning,
		errors.Position{Line: pos.Line, Column: pos.Column, Offset: pos.Offset},
		"%s is not allowed in %s context", constructKind, scopeKind)
}

// Check walks every child of doc and reports whitelist violations.
func (c *Checker) Check(doc *ast.Document) {
	guard := c.sm.PushScope(state.ScopeGlobal, "", ast.NilNode)
	defer guard.Release()
	for _, id := range doc.Children {
		c.visit(id)
	}
}

func (c *Checker) visit(id ast.NodeID) {
	if id == ast.NilNode {
		return
	}
	n := c.arena.Get(id)
	scope := c.sm.CurrentScope().Kind

	// A node that opens a scope restores, once its subtree is checked,
	// the except narrowing that was in effect before it.
	switch n.Kind {
	case ast.KindElement, ast.KindStyleBlock, ast.KindTemplate, ast.KindCustom, ast.KindNamespace:
		saved := make(map[state.ScopeKind]map[Construct]bool, len(c.forbid))
		for k, m := range c.forbid {
			cp := make(map[Construct]bool, len(m))
			for ct, v := range m {
				cp[ct] = v
			}
			saved[k] = cp
		}
		defer func() { c.forbid = saved }()
	}

	switch n.Kind {
	case ast.KindElement:
		c.check(ConstructElement, n.Pos, scope)
		guard := c.sm.PushScope(state.ScopeElement, n.Tag, id)
		for _, child := range n.Children {
			c.visit(child)
		}
		if n.LocalStyle != ast.NilNode {
			c.check(ConstructLocalStyleBlock, n.Pos, state.ScopeElement)
			c.visit(n.LocalStyle)
		}
		if n.LocalScript != ast.NilNode {
			c.check(ConstructLocalScriptBlock, n.Pos, state.ScopeElement)
		}
		guard.Release()
	case ast.KindText:
		c.check(ConstructText, n.Pos, scope)
	case ast.KindAttribute:
		c.check(ConstructInlineProperty, n.Pos, scope)
	case ast.KindStyleBlock:
		kind := state.ScopeStyleBlock
		guard := c.sm.PushScope(kind, "", id)
		for _, prop := range n.InlineProps {
			c.check(ConstructInlineProperty, prop.Pos, kind)
		}
		for _, child := range n.Children {
			c.visit(child)
		}
		guard.Release()
	case ast.KindStyleRule:
		c.check(ConstructStyleRule, n.Pos, scope)
	case ast.KindStyleReference:
		c.check(ConstructStyleReference, n.Pos, scope)
	case ast.KindVarReference:
		c.check(ConstructVarReference, n.Pos, scope)
	case ast.KindTemplate:
		kind := state.ScopeTemplate
		if n.DefKind == ast.DefElement {
			kind = state.ScopeElement
		}
		guard := c.sm.PushScope(kind, n.Name, id)
		for _, child := range n.Children {
			c.visit(child)
		}
		guard.Release()
	case ast.KindCustom:
		kind := state.ScopeCustom
		guard := c.sm.PushScope(kind, n.Name, id)
		for _, child := range n.Children {
			c.visit(child)
		}
		guard.Release()
	case ast.KindElementReference:
		c.check(ConstructTemplateRef, n.Pos, scope)
	case ast.KindImport:
		c.check(ConstructImport, n.Pos, scope)
	case ast.KindNamespace:
		guard := c.sm.PushScope(state.ScopeNamespace, n.NSName, id)
		for _, child := range n.Children {
			c.visit(child)
		}
		guard.Release()
	case ast.KindConfiguration:
		c.check(ConstructConfiguration, n.Pos, scope)
	case ast.KindOrigin:
		// Universally allowed; still recurse for nested children none
		// of which exist today (raw bodies are opaque), kept for
		// forward compatibility with structured origin bodies.
	case ast.KindExcept:
		c.check(ConstructExcept, n.Pos, scope)
		c.applyExcept(n, scope)
	case ast.KindComment:
		// universally allowed
	case ast.KindDelete:
		c.check(ConstructDelete, n.Pos, scope)
	case ast.KindInsert:
		c.check(ConstructInsert, n.Pos, scope)
		for _, child := range n.InsertContents {
			c.visit(child)
		}
	}
}

// applyExcept narrows the current scope's whitelist for the remainder
// of the enclosing scope, per the specific except-target kind.
func (c *Checker) applyExcept(n *ast.Node, scope state.ScopeKind) {
	switch n.ConstraintKind {
	case ast.ExceptGlobal:
		// "except global;" forbids every construct for the rest of the
		// scope, leaving only the universally-allowed constructs
		// (comments, origin blocks) still permitted.
		all := make([]Construct, 0, len(constructNames))
		for k := range constructNames {
			all = append(all, k)
		}
		sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
		c.forbidConstruct(scope, all...)
	case ast.ExceptType:
		for _, t := range n.Targets {
			switch t {
			case "[Template]":
				c.forbidConstruct(scope, ConstructTemplateRef)
			case "[Custom]":
				c.forbidConstruct(scope, ConstructCustomRef, ConstructDelete, ConstructInsert)
			}
		}
	case ast.ExceptElement:
		c.forbidConstruct(scope, ConstructElement)
	case ast.ExceptSpecific:
		c.forbidConstruct(scope, ConstructTemplateRef, ConstructCustomRef)
	}
}
