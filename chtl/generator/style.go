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

package generator

import (
	"fmt"
	"strings"

	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/semantic"
)

// processLocalStyle walks one StyleBlock, assigning disambiguated
// auto-class/auto-id names (section 4.7's auto-name counters), hoisting
// selector rules to the CSS stream, and returning the names to merge
// into the owning element's class/id attributes plus any inline
// prop:value pairs for its style attribute.
func (g *Generator) processLocalStyle(styleID ast.NodeID, ownerTag string) (classes, ids, inlineParts []string) {
	sb := g.arena.Get(styleID)

	assignedClass := make(map[string]string)
	assignedID := make(map[string]string)

	getClass := func(base string) string {
		if v, ok := assignedClass[base]; ok {
			return v
		}
		v := g.nextName(g.classCounts, base)
		assignedClass[base] = v
		classes = append(classes, v)
		g.allClasses = append(g.allClasses, v)
		return v
	}
	getID := func(base string) string {
		if v, ok := assignedID[base]; ok {
			return v
		}
		v := g.nextName(g.idCounts, base)
		assignedID[base] = v
		ids = append(ids, v)
		g.allIDs = append(g.allIDs, v)
		return v
	}

	for _, p := range sb.InlineProps {
		inlineParts = append(inlineParts, fmt.Sprintf("%s: %s;", p.Name, p.Value))
	}

	firstAutoName := ownerTag
	if firstAutoName == "" {
		firstAutoName = ":root" // a global style block has no owning element
	}
	if len(sb.AutoClasses) > 0 {
		firstAutoName = "." + getClass(sb.AutoClasses[0])
	} else if len(sb.AutoIDs) > 0 {
		firstAutoName = "#" + getID(sb.AutoIDs[0])
	}

	for _, cid := range sb.Children {
		cn := g.arena.Get(cid)
		switch cn.Kind {
		case ast.KindStyleRule:
			g.emitStyleRule(cn, firstAutoName, getClass, getID)
		case ast.KindStyleReference:
			props := g.expandStyleRef(cn)
			for _, p := range props {
				inlineParts = append(inlineParts, fmt.Sprintf("%s: %s;", p.Name, p.Value))
			}
		case ast.KindVarReference:
			if cn.VRefHasCall {
				if v, ok := g.resolveVarValueOK(cn.VRefGroup, cn.VRefCall); ok {
					inlineParts = append(inlineParts, fmt.Sprintf("%s: %s;", cn.VRefCall, v))
				} else {
					g.errorf(cn.Pos, "unknown @Var %s(%s)", cn.VRefGroup, cn.VRefCall)
				}
			} else {
				g.warnf(cn.Pos, "@Var %s reference without a member call produces no output", cn.VRefGroup)
			}
		}
	}
	return classes, ids, inlineParts
}

func (g *Generator) nextName(counts map[string]int, base string) string {
	counts[base]++
	n := counts[base]
	if n == 1 {
		return base
	}
	return fmt.Sprintf("%s%d", base, n)
}

func (g *Generator) emitStyleRule(cn *ast.Node, firstAutoName string, getClass, getID func(string) string) {
	var selector string
	switch cn.SelectorKind {
	case ast.SelectorClass:
		selector = "." + getClass(cn.Selector)
	case ast.SelectorID:
		selector = "#" + getID(cn.Selector)
	case ast.SelectorAmpersand:
		if idx := strings.Index(cn.Selector, ":"); idx >= 0 {
			selector = firstAutoName + cn.Selector[idx:]
		} else {
			selector = firstAutoName
		}
	default:
		selector = cn.Selector
	}
	var lines []string
	for _, p := range cn.Properties {
		lines = append(lines, fmt.Sprintf("%s: %s;", p.Name, p.Value))
	}
	g.cssRules = append(g.cssRules, fmt.Sprintf("%s { %s }", selector, strings.Join(lines, " ")))
}

// ---- @Style / @Var resolution ----

func (g *Generator) resolveStyleDef(name string) (*ast.Node, bool) {
	if id, ok := g.localStyleDefs[name]; ok {
		return g.arena.Get(id), true
	}
	if g.reg != nil {
		if sym, ok := semantic.LookupStyle(g.reg.Root, name); ok {
			if node, ok2 := g.reg.Node(sym); ok2 {
				return node, true
			}
		}
	}
	return nil, false
}

func (g *Generator) resolveVarDef(name string) (*ast.Node, bool) {
	if id, ok := g.localVarDefs[name]; ok {
		return g.arena.Get(id), true
	}
	if g.reg != nil {
		if sym, ok := semantic.LookupVar(g.reg.Root, name); ok {
			if node, ok2 := g.reg.Node(sym); ok2 {
				return node, true
			}
		}
	}
	return nil, false
}

func (g *Generator) resolveVarValueOK(group, member string) (string, bool) {
	def, ok := g.resolveVarDef(group)
	if !ok {
		return "", false
	}
	for _, e := range def.VarEntries {
		if e.Name == member {
			return e.Value, true
		}
	}
	return "", false
}

// expandStyleRef flattens one @Style reference node (inheritance,
// value-less property fills, deletes, and overrides) into a property
// list ready to splice into an inline style attribute.
func (g *Generator) expandStyleRef(ref *ast.Node) []ast.Property {
	return g.expandStyleByName(ref.RefTarget, ref.Overrides, ref.DeletedProperties, nil, ref.Pos)
}

func (g *Generator) expandStyleByName(name string, overrides []ast.Property, deletes []string, visiting map[string]bool, pos ast.Pos) []ast.Property {
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	if visiting[name] {
		g.errorf(pos, "cyclic @Style inheritance involving %q", name)
		return nil
	}
	def, ok := g.resolveStyleDef(name)
	if !ok {
		g.errorf(pos, "unknown @Style %q", name)
		return nil
	}
	visiting[name] = true
	defer delete(visiting, name)

	var props []ast.Property
	for _, inh := range def.Inherits {
		if deletesInheritance(deletes, inh.Name) {
			continue
		}
		props = append(props, g.expandStyleByName(inh.Name, nil, nil, visiting, def.Pos)...)
	}

	valuelessNames := make(map[string]bool)
	for _, p := range def.Properties {
		if p.IsValueless {
			valuelessNames[p.Name] = true
			if v, ok := findOverrideValue(overrides, p.Name); ok {
				props = append(props, ast.Property{Name: p.Name, Value: v})
			} else {
				g.errorf(def.Pos, "custom style %q property %q has no value and none was supplied at the use site", name, p.Name)
			}
			continue
		}
		props = append(props, p)
	}

	props = removeNamed(props, deletes)
	props = applyOverrides(props, overrides, valuelessNames)
	return props
}

func deletesInheritance(deletes []string, base string) bool {
	for _, d := range deletes {
		if d == "@Style:"+base {
			return true
		}
	}
	return false
}

func findOverrideValue(overrides []ast.Property, name string) (string, bool) {
	for _, o := range overrides {
		if o.Name == name {
			return o.Value, true
		}
	}
	return "", false
}

func removeNamed(props []ast.Property, deletes []string) []ast.Property {
	if len(deletes) == 0 {
		return props
	}
	skip := make(map[string]bool, len(deletes))
	for _, d := range deletes {
		if !strings.HasPrefix(d, "@Style:") {
			skip[d] = true
		}
	}
	if len(skip) == 0 {
		return props
	}
	var out []ast.Property
	for _, p := range props {
		if !skip[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

func applyOverrides(props []ast.Property, overrides []ast.Property, valuelessNames map[string]bool) []ast.Property {
	for _, ov := range overrides {
		if valuelessNames[ov.Name] {
			continue
		}
		replaced := false
		for i := range props {
			if props[i].Name == ov.Name {
				props[i] = ov
				replaced = true
				break
			}
		}
		if !replaced {
			props = append(props, ov)
		}
	}
	return props
}
