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

func (g *Generator) resolveElementDef(name string) (*ast.Node, *ast.Arena, bool) {
	if id, ok := g.localElementDefs[name]; ok {
		return g.arena.Get(id), g.arena, true
	}
	if g.reg != nil {
		if sym, ok := semantic.LookupElement(g.reg.Root, name); ok {
			if node, ok2 := g.reg.Node(sym); ok2 {
				if arena, ok3 := g.reg.ArenaFor(sym.File); ok3 {
					return node, arena, true
				}
			}
		}
	}
	return nil, nil, false
}

// expandElementRef inlines one @Element reference: clone the
// definition's structural children into this generator's own arena,
// apply the definition's own insert/delete specialization ops, then
// apply the use-site's deletes, inserts, and per-selector property
// overrides, in that order (section 4.5's "base, then use-site"
// specialization rule).
func (g *Generator) expandElementRef(ref *ast.Node) []ast.NodeID {
	def, srcArena, ok := g.resolveElementDef(ref.ERefName)
	if !ok {
		g.errorf(ref.Pos, "unknown @Element %q", ref.ERefName)
		return nil
	}

	var children []ast.NodeID
	for _, cid := range def.Children {
		if srcArena.Get(cid).Kind == ast.KindElement {
			children = append(children, cloneTree(srcArena, cid, g.arena))
		}
	}

	children = g.applyDeletes(children, def.DeleteOps, srcArena)
	children = g.applyInserts(children, def.InsertOps, srcArena)

	children = g.applyDeletes(children, ref.ERefDeletes, g.arena)
	children = g.applyInserts(children, ref.ERefInserts, g.arena)

	for _, spec := range ref.ERefSpecializations {
		g.applySelectorProps(children, spec.Selector, spec.Props)
	}
	return children
}

func matchIndices(children []ast.NodeID, arena *ast.Arena, target string, hasIdx bool, idx int) []int {
	var matches []int
	for i, cid := range children {
		if arena.Get(cid).Tag == target {
			matches = append(matches, i)
		}
	}
	if !hasIdx {
		return matches
	}
	if idx >= 0 && idx < len(matches) {
		return []int{matches[idx]}
	}
	return nil
}

func (g *Generator) applyDeletes(children []ast.NodeID, ops []ast.NodeID, opsArena *ast.Arena) []ast.NodeID {
	if len(ops) == 0 {
		return children
	}
	remove := make(map[int]bool)
	for _, opID := range ops {
		op := opsArena.Get(opID)
		for _, t := range op.DeleteTargets {
			for _, i := range matchIndices(children, g.arena, t, op.HasDeleteIndex, op.DeleteIndex) {
				remove[i] = true
			}
		}
	}
	if len(remove) == 0 {
		return children
	}
	var out []ast.NodeID
	for i, c := range children {
		if !remove[i] {
			out = append(out, c)
		}
	}
	return out
}

func (g *Generator) applyInserts(children []ast.NodeID, ops []ast.NodeID, opsArena *ast.Arena) []ast.NodeID {
	for _, opID := range ops {
		op := opsArena.Get(opID)
		var contents []ast.NodeID
		for _, cid := range op.InsertContents {
			contents = append(contents, cloneTree(opsArena, cid, g.arena))
		}
		switch op.InsertPosition {
		case ast.InsertAtTop:
			children = append(append([]ast.NodeID{}, contents...), children...)
		case ast.InsertAtBottom:
			children = append(append([]ast.NodeID{}, children...), contents...)
		default:
			idxs := matchIndices(children, g.arena, op.InsertSelector.Text, op.InsertSelector.HasIndex, op.InsertSelector.Index)
			if len(idxs) == 0 {
				g.errorf(op.Pos, "insert target %q not found", op.InsertSelector.Text)
				children = append(children, contents...)
				continue
			}
			i := idxs[0]
			switch op.InsertPosition {
			case ast.InsertAfter:
				children = spliceAt(children, i+1, contents)
			case ast.InsertBefore:
				children = spliceAt(children, i, contents)
			case ast.InsertReplace:
				out := append([]ast.NodeID{}, children[:i]...)
				out = append(out, contents...)
				out = append(out, children[i+1:]...)
				children = out
			}
		}
	}
	return children
}

func spliceAt(children []ast.NodeID, at int, items []ast.NodeID) []ast.NodeID {
	out := append([]ast.NodeID{}, children[:at]...)
	out = append(out, items...)
	out = append(out, children[at:]...)
	return out
}

// applySelectorProps attaches a specialization's properties to the
// matched element(s) as inline style, merging into any existing style
// attribute rather than replacing it.
func (g *Generator) applySelectorProps(children []ast.NodeID, sel ast.Selector, props []ast.Property) {
	if len(props) == 0 {
		return
	}
	var parts []string
	for _, p := range props {
		parts = append(parts, fmt.Sprintf("%s: %s;", p.Name, p.Value))
	}
	joined := strings.Join(parts, " ")

	for _, i := range matchIndices(children, g.arena, sel.Text, sel.HasIndex, sel.Index) {
		el := g.arena.Get(children[i])
		merged := false
		for _, aid := range el.Children {
			a := g.arena.Get(aid)
			if a.Kind == ast.KindAttribute && a.AttrName == "style" {
				a.AttrValue = strings.TrimSpace(a.AttrValue + " " + joined)
				merged = true
				break
			}
		}
		if !merged {
			attrID := g.arena.New(ast.KindAttribute, el.Pos)
			a := g.arena.Get(attrID)
			a.AttrName, a.AttrValue, a.AttrSep = "style", joined, ':'
			el.Children = append(el.Children, attrID)
		}
	}
}

// cloneTree deep-copies the subtree rooted at id from src into dst,
// remapping every NodeID-valued field so the clone shares no nodes
// with the original definition: a Template/Custom body must expand
// independently at every reference site.
func cloneTree(src *ast.Arena, id ast.NodeID, dst *ast.Arena) ast.NodeID {
	if id == ast.NilNode {
		return ast.NilNode
	}
	n := *src.Get(id)
	newID := dst.New(n.Kind, n.Pos)

	n.Children = cloneIDList(src, n.Children, dst)
	n.LocalStyle = cloneTree(src, n.LocalStyle, dst)
	n.LocalScript = cloneTree(src, n.LocalScript, dst)
	n.InsertContents = cloneIDList(src, n.InsertContents, dst)
	n.ERefDeletes = cloneIDList(src, n.ERefDeletes, dst)
	n.ERefInserts = cloneIDList(src, n.ERefInserts, dst)
	n.InsertOps = cloneIDList(src, n.InsertOps, dst)
	n.DeleteOps = cloneIDList(src, n.DeleteOps, dst)
	n.IndexElement = cloneTree(src, n.IndexElement, dst)

	*dst.Get(newID) = n
	return newID
}

func cloneIDList(src *ast.Arena, ids []ast.NodeID, dst *ast.Arena) []ast.NodeID {
	if ids == nil {
		return nil
	}
	out := make([]ast.NodeID, len(ids))
	for i, id := range ids {
		out[i] = cloneTree(src, id, dst)
	}
	return out
}
