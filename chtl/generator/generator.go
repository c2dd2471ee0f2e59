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

// Package generator implements the CHTL generator from spec section
// 4.7: it walks a frozen Document, expanding templates and customs,
// resolving @Var references, applying the local-style auto-class/id
// rule, lowering CHTL-JS inside script bodies, and assembling the
// three HTML/CSS/JS output streams.
package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/scanner"
	"github.com/chtl-lang/chtl/chtl/semantic"
)

// RawCSSCompiler is the narrow interface section 1 reserves for "ANTLR
// based secondary compilers for raw CSS": the generator never parses
// CSS itself, it only ever delegates an opaque pass-through fragment
// to one when an [Origin] @Style block names a non-native sub-type
// (the only one wired by default is "scss", via DartSassCompiler).
type RawCSSCompiler interface {
	CompileSCSS(src string) (string, error)
}

// Options tunes generation. All are independent toggles (section 4.7).
type Options struct {
	FullDocument   bool
	Pretty         bool
	Minify         bool
	Title          string
	RawCSSCompiler RawCSSCompiler
}

// Output is the per-compilation generation result (section 6.3).
type Output struct {
	Success     bool
	HTML        string
	CSS         string
	JS          string
	Classes     []string
	IDs         []string
	Diagnostics *errors.Bag
}

// Generator walks one Document's arena, expanding templates/customs
// and assembling HTML/CSS/JS. A Generator is single-use: call
// Generate once and discard it.
type Generator struct {
	doc   *ast.Document
	arena *ast.Arena
	opts  Options
	reg   *semantic.Registry

	localStyleDefs   map[string]ast.NodeID
	localElementDefs map[string]ast.NodeID
	localVarDefs     map[string]ast.NodeID

	originTypeTargets map[string]string // custom [OriginType] tag -> "html"|"style"|"javascript"

	diags *errors.Bag

	// loweredScripts caches lowerCHTLJS output by the sanitized script
	// content's hash, so a template expanded into many elements lowers
	// its script body's CHTL-JS exactly once.
	loweredScripts *scanner.FragmentCache[string]

	htmlOut  strings.Builder
	cssRules []string
	jsBlocks []string

	classCounts map[string]int
	idCounts    map[string]int
	allClasses  []string
	allIDs      []string
}

// New returns a Generator over doc using only doc's own
// Template/Custom/Origin definitions (no cross-file symbols).
func New(doc *ast.Document, opts Options) *Generator {
	g := &Generator{
		doc: doc, arena: doc.Arena, opts: opts,
		diags:             errors.NewBag(),
		originTypeTargets: make(map[string]string),
		classCounts:       make(map[string]int),
		idCounts:          make(map[string]int),
		loweredScripts:    scanner.NewFragmentCache[string](),
	}
	g.buildLocalIndex()
	g.collectConfiguration()
	return g
}

// WithRegistry attaches a semantic.Registry (the entry file plus every
// file it transitively imported, already merged) so @Style/@Element/
// @Var references can resolve across file boundaries. Names already
// satisfied by doc's own definitions still take precedence.
func (g *Generator) WithRegistry(reg *semantic.Registry) *Generator {
	g.reg = reg
	return g
}

func (g *Generator) buildLocalIndex() {
	g.localStyleDefs = make(map[string]ast.NodeID)
	g.localElementDefs = make(map[string]ast.NodeID)
	g.localVarDefs = make(map[string]ast.NodeID)
	var walk func(ids []ast.NodeID)
	walk = func(ids []ast.NodeID) {
		for _, id := range ids {
			n := g.arena.Get(id)
			switch n.Kind {
			case ast.KindTemplate, ast.KindCustom:
				switch n.DefKind {
				case ast.DefStyle:
					g.localStyleDefs[n.Name] = id
				case ast.DefElement:
					g.localElementDefs[n.Name] = id
				case ast.DefVar:
					g.localVarDefs[n.Name] = id
				}
			case ast.KindNamespace:
				walk(n.Children)
			}
		}
	}
	walk(g.doc.Children)
}

// collectConfiguration folds any top-level [Configuration].[OriginType]
// rebindings into originTypeTargets, so a bare Generator (no compiler
// wiring) still routes custom origin tags the way section 3.5 intends.
func (g *Generator) collectConfiguration() {
	for _, id := range g.doc.Children {
		n := g.arena.Get(id)
		if n.Kind != ast.KindConfiguration {
			continue
		}
		for tag, target := range n.ConfigOriginTypeBlock {
			g.originTypeTargets[tag] = target
		}
	}
}

func toPosition(p ast.Pos) errors.Position {
	return errors.Position{Line: p.Line, Column: p.Column, Offset: p.Offset}
}

func (g *Generator) errorf(pos ast.Pos, format string, args ...any) {
	g.diags.Addf(errors.KindSemantic, errors.SeverityError, toPosition(pos), format, args...)
}

func (g *Generator) warnf(pos ast.Pos, format string, args ...any) {
	g.diags.Addf(errors.KindSemantic, errors.SeverityWarning, toPosition(pos), format, args...)
}

// Generate runs the full generation pass and returns the three output
// streams, the generated class/id sets, and accumulated diagnostics.
func (g *Generator) Generate() *Output {
	for _, id := range g.doc.Children {
		g.emitTopLevel(id)
	}

	html := g.htmlOut.String()
	css := strings.Join(g.cssRules, "\n")
	js := strings.Join(g.jsBlocks, "\n")

	if g.opts.Minify {
		css = minifyCSS(css)
		js = minifyJS(js)
	}
	if g.opts.FullDocument {
		html = wrapDocument(html, css, js, g.opts.Title)
	}

	classes := append([]string(nil), g.allClasses...)
	ids := append([]string(nil), g.allIDs...)
	sort.Strings(classes)
	sort.Strings(ids)

	return &Output{
		Success:     !g.diags.ShouldAbort(),
		HTML:        html,
		CSS:         css,
		JS:          js,
		Classes:     classes,
		IDs:         ids,
		Diagnostics: g.diags,
	}
}

func wrapDocument(html, css, js, title string) string {
	return fmt.Sprintf(
		`<!DOCTYPE html><html><head><meta charset="UTF-8"> <meta name="viewport" content="width=device-width, initial-scale=1"> <title>%s</title> <style>%s</style></head> <body>%s<script>%s</script></body></html>`,
		EscapeText(title), css, html, js)
}

// emitTopLevel handles one Document child: elements render directly,
// comments/origins pass through, templates/customs/namespaces/imports/
// configuration contribute no direct output of their own.
func (g *Generator) emitTopLevel(id ast.NodeID) {
	n := g.arena.Get(id)
	switch n.Kind {
	case ast.KindElement:
		g.renderElement(id)
	case ast.KindComment:
		if n.CommentKind == ast.CommentGenerator {
			g.htmlOut.WriteString("<!--" + n.CommentText + "-->")
		}
	case ast.KindOrigin:
		g.emitOrigin(n)
	case ast.KindStyleBlock:
		g.emitGlobalStyle(id)
	case ast.KindScriptBlock:
		g.emitGlobalScript(id)
	case ast.KindNamespace:
		for _, c := range n.Children {
			g.emitTopLevel(c)
		}
	}
}

func (g *Generator) emitOrigin(n *ast.Node) {
	switch n.OriginType {
	case "@Html":
		g.htmlOut.WriteString(n.OriginRaw)
	case "@Style":
		if n.OriginName == "scss" {
			if g.opts.RawCSSCompiler == nil {
				g.warnf(n.Pos, "[Origin] @Style scss block found but no RawCSSCompiler is configured; emitting verbatim")
				g.cssRules = append(g.cssRules, n.OriginRaw)
				return
			}
			css, err := g.opts.RawCSSCompiler.CompileSCSS(n.OriginRaw)
			if err != nil {
				g.errorf(n.Pos, "compiling scss origin block: %s", err)
				return
			}
			g.cssRules = append(g.cssRules, css)
			return
		}
		g.cssRules = append(g.cssRules, n.OriginRaw)
	case "@JavaScript":
		g.jsBlocks = append(g.jsBlocks, n.OriginRaw)
	default:
		switch g.originTypeTargets[n.OriginType] {
		case "style":
			g.cssRules = append(g.cssRules, n.OriginRaw)
		case "javascript":
			g.jsBlocks = append(g.jsBlocks, n.OriginRaw)
		default:
			g.htmlOut.WriteString(fmt.Sprintf("<!-- %s -->%s", n.OriginType, n.OriginRaw))
		}
	}
}

// ---- Element / text rendering ----

func (g *Generator) renderElement(id ast.NodeID) {
	n := g.arena.Get(id)

	// A "text" element is the synthetic wrapper parseDefBodyMember uses
	// to carry a text{} block inside a Template/Custom element body; it
	// never renders as a literal <text> tag.
	if n.Tag == "text" {
		for _, c := range n.Children {
			if cn := g.arena.Get(c); cn.Kind == ast.KindText {
				g.htmlOut.WriteString(EscapeText(cn.TextContent))
			}
		}
		return
	}

	attrs := newOrderedAttrs()
	var content []ast.NodeID
	for _, c := range n.Children {
		cn := g.arena.Get(c)
		if cn.Kind == ast.KindAttribute {
			attrs.set(cn.AttrName, cn.AttrValue)
			continue
		}
		content = append(content, c)
	}

	if n.LocalStyle != ast.NilNode {
		classes, ids, inlineParts := g.processLocalStyle(n.LocalStyle, n.Tag)
		if len(classes) > 0 {
			merged := mergeDedup(splitSpace(attrs.get("class")), classes)
			attrs.set("class", strings.Join(merged, " "))
		}
		if len(ids) > 0 {
			if attrs.get("id") == "" {
				attrs.set("id", ids[0])
			}
			if len(ids) > 1 {
				g.warnf(n.Pos, "element %q local style block defines more than one id selector; only the first became the id attribute", n.Tag)
			}
		}
		if len(inlineParts) > 0 {
			joined := strings.Join(inlineParts, " ")
			if existing := attrs.get("style"); existing != "" {
				joined = existing + " " + joined
			}
			attrs.set("style", joined)
		}
	}

	g.htmlOut.WriteByte('<')
	g.htmlOut.WriteString(n.Tag)
	for _, kv := range attrs.ordered() {
		fmt.Fprintf(&g.htmlOut, " %s=\"%s\"", kv.Key, EscapeAttr(kv.Value))
	}

	if n.SelfClosing || IsVoidElement(n.Tag) {
		g.htmlOut.WriteString(" />")
		return
	}
	g.htmlOut.WriteByte('>')

	for _, cid := range content {
		g.renderContentNode(cid)
	}
	if n.LocalScript != ast.NilNode {
		g.renderLocalScript(n.LocalScript, n.Tag)
	}

	fmt.Fprintf(&g.htmlOut, "</%s>", n.Tag)
}

func (g *Generator) renderContentNode(id ast.NodeID) {
	n := g.arena.Get(id)
	switch n.Kind {
	case ast.KindElement:
		g.renderElement(id)
	case ast.KindText:
		g.htmlOut.WriteString(EscapeText(n.TextContent))
	case ast.KindElementReference:
		for _, cid := range g.expandElementRef(n) {
			g.renderContentNode(cid)
		}
	case ast.KindComment:
		if n.CommentKind == ast.CommentGenerator {
			g.htmlOut.WriteString("<!--" + n.CommentText + "-->")
		}
	case ast.KindExcept:
		// constraint-only; never itself rendered.
	}
}

// emitGlobalStyle handles a top-level "style {}" block (section 4.5's
// global style context): it has no owning element, so only its
// selector rules and any inline properties (folded into a :root rule)
// reach the CSS stream; auto-class/id names still register globally.
func (g *Generator) emitGlobalStyle(id ast.NodeID) {
	_, _, inlineParts := g.processLocalStyle(id, "")
	if len(inlineParts) > 0 {
		g.cssRules = append(g.cssRules, ":root { "+strings.Join(inlineParts, " ")+" }")
	}
}

// ---- small local helpers ----

type attrEntry struct{ Key, Value string }

type orderedAttrs struct {
	order []string
	vals  map[string]string
}

func newOrderedAttrs() *orderedAttrs { return &orderedAttrs{vals: make(map[string]string)} }

func (o *orderedAttrs) set(k, v string) {
	if _, ok := o.vals[k]; !ok {
		o.order = append(o.order, k)
	}
	o.vals[k] = v
}

func (o *orderedAttrs) get(k string) string { return o.vals[k] }

func (o *orderedAttrs) ordered() []attrEntry {
	out := make([]attrEntry, len(o.order))
	for i, k := range o.order {
		out[i] = attrEntry{Key: k, Value: o.vals[k]}
	}
	return out
}

func splitSpace(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}

func mergeDedup(existing, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	var out []string
	for _, s := range existing {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
