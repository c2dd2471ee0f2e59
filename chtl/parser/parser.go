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

// Package parser is a recursive-descent parser with 1-2 token
// lookahead over the CHTL token stream, producing the AST described in
// spec section 3.2. It keeps a context/scope stack (delegated to
// chtl/state, so the parser and the later semantic passes share one
// stack discipline) and recovers from diagnostics by synchronizing to
// the next statement boundary per section 4.3.
package parser

import (
	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/lexer"
	"github.com/chtl-lang/chtl/chtl/scanner"
	"github.com/chtl-lang/chtl/chtl/state"
	"github.com/chtl-lang/chtl/chtl/token"
)

// voidElements is the HTML void-element set from section 4.3: a tag in
// this set never has a body.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Parser holds the full token stream for one file plus its raw source
// bytes (needed to capture opaque script-body text by byte range,
// since the parser does not itself interpret JavaScript).
type Parser struct {
	file  string
	src   []byte
	toks  []token.Token
	pos   int
	arena *ast.Arena
	sm    *state.Manager
	diags *errors.Bag
	scan  *scanner.Dispatcher // finds opaque script/[Origin] body extents
}

// New lexes src completely and returns a Parser ready to produce a
// Document.
func New(file string, src []byte, names *lexer.NameTable) *Parser {
	toks, lexDiags := lexer.Lex(file, src, names)
	p := &Parser{
		file:  file,
		src:   src,
		toks:  toks,
		arena: ast.NewArena(),
		sm:    state.NewManager(),
		diags: errors.NewBag(),
		scan:  scanner.New(file, src, scanner.DefaultOptions()),
	}
	p.diags.Merge(lexDiags)
	return p
}

// syncTo advances the token cursor past every token lexed inside a
// byte range the parser just consumed opaquely (a script or [Origin]
// body), landing on the first token at or after end.
func (p *Parser) syncTo(end int) {
	for p.pos < len(p.toks) && p.toks[p.pos].Offset < end {
		p.pos++
	}
}

// Diagnostics returns diagnostics from lexing and parsing, in source order.
func (p *Parser) Diagnostics() *errors.Bag { return p.diags }

// StateManager exposes the scope/phase manager so later passes reuse
// the same scope discipline the parser established.
func (p *Parser) StateManager() *state.Manager { return p.sm }

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos+n]
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) pos_() errors.Position {
	t := p.cur()
	return errors.Position{File: p.file, Line: t.Line, Column: t.Column, Offset: t.Offset}
}

func (p *Parser) nodePos(t token.Token) ast.Pos {
	return ast.Pos{Line: t.Line, Column: t.Column, Offset: t.Offset}
}

func (p *Parser) errorf(kind errors.Kind, format string, args ...any) {
	p.diags.Addf(kind, errors.SeverityError, p.pos_(), format, args...)
}

func (p *Parser) expect(k token.Kind) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	p.errorf(errors.KindSyntactic, "expected %s, found %s %q", k, p.cur().Kind, p.cur().Value)
	return token.Token{}, false
}

// skipComments drops // and /* */ tokens (never surfaced in the AST),
// and returns true if it skipped anything.
func (p *Parser) skipComments() bool {
	skipped := false
	for p.at(token.LineComment) || p.at(token.BlockComment) {
		p.advance()
		skipped = true
	}
	return skipped
}

// synchronize implements the section 4.3 error-recovery rule: advance
// to the next ';', '}', bracket-keyword, at-tag, or identifier that can
// begin a new top-level statement.
func (p *Parser) synchronize() {
	for !p.at(token.EOF) {
		switch p.cur().Kind {
		case token.Semicolon, token.RBrace:
			p.advance()
			return
		case token.KwTemplate, token.KwCustom, token.KwOrigin, token.KwImport,
			token.KwNamespace, token.KwConfiguration, token.KwInfo, token.KwExport,
			token.AtStyle, token.AtElement, token.AtVar, token.AtHtml, token.AtJavaScript,
			token.AtChtl, token.AtCJmod, token.AtTag, token.Identifier:
			return
		}
		p.advance()
	}
}

// ParseDocument parses the whole token stream into a Document.
func (p *Parser) ParseDocument() *ast.Document {
	doc := &ast.Document{Filename: p.file, Arena: p.arena}
	guard := p.sm.PushScope(state.ScopeFile, p.file, ast.NilNode)
	defer guard.Release()

	for !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		id, ok := p.parseTopLevel()
		if ok && id != ast.NilNode {
			doc.Children = append(doc.Children, id)
		}
		if !ok {
			p.synchronize()
		}
	}
	return doc
}

func (p *Parser) parseTopLevel() (ast.NodeID, bool) {
	switch p.cur().Kind {
	case token.GeneratorComment:
		return p.parseGeneratorComment(), true
	case token.KwTemplate:
		return p.parseTemplate()
	case token.KwCustom:
		return p.parseCustom()
	case token.KwOrigin:
		return p.parseOrigin()
	case token.KwImport:
		return p.parseImport()
	case token.KwNamespace:
		return p.parseNamespace()
	case token.KwConfiguration:
		return p.parseConfiguration()
	case token.KwExcept:
		return p.parseExcept()
	case token.KwStyle:
		return p.parseStyleBlock(false)
	case token.KwScript:
		return p.parseScriptBlock(false)
	case token.Identifier:
		return p.parseElement()
	default:
		p.errorf(errors.KindSyntactic, "unexpected token %s %q at top level", p.cur().Kind, p.cur().Value)
		return ast.NilNode, false
	}
}

func (p *Parser) parseGeneratorComment() ast.NodeID {
	t := p.advance()
	id := p.arena.New(ast.KindComment, p.nodePos(t))
	n := p.arena.Get(id)
	n.CommentKind = ast.CommentGenerator
	n.CommentText = t.Value
	return id
}

// ---- Elements ----

func (p *Parser) parseElement() (ast.NodeID, bool) {
	tagTok := p.advance()
	id := p.arena.New(ast.KindElement, p.nodePos(tagTok))
	n := p.arena.Get(id)
	n.Tag = tagTok.Value
	n.LocalStyle = ast.NilNode
	n.LocalScript = ast.NilNode

	if voidElements[tagTok.Value] {
		n.SelfClosing = true
	}

	if !p.at(token.LBrace) {
		// A void element may appear with no body at all, e.g. "br;".
		if p.at(token.Semicolon) {
			p.advance()
		}
		return id, true
	}

	p.advance() // consume '{'
	guard := p.sm.PushScope(state.ScopeElement, tagTok.Value, id)
	defer guard.Release()

	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		ok := p.parseElementMember(id)
		if !ok {
			p.synchronize()
		}
	}
	p.expect(token.RBrace)
	return id, true
}

func (p *Parser) parseElementMember(elementID ast.NodeID) bool {
	n := p.arena.Get(elementID)
	switch {
	case p.at(token.GeneratorComment):
		n.Children = append(n.Children, p.parseGeneratorComment())
		return true
	case p.at(token.KwText):
		child, ok := p.parseTextBlock()
		if ok {
			n.Children = append(n.Children, child)
		}
		return ok
	case p.at(token.KwStyle):
		sb, ok := p.parseStyleBlock(true)
		if !ok {
			return false
		}
		n = p.arena.Get(elementID)
		if n.LocalStyle != ast.NilNode {
			p.errorf(errors.KindSemantic, "element %q already has a local style block", n.Tag)
		}
		n.LocalStyle = sb
		return true
	case p.at(token.KwScript):
		sc, ok := p.parseScriptBlock(true)
		if !ok {
			return false
		}
		n = p.arena.Get(elementID)
		if n.LocalScript != ast.NilNode {
			p.errorf(errors.KindSemantic, "element %q already has a local script block", n.Tag)
		}
		n.LocalScript = sc
		return true
	case p.at(token.AtElement):
		ref, ok := p.parseElementReference()
		if ok {
			n.Children = append(n.Children, ref)
		}
		return ok
	case p.at(token.KwExcept):
		ex, ok := p.parseExcept()
		if ok {
			n.Children = append(n.Children, ex)
		}
		return ok
	case p.at(token.Identifier) && (p.peekAt(1).Kind == token.Colon || p.peekAt(1).Kind == token.Equals):
		attr, ok := p.parseAttribute()
		if ok {
			n.Children = append(n.Children, attr)
		}
		return ok
	case p.at(token.Identifier):
		child, ok := p.parseElement()
		if ok {
			n.Children = append(n.Children, child)
		}
		return ok
	default:
		p.errorf(errors.KindSyntactic, "unexpected token %s %q in element body", p.cur().Kind, p.cur().Value)
		return false
	}
}

// parseAttribute accepts either ':' or '=' identically (CE-equivalence,
// section 4.3); the separator is recorded only for round-trippable
// emission, never for semantics.
func (p *Parser) parseAttribute() (ast.NodeID, bool) {
	nameTok := p.advance()
	sepTok := p.advance()
	sep := byte(':')
	if sepTok.Kind == token.Equals {
		sep = '='
	}
	valueTok, value, quoted, ok := p.parseValue()
	if !ok {
		return ast.NilNode, false
	}
	p.expect(token.Semicolon)
	id := p.arena.New(ast.KindAttribute, p.nodePos(nameTok))
	n := p.arena.Get(id)
	n.AttrName = nameTok.Value
	n.AttrValue = value
	n.AttrQuoted = quoted
	n.AttrSep = sep
	_ = valueTok
	return id, true
}

// parseValue accepts a string literal or an unquoted literal/identifier
// run up to ';' or ',' and concatenates adjacent bare tokens with a
// single space, matching the unquoted-literal lexical contract.
func (p *Parser) parseValue() (token.Token, string, bool, bool) {
	if p.at(token.StringLiteral) {
		t := p.advance()
		return t, t.Value, true, true
	}
	if !(p.at(token.UnquotedLiteral) || p.at(token.Identifier) || p.at(token.Number)) {
		p.errorf(errors.KindSyntactic, "expected a value, found %s %q", p.cur().Kind, p.cur().Value)
		return token.Token{}, "", false, false
	}
	first := p.cur()
	var parts []string
	for p.at(token.UnquotedLiteral) || p.at(token.Identifier) || p.at(token.Number) {
		parts = append(parts, p.advance().Value)
	}
	val := parts[0]
	for _, s := range parts[1:] {
		val += " " + s
	}
	return first, val, false, true
}

func (p *Parser) parseTextBlock() (ast.NodeID, bool) {
	kw := p.advance()
	if _, ok := p.expect(token.LBrace); !ok {
		return ast.NilNode, false
	}
	_, content, quoted, ok := p.parseValue()
	if !ok {
		return ast.NilNode, false
	}
	if p.at(token.Semicolon) {
		p.advance()
	}
	if _, ok := p.expect(token.RBrace); !ok {
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindText, p.nodePos(kw))
	n := p.arena.Get(id)
	n.TextContent = content
	n.TextQuoted = quoted
	return id, true
}

// ---- Style blocks ----

func (p *Parser) parseStyleBlock(isLocal bool) (ast.NodeID, bool) {
	kw := p.advance() // 'style'
	if _, ok := p.expect(token.LBrace); !ok {
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindStyleBlock, p.nodePos(kw))
	guard := p.sm.PushScope(state.ScopeStyleBlock, "", id)
	defer guard.Release()

	n := p.arena.Get(id)
	n.IsLocal = isLocal

	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		switch {
		case p.at(token.GeneratorComment):
			n = p.arena.Get(id)
			n.Children = append(n.Children, p.parseGeneratorComment())
		case p.at(token.AtStyle):
			ref, ok := p.parseStyleReference()
			if !ok {
				return ast.NilNode, false
			}
			n = p.arena.Get(id)
			n.Children = append(n.Children, ref)
		case p.at(token.AtVar):
			ref, ok := p.parseVarReference()
			if !ok {
				return ast.NilNode, false
			}
			n = p.arena.Get(id)
			n.Children = append(n.Children, ref)
		case p.at(token.KwFrom):
			fc, ok := p.parseFromClause()
			if !ok {
				return ast.NilNode, false
			}
			n = p.arena.Get(id)
			n.Children = append(n.Children, fc)
		case p.at(token.Identifier) && (p.peekAt(1).Kind == token.Colon || p.peekAt(1).Kind == token.Equals):
			// Inline property: bare "name: value;" allowed in any style
			// context per the constrainer table footnote.
			prop, ok := p.parseInlineProperty()
			if !ok {
				return ast.NilNode, false
			}
			n = p.arena.Get(id)
			n.InlineProps = append(n.InlineProps, prop)
		case isSelectorStart(p.cur()):
			rule, ok := p.parseStyleRule()
			if !ok {
				return ast.NilNode, false
			}
			n = p.arena.Get(id)
			n.Children = append(n.Children, rule)
			recordAutoName(n, rule, p.arena)
		default:
			p.errorf(errors.KindSyntactic, "unexpected token %s %q in style block", p.cur().Kind, p.cur().Value)
			return ast.NilNode, false
		}
	}
	p.expect(token.RBrace)
	return id, true
}

func isSelectorStart(t token.Token) bool {
	return t.Kind == token.Dot || t.Kind == token.Amp ||
		(t.Kind == token.UnquotedLiteral && len(t.Value) > 0 && t.Value[0] == '#') ||
		(t.Kind == token.Identifier)
}

func recordAutoName(styleBlock *ast.Node, ruleID ast.NodeID, arena *ast.Arena) {
	rule := arena.Get(ruleID)
	switch rule.SelectorKind {
	case ast.SelectorClass:
		styleBlock.AutoClasses = append(styleBlock.AutoClasses, rule.Selector)
	case ast.SelectorID:
		styleBlock.AutoIDs = append(styleBlock.AutoIDs, rule.Selector)
	}
}

func (p *Parser) parseInlineProperty() (ast.Property, bool) {
	nameTok := p.advance()
	p.advance() // ':' or '='
	_, val, quoted, ok := p.parseValue()
	if !ok {
		return ast.Property{}, false
	}
	p.expect(token.Semicolon)
	return ast.Property{Name: nameTok.Value, Value: val, Quoted: quoted, Pos: p.nodePos(nameTok)}, true
}

func (p *Parser) parseStyleRule() (ast.NodeID, bool) {
	startTok := p.cur()
	var selector string
	kind := ast.SelectorTag
	switch {
	case p.at(token.Dot):
		p.advance()
		t := p.advance()
		selector = t.Value
		kind = ast.SelectorClass
	case p.at(token.Amp):
		p.advance()
		selector = "&"
		kind = ast.SelectorAmpersand
		if p.at(token.Colon) {
			p.advance()
			pseudo := p.advance()
			selector = "&:" + pseudo.Value
		}
	case p.at(token.UnquotedLiteral) && len(p.cur().Value) > 0 && p.cur().Value[0] == '#':
		t := p.advance()
		selector = t.Value[1:]
		kind = ast.SelectorID
	default:
		t := p.advance()
		selector = t.Value
		kind = ast.SelectorTag
	}
	id := p.arena.New(ast.KindStyleRule, p.nodePos(startTok))
	n := p.arena.Get(id)
	n.Selector = selector
	n.SelectorKind = kind

	if _, ok := p.expect(token.LBrace); !ok {
		return ast.NilNode, false
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		prop, ok := p.parseInlineProperty()
		if !ok {
			return ast.NilNode, false
		}
		n = p.arena.Get(id)
		n.Properties = append(n.Properties, prop)
	}
	p.expect(token.RBrace)
	return id, true
}

func (p *Parser) parseStyleReference() (ast.NodeID, bool) {
	startTok := p.advance() // '@Style'
	nameTok, ok := p.expect(token.Identifier)
	if !ok {
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindStyleReference, p.nodePos(startTok))
	n := p.arena.Get(id)
	n.RefTarget = nameTok.Value

	if p.at(token.Semicolon) {
		p.advance()
		return id, true
	}
	if !p.at(token.LBrace) {
		p.errorf(errors.KindSyntactic, "expected ';' or '{' after @Style reference")
		return ast.NilNode, false
	}
	p.advance()
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		switch {
		case p.at(token.KwDelete):
			p.advance()
			if p.at(token.AtStyle) {
				p.advance()
				base, ok := p.expect(token.Identifier)
				if !ok {
					return ast.NilNode, false
				}
				n = p.arena.Get(id)
				n.DeleteInheritance = true
				n.DeletedProperties = append(n.DeletedProperties, "@Style:"+base.Value)
			} else {
				for {
					t, ok := p.expect(token.Identifier)
					if !ok {
						return ast.NilNode, false
					}
					n = p.arena.Get(id)
					n.DeletedProperties = append(n.DeletedProperties, t.Value)
					if p.at(token.Comma) {
						p.advance()
						continue
					}
					break
				}
			}
			p.expect(token.Semicolon)
		case p.at(token.Identifier) && (p.peekAt(1).Kind == token.Colon || p.peekAt(1).Kind == token.Equals):
			prop, ok := p.parseInlineProperty()
			if !ok {
				return ast.NilNode, false
			}
			n = p.arena.Get(id)
			n.Overrides = append(n.Overrides, prop)
		default:
			p.errorf(errors.KindSyntactic, "unexpected token %s %q in @Style specialization", p.cur().Kind, p.cur().Value)
			return ast.NilNode, false
		}
	}
	p.expect(token.RBrace)
	return id, true
}

func (p *Parser) parseVarReference() (ast.NodeID, bool) {
	startTok := p.advance() // '@Var'
	nameTok, ok := p.expect(token.Identifier)
	if !ok {
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindVarReference, p.nodePos(startTok))
	n := p.arena.Get(id)
	n.VRefGroup = nameTok.Value

	if p.at(token.LParen) {
		p.advance()
		callTok, ok := p.expect(token.Identifier)
		if !ok {
			return ast.NilNode, false
		}
		n = p.arena.Get(id)
		n.VRefCall = callTok.Value
		n.VRefHasCall = true
		p.expect(token.RParen)
	}
	p.expect(token.Semicolon)
	return id, true
}

// parseFromClause parses a bare "from NS.Sub;" statement inside a
// style or script context: it sets the namespace the immediately
// following qualified-name lookups in this block resolve against,
// without itself naming a particular reference (section 4.5's
// "namespace-from" construct).
func (p *Parser) parseFromClause() (ast.NodeID, bool) {
	kw := p.advance() // 'from'
	nameTok, ok := p.expect(token.Identifier)
	if !ok {
		return ast.NilNode, false
	}
	name := nameTok.Value
	for p.at(token.Dot) {
		p.advance()
		seg, ok := p.expect(token.Identifier)
		if !ok {
			return ast.NilNode, false
		}
		name += "." + seg.Value
	}
	p.expect(token.Semicolon)
	id := p.arena.New(ast.KindFromClause, p.nodePos(kw))
	n := p.arena.Get(id)
	n.NamespaceName = name
	return id, true
}

// ---- Script blocks ----

// parseScriptBlock captures its body as an opaque raw string by byte
// range, handing the span-finding off to the scanner dispatcher (the
// same balanced-block matcher section 4.1 uses for fragment
// classification) rather than re-tokenizing the block itself, per
// section 4.3.
func (p *Parser) parseScriptBlock(isLocal bool) (ast.NodeID, bool) {
	kw := p.advance() // 'script'
	open, ok := p.expect(token.LBrace)
	if !ok {
		return ast.NilNode, false
	}
	bodyStart := open.End()
	end, hitMax := p.scan.BalancedBlockEnd(open.Offset)
	if hitMax {
		p.diags.Addf(errors.KindLexical, errors.SeverityWarning, p.pos_(), "script block exceeded the scanner's growth limit; falling back to token-by-token matching")
		return p.parseScriptBlockByTokenDepth(kw, isLocal, bodyStart)
	}
	if end == 0 || end > len(p.src) || p.src[end-1] != '}' {
		p.errorf(errors.KindSyntactic, "unterminated script block")
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindScriptBlock, p.nodePos(kw))
	n := p.arena.Get(id)
	n.IsLocal = isLocal
	n.RawContent = string(p.src[bodyStart : end-1])
	p.syncTo(end)
	return id, true
}

// parseScriptBlockByTokenDepth is the token-depth fallback for the
// rare block the dispatcher's growth window gives up on (section
// 4.1's hitMax case): it counts brace-kind tokens directly, the way
// this method worked before the dispatcher was wired in.
func (p *Parser) parseScriptBlockByTokenDepth(kw token.Token, isLocal bool, bodyStart int) (ast.NodeID, bool) {
	depth := 1
	for depth > 0 && !p.at(token.EOF) {
		switch p.cur().Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
			if depth == 0 {
				closeTok := p.advance()
				id := p.arena.New(ast.KindScriptBlock, p.nodePos(kw))
				n := p.arena.Get(id)
				n.IsLocal = isLocal
				n.RawContent = string(p.src[bodyStart:closeTok.Offset])
				return id, true
			}
		}
		p.advance()
	}
	p.errorf(errors.KindSyntactic, "unterminated script block")
	return ast.NilNode, false
}

// ---- Templates & Customs ----

func defKindFromTag(k token.Kind) (ast.DefKind, bool) {
	switch k {
	case token.AtStyle:
		return ast.DefStyle, true
	case token.AtElement:
		return ast.DefElement, true
	case token.AtVar:
		return ast.DefVar, true
	}
	return 0, false
}

func (p *Parser) parseTemplate() (ast.NodeID, bool) {
	kw := p.advance()
	dk, ok := defKindFromTag(p.cur().Kind)
	if !ok {
		p.errorf(errors.KindSyntactic, "expected @Style, @Element, or @Var after [Template]")
		return ast.NilNode, false
	}
	p.advance()
	nameTok, ok := p.expect(token.Identifier)
	if !ok {
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindTemplate, p.nodePos(kw))
	n := p.arena.Get(id)
	n.DefKind = dk
	n.Name = nameTok.Value

	guard := p.sm.PushScope(state.ScopeTemplate, nameTok.Value, id)
	defer guard.Release()

	if _, ok := p.expect(token.LBrace); !ok {
		return ast.NilNode, false
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		if !p.parseDefBodyMember(id, dk, false) {
			return ast.NilNode, false
		}
	}
	p.expect(token.RBrace)
	return id, true
}

func (p *Parser) parseCustom() (ast.NodeID, bool) {
	kw := p.advance()
	dk, ok := defKindFromTag(p.cur().Kind)
	if !ok {
		p.errorf(errors.KindSyntactic, "expected @Style, @Element, or @Var after [Custom]")
		return ast.NilNode, false
	}
	p.advance()
	nameTok, ok := p.expect(token.Identifier)
	if !ok {
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindCustom, p.nodePos(kw))
	n := p.arena.Get(id)
	n.DefKind = dk
	n.Name = nameTok.Value

	guard := p.sm.PushScope(state.ScopeCustom, nameTok.Value, id)
	defer guard.Release()

	if _, ok := p.expect(token.LBrace); !ok {
		return ast.NilNode, false
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		if !p.parseDefBodyMember(id, dk, true) {
			return ast.NilNode, false
		}
	}
	p.expect(token.RBrace)
	return id, true
}

// parseDefBodyMember parses one member of a Template or Custom body.
// isCustom gates the Custom-only extras (value-less properties and
// insert/delete operations). Var-reference specializations are not
// parsed in either body kind.
func (p *Parser) parseDefBodyMember(defID ast.NodeID, dk ast.DefKind, isCustom bool) bool {
	n := p.arena.Get(defID)
	switch {
	case p.at(token.GeneratorComment):
		n.Children = append(n.Children, p.parseGeneratorComment())
		return true
	case p.at(token.KwInherit):
		p.advance()
		idk, ok := defKindFromTag(p.cur().Kind)
		if !ok {
			p.errorf(errors.KindSyntactic, "expected @Style, @Element, or @Var after inherit")
			return false
		}
		p.advance()
		nameTok, ok := p.expect(token.Identifier)
		if !ok {
			return false
		}
		p.expect(token.Semicolon)
		item := ast.InheritItem{Name: nameTok.Value, IsCustom: isCustom}
		_ = idk
		n = p.arena.Get(defID)
		n.Inherits = append(n.Inherits, item)
		return true
	case dk == ast.DefStyle && p.at(token.AtStyle):
		// Bare "@Style X;" inside a Style body is shorthand for
		// inherit @Style X;
		p.advance()
		nameTok, ok := p.expect(token.Identifier)
		if !ok {
			return false
		}
		p.expect(token.Semicolon)
		n = p.arena.Get(defID)
		n.Inherits = append(n.Inherits, ast.InheritItem{Name: nameTok.Value, IsCustom: isCustom})
		return true
	case dk == ast.DefStyle && p.at(token.Identifier) && (p.peekAt(1).Kind == token.Colon || p.peekAt(1).Kind == token.Equals):
		prop, ok := p.parseInlineProperty()
		if !ok {
			return false
		}
		n = p.arena.Get(defID)
		n.Properties = append(n.Properties, prop)
		return true
	case isCustom && dk == ast.DefStyle && p.at(token.Identifier) && (p.peekAt(1).Kind == token.Comma || p.peekAt(1).Kind == token.Semicolon):
		// Value-less property, to be filled at use-site.
		nameTok := p.advance()
		p.advance() // ',' or ';'
		n = p.arena.Get(defID)
		n.Properties = append(n.Properties, ast.Property{Name: nameTok.Value, IsValueless: true, Pos: p.nodePos(nameTok)})
		return true
	case dk == ast.DefVar && p.at(token.Identifier) && (p.peekAt(1).Kind == token.Colon || p.peekAt(1).Kind == token.Equals):
		nameTok := p.advance()
		p.advance()
		_, val, _, ok := p.parseValue()
		if !ok {
			return false
		}
		p.expect(token.Semicolon)
		n = p.arena.Get(defID)
		n.VarEntries = append(n.VarEntries, ast.VarEntry{Name: nameTok.Value, Value: val, Pos: p.nodePos(nameTok)})
		return true
	case dk == ast.DefElement && p.at(token.AtElement):
		ref, ok := p.parseElementReference()
		if !ok {
			return false
		}
		n = p.arena.Get(defID)
		n.Children = append(n.Children, ref)
		return true
	case dk == ast.DefElement && p.at(token.KwText):
		txt, ok := p.parseTextBlock()
		if !ok {
			return false
		}
		// Wrapped as a synthetic "text" element per section 4.3.
		wrapper := p.arena.New(ast.KindElement, p.arena.Get(txt).Pos)
		w := p.arena.Get(wrapper)
		w.Tag = "text"
		w.LocalStyle = ast.NilNode
		w.LocalScript = ast.NilNode
		w.Children = []ast.NodeID{txt}
		n = p.arena.Get(defID)
		n.Children = append(n.Children, wrapper)
		return true
	case dk == ast.DefElement && p.at(token.Identifier):
		child, ok := p.parseElement()
		if !ok {
			return false
		}
		n = p.arena.Get(defID)
		n.Children = append(n.Children, child)
		return true
	case isCustom && dk == ast.DefElement && p.at(token.KwInsert):
		ins, ok := p.parseInsert()
		if !ok {
			return false
		}
		n = p.arena.Get(defID)
		n.InsertOps = append(n.InsertOps, ins)
		return true
	case isCustom && dk == ast.DefElement && p.at(token.KwDelete):
		del, ok := p.parseDeleteOp()
		if !ok {
			return false
		}
		n = p.arena.Get(defID)
		n.DeleteOps = append(n.DeleteOps, del)
		return true
	default:
		p.errorf(errors.KindSyntactic, "unexpected token %s %q in %s %s body", p.cur().Kind, p.cur().Value, boolToCustomTmpl(isCustom), dk)
		return false
	}
}

func boolToCustomTmpl(isCustom bool) string {
	if isCustom {
		return "Custom"
	}
	return "Template"
}

// ---- Specialization operators ----

func (p *Parser) parseSelector() ast.Selector {
	t := p.advance()
	sel := ast.Selector{Text: t.Value}
	if p.at(token.LBracket) {
		p.advance()
		idx := p.advance()
		sel.HasIndex = true
		sel.Index = parseIntOrZero(idx.Value)
		p.expect(token.RBracket)
	}
	return sel
}

func parseIntOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func (p *Parser) parseInsert() (ast.NodeID, bool) {
	kw := p.advance()
	var posKind ast.InsertPosition
	switch p.cur().Kind {
	case token.KwAfter:
		posKind = ast.InsertAfter
		p.advance()
	case token.KwBefore:
		posKind = ast.InsertBefore
		p.advance()
	case token.KwReplace:
		posKind = ast.InsertReplace
		p.advance()
	case token.Identifier:
		// "at top" / "at bottom" lexed as two identifiers "at"+"top"/"bottom".
		if p.cur().Value == "at" && p.peekAt(1).Kind == token.Identifier {
			switch p.peekAt(1).Value {
			case "top":
				posKind = ast.InsertAtTop
				p.advance()
				p.advance()
			case "bottom":
				posKind = ast.InsertAtBottom
				p.advance()
				p.advance()
			default:
				p.errorf(errors.KindSyntactic, "expected 'at top' or 'at bottom'")
				return ast.NilNode, false
			}
		} else {
			p.errorf(errors.KindSyntactic, "expected insert position")
			return ast.NilNode, false
		}
	default:
		p.errorf(errors.KindSyntactic, "expected insert position")
		return ast.NilNode, false
	}
	sel := p.parseSelector()
	id := p.arena.New(ast.KindInsert, p.nodePos(kw))
	n := p.arena.Get(id)
	n.InsertPosition = posKind
	n.InsertSelector = sel

	if _, ok := p.expect(token.LBrace); !ok {
		return ast.NilNode, false
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		child, ok := p.parseElement()
		if !ok {
			return ast.NilNode, false
		}
		n = p.arena.Get(id)
		n.InsertContents = append(n.InsertContents, child)
	}
	p.expect(token.RBrace)
	return id, true
}

func (p *Parser) parseDeleteOp() (ast.NodeID, bool) {
	kw := p.advance()
	id := p.arena.New(ast.KindDelete, p.nodePos(kw))
	n := p.arena.Get(id)
	n.DeleteTargetKind = ast.DeleteElement
	for {
		t := p.advance()
		n = p.arena.Get(id)
		n.DeleteTargets = append(n.DeleteTargets, t.Value)
		if p.at(token.LBracket) {
			p.advance()
			idx := p.advance()
			n.HasDeleteIndex = true
			n.DeleteIndex = parseIntOrZero(idx.Value)
			p.expect(token.RBracket)
		}
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.Semicolon)
	return id, true
}

func (p *Parser) parseElementReference() (ast.NodeID, bool) {
	kw := p.advance() // '@Element'
	nameTok, ok := p.expect(token.Identifier)
	if !ok {
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindElementReference, p.nodePos(kw))
	n := p.arena.Get(id)
	n.ERefName = nameTok.Value

	if p.at(token.Semicolon) {
		p.advance()
		return id, true
	}
	if !p.at(token.LBrace) {
		p.errorf(errors.KindSyntactic, "expected ';' or '{' after @Element reference")
		return ast.NilNode, false
	}
	p.advance()
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		switch {
		case p.at(token.KwInsert):
			ins, ok := p.parseInsert()
			if !ok {
				return ast.NilNode, false
			}
			n = p.arena.Get(id)
			n.ERefInserts = append(n.ERefInserts, ins)
		case p.at(token.KwDelete):
			del, ok := p.parseDeleteOp()
			if !ok {
				return ast.NilNode, false
			}
			n = p.arena.Get(id)
			n.ERefDeletes = append(n.ERefDeletes, del)
		default:
			sel := p.parseSelector()
			if _, ok := p.expect(token.LBrace); !ok {
				return ast.NilNode, false
			}
			var props []ast.Property
			for !p.at(token.RBrace) && !p.at(token.EOF) {
				if p.skipComments() {
					continue
				}
				prop, ok := p.parseInlineProperty()
				if !ok {
					return ast.NilNode, false
				}
				props = append(props, prop)
			}
			p.expect(token.RBrace)
			n = p.arena.Get(id)
			n.ERefSpecializations = append(n.ERefSpecializations, ast.ERefSpecialization{Selector: sel, Props: props})
		}
	}
	p.expect(token.RBrace)
	return id, true
}

// ---- Origin ----

func (p *Parser) parseOrigin() (ast.NodeID, bool) {
	kw := p.advance() // '[Origin]'
	var originType string
	switch p.cur().Kind {
	case token.AtHtml:
		originType = "@Html"
		p.advance()
	case token.AtStyle:
		originType = "@Style"
		p.advance()
	case token.AtJavaScript:
		originType = "@JavaScript"
		p.advance()
	case token.AtTag:
		originType = p.cur().Value
		p.advance()
	default:
		p.errorf(errors.KindSyntactic, "expected an origin type tag after [Origin]")
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindOrigin, p.nodePos(kw))
	n := p.arena.Get(id)
	n.OriginType = originType

	if p.at(token.Identifier) {
		n.OriginName = p.advance().Value
	}

	if p.at(token.Semicolon) {
		// Reference form: "[Origin] @Html Name;"
		p.advance()
		n.IsReference = true
		return id, true
	}

	open, ok := p.expect(token.LBrace)
	if !ok {
		return ast.NilNode, false
	}
	bodyStart := open.End()
	end, hitMax := p.scan.BalancedBlockEnd(open.Offset)
	if hitMax {
		p.diags.Addf(errors.KindLexical, errors.SeverityWarning, p.pos_(), "[Origin] block exceeded the scanner's growth limit; falling back to token-by-token matching")
		return p.parseOriginByTokenDepth(id, bodyStart)
	}
	if end == 0 || end > len(p.src) || p.src[end-1] != '}' {
		p.errorf(errors.KindSyntactic, "unterminated [Origin] block")
		return ast.NilNode, false
	}
	n = p.arena.Get(id)
	n.OriginRaw = string(p.src[bodyStart : end-1])
	p.syncTo(end)
	return id, true
}

// parseOriginByTokenDepth is the token-depth fallback for the rare
// [Origin] block the dispatcher's growth window gives up on, mirroring
// parseScriptBlockByTokenDepth.
func (p *Parser) parseOriginByTokenDepth(id ast.NodeID, bodyStart int) (ast.NodeID, bool) {
	depth := 1
	for depth > 0 && !p.at(token.EOF) {
		switch p.cur().Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
			if depth == 0 {
				closeTok := p.advance()
				n := p.arena.Get(id)
				n.OriginRaw = string(p.src[bodyStart:closeTok.Offset])
				return id, true
			}
		}
		p.advance()
	}
	p.errorf(errors.KindSyntactic, "unterminated [Origin] block")
	return ast.NilNode, false
}

// ---- Except ----

func (p *Parser) parseExcept() (ast.NodeID, bool) {
	kw := p.advance()
	id := p.arena.New(ast.KindExcept, p.nodePos(kw))
	n := p.arena.Get(id)

	switch p.cur().Kind {
	case token.KwTemplate, token.KwCustom:
		n.ConstraintKind = ast.ExceptType
		n.Targets = append(n.Targets, p.advance().Value)
	case token.AtHtml, token.AtStyle, token.AtElement, token.AtVar, token.AtJavaScript, token.AtChtl, token.AtCJmod, token.AtTag:
		if p.peekAt(1).Kind == token.Identifier {
			n.ConstraintKind = ast.ExceptSpecific
			n.SpecificInfo = p.advance().Value
			n.Targets = append(n.Targets, p.advance().Value)
		} else {
			n.ConstraintKind = ast.ExceptType
			n.Targets = append(n.Targets, p.advance().Value)
		}
	case token.Identifier:
		if p.cur().Value == "global" {
			n.ConstraintKind = ast.ExceptGlobal
			p.advance()
		} else {
			n.ConstraintKind = ast.ExceptElement
			for {
				t, ok := p.expect(token.Identifier)
				if !ok {
					return ast.NilNode, false
				}
				n = p.arena.Get(id)
				n.Targets = append(n.Targets, t.Value)
				if p.at(token.Comma) {
					p.advance()
					continue
				}
				break
			}
		}
	default:
		p.errorf(errors.KindSyntactic, "expected an except target")
		return ast.NilNode, false
	}
	p.expect(token.Semicolon)
	return id, true
}

// ---- Import ----

func (p *Parser) parseImport() (ast.NodeID, bool) {
	kw := p.advance()
	id := p.arena.New(ast.KindImport, p.nodePos(kw))
	n := p.arena.Get(id)

	switch p.cur().Kind {
	case token.AtHtml:
		n.ImportKind = ast.ImportHtml
		p.advance()
	case token.AtStyle:
		n.ImportKind = ast.ImportStyle
		p.advance()
	case token.AtJavaScript:
		n.ImportKind = ast.ImportJavaScript
		p.advance()
	case token.AtChtl:
		n.ImportKind = ast.ImportChtl
		p.advance()
	case token.AtCJmod:
		n.ImportKind = ast.ImportCJmod
		p.advance()
	case token.KwTemplate:
		n.ImportKind = ast.ImportTemplateAll
		n.IsTemplate = true
		p.advance()
		if dk, ok := defKindFromTag(p.cur().Kind); ok {
			n.SpecificType = dk.String()
			p.advance()
		}
	case token.KwCustom:
		n.ImportKind = ast.ImportCustomAll
		n.IsCustom = true
		p.advance()
		if dk, ok := defKindFromTag(p.cur().Kind); ok {
			n.SpecificType = dk.String()
			p.advance()
		}
	case token.KwOrigin:
		n.ImportKind = ast.ImportOriginAll
		n.IsOrigin = true
		p.advance()
	case token.KwConfiguration:
		n.ImportKind = ast.ImportConfig
		p.advance()
	default:
		p.errorf(errors.KindSyntactic, "expected an import kind tag")
		return ast.NilNode, false
	}

	if p.at(token.Identifier) && p.peekAt(1).Kind != token.KwFrom {
		n.SpecificName = p.advance().Value
		n.ImportKind = ast.ImportSpecific
	}

	if _, ok := p.expect(token.KwFrom); !ok {
		return ast.NilNode, false
	}
	_, path, _, ok := p.parseValue()
	if !ok {
		return ast.NilNode, false
	}
	n = p.arena.Get(id)
	n.FromPath = path

	if p.at(token.KwAs) {
		p.advance()
		aliasTok, ok := p.expect(token.Identifier)
		if !ok {
			return ast.NilNode, false
		}
		n = p.arena.Get(id)
		n.Alias = aliasTok.Value
	}
	p.expect(token.Semicolon)
	return id, true
}

// ---- Namespace ----

func (p *Parser) parseNamespace() (ast.NodeID, bool) {
	kw := p.advance()
	nameTok, ok := p.expect(token.Identifier)
	if !ok {
		return ast.NilNode, false
	}
	id := p.arena.New(ast.KindNamespace, p.nodePos(kw))
	n := p.arena.Get(id)
	n.NSName = nameTok.Value

	guard := p.sm.PushScope(state.ScopeNamespace, nameTok.Value, id)
	defer guard.Release()

	if _, ok := p.expect(token.LBrace); !ok {
		return ast.NilNode, false
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		if p.at(token.KwNamespace) {
			n.NSIsNested = true
		}
		child, ok := p.parseTopLevel()
		if !ok {
			p.synchronize()
			continue
		}
		n = p.arena.Get(id)
		if child != ast.NilNode {
			n.Children = append(n.Children, child)
		}
	}
	p.expect(token.RBrace)
	return id, true
}

// ---- Configuration ----

func (p *Parser) parseConfiguration() (ast.NodeID, bool) {
	kw := p.advance()
	id := p.arena.New(ast.KindConfiguration, p.nodePos(kw))
	n := p.arena.Get(id)
	n.ConfigNameBlock = make(map[string][]string)
	n.ConfigOriginTypeBlock = make(map[string]string)

	if p.at(token.Identifier) {
		n.ConfigName = p.advance().Value
	}
	if _, ok := p.expect(token.LBrace); !ok {
		return ast.NilNode, false
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if p.skipComments() {
			continue
		}
		switch {
		case p.at(token.KwName):
			p.advance()
			if _, ok := p.expect(token.LBrace); !ok {
				return ast.NilNode, false
			}
			for !p.at(token.RBrace) && !p.at(token.EOF) {
				if p.skipComments() {
					continue
				}
				keyTok, ok := p.expect(token.Identifier)
				if !ok {
					return ast.NilNode, false
				}
				p.expect(token.Equals)
				var spellings []string
				_, first, _, ok := p.parseValue()
				if !ok {
					return ast.NilNode, false
				}
				spellings = append(spellings, first)
				for p.at(token.Comma) {
					p.advance()
					_, next, _, ok := p.parseValue()
					if !ok {
						return ast.NilNode, false
					}
					spellings = append(spellings, next)
				}
				p.expect(token.Semicolon)
				n = p.arena.Get(id)
				n.ConfigNameBlock[keyTok.Value] = spellings
			}
			p.expect(token.RBrace)
		case p.at(token.KwOriginType):
			p.advance()
			if _, ok := p.expect(token.LBrace); !ok {
				return ast.NilNode, false
			}
			for !p.at(token.RBrace) && !p.at(token.EOF) {
				if p.skipComments() {
					continue
				}
				tagTok := p.advance()
				p.expect(token.Equals)
				_, target, _, ok := p.parseValue()
				if !ok {
					return ast.NilNode, false
				}
				p.expect(token.Semicolon)
				n = p.arena.Get(id)
				n.ConfigOriginTypeBlock[tagTok.Value] = target
			}
			p.expect(token.RBrace)
		case p.at(token.Identifier):
			keyTok := p.advance()
			p.expect(token.Equals)
			_, val, quoted, ok := p.parseValue()
			if !ok {
				return ast.NilNode, false
			}
			p.expect(token.Semicolon)
			n = p.arena.Get(id)
			n.ConfigProps = append(n.ConfigProps, ast.Property{Name: keyTok.Value, Value: val, Quoted: quoted, Pos: p.nodePos(keyTok)})
		default:
			p.errorf(errors.KindSyntactic, "unexpected token %s %q in [Configuration]", p.cur().Kind, p.cur().Value)
			return ast.NilNode, false
		}
	}
	p.expect(token.RBrace)
	return id, true
}

// Parse is a convenience entry point: lex and parse file/src in one call.
func Parse(file string, src []byte, names *lexer.NameTable) (*ast.Document, *errors.Bag, *state.Manager) {
	p := New(file, src, names)
	doc := p.ParseDocument()
	return doc, p.diags, p.sm
}
