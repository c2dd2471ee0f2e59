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

// Package lexer turns CHTL source text into a Token stream per the
// contracts in spec section 4.2. The lexer is context-free: {{ and }}
// are always tokenized as a unit, and it is the parser (or the unified
// scanner ahead of it) that decides what to do with them in a given
// context.
package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/token"
)

// NameTable lets a [Configuration].[Name] block extend the recognized
// spellings for a logical bracket-keyword or at-tag without replacing
// the built-ins (see chtl/config). nil means "built-ins only".
type NameTable struct {
	// ExtraBracketKeywords maps an extra spelling (e.g. "[Tmpl]") to the
	// token.Kind it should be treated as.
	ExtraBracketKeywords map[string]token.Kind
	ExtraAtTags          map[string]token.Kind
}

// Lexer produces tokens from a byte buffer.
type Lexer struct {
	file   string
	src    []byte
	pos    int // byte offset of the read head
	line   int
	col    int
	names  *NameTable
	diags  *errors.Bag
}

// New returns a Lexer over src, attributing diagnostics to file.
func New(file string, src []byte, names *NameTable) *Lexer {
	return &Lexer{file: file, src: src, line: 1, col: 1, names: names, diags: errors.NewBag()}
}

// Diagnostics returns the diagnostics accumulated while lexing.
func (l *Lexer) Diagnostics() *errors.Bag { return l.diags }

func (l *Lexer) eof() bool { return l.pos >= len(l.src) }

func (l *Lexer) peekByte() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func (l *Lexer) position() errors.Position {
	return errors.Position{File: l.file, Line: l.line, Column: l.col, Offset: l.pos}
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > utf8.RuneSelf
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '-'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isUnquotedTerminator(b byte) bool {
	switch b {
	case ';', ',', '{', '}', '(', ')', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// Next returns the next token, ending with an endless stream of EOF
// tokens once the input is exhausted.
func (l *Lexer) Next() token.Token {
	l.skipInsignificantWhitespace()
	if l.eof() {
		return token.Token{Kind: token.EOF, Line: l.line, Column: l.col, Offset: l.pos}
	}

	startLine, startCol, startOff := l.line, l.col, l.pos
	b := l.peekByte()

	switch {
	case b == '/' && l.peekByteAt(1) == '/':
		return l.lexLineComment(startLine, startCol, startOff)
	case b == '/' && l.peekByteAt(1) == '*':
		return l.lexBlockComment(startLine, startCol, startOff)
	case b == '-' && l.peekByteAt(1) == '-':
		return l.lexGeneratorComment(startLine, startCol, startOff)
	case b == '"' || b == '\'':
		return l.lexString(b, startLine, startCol, startOff)
	case b == '{' && l.peekByteAt(1) == '{':
		l.advance()
		l.advance()
		return token.Token{Kind: token.LDoubleBrace, Value: "{{", Line: startLine, Column: startCol, Offset: startOff}
	case b == '}' && l.peekByteAt(1) == '}':
		l.advance()
		l.advance()
		return token.Token{Kind: token.RDoubleBrace, Value: "}}", Line: startLine, Column: startCol, Offset: startOff}
	case b == '-' && l.peekByteAt(1) == '>':
		l.advance()
		l.advance()
		return token.Token{Kind: token.Arrow, Value: "->", Line: startLine, Column: startCol, Offset: startOff}
	case b == '[':
		if tok, ok := l.tryLexBracketKeyword(startLine, startCol, startOff); ok {
			return tok
		}
		l.advance()
		return token.Token{Kind: token.LBracket, Value: "[", Line: startLine, Column: startCol, Offset: startOff}
	case b == '@':
		return l.lexAtTag(startLine, startCol, startOff)
	case b == '#':
		return l.lexUnquotedTail("", startLine, startCol, startOff)
	case isDigit(b):
		return l.lexNumber(startLine, startCol, startOff)
	}

	if k, ok := simplePunct(b); ok {
		l.advance()
		return token.Token{Kind: k, Value: string(b), Line: startLine, Column: startCol, Offset: startOff}
	}

	r, size := utf8.DecodeRune(l.src[l.pos:])
	if isIdentStart(r) {
		return l.lexIdentOrUnquoted(startLine, startCol, startOff)
	}

	// Unknown character in initial position: lexical error, recover by
	// consuming one rune and continuing.
	l.diags.Addf(errors.KindLexical, errors.SeverityError, l.position(), "unknown character %q", r)
	l.pos += size
	l.col++
	return token.Token{Kind: token.UnquotedLiteral, Value: string(r), Line: startLine, Column: startCol, Offset: startOff}
}

func simplePunct(b byte) (token.Kind, bool) {
	switch b {
	case '{':
		return token.LBrace, true
	case '}':
		return token.RBrace, true
	case '(':
		return token.LParen, true
	case ')':
		return token.RParen, true
	case ']':
		return token.RBracket, true
	case ';':
		return token.Semicolon, true
	case ':':
		return token.Colon, true
	case ',':
		return token.Comma, true
	case '.':
		return token.Dot, true
	case '=':
		return token.Equals, true
	case '&':
		return token.Amp, true
	}
	return 0, false
}

// skipInsignificantWhitespace advances past runs of plain whitespace.
// Comments are not whitespace: they are tokenized (and then dropped by
// the parser for // and /* */, kept for --).
func (l *Lexer) skipInsignificantWhitespace() {
	for !l.eof() {
		b := l.peekByte()
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			l.advance()
			continue
		}
		break
	}
}

func (l *Lexer) lexLineComment(line, col, off int) token.Token {
	for !l.eof() && l.peekByte() != '\n' {
		l.advance()
	}
	return token.Token{Kind: token.LineComment, Value: string(l.src[off:l.pos]), Line: line, Column: col, Offset: off}
}

func (l *Lexer) lexBlockComment(line, col, off int) token.Token {
	l.advance()
	l.advance() // consume "/*"
	for !l.eof() {
		if l.peekByte() == '*' && l.peekByteAt(1) == '/' {
			l.advance()
			l.advance()
			return token.Token{Kind: token.BlockComment, Value: string(l.src[off:l.pos]), Line: line, Column: col, Offset: off}
		}
		l.advance()
	}
	l.diags.Addf(errors.KindLexical, errors.SeverityError, errors.Position{File: l.file, Line: line, Column: col, Offset: off}, "unterminated block comment")
	return token.Token{Kind: token.BlockComment, Value: string(l.src[off:l.pos]), Line: line, Column: col, Offset: off}
}

func (l *Lexer) lexGeneratorComment(line, col, off int) token.Token {
	for !l.eof() && l.peekByte() != '\n' {
		l.advance()
	}
	return token.Token{Kind: token.GeneratorComment, Value: string(l.src[off:l.pos]), Line: line, Column: col, Offset: off}
}

func (l *Lexer) lexString(quote byte, line, col, off int) token.Token {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.eof() {
			l.diags.Addf(errors.KindLexical, errors.SeverityError, errors.Position{File: l.file, Line: line, Column: col, Offset: off}, "unterminated string literal")
			break
		}
		b := l.peekByte()
		if b == quote {
			l.advance()
			break
		}
		if b == '\\' {
			l.advance()
			if l.eof() {
				break
			}
			esc := l.advance()
			sb.WriteByte(unescape(esc))
			continue
		}
		sb.WriteByte(b)
		l.advance()
	}
	return token.Token{Kind: token.StringLiteral, Value: sb.String(), Quoted: true, Line: line, Column: col, Offset: off}
}

func unescape(b byte) byte {
	switch b {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return b
	}
}

// tryLexBracketKeyword attempts to match "[Word]" against the built-in
// table, extended by any [Name]-block rebindings in effect. It fails
// (returns ok=false) leaving the cursor untouched if '[' is not
// followed by a recognized spelling closed by ']'.
func (l *Lexer) tryLexBracketKeyword(line, col, off int) (token.Token, bool) {
	end := off + 1
	for end < len(l.src) && end-off < 64 {
		if l.src[end] == ']' {
			break
		}
		if l.src[end] == '\n' || l.src[end] == '[' {
			return token.Token{}, false
		}
		end++
	}
	if end >= len(l.src) || l.src[end] != ']' {
		return token.Token{}, false
	}
	spelling := string(l.src[off : end+1])
	kind, ok := token.LookupBracketKeyword(spelling)
	if !ok && l.names != nil {
		kind, ok = l.names.ExtraBracketKeywords[spelling]
	}
	if !ok {
		return token.Token{}, false
	}
	for l.pos <= end {
		l.advance()
	}
	return token.Token{Kind: kind, Value: spelling, Line: line, Column: col, Offset: off}, true
}

func (l *Lexer) lexAtTag(line, col, off int) token.Token {
	l.advance() // '@'
	start := l.pos
	for !l.eof() {
		r, size := utf8.DecodeRune(l.src[l.pos:])
		if !isIdentCont(r) {
			break
		}
		l.pos += size
		l.col++
	}
	word := "@" + string(l.src[start:l.pos])
	kind := token.LookupAtTag(word)
	if kind == token.AtTag && l.names != nil {
		if k, ok := l.names.ExtraAtTags[word]; ok {
			kind = k
		}
	}
	return token.Token{Kind: kind, Value: word, Line: line, Column: col, Offset: off}
}

func (l *Lexer) lexNumber(line, col, off int) token.Token {
	for !l.eof() && (isDigit(l.peekByte()) || l.peekByte() == '.') {
		l.advance()
	}
	return token.Token{Kind: token.Number, Value: string(l.src[off:l.pos]), Line: line, Column: col, Offset: off}
}

// lexIdentOrUnquoted lexes a run of identifier-shaped characters, then
// classifies it: a recognized contextual keyword becomes that Kind
// (the parser may still treat it as a plain identifier where context
// permits shadowing); otherwise it is an Identifier. Bare words that
// are not identifier-shaped throughout (e.g. embedded punctuation not
// in the identifier set) are handled by lexUnquotedTail instead,
// which this delegates to once a non-identifier unquoted-literal
// character is seen immediately after.
func (l *Lexer) lexIdentOrUnquoted(line, col, off int) token.Token {
	for !l.eof() {
		r, size := utf8.DecodeRune(l.src[l.pos:])
		if !isIdentCont(r) {
			break
		}
		l.pos += size
		l.col++
	}
	word := string(l.src[off:l.pos])

	// If immediately followed by more unquoted-literal content that is
	// neither a terminator nor structural punctuation (":", ".", "=",
	// "&", "[", ...), fold it in: "a/b" becomes one literal, while
	// "id:" stays an identifier followed by a colon.
	next := l.peekByte()
	_, isPunct := simplePunct(next)
	if !l.eof() && !isPunct && next != '[' && !isUnquotedTerminator(next) && !isIdentCont(runeAt(l.src, l.pos)) {
		return l.lexUnquotedTail(word, line, col, off)
	}

	if kind, ok := token.LookupContextualKeyword(word); ok {
		return token.Token{Kind: kind, Value: word, Line: line, Column: col, Offset: off}
	}
	return token.Token{Kind: token.Identifier, Value: word, Line: line, Column: col, Offset: off}
}

func runeAt(src []byte, pos int) rune {
	if pos >= len(src) {
		return 0
	}
	r, _ := utf8.DecodeRune(src[pos:])
	return r
}

// lexUnquotedTail extends an already-lexed identifier-shaped prefix
// with further non-terminator bytes, producing a single
// UnquotedLiteral token (e.g. "1px", "#fff", "10%").
func (l *Lexer) lexUnquotedTail(prefix string, line, col, off int) token.Token {
	for !l.eof() && !isUnquotedTerminator(l.peekByte()) {
		l.advance()
	}
	return token.Token{Kind: token.UnquotedLiteral, Value: string(l.src[off:l.pos]), Line: line, Column: col, Offset: off}
}

// Lex runs the lexer to completion and returns the full token slice,
// excluding the trailing infinite EOF run (one EOF token terminates
// it). Used by callers (parser, tests) that want a materialized slice
// rather than pull-based Next calls.
func Lex(file string, src []byte, names *NameTable) ([]token.Token, *errors.Bag) {
	l := New(file, src, names)
	var toks []token.Token
	for {
		t := l.Next()
		toks = append(toks, t)
		if t.Kind == token.EOF {
			break
		}
	}
	return toks, l.diags
}
