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

// Package token defines the CHTL token kinds and the Token type shared
// by the lexer, parser, and diagnostic highlighter.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	Identifier
	Number
	StringLiteral
	UnquotedLiteral

	// Punctuation
	LBrace    // {
	RBrace    // }
	LParen    // (
	RParen    // )
	LBracket  // [
	RBracket  // ]
	Semicolon // ;
	Colon     // :
	Comma     // ,
	Dot       // .
	Equals    // =
	Amp       // &

	// Double-punctuation
	LDoubleBrace // {{
	RDoubleBrace // }}
	Arrow        // ->

	// Bracket keywords, matched as single lexemes.
	KwTemplate      // [Template]
	KwCustom        // [Custom]
	KwOrigin        // [Origin]
	KwImport        // [Import]
	KwNamespace     // [Namespace]
	KwConfiguration // [Configuration]
	KwInfo          // [Info]
	KwExport        // [Export]
	KwName          // [Name]
	KwOriginType    // [OriginType]

	// At-tags.
	AtStyle
	AtElement
	AtVar
	AtHtml
	AtJavaScript
	AtChtl
	AtCJmod
	AtTag // any other @Identifier, e.g. a custom origin type tag

	// Contextual keywords.
	KwText
	KwStyle
	KwScript
	KwInherit
	KwDelete
	KwInsert
	KwAfter
	KwBefore
	KwReplace
	KwAtTop
	KwAtBottom
	KwFrom
	KwAs
	KwExcept
	KwListen
	KwDelegate
	KwAnimate
	KwVir

	// Comments.
	LineComment      // //...
	BlockComment     // /* ... */
	GeneratorComment // --... (survives into the AST)
)

var kindNames = map[Kind]string{
	EOF:              "EOF",
	Identifier:       "identifier",
	Number:           "number",
	StringLiteral:    "string-literal",
	UnquotedLiteral:  "unquoted-literal",
	LBrace:           "{",
	RBrace:           "}",
	LParen:           "(",
	RParen:           ")",
	LBracket:         "[",
	RBracket:         "]",
	Semicolon:        ";",
	Colon:            ":",
	Comma:            ",",
	Dot:              ".",
	Equals:           "=",
	Amp:              "&",
	LDoubleBrace:     "{{",
	RDoubleBrace:     "}}",
	Arrow:            "->",
	KwTemplate:       "[Template]",
	KwCustom:         "[Custom]",
	KwOrigin:         "[Origin]",
	KwImport:         "[Import]",
	KwNamespace:      "[Namespace]",
	KwConfiguration:  "[Configuration]",
	KwInfo:           "[Info]",
	KwExport:         "[Export]",
	KwName:           "[Name]",
	KwOriginType:     "[OriginType]",
	AtStyle:          "@Style",
	AtElement:        "@Element",
	AtVar:            "@Var",
	AtHtml:           "@Html",
	AtJavaScript:     "@JavaScript",
	AtChtl:           "@Chtl",
	AtCJmod:          "@CJmod",
	AtTag:            "@tag",
	KwText:           "text",
	KwStyle:          "style",
	KwScript:         "script",
	KwInherit:        "inherit",
	KwDelete:         "delete",
	KwInsert:         "insert",
	KwAfter:          "after",
	KwBefore:         "before",
	KwReplace:        "replace",
	KwAtTop:          "at top",
	KwAtBottom:       "at bottom",
	KwFrom:           "from",
	KwAs:             "as",
	KwExcept:         "except",
	KwListen:         "listen",
	KwDelegate:       "delegate",
	KwAnimate:        "animate",
	KwVir:            "vir",
	LineComment:      "//comment",
	BlockComment:     "/*comment*/",
	GeneratorComment: "--comment",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// bracketKeywords maps the exact bracket-keyword spelling to its Kind.
// [Name] rebindings (see chtl/config) extend this table per-compilation,
// they never replace entries in it.
var bracketKeywords = map[string]Kind{
	"[Template]":      KwTemplate,
	"[Custom]":        KwCustom,
	"[Origin]":        KwOrigin,
	"[Import]":        KwImport,
	"[Namespace]":     KwNamespace,
	"[Configuration]": KwConfiguration,
	"[Info]":          KwInfo,
	"[Export]":        KwExport,
	"[Name]":          KwName,
	"[OriginType]":    KwOriginType,
}

// LookupBracketKeyword reports the Kind for an exact "[Word]" spelling,
// if any of the built-in bracket keywords match.
func LookupBracketKeyword(s string) (Kind, bool) {
	k, ok := bracketKeywords[s]
	return k, ok
}

var atTags = map[string]Kind{
	"@Style":      AtStyle,
	"@Element":    AtElement,
	"@Var":        AtVar,
	"@Html":       AtHtml,
	"@JavaScript": AtJavaScript,
	"@Chtl":       AtChtl,
	"@CJmod":      AtCJmod,
}

// LookupAtTag reports the Kind for a recognized "@Word" spelling; any
// other "@Word" is an AtTag (a custom origin-type tag).
func LookupAtTag(s string) Kind {
	if k, ok := atTags[s]; ok {
		return k
	}
	return AtTag
}

var contextualKeywords = map[string]Kind{
	"text":     KwText,
	"style":    KwStyle,
	"script":   KwScript,
	"inherit":  KwInherit,
	"delete":   KwDelete,
	"insert":   KwInsert,
	"after":    KwAfter,
	"before":   KwBefore,
	"replace":  KwReplace,
	"from":     KwFrom,
	"as":       KwAs,
	"except":   KwExcept,
	"listen":   KwListen,
	"delegate": KwDelegate,
	"animate":  KwAnimate,
	"vir":      KwVir,
}

// LookupContextualKeyword reports the Kind for a bare-word contextual
// keyword, if the word is not currently shadowed by an identifier use;
// the parser decides shadowing, the lexer only classifies.
func LookupContextualKeyword(s string) (Kind, bool) {
	k, ok := contextualKeywords[s]
	return k, ok
}

// Token is an immutable lexical unit. Once emitted by the lexer, a
// Token is never mutated.
type Token struct {
	Kind   Kind
	Value  string
	Quoted bool // for StringLiteral: was the literal quote-delimited
	Line   int
	Column int
	Offset int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Value, t.Line, t.Column)
}

// End returns Offset plus len(Value): one past the token's source slice
// when Value is the token's exact spelling. A StringLiteral's Value has
// its quotes removed and escapes decoded, so its End falls short of the
// closing quote.
func (t Token) End() int { return t.Offset + len(t.Value) }
