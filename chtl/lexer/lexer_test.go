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

package lexer

import (
	"testing"

	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexBasicElementProducesExpectedTokenStream(t *testing.T) {
	c := quicktest.New(t)

	toks, diags := Lex("t.chtl", []byte(`div { id: "main"; }`), nil)
	c.Assert(diags.Len(), quicktest.Equals, 0)
	c.Assert(kinds(toks), quicktest.DeepEquals, []token.Kind{
		token.Identifier, token.LBrace, token.Identifier, token.Colon,
		token.StringLiteral, token.Semicolon, token.RBrace, token.EOF,
	})
}

func TestLexDoubleBraceAndArrowAreSingleTokens(t *testing.T) {
	c := quicktest.New(t)

	toks, diags := Lex("t.chtl", []byte(`{{.box}}->listen`), nil)
	c.Assert(diags.Len(), quicktest.Equals, 0)
	c.Assert(kinds(toks), quicktest.DeepEquals, []token.Kind{
		token.LDoubleBrace, token.Dot, token.Identifier, token.RDoubleBrace,
		token.Arrow, token.KwListen, token.EOF,
	})
}

func TestLexBracketKeywordRecognizesTemplate(t *testing.T) {
	c := quicktest.New(t)

	toks, diags := Lex("t.chtl", []byte(`[Template] @Style Box`), nil)
	c.Assert(diags.Len(), quicktest.Equals, 0)
	c.Assert(toks[0].Kind, quicktest.Equals, token.KwTemplate)
	c.Assert(toks[0].Value, quicktest.Equals, "[Template]")
	c.Assert(toks[1].Kind, quicktest.Equals, token.AtStyle)
}

func TestLexStringHandlesEscapes(t *testing.T) {
	c := quicktest.New(t)

	toks, diags := Lex("t.chtl", []byte(`"line1\nline2"`), nil)
	c.Assert(diags.Len(), quicktest.Equals, 0)
	c.Assert(toks[0].Value, quicktest.Equals, "line1\nline2")
}

func TestLexUnterminatedStringReportsDiagnostic(t *testing.T) {
	c := quicktest.New(t)

	_, diags := Lex("t.chtl", []byte(`"never closed`), nil)
	c.Assert(diags.Len(), quicktest.Equals, 1)
	c.Assert(diags.All()[0].Message, quicktest.Contains, "unterminated string")
}

func TestLexUnknownCharacterRecoversAndContinues(t *testing.T) {
	c := quicktest.New(t)

	toks, diags := Lex("t.chtl", []byte("div ` id"), nil)
	c.Assert(diags.Len(), quicktest.Equals, 1)
	c.Assert(kinds(toks), quicktest.DeepEquals, []token.Kind{
		token.Identifier, token.UnquotedLiteral, token.Identifier, token.EOF,
	})
}

func TestNameTableExtendsBracketKeywordSpelling(t *testing.T) {
	c := quicktest.New(t)

	names := &NameTable{ExtraBracketKeywords: map[string]token.Kind{"[Tmpl]": token.KwTemplate}}
	toks, diags := Lex("t.chtl", []byte(`[Tmpl] @Style Box`), names)
	c.Assert(diags.Len(), quicktest.Equals, 0)
	c.Assert(toks[0].Kind, quicktest.Equals, token.KwTemplate)
}

func TestGeneratorCommentIsLexedAsSingleToken(t *testing.T) {
	c := quicktest.New(t)

	toks, diags := Lex("t.chtl", []byte("-- a note\ndiv"), nil)
	c.Assert(diags.Len(), quicktest.Equals, 0)
	c.Assert(toks[0].Kind, quicktest.Equals, token.GeneratorComment)
	c.Assert(toks[1].Kind, quicktest.Equals, token.Identifier)
}
