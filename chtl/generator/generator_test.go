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
	"testing"

	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/parser"
)

func generate(t *testing.T, src string) *Output {
	t.Helper()
	doc, parseDiags, _ := parser.Parse("test.chtl", []byte(src), nil)
	c := quicktest.New(t)
	c.Assert(parseDiags.Errors(), quicktest.HasLen, 0, quicktest.Commentf("parse errors: %v", parseDiags.Errors()))
	return New(doc, Options{}).Generate()
}

// S1 — attribute with CE-equivalence: ":" and "=" produce identical output.
func TestAttributeColonAndEqualsAreEquivalent(t *testing.T) {
	c := quicktest.New(t)

	outColon := generate(t, `div { id : "main" ; }`)
	outEquals := generate(t, `div { id = "main" ; }`)

	c.Assert(outColon.HTML, quicktest.Equals, `<div id="main"></div>`)
	c.Assert(outEquals.HTML, quicktest.Equals, outColon.HTML)
}

// S2 — local style auto-class: "&" expands to the first auto-class.
func TestLocalStyleAutoClassAndAmpersandExpansion(t *testing.T) {
	c := quicktest.New(t)

	out := generate(t, `div {
		style {
			.card { color: red; }
			& { padding: 8px; }
		}
	}`)

	c.Assert(out.HTML, quicktest.Contains, `class="card"`)
	c.Assert(out.CSS, quicktest.Contains, ".card { color: red; }")
	c.Assert(out.CSS, quicktest.Contains, ".card { padding: 8px; }")
}

// S3 — template expansion: a referenced @Style template's properties
// reach the using element.
func TestStyleTemplateExpansionReachesUsingElement(t *testing.T) {
	c := quicktest.New(t)

	out := generate(t, `[Template] @Style DefaultText { color: black; line-height: 1.6; }
	p { style { @Style DefaultText; } }`)

	c.Assert(out.HTML, quicktest.Contains, "color: black;")
	c.Assert(out.HTML, quicktest.Contains, "line-height: 1.6;")
}

// S5 — a global script block without CHTL constructs is emitted as
// plain JavaScript. (A global script containing @Style, which is
// disallowed there, is dropped with a warning instead.)
func TestGlobalScriptPassesPlainJavaScriptThrough(t *testing.T) {
	c := quicktest.New(t)

	out := generate(t, `script { console.log(1); }`)
	c.Assert(out.JS, quicktest.Contains, "console.log(1);")
}

// S6 — CHTL-JS listen lowering.
func TestListenLowersToAddEventListener(t *testing.T) {
	c := quicktest.New(t)

	out := generate(t, `div { class: box; script {
		{{.box}}->listen({ click: function() { console.log(1); } });
	} }`)

	c.Assert(out.JS, quicktest.Contains, "document.querySelector('.box')")
	c.Assert(out.JS, quicktest.Contains, "addEventListener('click'")
}

func TestVoidElementSelfCloses(t *testing.T) {
	c := quicktest.New(t)

	out := generate(t, `img { src : "a.png" ; }`)
	c.Assert(out.HTML, quicktest.Equals, `<img src="a.png" />`)
}

func TestTextContentIsEscaped(t *testing.T) {
	c := quicktest.New(t)

	out := generate(t, `div { text { "<script>" } }`)
	c.Assert(out.HTML, quicktest.Not(quicktest.Contains), "<script>")
	c.Assert(out.HTML, quicktest.Contains, "&lt;script&gt;")
}

func TestFullDocumentWrapsWithDoctype(t *testing.T) {
	c := quicktest.New(t)

	doc, diags, _ := parser.Parse("test.chtl", []byte(`div { text { "hi" } }`), nil)
	c.Assert(diags.Errors(), quicktest.HasLen, 0)
	out := New(doc, Options{FullDocument: true, Title: "Home"}).Generate()

	c.Assert(out.HTML, quicktest.Contains, "<!DOCTYPE html>")
	c.Assert(out.HTML, quicktest.Contains, "<title>Home</title>")
}
