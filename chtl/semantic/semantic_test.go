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

package semantic

import (
	"testing"

	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/namespace"
	"github.com/chtl-lang/chtl/chtl/parser"
)

func mustParse(t *testing.T, file, src string) *Registry {
	t.Helper()
	doc, diags, _ := parser.Parse(file, []byte(src), nil)
	c := quicktest.New(t)
	c.Assert(diags.Errors(), quicktest.HasLen, 0, quicktest.Commentf("parse errors: %v", diags.Errors()))
	reg := NewRegistry()
	reg.RegisterFile(doc)
	return reg
}

func TestRegisterFileRegistersTopLevelStyleTemplate(t *testing.T) {
	c := quicktest.New(t)

	reg := mustParse(t, "a.chtl", `[Template] @Style DefaultText { color: black; }`)
	c.Assert(reg.Diagnostics().Len(), quicktest.Equals, 0)

	sym, ok := LookupStyle(reg.Root, "DefaultText")
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(sym.Kind, quicktest.Equals, namespace.TemplateStyle)

	node, ok := reg.Node(sym)
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(node.Name, quicktest.Equals, "DefaultText")
}

func TestRegisterFileDescendsIntoNamespaceBlocks(t *testing.T) {
	c := quicktest.New(t)

	reg := mustParse(t, "a.chtl", `[Namespace] ui {
		[Custom] @Style Card { color: red; }
	}`)
	c.Assert(reg.Diagnostics().Len(), quicktest.Equals, 0)

	_, ok := LookupStyle(reg.Root, "Card")
	c.Assert(ok, quicktest.IsFalse)

	child := reg.Root.Child("ui")
	sym, ok := LookupStyle(child, "Card")
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(sym.Kind, quicktest.Equals, namespace.CustomStyle)
	c.Assert(sym.Qualified, quicktest.Equals, "ui::Card")
}

func TestRegisterFileReportsDuplicateDefinitionAsDiagnostic(t *testing.T) {
	c := quicktest.New(t)

	reg := mustParse(t, "a.chtl", `[Template] @Style Box { color: black; }
	[Template] @Style Box { color: white; }`)

	c.Assert(reg.Diagnostics().Len(), quicktest.Equals, 1)

	sym, ok := LookupStyle(reg.Root, "Box")
	c.Assert(ok, quicktest.IsTrue)
	node, ok := reg.Node(sym)
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(node.Pos.Line, quicktest.Equals, 1)
}

func TestTemplateAndCustomOfSameNameCoexist(t *testing.T) {
	c := quicktest.New(t)

	reg := mustParse(t, "a.chtl", `[Template] @Style Box { color: black; }
	[Custom] @Style Box { color: white; }`)
	c.Assert(reg.Diagnostics().Len(), quicktest.Equals, 0)

	tSym, ok := reg.Root.Lookup(namespace.TemplateStyle, "Box")
	c.Assert(ok, quicktest.IsTrue)
	cSym, ok := reg.Root.Lookup(namespace.CustomStyle, "Box")
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(tSym.File, quicktest.Equals, cSym.File)
}

func TestResolveNamespacePathWalksDottedSegments(t *testing.T) {
	c := quicktest.New(t)

	reg := mustParse(t, "a.chtl", `[Namespace] outer {
		[Namespace] inner {
			[Template] @Var Theme { primary: "blue"; }
		}
	}`)
	c.Assert(reg.Diagnostics().Len(), quicktest.Equals, 0)

	ns, ok := ResolveNamespacePath(reg.Root, "outer.inner")
	c.Assert(ok, quicktest.IsTrue)

	sym, ok := LookupVar(ns, "Theme")
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(sym.Qualified, quicktest.Equals, "outer::inner::Theme")
}
