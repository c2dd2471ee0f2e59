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

package namespace

import (
	"testing"

	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/ast"
)

func TestRegisterRejectsDuplicateNameAndKind(t *testing.T) {
	c := quicktest.New(t)

	ns := New("")
	c.Assert(ns.Register(Symbol{Name: "Box", Kind: TemplateStyle, File: "a.chtl", Line: 1}), quicktest.IsNil)

	err := ns.Register(Symbol{Name: "Box", Kind: TemplateStyle, File: "b.chtl", Line: 2})
	c.Assert(err, quicktest.Not(quicktest.IsNil))
	var conflict *ConflictError
	c.Assert(err, quicktest.ErrorAs, &conflict)
	c.Assert(conflict.PriorFile, quicktest.Equals, "a.chtl")
}

func TestRegisterAllowsSameNameDifferentKind(t *testing.T) {
	c := quicktest.New(t)

	ns := New("")
	c.Assert(ns.Register(Symbol{Name: "Box", Kind: TemplateStyle}), quicktest.IsNil)
	c.Assert(ns.Register(Symbol{Name: "Box", Kind: TemplateElement}), quicktest.IsNil)
}

func TestLookupChainWalksAncestors(t *testing.T) {
	c := quicktest.New(t)

	root := New("")
	c.Assert(root.Register(Symbol{Name: "Base", Kind: CustomStyle}), quicktest.IsNil)

	child := root.Child("inner")
	_, ok := child.Lookup(CustomStyle, "Base")
	c.Assert(ok, quicktest.IsFalse)

	_, ok = child.LookupChain(CustomStyle, "Base")
	c.Assert(ok, quicktest.IsTrue)
}

func TestMergeCollectsConflictsWithoutPartialMutation(t *testing.T) {
	c := quicktest.New(t)

	a := New("")
	c.Assert(a.Register(Symbol{Name: "Box", Kind: TemplateStyle, File: "a.chtl"}), quicktest.IsNil)

	b := New("")
	c.Assert(b.Register(Symbol{Name: "Box", Kind: TemplateStyle, File: "b.chtl"}), quicktest.IsNil)

	errs := Merge(a, b)
	c.Assert(errs, quicktest.HasLen, 1)

	sym, ok := a.Lookup(TemplateStyle, "Box")
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(sym.File, quicktest.Equals, "a.chtl")
}

func TestQualifiedNameJoinsWithDoubleColon(t *testing.T) {
	c := quicktest.New(t)

	root := New("ui")
	c.Assert(root.Register(Symbol{Name: "Box", Kind: TemplateElement, Payload: ast.NilNode}), quicktest.IsNil)
	sym, _ := root.Lookup(TemplateElement, "Box")
	c.Assert(sym.Qualified, quicktest.Equals, "ui::Box")
}

func TestSplitQualifiedAcceptsBothSeparators(t *testing.T) {
	c := quicktest.New(t)

	c.Assert(SplitQualified("a::b::c"), quicktest.DeepEquals, []string{"a", "b", "c"})
	c.Assert(SplitQualified("a.b.c"), quicktest.DeepEquals, []string{"a", "b", "c"})
}
