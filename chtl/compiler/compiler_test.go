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

package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/importer"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// A imports B, B imports A back: the cycle is reported once and
// dropped rather than recursing forever, and the importing file's own
// content still compiles.
func TestCompileReportsImportCycleAndKeepsCompiling(t *testing.T) {
	c := quicktest.New(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.chtl", `[Import] @Chtl from "b.chtl";
div { text { "a" } }`)
	writeFile(t, dir, "b.chtl", `[Import] @Chtl from "a.chtl";
div { text { "b" } }`)

	comp := New(Options{Roots: importer.SearchRoots{CurrentDir: dir}})
	src, err := os.ReadFile(filepath.Join(dir, "a.chtl"))
	c.Assert(err, quicktest.IsNil)

	out := comp.Compile(filepath.Join(dir, "a.chtl"), src)

	var cycles []errors.Diagnostic
	for _, d := range out.Diagnostics.All() {
		if d.Kind == errors.KindSemantic {
			cycles = append(cycles, d)
		}
	}
	c.Assert(cycles, quicktest.HasLen, 1)
	c.Assert(cycles[0].Message, quicktest.Contains, "cycle")
	c.Assert(out.HTML, quicktest.Contains, ">a<")
}

// A top-level "except" targets a construct the global scope's
// whitelist does not carry, so the constrainer reports one violation
// while the rest of the document still generates.
func TestCompileReportsConstraintViolationForTopLevelExcept(t *testing.T) {
	c := quicktest.New(t)

	src := []byte(`except [Template];
div { text { "ok" } }`)

	comp := New(Options{})
	out := comp.Compile("violation.chtl", src)

	var constraintDiags []errors.Diagnostic
	for _, d := range out.Diagnostics.All() {
		if d.Kind == errors.KindConstraint {
			constraintDiags = append(constraintDiags, d)
		}
	}
	c.Assert(constraintDiags, quicktest.HasLen, 1)
	c.Assert(constraintDiags[0].Message, quicktest.Contains, "not allowed in global context")
	c.Assert(out.HTML, quicktest.Contains, ">ok<")
}

// Strict mode elevates that same constraint warning to an aborting
// error, per config.Project.Compile.StrictConstraints.
func TestStrictModeElevatesConstraintViolations(t *testing.T) {
	c := quicktest.New(t)

	src := []byte(`except [Template];
div { text { "ok" } }`)

	comp := New(Options{Strict: true})
	out := comp.Compile("violation.chtl", src)

	c.Assert(out.Success, quicktest.IsFalse)
}

// An [Except] targeting [Template] forbids a subsequent @Element
// reference to a template for the rest of its enclosing scope (per
// section 4.5, except narrows the whitelist rather than widening it),
// while the same reference compiles cleanly without a preceding
// except.
func TestExceptTemplateForbidsLaterTemplateReference(t *testing.T) {
	c := quicktest.New(t)

	src := []byte(`[Template] @Element Box { div { text { "boxed" } } }
section {
	except [Template];
	@Element Box;
}`)

	comp := New(Options{})
	out := comp.Compile("except.chtl", src)

	var constraintDiags []errors.Diagnostic
	for _, d := range out.Diagnostics.All() {
		if d.Kind == errors.KindConstraint {
			constraintDiags = append(constraintDiags, d)
		}
	}
	c.Assert(constraintDiags, quicktest.HasLen, 1)
	c.Assert(constraintDiags[0].Message, quicktest.Contains, "@Element reference is not allowed in element context")
}

// An asset import (@Html/@Style/@JavaScript) with no "as" alias is
// silently skipped with a warning rather than spliced into the
// output, per the section 4.4 import rules.
func TestRawAssetImportWithoutAliasIsSkippedWithWarning(t *testing.T) {
	c := quicktest.New(t)

	dir := t.TempDir()
	writeFile(t, dir, "snippet.html", "<p>raw</p>")
	writeFile(t, dir, "entry.chtl", `[Import] @Html from "snippet.html";
div { text { "ok" } }`)

	comp := New(Options{Roots: importer.SearchRoots{CurrentDir: dir}})
	src, err := os.ReadFile(filepath.Join(dir, "entry.chtl"))
	c.Assert(err, quicktest.IsNil)

	out := comp.Compile(filepath.Join(dir, "entry.chtl"), src)

	c.Assert(out.HTML, quicktest.Not(quicktest.Contains), "raw")
	c.Assert(out.Diagnostics.Warnings(), quicktest.HasLen, 1)
	c.Assert(out.Diagnostics.Warnings()[0].Message, quicktest.Contains, "no \"as\" alias")
}
