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

package constraint

import (
	"testing"

	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/parser"
)

func check(t *testing.T, src string) *errors.Bag {
	t.Helper()
	doc, parseDiags, _ := parser.Parse("t.chtl", []byte(src), nil)
	c := quicktest.New(t)
	c.Assert(parseDiags.Errors(), quicktest.HasLen, 0, quicktest.Commentf("parse errors: %v", parseDiags.Errors()))

	checker := NewChecker(doc.Arena)
	checker.Check(doc)
	return checker.Diagnostics()
}

// [Except] targeting a construct absent from the global scope's
// whitelist reports exactly one constraint violation.
func TestTopLevelExceptTemplateIsConstraintViolation(t *testing.T) {
	c := quicktest.New(t)

	diags := check(t, `except [Template];
div { text { "ok" } }`)
	c.Assert(diags.Len(), quicktest.Equals, 1)
	c.Assert(diags.All()[0].Kind, quicktest.Equals, errors.KindConstraint)
	c.Assert(diags.All()[0].Message, quicktest.Contains, "not allowed in global context")
}

// A plain element with text and an attribute is entirely within the
// global scope's whitelist and reports nothing.
func TestOrdinaryElementReportsNoViolations(t *testing.T) {
	c := quicktest.New(t)

	diags := check(t, `div { id: "main"; text { "hi" } }`)
	c.Assert(diags.Len(), quicktest.Equals, 0)
}

// A local script block's raw body is opaque to the constrainer: it
// checks only that ConstructLocalScriptBlock itself is permitted on
// the enclosing element, never descending into the script text.
func TestLocalScriptBlockBodyIsNeverInspected(t *testing.T) {
	c := quicktest.New(t)

	diags := check(t, `div {
		script {
			console.log("anything goes here, even @Style Box;");
		}
	}`)
	c.Assert(diags.Len(), quicktest.Equals, 0)
}

// "except global;" forbids every construct for the rest of the
// enclosing scope, so a subsequent statement that would otherwise be
// allowed is now reported too (alongside the except statement's own
// violation, since [Except] itself isn't in the global whitelist).
func TestExceptGlobalForbidsRestOfScope(t *testing.T) {
	c := quicktest.New(t)

	diags := check(t, `except global;
div { text { "ok" } }`)
	c.Assert(diags.Len(), quicktest.Equals, 2)
	c.Assert(diags.All()[1].Message, quicktest.Contains, "element is not allowed in global context")
}

// "except [Template];" inside an element body (where ConstructExcept
// and ConstructTemplateRef both appear in the base whitelist) forbids
// a subsequent @Element reference for the remainder of that element's
// body, per section 4.5's "augments the default rules with additional
// forbidden items".
func TestExceptTemplateForbidsSubsequentTemplateReference(t *testing.T) {
	c := quicktest.New(t)

	diags := check(t, `[Template] @Element Box { div { text { "boxed" } } }
section {
	except [Template];
	@Element Box;
}`)
	c.Assert(diags.Len(), quicktest.Equals, 1)
	c.Assert(diags.All()[0].Message, quicktest.Contains, "@Element reference is not allowed in element context")
}

// Without a preceding except, the same @Element reference is entirely
// within the element scope's whitelist and reports nothing.
func TestTemplateReferenceWithoutExceptReportsNoViolation(t *testing.T) {
	c := quicktest.New(t)

	diags := check(t, `[Template] @Element Box { div { text { "boxed" } } }
section {
	@Element Box;
}`)
	c.Assert(diags.Len(), quicktest.Equals, 0)
}
