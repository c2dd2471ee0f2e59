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

package errors

import (
	"testing"

	"github.com/frankban/quicktest"
)

func TestBagAddMarksAbortOnError(t *testing.T) {
	c := quicktest.New(t)

	b := NewBag()
	b.Addf(KindSemantic, SeverityWarning, Position{Line: 1}, "heads up")
	c.Assert(b.ShouldAbort(), quicktest.IsFalse)

	b.Addf(KindSemantic, SeverityError, Position{Line: 2}, "boom")
	c.Assert(b.ShouldAbort(), quicktest.IsTrue)
	c.Assert(b.Len(), quicktest.Equals, 2)
}

func TestBagInternalKindAlwaysAborts(t *testing.T) {
	c := quicktest.New(t)

	b := NewBag()
	b.Addf(KindInternal, SeverityWarning, Position{}, "illegal transition")
	c.Assert(b.ShouldAbort(), quicktest.IsTrue)
}

func TestElevatePromotesConstraintWarnings(t *testing.T) {
	c := quicktest.New(t)

	b := NewBag()
	b.Addf(KindConstraint, SeverityWarning, Position{}, "not allowed here")
	c.Assert(b.ShouldAbort(), quicktest.IsFalse)

	b.Elevate()
	c.Assert(b.ShouldAbort(), quicktest.IsTrue)
	c.Assert(b.Errors(), quicktest.HasLen, 1)
}

func TestBagMergePreservesOrder(t *testing.T) {
	c := quicktest.New(t)

	a := NewBag()
	a.Addf(KindLexical, SeverityWarning, Position{Line: 1}, "first")
	b := NewBag()
	b.Addf(KindSyntactic, SeverityWarning, Position{Line: 2}, "second")

	a.Merge(b)
	c.Assert(a.All(), quicktest.HasLen, 2)
	c.Assert(a.All()[0].Message, quicktest.Equals, "first")
	c.Assert(a.All()[1].Message, quicktest.Equals, "second")
}

func TestPositionStringOmitsFileWhenEmpty(t *testing.T) {
	c := quicktest.New(t)

	p := Position{Line: 4, Column: 2}
	c.Assert(p.String(), quicktest.Equals, "4:2")

	p.File = "index.chtl"
	c.Assert(p.String(), quicktest.Equals, "index.chtl:4:2")
}
