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

package token

import (
	"testing"

	"github.com/frankban/quicktest"
)

func TestLookupBracketKeywordRecognizesBuiltins(t *testing.T) {
	c := quicktest.New(t)

	k, ok := LookupBracketKeyword("[Template]")
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(k, quicktest.Equals, KwTemplate)

	_, ok = LookupBracketKeyword("[NotARealKeyword]")
	c.Assert(ok, quicktest.IsFalse)
}

func TestLookupAtTagFallsBackToGenericAtTag(t *testing.T) {
	c := quicktest.New(t)

	c.Assert(LookupAtTag("@Style"), quicktest.Equals, AtStyle)
	c.Assert(LookupAtTag("@MyCustomOrigin"), quicktest.Equals, AtTag)
}

func TestLookupContextualKeywordRecognizesVir(t *testing.T) {
	c := quicktest.New(t)

	k, ok := LookupContextualKeyword("vir")
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(k, quicktest.Equals, KwVir)

	_, ok = LookupContextualKeyword("notAKeyword")
	c.Assert(ok, quicktest.IsFalse)
}

func TestTokenStringIncludesPosition(t *testing.T) {
	c := quicktest.New(t)

	tok := Token{Kind: Identifier, Value: "div", Line: 3, Column: 5}
	c.Assert(tok.String(), quicktest.Contains, "3")
	c.Assert(tok.String(), quicktest.Contains, "div")
}
