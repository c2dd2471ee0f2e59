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

package diagnostic

import (
	"os"
	"testing"

	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/token"
)

// a regular file's descriptor is never a terminal, so it exercises the
// plain-text branch of both functions deterministically.
func nonTTYFd(t *testing.T) uintptr {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "chtl-diagnostic-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f.Fd()
}

func TestSnippetWithoutColorSupportPrintsPlainCaret(t *testing.T) {
	c := quicktest.New(t)

	src := []byte("div { id: \"main\"; }\n")
	toks := []token.Token{{Kind: token.Identifier, Value: "div", Line: 1, Column: 1}}
	out := Snippet(nonTTYFd(t), src, toks, errors.Position{Line: 1, Column: 5})

	c.Assert(out, quicktest.Equals, "div { id: \"main\"; }\n    ^")
}

func TestHighlightOutputWithoutColorSupportReturnsSourceUnchanged(t *testing.T) {
	c := quicktest.New(t)

	src := "<div>hi</div>"
	out := HighlightOutput(nonTTYFd(t), "html", src)
	c.Assert(out, quicktest.Equals, src)
}

func TestLineTextExtractsRequestedLine(t *testing.T) {
	c := quicktest.New(t)

	src := []byte("one\ntwo\nthree\n")
	c.Assert(lineText(src, 2), quicktest.Equals, "two")
	c.Assert(lineText(src, 3), quicktest.Equals, "three")
}
