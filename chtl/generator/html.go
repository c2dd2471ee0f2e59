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
	"strings"

	"golang.org/x/net/html/atom"
)

// textEscaper implements the exact five-entity escape table from spec
// section 8, property 7 / section 4.7. The stdlib and x/net/html
// escapers both spell the quote entities differently (numeric "&#34;"
// / "&#39;" instead of "&quot;" / "&#39;" in the order the spec wants),
// so this is a small literal Replacer rather than a reused library
// call. A Replacer makes a single pass and never rescans its own
// output, so the entities it emits are not escaped a second time.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeText escapes a text node's content per section 4.7.
func EscapeText(s string) string { return textEscaper.Replace(s) }

// EscapeAttr escapes an attribute value the same way; attribute values
// are always emitted double-quoted (section 4.7), so the quote escape
// matters here most.
func EscapeAttr(s string) string { return textEscaper.Replace(s) }

// voidAtoms is the HTML void-element set from section 4.3, expressed
// against golang.org/x/net/html/atom's canonical tag atoms instead of a
// hand-rolled string set.
var voidAtoms = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

// IsVoidElement reports whether tag is in the HTML void-element set.
func IsVoidElement(tag string) bool {
	return voidAtoms[atom.Lookup([]byte(strings.ToLower(tag)))]
}
