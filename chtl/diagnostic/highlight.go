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

// Package diagnostic renders colorized source for two CLI surfaces:
// a CHTL source snippet next to a diagnostic (classified from the
// token stream, section 4.2), and the compiled HTML/CSS/JS streams for
// "chtl inspect --highlight" (classified with Tree-sitter grammars,
// falling back to Chroma, the same two-tier strategy the teacher's own
// markup/highlight package uses for fenced code blocks).
package diagnostic

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	sitter "github.com/smacker/go-tree-sitter"
	tscss "github.com/smacker/go-tree-sitter/css"
	tshtml "github.com/smacker/go-tree-sitter/html"
	tsjs "github.com/smacker/go-tree-sitter/javascript"

	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/token"
)

// colorSupported gates ANSI output on whether stdout is a real
// terminal, the same check the teacher's CLI helpers make before
// calling fatih/color.
func colorSupported(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// tokenColor maps a CHTL token.Kind to the fatih/color attribute used
// to render it in a source snippet.
func tokenColor(k token.Kind) *color.Color {
	switch {
	case k == token.StringLiteral || k == token.UnquotedLiteral:
		return color.New(color.FgGreen)
	case k == token.Number:
		return color.New(color.FgMagenta)
	case k == token.LineComment || k == token.BlockComment || k == token.GeneratorComment:
		return color.New(color.FgHiBlack)
	case isBracketKeyword(k):
		return color.New(color.FgCyan, color.Bold)
	case isAtTag(k):
		return color.New(color.FgYellow, color.Bold)
	case isContextualKeyword(k):
		return color.New(color.FgBlue)
	case k == token.Identifier:
		return color.New(color.FgWhite)
	default:
		return color.New(color.Reset)
	}
}

func isBracketKeyword(k token.Kind) bool {
	return k >= token.KwTemplate && k <= token.KwOriginType
}

func isAtTag(k token.Kind) bool {
	return k >= token.AtStyle && k <= token.AtTag
}

func isContextualKeyword(k token.Kind) bool {
	return k >= token.KwText && k <= token.KwVir
}

// Snippet renders the source line containing pos, with toks (already
// lexed for the same file) colorized and a caret under the reported
// column, for printing next to a diagnostic. fd is the output file
// descriptor, checked for color support.
func Snippet(fd uintptr, src []byte, toks []token.Token, pos errors.Position) string {
	line := lineText(src, pos.Line)
	if !colorSupported(fd) {
		return fmt.Sprintf("%s\n%s^", line, strings.Repeat(" ", max(0, pos.Column-1)))
	}

	var b strings.Builder
	lastEnd := 0
	for _, t := range toks {
		if t.Line != pos.Line {
			continue
		}
		col := t.Column - 1
		if col < lastEnd {
			continue
		}
		b.WriteString(line[lastEnd:col])
		tokenColor(t.Kind).Fprint(&b, t.Value)
		lastEnd = col + len(t.Value)
	}
	if lastEnd < len(line) {
		b.WriteString(line[lastEnd:])
	}
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", max(0, pos.Column-1)))
	color.New(color.FgRed, color.Bold).Fprint(&b, "^")
	return b.String()
}

func lineText(src []byte, line int) string {
	cur := 1
	start := 0
	for i, b := range src {
		if cur == line {
			start = i
			break
		}
		if b == '\n' {
			cur++
		}
	}
	end := start
	for end < len(src) && src[end] != '\n' {
		end++
	}
	return string(src[start:end])
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// treeSitterLangs is the narrow slice of the teacher's own
// markup/highlight grammar table this package needs: CHTL emits
// exactly three languages, never the 30+ markup/highlight supports.
var treeSitterLangs = map[string]func() *sitter.Language{
	"html":       tshtml.GetLanguage,
	"css":        tscss.GetLanguage,
	"javascript": tsjs.GetLanguage,
}

// HighlightOutput colorizes one generated stream (html/css/javascript)
// for terminal review ("chtl inspect --highlight"), using Tree-sitter
// when the grammar parses cleanly and falling back to Chroma's lexer
// + terminal formatter otherwise, exactly the fallback order
// markup/highlight.treeSitterHighlighter uses for fenced code blocks.
func HighlightOutput(fd uintptr, lang, src string) string {
	if !colorSupported(fd) {
		return src
	}
	if out, ok := tryTreeSitter(lang, src); ok {
		return out
	}
	return tryChroma(lang, src)
}

func tryTreeSitter(lang, src string) (string, bool) {
	langFunc, ok := treeSitterLangs[lang]
	if !ok {
		return "", false
	}
	p := sitter.NewParser()
	p.SetLanguage(langFunc())
	tree, err := p.ParseCtx(context.Background(), nil, []byte(src))
	if err != nil || tree == nil {
		return "", false
	}
	defer tree.Close()
	var b strings.Builder
	renderNode(tree.RootNode(), []byte(src), &b)
	return b.String(), true
}

func renderNode(n *sitter.Node, source []byte, b *strings.Builder) {
	if n == nil {
		return
	}
	if n.ChildCount() == 0 {
		c := nodeColor(n.Type())
		if c != nil {
			c.Fprint(b, n.Content(source))
		} else {
			b.WriteString(n.Content(source))
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		renderNode(n.Child(i), source, b)
	}
}

func nodeColor(nodeType string) *color.Color {
	switch {
	case strings.Contains(nodeType, "comment"):
		return color.New(color.FgHiBlack)
	case strings.Contains(nodeType, "string"):
		return color.New(color.FgGreen)
	case strings.Contains(nodeType, "tag_name"):
		return color.New(color.FgCyan, color.Bold)
	case strings.Contains(nodeType, "attribute_name") || strings.Contains(nodeType, "property_name"):
		return color.New(color.FgYellow)
	case strings.Contains(nodeType, "number"):
		return color.New(color.FgMagenta)
	default:
		return nil
	}
}

// tryChroma is the fallback path: Chroma's lexer registry plus its
// ANSI-terminal formatter, matching markup/highlight's chromaHighlighter.
func tryChroma(lang, src string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := lexer.Tokenise(nil, src)
	if err != nil {
		return src
	}
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.TTY256
	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return src
	}
	return b.String()
}
