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

// Package scanner implements the unified scanner / fragment dispatcher
// from spec section 4.1: it splits CHTL source into typed slices
// without fully parsing, so the parser can hand off opaque CSS/JS/
// CHTL-JS spans instead of tokenizing them itself.
package scanner

import (
	"bytes"

	"github.com/chtl-lang/chtl/chtl/errors"
)

// Kind is the sub-language a Fragment is attributed to.
type Kind int

const (
	CHTL Kind = iota
	CHTLJS
	CSS
	JavaScript
	Mixed
	Unknown
)

func (k Kind) String() string {
	switch k {
	case CHTL:
		return "CHTL"
	case CHTLJS:
		return "CHTL-JS"
	case CSS:
		return "CSS"
	case JavaScript:
		return "JavaScript"
	case Mixed:
		return "Mixed"
	default:
		return "Unknown"
	}
}

// Fragment is one typed slice of the source.
type Fragment struct {
	Kind        Kind
	Start, End  int // byte range [Start, End)
	Line, Col   int
	CanAggregate bool
}

const (
	defaultStep    = 512
	defaultHardMax = 8 * 1024
)

// Options tunes the growth behavior described in section 4.1.
type Options struct {
	Step    int
	HardMax int
}

// DefaultOptions returns the spec's default step/hard-max.
func DefaultOptions() Options { return Options{Step: defaultStep, HardMax: defaultHardMax} }

// Dispatcher walks a source buffer and emits typed fragments.
type Dispatcher struct {
	file string
	src  []byte
	opts Options
	bag  *errors.Bag
}

// New returns a Dispatcher over src.
func New(file string, src []byte, opts Options) *Dispatcher {
	if opts.Step <= 0 {
		opts.Step = defaultStep
	}
	if opts.HardMax <= 0 {
		opts.HardMax = defaultHardMax
	}
	return &Dispatcher{file: file, src: src, opts: opts, bag: errors.NewBag()}
}

// Diagnostics returns recoverable diagnostics raised while scanning.
func (d *Dispatcher) Diagnostics() *errors.Bag { return d.bag }

type scanState struct {
	depth       int
	inString    byte // 0, or the active quote rune
	inLineCmt   bool
	inBlockCmt  bool
	inGenCmt    bool
}

// Scan produces the full fragment stream for the source.
func (d *Dispatcher) Scan() []Fragment {
	var frags []Fragment
	pos := 0
	line, col := 1, 1
	n := len(d.src)

	for pos < n {
		start := pos
		startLine, startCol := line, col
		kind, end, newLine, newCol := d.scanOne(pos, line, col)
		if end <= start {
			// Defensive: never spin on a zero-width fragment.
			end = start + 1
			newLine, newCol = advance(line, col, d.src[start:end])
		}
		frags = append(frags, Fragment{Kind: kind, Start: start, End: end, Line: startLine, Col: startCol, CanAggregate: kind == CHTL})
		pos = end
		line, col = newLine, newCol
	}
	return mergeAdjacent(frags)
}

// scanOne determines the kind and extent of the fragment starting at
// pos, applying the priority-ordered heuristics from section 4.1.
func (d *Dispatcher) scanOne(pos, line, col int) (Kind, int, int, int) {
	rest := d.src[pos:]

	switch {
	case bytes.HasPrefix(rest, []byte("[Origin]")):
		return d.scanOrigin(pos, line, col)
	case bytes.HasPrefix(rest, []byte("script")) && followedByBraceBlock(d.src, pos+len("script")):
		return d.scanScriptBody(pos, line, col)
	case bytes.HasPrefix(rest, []byte("style")) && followedByBraceBlock(d.src, pos+len("style")):
		return d.scanStyleBody(pos, line, col)
	default:
		return d.scanPlainChtl(pos, line, col)
	}
}

// followedByBraceBlock reports whether, skipping whitespace from pos,
// the next non-space byte is '{'.
func followedByBraceBlock(src []byte, pos int) bool {
	for pos < len(src) {
		b := src[pos]
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			pos++
			continue
		}
		return b == '{'
	}
	return false
}

// BalancedBlockEnd exposes scanBalancedBlock so callers outside this
// package (the parser's opaque script/origin body capture) can hand
// off span-finding to the dispatcher instead of re-tokenizing, per
// section 4.1's stated purpose.
func (d *Dispatcher) BalancedBlockEnd(from int) (end int, hitMax bool) {
	return d.scanBalancedBlock(from)
}

// scanBalancedBlock finds the matching close brace for the '{' at or
// after headerEnd, growing the window per the configured step/hard-max
// when the block does not close promptly; it tracks string/comment
// state so braces inside those are not mistaken for nesting.
func (d *Dispatcher) scanBalancedBlock(headerEnd int) (blockEnd int, hitMax bool) {
	src := d.src
	i := headerEnd
	for i < len(src) && src[i] != '{' {
		i++
	}
	if i >= len(src) {
		return len(src), false
	}
	st := scanState{}
	depth := 0
	limit := i + d.opts.HardMax
	if limit > len(src) {
		limit = len(src)
	}
	for i < len(src) {
		if i >= limit {
			// Grow window by Step up to HardMax total from block start.
			extra := d.opts.Step
			limit += extra
			if limit > len(src) {
				limit = len(src)
			}
			if limit-headerEnd > d.opts.HardMax && limit < len(src) {
				return i, true
			}
		}
		b := src[i]
		switch {
		case st.inLineCmt:
			if b == '\n' {
				st.inLineCmt = false
			}
		case st.inBlockCmt:
			if b == '*' && i+1 < len(src) && src[i+1] == '/' {
				st.inBlockCmt = false
				i++
			}
		case st.inString != 0:
			if b == '\\' {
				i++
			} else if b == st.inString {
				st.inString = 0
			}
		case b == '/' && i+1 < len(src) && src[i+1] == '/':
			st.inLineCmt = true
			i++
		case b == '/' && i+1 < len(src) && src[i+1] == '*':
			st.inBlockCmt = true
			i++
		case b == '"' || b == '\'':
			st.inString = b
		case b == '{':
			depth++
		case b == '}':
			depth--
			if depth == 0 {
				return i + 1, false
			}
		}
		i++
	}
	return len(src), false
}

func (d *Dispatcher) scanScriptBody(pos, line, col int) (Kind, int, int, int) {
	end, hitMax := d.scanBalancedBlock(pos)
	body := d.src[pos:end]
	kind := JavaScript
	if looksLikeChtlJS(body) {
		kind = CHTLJS
	}
	if hitMax {
		kind = Mixed
		d.bag.Addf(errors.KindLexical, errors.SeverityWarning,
			errors.Position{File: d.file, Line: line, Column: col, Offset: pos},
			"script block did not close within %d bytes; continuing on partial input", d.opts.HardMax)
	}
	nl, nc := advance(line, col, body)
	return kind, end, nl, nc
}

func (d *Dispatcher) scanStyleBody(pos, line, col int) (Kind, int, int, int) {
	end, hitMax := d.scanBalancedBlock(pos)
	body := d.src[pos:end]
	kind := CSS
	if looksLikeChtlInStyle(body) {
		kind = CHTL
	}
	if hitMax {
		kind = Mixed
		d.bag.Addf(errors.KindLexical, errors.SeverityWarning,
			errors.Position{File: d.file, Line: line, Column: col, Offset: pos},
			"style block did not close within %d bytes; continuing on partial input", d.opts.HardMax)
	}
	nl, nc := advance(line, col, body)
	return kind, end, nl, nc
}

func (d *Dispatcher) scanOrigin(pos, line, col int) (Kind, int, int, int) {
	end, _ := d.scanBalancedBlock(pos)
	body := d.src[pos:end]
	nl, nc := advance(line, col, body)
	return CHTL, end, nl, nc // the header itself parses as CHTL; its raw body is opaque to the parser, not the scanner
}

// scanPlainChtl consumes one "minimal unit" of plain CHTL structure: up
// to the next recognized boundary (a following "script {"/"style {"
// header or "[Origin]") or, failing that, to end of input.
func (d *Dispatcher) scanPlainChtl(pos, line, col int) (Kind, int, int, int) {
	src := d.src
	i := pos
	st := scanState{}
	for i < len(src) {
		switch {
		case st.inLineCmt:
			if src[i] == '\n' {
				st.inLineCmt = false
			}
		case st.inBlockCmt:
			if src[i] == '*' && i+1 < len(src) && src[i+1] == '/' {
				st.inBlockCmt = false
				i++
			}
		case st.inString != 0:
			if src[i] == '\\' {
				i++
			} else if src[i] == st.inString {
				st.inString = 0
			}
		case bytes.HasPrefix(src[i:], []byte("//")):
			st.inLineCmt = true
			i++
		case bytes.HasPrefix(src[i:], []byte("/*")):
			st.inBlockCmt = true
			i++
		case src[i] == '"' || src[i] == '\'':
			st.inString = src[i]
		case i > pos && bytes.HasPrefix(src[i:], []byte("[Origin]")):
			goto done
		case i > pos && bytes.HasPrefix(src[i:], []byte("script")) && followedByBraceBlock(src, i+len("script")):
			goto done
		case i > pos && bytes.HasPrefix(src[i:], []byte("style")) && followedByBraceBlock(src, i+len("style")):
			goto done
		}
		i++
	}
done:
	body := src[pos:i]
	nl, nc := advance(line, col, body)
	return CHTL, i, nl, nc
}

// looksLikeChtlJS applies the priority-1 heuristic from section 4.1.
func looksLikeChtlJS(body []byte) bool {
	if bytes.Contains(body, []byte("{{")) {
		return true
	}
	if bytes.Contains(body, []byte("->")) {
		return true
	}
	for _, helper := range [][]byte{[]byte("listen"), []byte("delegate"), []byte("animate"), []byte("vir ")} {
		if bytes.Contains(body, helper) {
			return true
		}
	}
	return false
}

// looksLikeChtlInStyle applies the priority-2 heuristic from section 4.1.
func looksLikeChtlInStyle(body []byte) bool {
	for _, marker := range [][]byte{[]byte("@Style"), []byte("@Var"), []byte("inherit"), []byte("delete"), []byte(" from ")} {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func advance(line, col int, s []byte) (int, int) {
	for _, b := range s {
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// mergeAdjacent implements the minimal-unit aggregation rule: adjacent
// fragments of the same kind that are both marked CanAggregate are
// merged into one, up to no explicit cap (the cap in the reference
// design governs unit *granularity* during parsing, not stream size).
func mergeAdjacent(frags []Fragment) []Fragment {
	if len(frags) == 0 {
		return frags
	}
	out := frags[:1]
	for _, f := range frags[1:] {
		last := &out[len(out)-1]
		if last.CanAggregate && f.CanAggregate && last.Kind == f.Kind && last.End == f.Start {
			last.End = f.End
			continue
		}
		out = append(out, f)
	}
	return out
}

// Slice returns the source bytes for a Fragment.
func (d *Dispatcher) Slice(f Fragment) []byte { return d.src[f.Start:f.End] }
