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
	"fmt"
	"regexp"
	"strings"
)

// lowerCHTLJS rewrites one script body's CHTL-JS syntax into plain
// JavaScript, per section 4.7: vir declarations become free functions,
// ->listen/->delegate calls become addEventListener wiring, remaining
// {{selector}} expressions lower to DOM queries, and any leftover "->"
// in method-call position becomes ".".
func lowerCHTLJS(raw string) string {
	s := lowerVir(raw)
	s = replaceCalls(s, "delegate", lowerDelegateBody)
	s = replaceCalls(s, "listen", lowerListenBody)
	s = replaceCalls(s, "animate", lowerAnimateBody)
	s = lowerBareSelectors(s)
	s = strings.ReplaceAll(s, "->", ".")
	return s
}

var bracketIdxRe = regexp.MustCompile(`^(.*)\[(\d+)\]$`)

// lowerSelector implements the {{selector}} rules: an indexed form
// picks one match out of querySelectorAll; a class/id/compound
// selector uses querySelector; a bare identifier tries getElementById,
// then a class lookup, then a raw tag/selector query, in that order.
func lowerSelector(sel string) string {
	sel = strings.TrimSpace(sel)
	if m := bracketIdxRe.FindStringSubmatch(sel); m != nil {
		base := strings.TrimSpace(m[1])
		return fmt.Sprintf("document.querySelectorAll('%s')[%s]", escapeJSString(base), m[2])
	}
	if strings.HasPrefix(sel, ".") || strings.HasPrefix(sel, "#") || strings.ContainsAny(sel, " >~+[:") {
		return fmt.Sprintf("document.querySelector('%s')", escapeJSString(sel))
	}
	return fmt.Sprintf("(function(){ return document.getElementById('%s') || document.querySelector('.%s') || document.querySelector('%s'); })()",
		escapeJSString(sel), escapeJSString(sel), escapeJSString(sel))
}

func escapeJSString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func lowerBareSelectors(src string) string {
	var out strings.Builder
	i := 0
	for {
		start := strings.Index(src[i:], "{{")
		if start < 0 {
			out.WriteString(src[i:])
			break
		}
		start += i
		closeRel := strings.Index(src[start+2:], "}}")
		if closeRel < 0 {
			out.WriteString(src[i:])
			break
		}
		end := start + 2 + closeRel
		out.WriteString(src[i:start])
		out.WriteString(lowerSelector(src[start+2 : end]))
		i = end + 2
	}
	return out.String()
}

func lowerListenBody(selector, body string) string {
	var sb strings.Builder
	sb.WriteString("var Q = " + lowerSelector(selector) + ";\n")
	sb.WriteString("if (Q) {\n")
	for _, pr := range splitTopLevelPairs(body) {
		evt, handler := splitKV(pr)
		fmt.Fprintf(&sb, "  Q.addEventListener('%s', %s);\n", evt, handler)
	}
	sb.WriteString("}")
	return sb.String()
}

func lowerDelegateBody(selector, body string) string {
	var target string
	var evtPairs []string
	for _, pr := range splitTopLevelPairs(body) {
		k, v := splitKV(pr)
		if k == "target" {
			target = extractBraceSelector(v)
		} else {
			evtPairs = append(evtPairs, pr)
		}
	}
	var sb strings.Builder
	sb.WriteString("var P = " + lowerSelector(selector) + ";\n")
	sb.WriteString("if (P) {\n")
	for _, pr := range evtPairs {
		evt, handler := splitKV(pr)
		fmt.Fprintf(&sb, "  P.addEventListener('%s', function(event) { if (event.target.matches('%s')) { (%s).call(event.target, event); } });\n",
			evt, target, handler)
	}
	sb.WriteString("}")
	return sb.String()
}

// lowerAnimateBody implements the `animate` helper: {{sel}}->animate({
// begin: {...}, end: {...}, duration: n, easing: 'e', loop: n, callback: fn })
// becomes one Web Animations API call, the same keyframe/options shape
// the helper's two keyframe arguments (begin/end) suggest.
func lowerAnimateBody(selector, body string) string {
	var duration, easing, loop, callback string
	var begin, end string
	for _, pr := range splitTopLevelPairs(body) {
		k, v := splitKV(pr)
		switch k {
		case "begin":
			begin = v
		case "end":
			end = v
		case "duration":
			duration = v
		case "easing":
			easing = v
		case "loop":
			loop = v
		case "callback":
			callback = v
		}
	}
	if duration == "" {
		duration = "300"
	}
	if easing == "" {
		easing = "'ease'"
	}
	if loop == "" {
		loop = "1"
	}
	if begin == "" {
		begin = "{}"
	}
	if end == "" {
		end = "{}"
	}
	var sb strings.Builder
	sb.WriteString("var A = " + lowerSelector(selector) + ";\n")
	sb.WriteString("if (A) {\n")
	fmt.Fprintf(&sb, "  var anim = A.animate([%s, %s], { duration: %s, easing: %s, iterations: %s });\n", begin, end, duration, easing, loop)
	if callback != "" {
		fmt.Fprintf(&sb, "  anim.finished.then(%s);\n", callback)
	}
	sb.WriteString("}")
	return sb.String()
}

func extractBraceSelector(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "{{")
	v = strings.TrimSuffix(v, "}}")
	return strings.TrimSpace(v)
}

var virHeaderRe = regexp.MustCompile(`vir\s+(\w+)\s*=\s*\w+\s*\(`)

// lowerVir rewrites "vir Name = fn({ key: body, ... });" into one free
// declaration per key, named Name_key.
func lowerVir(src string) string {
	var out strings.Builder
	i := 0
	for {
		loc := virHeaderRe.FindStringSubmatchIndex(src[i:])
		if loc == nil {
			out.WriteString(src[i:])
			break
		}
		start := i + loc[0]
		name := src[i+loc[2] : i+loc[3]]
		parenEnd := i + loc[1]

		p := skipSpace(src, parenEnd)
		if p >= len(src) || src[p] != '{' {
			out.WriteString(src[i:parenEnd])
			i = parenEnd
			continue
		}
		bodyEnd, ok := findMatchingBrace(src, p)
		if !ok {
			out.WriteString(src[i:parenEnd])
			i = parenEnd
			continue
		}
		body := src[p+1 : bodyEnd]

		q := skipSpace(src, bodyEnd+1)
		if q < len(src) && src[q] == ')' {
			q++
		}
		q = skipSpace(src, q)
		if q < len(src) && src[q] == ';' {
			q++
		}

		out.WriteString(src[i:start])
		out.WriteString(lowerVirBody(name, body))
		i = q
	}
	return out.String()
}

func lowerVirBody(name, body string) string {
	var sb strings.Builder
	for _, pr := range splitTopLevelPairs(body) {
		k, v := splitKV(pr)
		fmt.Fprintf(&sb, "const %s_%s = %s;\n", name, k, v)
	}
	return sb.String()
}

// ---- balanced-text scanning helpers ----

// replaceCalls finds every "{{selector}}->method({ ... });" call and
// replaces the whole span with fn(selector, body); anything that
// doesn't match this exact shape (wrong method name, no trailing
// brace) passes through unchanged.
func replaceCalls(src, method string, fn func(selector, body string) string) string {
	var out strings.Builder
	i, n := 0, len(src)
	for i < n {
		start := strings.Index(src[i:], "{{")
		if start < 0 {
			out.WriteString(src[i:])
			break
		}
		start += i
		closeRel := strings.Index(src[start+2:], "}}")
		if closeRel < 0 {
			out.WriteString(src[i:])
			break
		}
		selEnd := start + 2 + closeRel
		selector := src[start+2 : selEnd]

		p := skipSpace(src, selEnd+2)
		if !hasPrefixAt(src, p, "->") {
			out.WriteString(src[i : selEnd+2])
			i = selEnd + 2
			continue
		}
		p = skipSpace(src, p+2)
		if !hasPrefixAt(src, p, method+"(") {
			out.WriteString(src[i : selEnd+2])
			i = selEnd + 2
			continue
		}
		p = skipSpace(src, p+len(method)+1)
		if p >= n || src[p] != '{' {
			out.WriteString(src[i : selEnd+2])
			i = selEnd + 2
			continue
		}
		bodyEnd, ok := findMatchingBrace(src, p)
		if !ok {
			out.WriteString(src[i : selEnd+2])
			i = selEnd + 2
			continue
		}
		body := src[p+1 : bodyEnd]

		q := skipSpace(src, bodyEnd+1)
		if q < n && src[q] == ')' {
			q++
		}
		q = skipSpace(src, q)
		if q < n && src[q] == ';' {
			q++
		}

		out.WriteString(src[i:start])
		out.WriteString(fn(selector, body))
		i = q
	}
	return out.String()
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func hasPrefixAt(s string, i int, prefix string) bool {
	return i+len(prefix) <= len(s) && s[i:i+len(prefix)] == prefix
}

// findMatchingBrace returns the index of the '}' matching the '{' at
// src[open], tracking quotes so a brace inside a string or template
// literal never miscounts depth.
func findMatchingBrace(src string, open int) (int, bool) {
	depth := 0
	var quote byte
	for i := open; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// splitTopLevelPairs splits a "k: v, k2: v2" object body on commas
// that aren't nested inside (), {}, [], or a string/template literal.
func splitTopLevelPairs(body string) []string {
	var parts []string
	depth := 0
	var quote byte
	last := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(' || c == '{' || c == '[':
			depth++
		case c == ')' || c == '}' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, body[last:i])
			last = i + 1
		}
	}
	if strings.TrimSpace(body[last:]) != "" {
		parts = append(parts, body[last:])
	}
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

func splitKV(pair string) (key, value string) {
	idx := strings.Index(pair, ":")
	if idx < 0 {
		return strings.TrimSpace(pair), ""
	}
	return strings.TrimSpace(pair[:idx]), strings.TrimSpace(pair[idx+1:])
}
