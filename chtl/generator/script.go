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

	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/errors"
)

// Script bodies are captured by the parser as one opaque string
// (section 4.3), so the constrainer never sees their interior as
// nodes. These patterns let the generator apply section 4.5's script
// whitelist textually before lowering CHTL-JS: a global script permits
// only CHTL-JS and plain JavaScript, while a local script additionally
// permits @Var substitution.
var (
	varCallRe        = regexp.MustCompile(`@Var\s+(\w+)\(\s*(\w+)\s*\)`)
	disallowedLocal  = regexp.MustCompile(`@Style\b|@Element\b|\[Template\]|\[Custom\]`)
	disallowedGlobal = regexp.MustCompile(`@Style\b|@Element\b|@Var\s+\w+\(\s*\w+\s*\)|\[Template\]|\[Custom\]`)
)

func (g *Generator) renderLocalScript(scriptID ast.NodeID, ownerTag string) {
	sb := g.arena.Get(scriptID)
	clean, drop := g.sanitizeScript(sb.RawContent, true, sb.Pos)
	if drop {
		return
	}
	lowered := g.lowerCached(clean)
	g.jsBlocks = append(g.jsBlocks, fmt.Sprintf("(function(){\n\"use strict\";\n// %s\n%s\n})();", ownerTag, lowered))
}

func (g *Generator) emitGlobalScript(id ast.NodeID) {
	n := g.arena.Get(id)
	clean, drop := g.sanitizeScript(n.RawContent, false, n.Pos)
	if drop {
		return
	}
	g.jsBlocks = append(g.jsBlocks, g.lowerCached(clean))
}

// lowerCached lowers CHTL-JS through the generator's content-hashed
// cache, since a template instantiated onto many elements carries the
// same script body, and lowering it is pure in the content alone.
func (g *Generator) lowerCached(clean string) string {
	lowered, _ := g.loweredScripts.GetOrCompile([]byte(clean), func() (string, error) {
		return lowerCHTLJS(clean), nil
	})
	return lowered
}

// sanitizeScript reports and strips any construct a script context
// doesn't permit. A global script containing a disallowed construct
// drops its entire emission, since the rest of its content can no
// longer be trusted as plain JavaScript once CHTL syntax has leaked
// into it; a local script only strips the offending substring, since
// @Var references are legitimate there.
func (g *Generator) sanitizeScript(raw string, isLocal bool, pos ast.Pos) (string, bool) {
	if !isLocal {
		if loc := disallowedGlobal.FindStringIndex(raw); loc != nil {
			g.diags.Addf(errors.KindConstraint, errors.SeverityWarning, toPosition(pos),
				"%q is not allowed in a global script context; this block emits no JavaScript", raw[loc[0]:loc[1]])
			return "", true
		}
		return raw, false
	}

	if loc := disallowedLocal.FindStringIndex(raw); loc != nil {
		g.diags.Addf(errors.KindConstraint, errors.SeverityWarning, toPosition(pos),
			"%q is not allowed in a local script context", raw[loc[0]:loc[1]])
		raw = disallowedLocal.ReplaceAllString(raw, "")
	}
	return g.substituteVarCalls(raw), false
}

func (g *Generator) substituteVarCalls(raw string) string {
	return varCallRe.ReplaceAllStringFunc(raw, func(m string) string {
		sub := varCallRe.FindStringSubmatch(m)
		val, ok := g.resolveVarValueOK(sub[1], sub[2])
		if !ok {
			g.errorf(ast.Pos{}, "unknown @Var %s(%s)", sub[1], sub[2])
			return m
		}
		return val
	})
}
