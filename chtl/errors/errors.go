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

// Package errors defines the diagnostic taxonomy used across the CHTL
// compilation pipeline and a Bag that collects diagnostics in source
// and import-resolution order.
package errors

import "fmt"

// Kind is the coarse diagnostic taxonomy from the error handling design.
type Kind int

const (
	// KindLexical covers unterminated strings and unknown characters in
	// initial position.
	KindLexical Kind = iota
	// KindSyntactic covers unexpected tokens, missing tokens, malformed
	// definitions, and unexpected EOF.
	KindSyntactic
	// KindSemantic covers unknown symbols, kind mismatches, namespace
	// merge conflicts, duplicate definitions, cyclic imports, missing
	// alias for asset imports, and unfilled value-less slots.
	KindSemantic
	// KindConstraint covers disallowed constructs in context and except
	// violations.
	KindConstraint
	// KindResolution covers file-not-found, malformed archives, and
	// directory-supplied-for-file errors.
	KindResolution
	// KindInternal covers illegal state and node-state transitions.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindLexical:
		return "lexical"
	case KindSyntactic:
		return "syntactic"
	case KindSemantic:
		return "semantic"
	case KindConstraint:
		return "constraint"
	case KindResolution:
		return "resolution"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Severity distinguishes diagnostics that abort compilation from ones
// that are merely reported.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// Position is a (line, column, byte-offset) triple, present on every
// token and therefore on every diagnostic that names one.
type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Kind       Kind
	Severity   Severity
	Pos        Position
	Message    string
	Suggestion string
}

func (d Diagnostic) Error() string {
	if d.Suggestion != "" {
		return fmt.Sprintf("%s: %s [%s] (suggestion: %s)", d.Pos, d.Message, d.Kind, d.Suggestion)
	}
	return fmt.Sprintf("%s: %s [%s]", d.Pos, d.Message, d.Kind)
}

// Bag collects diagnostics. Within one file, diagnostics are appended
// in source order by construction (the pipeline only ever discovers
// problems left to right); across files, the caller is responsible for
// appending in import-resolution (post-order) order.
type Bag struct {
	diags []Diagnostic
	abort bool
}

// NewBag returns an empty diagnostic bag. Constraint diagnostics become
// aborting errors only when Elevate is called on the bag.
func NewBag() *Bag {
	return &Bag{}
}

// Add appends a diagnostic. KindInternal always marks the bag as
// aborting; others abort only if their Severity is SeverityError.
func (b *Bag) Add(d Diagnostic) {
	b.diags = append(b.diags, d)
	if d.Kind == KindInternal || d.Severity == SeverityError {
		b.abort = true
	}
}

// Addf is a convenience wrapper building a Diagnostic from a format
// string.
func (b *Bag) Addf(kind Kind, sev Severity, pos Position, format string, args ...any) {
	b.Add(Diagnostic{Kind: kind, Severity: sev, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Elevate promotes every constraint diagnostic currently in the bag to
// an aborting error; used when strict mode is toggled on.
func (b *Bag) Elevate() {
	for i := range b.diags {
		if b.diags[i].Kind == KindConstraint {
			b.diags[i].Severity = SeverityError
			b.abort = true
		}
	}
}

// ShouldAbort reports whether any diagnostic added so far requires the
// compilation to stop.
func (b *Bag) ShouldAbort() bool { return b.abort }

// All returns every diagnostic in the order they were added.
func (b *Bag) All() []Diagnostic { return b.diags }

// Errors returns only diagnostics with SeverityError.
func (b *Bag) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only diagnostics with SeverityWarning.
func (b *Bag) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.diags {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Len reports the number of collected diagnostics.
func (b *Bag) Len() int { return len(b.diags) }

// Merge appends another bag's diagnostics, preserving order, and used
// to fold an imported file's diagnostics into the importer's bag in
// post-order.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.diags = append(b.diags, other.diags...)
	if other.abort {
		b.abort = true
	}
}
