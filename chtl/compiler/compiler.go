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

// Package compiler wires every CHTL pipeline stage together end to
// end: parse, resolve [Import] statements (recursing into imported
// files and merging their symbols), check context constraints, and
// generate HTML/CSS/JS, producing the section 6.3 Output contract.
package compiler

import (
	"github.com/bep/clocks"

	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/constraint"
	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/generator"
	"github.com/chtl-lang/chtl/chtl/importer"
	"github.com/chtl-lang/chtl/chtl/parser"
	"github.com/chtl-lang/chtl/chtl/semantic"
)

// Options configures one compilation.
type Options struct {
	Roots  importer.SearchRoots
	Gen    generator.Options
	Strict bool // promotes constraint diagnostics to errors, per config.Project.Compile.StrictConstraints
	Clock  clocks.Clock
}

// Output is the compiled result plus how long it took to produce.
type Output struct {
	*generator.Output
	Elapsed float64 // seconds
}

// Compiler runs one build. It is not safe for concurrent use; callers
// compiling many files in parallel (cmd/chtl's errgroup-driven build)
// construct one Compiler per goroutine. New gives every Compiler its
// own importer.Resolver built from Options.Roots; no resolver is
// shared between Compilers.
type Compiler struct {
	opts     Options
	resolver *importer.Resolver
	reg      *semantic.Registry
	diags    *errors.Bag
}

// New returns a Compiler ready to Compile entry files against opts.
func New(opts Options) *Compiler {
	if opts.Clock == nil {
		opts.Clock = clocks.System()
	}
	return &Compiler{
		opts:     opts,
		resolver: importer.NewResolver(opts.Roots),
		reg:      semantic.NewRegistry(),
		diags:    errors.NewBag(),
	}
}

// Compile parses file, recursively resolves its [Import] statements,
// checks context constraints, and generates output.
func (c *Compiler) Compile(file string, src []byte) *Output {
	start := c.opts.Clock.Now()

	doc, parseDiags, _ := parser.Parse(file, src, nil)
	c.diags.Merge(parseDiags)

	guard, err := c.resolver.PushLoading(file)
	if err != nil {
		c.diags.Addf(errors.KindSemantic, errors.SeverityError, errors.Position{File: file}, "%s", err.Error())
	} else {
		defer guard.Release()
		c.resolveImports(doc)
	}

	c.reg.RegisterFile(doc)
	c.diags.Merge(c.reg.Diagnostics())

	checker := constraint.NewChecker(doc.Arena)
	checker.Check(doc)
	constraintDiags := checker.Diagnostics()
	if c.opts.Strict {
		constraintDiags.Elevate()
	}
	c.diags.Merge(constraintDiags)

	gen := generator.New(doc, c.opts.Gen).WithRegistry(c.reg)
	out := gen.Generate()
	out.Diagnostics.Merge(c.diags)
	if c.diags.ShouldAbort() {
		out.Success = false
	}

	return &Output{
		Output:  out,
		Elapsed: c.opts.Clock.Now().Sub(start).Seconds(),
	}
}

// resolveImports walks doc's top-level [Import] statements, pulling
// in @Chtl module/file imports (recursively, with cycle detection) and
// splicing @Html/@Style/@JavaScript raw-file imports in as synthetic
// Origin nodes at the end of the document.
func (c *Compiler) resolveImports(doc *ast.Document) {
	for _, id := range doc.Children {
		n := doc.Arena.Get(id)
		if n.Kind != ast.KindImport {
			continue
		}
		c.resolveOneImport(doc, n)
	}
}

func (c *Compiler) resolveOneImport(doc *ast.Document, n *ast.Node) {
	switch n.ImportKind {
	case ast.ImportChtl, ast.ImportTemplateAll, ast.ImportCustomAll, ast.ImportOriginAll, ast.ImportSpecific:
		c.resolveChtlImport(n)
	case ast.ImportHtml, ast.ImportStyle, ast.ImportJavaScript:
		c.resolveRawImport(doc, n)
	case ast.ImportCJmod, ast.ImportConfig:
		// .cjmod native extensions and [Configuration] imports are
		// handled by the module/config loaders directly from cmd/chtl,
		// which already has the project's filesystem roots open; the
		// generator itself never needs their contents.
	}
}

func (c *Compiler) resolveChtlImport(n *ast.Node) {
	// ResolveFile only ever fails with NotFoundError; a cycle can only
	// be detected once we know the resolved path, via PushLoading below.
	resolved, err := c.resolver.ResolveFile(n.FromPath)
	if err != nil {
		resolved, err = c.resolver.ResolveModule(n.FromPath, false)
		if err != nil {
			c.diags.Addf(errors.KindResolution, errors.SeverityError, toPosition(n.Pos), "cannot resolve import %q: %s", n.FromPath, err.Error())
			return
		}
	}

	guard, err := c.resolver.PushLoading(resolved.Path)
	if err != nil {
		c.diags.Addf(errors.KindSemantic, errors.SeverityError, toPosition(n.Pos), "%s", err.Error())
		return
	}
	defer guard.Release()

	raw, err := c.resolver.ReadFile(resolved)
	if err != nil {
		c.diags.Addf(errors.KindResolution, errors.SeverityError, toPosition(n.Pos), "reading %q: %s", resolved.Path, err.Error())
		return
	}

	sub, subDiags, _ := parser.Parse(resolved.Path, raw, nil)
	c.diags.Merge(subDiags)
	c.resolveImports(sub)
	c.reg.RegisterFile(sub)
	c.diags.Merge(c.reg.Diagnostics())
}

func (c *Compiler) resolveRawImport(doc *ast.Document, n *ast.Node) {
	if n.Alias == "" {
		c.diags.Addf(errors.KindSemantic, errors.SeverityWarning, toPosition(n.Pos), "import of %q has no \"as\" alias; skipping asset import", n.FromPath)
		return
	}

	resolved, err := c.resolver.ResolveFile(n.FromPath)
	if err != nil {
		c.diags.Addf(errors.KindResolution, errors.SeverityError, toPosition(n.Pos), "cannot resolve import %q: %s", n.FromPath, err.Error())
		return
	}
	raw, err := c.resolver.ReadFile(resolved)
	if err != nil {
		c.diags.Addf(errors.KindResolution, errors.SeverityError, toPosition(n.Pos), "reading %q: %s", resolved.Path, err.Error())
		return
	}

	originType := map[ast.ImportKind]string{
		ast.ImportHtml:       "@Html",
		ast.ImportStyle:      "@Style",
		ast.ImportJavaScript: "@JavaScript",
	}[n.ImportKind]

	id := doc.Arena.New(ast.KindOrigin, n.Pos)
	o := doc.Arena.Get(id)
	o.OriginType = originType
	o.OriginName = n.Alias
	o.OriginRaw = string(raw)
	doc.Children = append(doc.Children, id)
}

func toPosition(p ast.Pos) errors.Position {
	return errors.Position{Line: p.Line, Column: p.Column, Offset: p.Offset}
}

// Diagnostics returns every diagnostic accumulated across all Compile
// calls made with this Compiler (parse, import resolution, semantic,
// and constraint), useful for a CLI's end-of-build summary.
func (c *Compiler) Diagnostics() *errors.Bag { return c.diags }
