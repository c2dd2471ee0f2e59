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

// Package importer resolves [Import] statements (spec section 4.4): it
// searches the three-tier path order (current directory, project
// module directory, official module directory), reads .cmod/.cjmod
// module archives, expands wildcard sub-module paths, and detects
// import cycles. It is the one package allowed to touch the
// filesystem directly on the CHTL side of the pipeline; everything
// else works on in-memory bytes so it can be driven from tests and
// from the dev server's in-memory overlay alike.
package importer

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/locker"
	"github.com/bep/overlayfs"
	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"golang.org/x/mod/module"

	"github.com/chtl-lang/chtl/chtl/ast"
)

// Tier names a layer of the three-tier search order.
type Tier int

const (
	TierCurrentDir Tier = iota
	TierProjectModule
	TierOfficialModule
)

func (t Tier) String() string {
	return [...]string{"current directory", "project module directory", "official module directory"}[t]
}

// SearchRoots is the filesystem configuration for one compilation: the
// directory holding the importing file, the project's local module/
// directory, and the shared official module directory (analogous to a
// vendor or global package cache).
type SearchRoots struct {
	CurrentDir      string
	ProjectModule   string
	OfficialModule  string
}

// Resolved is the outcome of resolving one [Import] statement.
type Resolved struct {
	Kind     ast.ImportKind
	Path     string // resolved absolute (or overlay-relative) path
	Tier     Tier
	IsModule bool // true if Path is a .cmod/.cjmod directory rather than a bare file
}

// CycleError reports an import cycle, naming the full loading stack at
// the point the repeat was detected.
type CycleError struct {
	Stack []string
	Repeat string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("import cycle detected: %s -> %s", strings.Join(e.Stack, " -> "), e.Repeat)
}

// NotFoundError reports that no tier of the search order had path.
type NotFoundError struct {
	Path  string
	Tiers []Tier
}

func (e *NotFoundError) Error() string {
	names := make([]string, len(e.Tiers))
	for i, t := range e.Tiers {
		names[i] = t.String()
	}
	return fmt.Sprintf("%q not found in any of: %s", e.Path, strings.Join(names, ", "))
}

// Resolver resolves import paths against the three-tier search order
// and tracks the currently-loading stack for cycle detection.
type Resolver struct {
	roots   SearchRoots
	overlay afero.Fs
	layers  []afero.Fs // parallel to tierOrder, for Tier attribution

	// officialLock serializes first-use population of the shared
	// official module directory cache (e.g. unpacking a fetched .cmod
	// archive into place) across goroutines compiling in parallel.
	officialLock *locker.Locker

	mu      sync.Mutex
	loading []string // canonicalized paths currently being loaded, outermost first
	onStack map[string]bool
}

var tierOrder = []Tier{TierCurrentDir, TierProjectModule, TierOfficialModule}

// NewResolver builds a Resolver whose overlay filesystem searches
// CurrentDir, then ProjectModule, then OfficialModule, in that order;
// layers that are empty strings are skipped.
func NewResolver(roots SearchRoots) *Resolver {
	var layers []afero.Fs
	var activeTiers []Tier
	add := func(tier Tier, dir string) {
		if dir == "" {
			return
		}
		layers = append(layers, afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), dir)))
		activeTiers = append(activeTiers, tier)
	}
	add(TierCurrentDir, roots.CurrentDir)
	add(TierProjectModule, roots.ProjectModule)
	add(TierOfficialModule, roots.OfficialModule)

	r := &Resolver{
		roots:        roots,
		layers:       layers,
		officialLock: locker.NewLocker(),
		onStack:      make(map[string]bool),
	}
	if len(layers) > 0 {
		r.overlay = overlayfs.New(overlayfs.Options{Fss: layers})
	}
	_ = activeTiers
	return r
}

// findTier reports which configured tier (in search order) has rel,
// without yet opening it, so diagnostics can attribute where an import
// resolved from.
func (r *Resolver) findTier(rel string) (Tier, afero.Fs, bool) {
	i := 0
	check := func(dir string, tier Tier) (Tier, afero.Fs, bool) {
		if dir == "" {
			return 0, nil, false
		}
		fs := r.layers[i]
		i++
		if ok, _ := afero.Exists(fs, rel); ok {
			return tier, fs, true
		}
		return 0, nil, false
	}
	if t, fs, ok := check(r.roots.CurrentDir, TierCurrentDir); ok {
		return t, fs, true
	}
	if t, fs, ok := check(r.roots.ProjectModule, TierProjectModule); ok {
		return t, fs, true
	}
	if t, fs, ok := check(r.roots.OfficialModule, TierOfficialModule); ok {
		return t, fs, true
	}
	return 0, nil, false
}

// activeTiers reports which tiers are actually configured, for
// NotFoundError reporting.
func (r *Resolver) activeTiers() []Tier {
	var out []Tier
	if r.roots.CurrentDir != "" {
		out = append(out, TierCurrentDir)
	}
	if r.roots.ProjectModule != "" {
		out = append(out, TierProjectModule)
	}
	if r.roots.OfficialModule != "" {
		out = append(out, TierOfficialModule)
	}
	return out
}

// candidatePaths returns the relative paths to probe for a dotted
// module import like "geometry.shapes.Circle": the bare path, then
// with a .chtl suffix, then as a directory (module form).
func candidatePaths(fromPath string) []string {
	clean := strings.ReplaceAll(fromPath, ".", "/")
	return []string{
		fromPath,
		clean + ".chtl",
		clean,
		clean + ".cmod",
		clean + ".cjmod",
	}
}

// ResolveFile resolves a plain file-style import path (used for @Html,
// @Style, @JavaScript, and bare @Chtl file imports) against the
// three-tier search order.
func (r *Resolver) ResolveFile(fromPath string) (Resolved, error) {
	if r.overlay == nil {
		return Resolved{}, &NotFoundError{Path: fromPath, Tiers: r.activeTiers()}
	}
	for _, candidate := range candidatePaths(fromPath) {
		if tier, _, ok := r.findTier(candidate); ok {
			return Resolved{Path: candidate, Tier: tier}, nil
		}
	}
	return Resolved{}, &NotFoundError{Path: fromPath, Tiers: r.activeTiers()}
}

// ResolveModule resolves a [Import] @Chtl or @CJmod path to a module
// directory (a .cmod or .cjmod layout), validating the dotted path
// shape with golang.org/x/mod/module's import-path rules reused here
// as a convenient "is this shaped like a path, not garbage" check.
func (r *Resolver) ResolveModule(fromPath string, wantCJmod bool) (Resolved, error) {
	if err := validatePathShape(fromPath); err != nil {
		return Resolved{}, err
	}
	suffix := ".cmod"
	if wantCJmod {
		suffix = ".cjmod"
	}
	rel := strings.ReplaceAll(fromPath, ".", "/") + suffix
	if tier, _, ok := r.findTier(rel); ok {
		return Resolved{Path: rel, Tier: tier, IsModule: true}, nil
	}
	// Fall back to a bare-named directory without the module suffix,
	// for projects that keep unpacked modules directly under module/.
	rel = strings.ReplaceAll(fromPath, ".", "/")
	if tier, _, ok := r.findTier(rel); ok {
		return Resolved{Path: rel, Tier: tier, IsModule: true}, nil
	}
	return Resolved{}, &NotFoundError{Path: fromPath, Tiers: r.activeTiers()}
}

// validatePathShape borrows golang.org/x/mod/module's escaped-path
// validity check to reject import paths that could never correspond
// to a module directory (empty segments, absolute paths, ".." escapes).
func validatePathShape(p string) error {
	probe := "chtl.invalid/" + strings.ReplaceAll(p, ".", "/")
	if _, err := module.EscapePath(probe); err != nil {
		return fmt.Errorf("invalid import path %q: %w", p, err)
	}
	return nil
}

// ResolveWildcard expands a trailing "*" path segment (e.g.
// "components.*") against the entries of the directory its prefix
// names within tier, using gobwas/glob for the match. A path without a
// wildcard is returned unchanged.
func (r *Resolver) ResolveWildcard(fromPath string, tier Tier) ([]string, error) {
	if !strings.HasSuffix(fromPath, ".*") && !strings.HasSuffix(fromPath, "/*") {
		return []string{fromPath}, nil
	}
	base := strings.TrimSuffix(strings.TrimSuffix(fromPath, ".*"), "/*")
	dirRel := strings.ReplaceAll(base, ".", "/")
	fs := r.tierFs(tier)
	if fs == nil {
		return nil, &NotFoundError{Path: fromPath, Tiers: r.activeTiers()}
	}
	entries, err := afero.ReadDir(fs, dirRel)
	if err != nil {
		return nil, err
	}
	g := glob.MustCompile("*.chtl")
	var out []string
	for _, e := range entries {
		if e.IsDir() || !g.Match(e.Name()) {
			continue
		}
		out = append(out, base+"."+strings.TrimSuffix(e.Name(), ".chtl"))
	}
	sort.Strings(out)
	return out, nil
}

func (r *Resolver) tierFs(tier Tier) afero.Fs {
	idx := 0
	for _, t := range tierOrder {
		var dir string
		switch t {
		case TierCurrentDir:
			dir = r.roots.CurrentDir
		case TierProjectModule:
			dir = r.roots.ProjectModule
		case TierOfficialModule:
			dir = r.roots.OfficialModule
		}
		if dir == "" {
			continue
		}
		if t == tier {
			return r.layers[idx]
		}
		idx++
	}
	return nil
}

// ReadFile reads the resolved path's contents through the overlay, so
// callers never need to know which tier a file actually came from.
func (r *Resolver) ReadFile(resolved Resolved) ([]byte, error) {
	return afero.ReadFile(r.overlay, resolved.Path)
}

// PushLoading records fromPath as currently being compiled, returning
// a guard that pops it, and an error if doing so would close a cycle.
// Paths are canonicalized with path.Clean so "a/b" and "a/./b" collide
// correctly.
func (r *Resolver) PushLoading(fromPath string) (*LoadGuard, error) {
	canon := path.Clean(fromPath)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onStack[canon] {
		stack := append([]string(nil), r.loading...)
		return nil, &CycleError{Stack: stack, Repeat: canon}
	}
	r.onStack[canon] = true
	r.loading = append(r.loading, canon)
	return &LoadGuard{r: r, path: canon}, nil
}

// LoadGuard releases its entry on the currently-loading stack exactly
// once, mirroring state.ScopeGuard's discipline so importer recursion
// is exception-safe the same way scope handling is.
type LoadGuard struct {
	r        *Resolver
	path     string
	released bool
}

// Release pops path from the loading stack. Safe to call more than once.
func (g *LoadGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.r.mu.Lock()
	defer g.r.mu.Unlock()
	delete(g.r.onStack, g.path)
	for i := len(g.r.loading) - 1; i >= 0; i-- {
		if g.r.loading[i] == g.path {
			g.r.loading = append(g.r.loading[:i], g.r.loading[i+1:]...)
			break
		}
	}
}

// LockOfficialModule serializes writes to the shared official module
// directory (e.g. unpacking a module archive on first use) across
// concurrently compiling files; multiple readers of an already-unpacked
// module never block on each other since they never call this.
func (r *Resolver) LockOfficialModule(name string) func() {
	return r.officialLock.Lock(name)
}
