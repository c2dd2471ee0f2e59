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

package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/frankban/quicktest"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveFilePrefersCurrentDirOverProjectModule(t *testing.T) {
	c := quicktest.New(t)

	cur, proj := t.TempDir(), t.TempDir()
	writeFile(t, cur, "box.chtl", "current")
	writeFile(t, proj, "box.chtl", "project")

	r := NewResolver(SearchRoots{CurrentDir: cur, ProjectModule: proj})
	resolved, err := r.ResolveFile("box.chtl")
	c.Assert(err, quicktest.IsNil)
	c.Assert(resolved.Tier, quicktest.Equals, TierCurrentDir)

	raw, err := r.ReadFile(resolved)
	c.Assert(err, quicktest.IsNil)
	c.Assert(string(raw), quicktest.Equals, "current")
}

func TestResolveFileFallsBackToProjectModuleTier(t *testing.T) {
	c := quicktest.New(t)

	cur, proj := t.TempDir(), t.TempDir()
	writeFile(t, proj, "box.chtl", "project")

	r := NewResolver(SearchRoots{CurrentDir: cur, ProjectModule: proj})
	resolved, err := r.ResolveFile("box.chtl")
	c.Assert(err, quicktest.IsNil)
	c.Assert(resolved.Tier, quicktest.Equals, TierProjectModule)
}

func TestResolveFileReturnsNotFoundErrorNamingAllTiers(t *testing.T) {
	c := quicktest.New(t)

	r := NewResolver(SearchRoots{CurrentDir: t.TempDir()})
	_, err := r.ResolveFile("missing.chtl")
	c.Assert(err, quicktest.Not(quicktest.IsNil))
	var nf *NotFoundError
	c.Assert(err, quicktest.ErrorAs, &nf)
	c.Assert(nf.Tiers, quicktest.HasLen, 1)
}

func TestResolveModuleTriesSuffixThenBareDirectory(t *testing.T) {
	c := quicktest.New(t)

	dir := t.TempDir()
	writeFile(t, dir, "geometry/shapes/Circle/src/main.chtl", "module source")

	r := NewResolver(SearchRoots{CurrentDir: dir})
	resolved, err := r.ResolveModule("geometry.shapes.Circle", false)
	c.Assert(err, quicktest.IsNil)
	c.Assert(resolved.IsModule, quicktest.IsTrue)
	c.Assert(resolved.Path, quicktest.Equals, "geometry/shapes/Circle")
}

func TestPushLoadingDetectsCycle(t *testing.T) {
	c := quicktest.New(t)

	r := NewResolver(SearchRoots{CurrentDir: t.TempDir()})
	g1, err := r.PushLoading("a.chtl")
	c.Assert(err, quicktest.IsNil)

	g2, err := r.PushLoading("b.chtl")
	c.Assert(err, quicktest.IsNil)

	_, err = r.PushLoading("a.chtl")
	c.Assert(err, quicktest.Not(quicktest.IsNil))
	var cyc *CycleError
	c.Assert(err, quicktest.ErrorAs, &cyc)

	g2.Release()
	g1.Release()

	_, err = r.PushLoading("a.chtl")
	c.Assert(err, quicktest.IsNil)
}

func TestLoadGuardReleaseIsIdempotent(t *testing.T) {
	c := quicktest.New(t)

	r := NewResolver(SearchRoots{CurrentDir: t.TempDir()})
	g, err := r.PushLoading("a.chtl")
	c.Assert(err, quicktest.IsNil)
	g.Release()
	g.Release()

	_, err = r.PushLoading("a.chtl")
	c.Assert(err, quicktest.IsNil)
}

func TestResolveWildcardExpandsDirectoryEntries(t *testing.T) {
	c := quicktest.New(t)

	dir := t.TempDir()
	writeFile(t, dir, "components/box.chtl", "box")
	writeFile(t, dir, "components/card.chtl", "card")
	writeFile(t, dir, "components/notes.txt", "ignored")

	r := NewResolver(SearchRoots{CurrentDir: dir})
	paths, err := r.ResolveWildcard("components.*", TierCurrentDir)
	c.Assert(err, quicktest.IsNil)
	c.Assert(paths, quicktest.DeepEquals, []string{"components.box", "components.card"})
}

func TestResolveModuleRejectsMalformedPath(t *testing.T) {
	c := quicktest.New(t)

	r := NewResolver(SearchRoots{CurrentDir: t.TempDir()})
	_, err := r.ResolveModule("../escape", false)
	c.Assert(err, quicktest.Not(quicktest.IsNil))
}
