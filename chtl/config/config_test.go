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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/token"
)

func TestEffectiveRegistersExtraBracketKeywordSpelling(t *testing.T) {
	c := quicktest.New(t)

	n := &ast.Node{ConfigNameBlock: map[string][]string{"Template": {"[Tmpl]"}}}
	table, count, err := Effective(n, nil, map[string]string{}, 0)
	c.Assert(err, quicktest.IsNil)
	c.Assert(count, quicktest.Equals, 1)
	c.Assert(table.ExtraBracketKeywords["[Tmpl]"], quicktest.Equals, token.KwTemplate)
}

func TestEffectiveRegistersExtraAtTagSpelling(t *testing.T) {
	c := quicktest.New(t)

	n := &ast.Node{ConfigNameBlock: map[string][]string{"Style": {"@S"}}}
	table, _, err := Effective(n, nil, map[string]string{}, 0)
	c.Assert(err, quicktest.IsNil)
	c.Assert(table.ExtraAtTags["@S"], quicktest.Equals, token.AtStyle)
}

func TestEffectiveEnforcesRebindingLimit(t *testing.T) {
	c := quicktest.New(t)

	n := &ast.Node{ConfigNameBlock: map[string][]string{"Template": {"[Tmpl]"}}}
	table, count, err := Effective(n, nil, map[string]string{}, 0)
	c.Assert(err, quicktest.IsNil)
	table, count, err = Effective(n, table, map[string]string{}, count)
	c.Assert(err, quicktest.IsNil)
	table, count, err = Effective(n, table, map[string]string{}, count)
	c.Assert(err, quicktest.IsNil)
	_, _, err = Effective(n, table, map[string]string{}, count)
	c.Assert(err, quicktest.Not(quicktest.IsNil))
}

func TestEffectiveMergesOriginTypeBlock(t *testing.T) {
	c := quicktest.New(t)

	n := &ast.Node{ConfigOriginTypeBlock: map[string]string{"@Vue": "javascript"}}
	originTypes := map[string]string{}
	_, _, err := Effective(n, nil, originTypes, 0)
	c.Assert(err, quicktest.IsNil)
	c.Assert(originTypes["@Vue"], quicktest.Equals, "javascript")
}

func TestDefaultProjectHasSensibleDefaults(t *testing.T) {
	c := quicktest.New(t)

	p := DefaultProject()
	c.Assert(p.Output.Dir, quicktest.Equals, "dist")
	c.Assert(p.Dev.Port, quicktest.Equals, 3000)
	c.Assert(p.Dev.LiveReload, quicktest.IsTrue)
}

func TestLoadReadsTomlProjectFile(t *testing.T) {
	c := quicktest.New(t)

	dir := t.TempDir()
	toml := `[output]
dir = "build"
minify = true

[compile]
strictConstraints = true
parallelism = 4

[dev]
port = 4000
liveReload = false
`
	c.Assert(os.WriteFile(filepath.Join(dir, "chtl.toml"), []byte(toml), 0o644), quicktest.IsNil)

	p, err := Load(dir)
	c.Assert(err, quicktest.IsNil)
	c.Assert(p.Output.Dir, quicktest.Equals, "build")
	c.Assert(p.Output.Minify, quicktest.IsTrue)
	c.Assert(p.Compile.StrictConstraints, quicktest.IsTrue)
	c.Assert(p.Compile.Parallelism, quicktest.Equals, 4)
	c.Assert(p.Dev.Port, quicktest.Equals, 4000)
	c.Assert(p.Dev.LiveReload, quicktest.IsFalse)
}

func TestLoadReadsYamlProjectFile(t *testing.T) {
	c := quicktest.New(t)

	dir := t.TempDir()
	yml := "output:\n  dir: out\ndev:\n  port: 5000\n"
	c.Assert(os.WriteFile(filepath.Join(dir, "chtl.yaml"), []byte(yml), 0o644), quicktest.IsNil)

	p, err := Load(dir)
	c.Assert(err, quicktest.IsNil)
	c.Assert(p.Output.Dir, quicktest.Equals, "out")
	c.Assert(p.Dev.Port, quicktest.Equals, 5000)
}

func TestLoadWithNoConfigFileReturnsDefaults(t *testing.T) {
	c := quicktest.New(t)

	p, err := Load(t.TempDir())
	c.Assert(err, quicktest.IsNil)
	c.Assert(p, quicktest.DeepEquals, DefaultProject())
}
