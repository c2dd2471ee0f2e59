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

// Package config covers two distinct configuration surfaces: the
// in-source [Configuration] block's effect on the lexer's keyword
// table (section 4.2/4.5), and the (added) project-level chtl.toml /
// chtl.yaml file that drives the CLI the way Hugo's own site config
// drives hugo.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/chtl-lang/chtl/chtl/ast"
	"github.com/chtl-lang/chtl/chtl/lexer"
	"github.com/chtl-lang/chtl/chtl/token"
)

// MaxNameRebindings caps how many [Name] blocks may apply within one
// compilation (OPTION_COUNT in the reference grammar): rebindings
// strictly extend the built-in spelling table and are capped so a
// runaway chain of re-exported configs can't grow it unboundedly.
const MaxNameRebindings = 3

// Effective applies a [Configuration]'s [Name] block to a NameTable,
// extending (never replacing) the built-in spellings, and its
// [OriginType] block to an originTypes map (tag -> target stream:
// "html", "style", or "javascript"). table is created on first use if nil.
func Effective(n *ast.Node, table *lexer.NameTable, originTypes map[string]string, rebindCount int) (*lexer.NameTable, int, error) {
	if rebindCount >= MaxNameRebindings {
		return table, rebindCount, fmt.Errorf("[Configuration] [Name] rebinding limit (%d) exceeded", MaxNameRebindings)
	}
	if table == nil {
		table = &lexer.NameTable{
			ExtraBracketKeywords: make(map[string]token.Kind),
			ExtraAtTags:          make(map[string]token.Kind),
		}
	}
	if len(n.ConfigNameBlock) > 0 {
		rebindCount++
	}
	for logical, spellings := range n.ConfigNameBlock {
		for _, spelling := range spellings {
			registerSpelling(table, logical, spelling)
		}
	}
	for tag, target := range n.ConfigOriginTypeBlock {
		originTypes[tag] = target
	}
	return table, rebindCount, nil
}

// registerSpelling extends table's bracket-keyword or at-tag map with
// an extra spelling for a logical name (e.g. logical "Template",
// spelling "[Tmpl]"), resolving the Kind the spelling should alias by
// looking up the logical name's canonical built-in spelling.
func registerSpelling(table *lexer.NameTable, logical, spelling string) {
	switch {
	case strings.HasPrefix(spelling, "[") && strings.HasSuffix(spelling, "]"):
		if kind, ok := token.LookupBracketKeyword("[" + logical + "]"); ok {
			table.ExtraBracketKeywords[spelling] = kind
		}
	case strings.HasPrefix(spelling, "@"):
		if kind := token.LookupAtTag("@" + logical); kind != token.AtTag {
			table.ExtraAtTags[spelling] = kind
		}
	}
}

// ---- Project-level configuration ----

// Project is the (added) project-level configuration file, the CHTL
// analogue of Hugo's own site config: global compiler defaults that
// apply across every file in a build.
type Project struct {
	Module struct {
		SearchPath []string `mapstructure:"searchPath"`
		OfficialDir string  `mapstructure:"officialDir"`
	} `mapstructure:"module"`
	Output struct {
		Dir     string `mapstructure:"dir"`
		Minify  bool   `mapstructure:"minify"`
		Pretty  bool   `mapstructure:"pretty"`
	} `mapstructure:"output"`
	Compile struct {
		StrictConstraints bool `mapstructure:"strictConstraints"`
		Parallelism       int  `mapstructure:"parallelism"`
	} `mapstructure:"compile"`
	Dev struct {
		Port        int  `mapstructure:"port"`
		LiveReload  bool `mapstructure:"liveReload"`
		OpenBrowser bool `mapstructure:"openBrowser"`
	} `mapstructure:"dev"`
}

// DefaultProject returns the zero-config defaults.
func DefaultProject() Project {
	var p Project
	p.Output.Dir = "dist"
	p.Compile.Parallelism = 0 // 0 means "use GOMAXPROCS", resolved by the caller
	p.Dev.Port = 3000
	p.Dev.LiveReload = true
	return p
}

// Load reads chtl.toml or chtl.yaml/chtl.yml from dir, returning
// DefaultProject() unchanged if neither file exists.
func Load(dir string) (Project, error) {
	proj := DefaultProject()
	for _, name := range []string{"chtl.toml", "chtl.yaml", "chtl.yml"} {
		p := filepath.Join(dir, name)
		raw, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return proj, fmt.Errorf("reading %s: %w", p, err)
		}
		var generic map[string]interface{}
		if strings.HasSuffix(name, ".toml") {
			if err := toml.Unmarshal(raw, &generic); err != nil {
				return proj, fmt.Errorf("parsing %s: %w", p, err)
			}
		} else {
			if err := yaml.Unmarshal(raw, &generic); err != nil {
				return proj, fmt.Errorf("parsing %s: %w", p, err)
			}
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &proj,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		})
		if err != nil {
			return proj, err
		}
		if err := dec.Decode(generic); err != nil {
			return proj, fmt.Errorf("decoding %s: %w", p, err)
		}
		return normalize(proj), nil
	}
	return proj, nil
}

// normalize fills in a zero dev.port with 3000 (via spf13/cast). It
// coerces no other field; string values such as "true"/"3000" are
// converted by the weakly typed mapstructure decode, not here.
func normalize(p Project) Project {
	if p.Dev.Port == 0 {
		p.Dev.Port = cast.ToInt("3000")
	}
	return p
}
