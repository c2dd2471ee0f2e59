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
	"bytes"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"

	"github.com/bep/godartsass/v2"
)

// minifyCSS shrinks the assembled CSS stream with tdewolff/minify, the
// same library the generator's teacher uses for its own asset
// pipeline. Minification is best-effort: a malformed fragment (which
// the CHTL side can produce from a raw [Origin] @Style block) falls
// back to the unminified source rather than aborting the build.
func minifyCSS(src string) string {
	m := minify.New()
	var buf bytes.Buffer
	if err := css.Minify(m, &buf, strings.NewReader(src), nil); err != nil {
		return src
	}
	return buf.String()
}

// minifyJS shrinks the assembled JS stream with esbuild's Transform
// API, reused here exactly as it lowers and minifies template output
// in the teacher's own JS pipeline component.
func minifyJS(src string) string {
	result := api.Transform(src, api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
	})
	if len(result.Errors) > 0 {
		return src
	}
	return string(result.Code)
}

// DartSassCompiler is the default RawCSSCompiler, delegating to the
// real Dart Sass compiler over godartsass's embedded-process protocol
// exactly as the teacher's SCSS transformer does.
type DartSassCompiler struct {
	transpiler *godartsass.Transpiler
}

// NewDartSassCompiler starts (and owns) one Dart Sass worker process.
func NewDartSassCompiler() (*DartSassCompiler, error) {
	t, err := godartsass.Start(godartsass.Options{})
	if err != nil {
		return nil, err
	}
	return &DartSassCompiler{transpiler: t}, nil
}

// CompileSCSS implements RawCSSCompiler.
func (c *DartSassCompiler) CompileSCSS(src string) (string, error) {
	res, err := c.transpiler.Execute(godartsass.Args{
		Source:      src,
		OutputStyle: godartsass.OutputStyleCompressed,
	})
	if err != nil {
		return "", err
	}
	return res.CSS, nil
}

// Close shuts down the Dart Sass worker process.
func (c *DartSassCompiler) Close() error {
	return c.transpiler.Close()
}
