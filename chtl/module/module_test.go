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

package module

import (
	"testing"

	"github.com/frankban/quicktest"
	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadParsesManifestAndWalksSources(t *testing.T) {
	c := quicktest.New(t)

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/geometry/info/geometry.chtl", `
		name = "geometry";
		version = "1.0.0";
		author = "chtl-lang";
		license = "MIT";
		dependencies = core, io;
	`)
	writeFile(t, fs, "/geometry/src/shapes/Circle.chtl", `[Template] @Element Circle { }`)
	writeFile(t, fs, "/geometry/src/shapes/Square.chtl", `[Template] @Element Square { }`)

	arc, err := Load(fs, "/geometry", "geometry")
	c.Assert(err, quicktest.IsNil)
	c.Assert(arc.Info.Name, quicktest.Equals, "geometry")
	c.Assert(arc.Info.Version, quicktest.Equals, "1.0.0")
	c.Assert(arc.Info.Dependencies, quicktest.DeepEquals, []string{"core", "io"})
	c.Assert(arc.Sources, quicktest.HasLen, 2)
	_, ok := arc.Sources["shapes.Circle"]
	c.Assert(ok, quicktest.IsTrue)
	c.Assert(arc.NativeExtension, quicktest.IsNil)
}

func TestLoadMissingNameFieldFails(t *testing.T) {
	c := quicktest.New(t)

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/broken/info/broken.chtl", `version = "1.0.0";`)

	_, err := Load(fs, "/broken", "broken")
	c.Assert(err, quicktest.Not(quicktest.IsNil))
}

func TestLoadMissingManifestFails(t *testing.T) {
	c := quicktest.New(t)

	fs := afero.NewMemMapFs()
	_, err := Load(fs, "/nope", "nope")
	c.Assert(err, quicktest.Not(quicktest.IsNil))
}

func TestLoadPicksUpNativeExtension(t *testing.T) {
	c := quicktest.New(t)

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/native/info/native.chtl", `name = "native";`)
	writeFile(t, fs, "/native/extension/native.wasm", "fake-wasm-bytes")
	writeFile(t, fs, "/native/src/glue.chtl", `[Template] @Element Glue { }`)

	arc, err := Load(fs, "/native", "native")
	c.Assert(err, quicktest.IsNil)
	c.Assert(string(arc.NativeExtension), quicktest.Equals, "fake-wasm-bytes")
}
