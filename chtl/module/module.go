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

// Package module reads .cmod/.cjmod module archives: a directory
// carrying an info/<Name>.chtl manifest and a src/ tree of CHTL
// sources (or, for .cjmod, a compiled WebAssembly native extension
// alongside its CHTL-JS glue). Layout mirrors section 4.4's module
// archive description.
package module

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
	"github.com/tetratelabs/wazero"
)

// Info is the parsed info/<Name>.chtl manifest: a flat key = "value";
// property list, the same shape as a [Configuration] scalar section,
// read independently here so module loading has no dependency on the
// full parser.
type Info struct {
	Name        string
	Version     string
	Description string
	Author      string
	License     string
	Dependencies []string
	Extra       map[string]string
}

// Archive is one loaded .cmod or .cjmod module.
type Archive struct {
	RootDir string
	Info    Info
	// Sources maps a dotted sub-module path ("shapes.Circle") to its
	// CHTL source bytes, read from src/<Name>/*.chtl.
	Sources map[string][]byte
	// NativeExtension is set for a .cjmod that ships a compiled
	// extension/<name>.wasm alongside its CHTL-JS glue.
	NativeExtension []byte
}

// Load reads the module rooted at dir (an info/ + src/ layout) from fs.
func Load(fs afero.Fs, dir, name string) (*Archive, error) {
	manifestPath := path.Join(dir, "info", name+".chtl")
	raw, err := afero.ReadFile(fs, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading module manifest %s: %w", manifestPath, err)
	}
	info, err := parseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing module manifest %s: %w", manifestPath, err)
	}

	srcRoot := path.Join(dir, "src")
	sources, err := walkSources(fs, srcRoot)
	if err != nil {
		return nil, err
	}

	arc := &Archive{RootDir: dir, Info: info, Sources: sources}

	wasmPath := path.Join(dir, "extension", name+".wasm")
	if ok, _ := afero.Exists(fs, wasmPath); ok {
		blob, err := afero.ReadFile(fs, wasmPath)
		if err != nil {
			return nil, fmt.Errorf("reading native extension %s: %w", wasmPath, err)
		}
		arc.NativeExtension = blob
	}
	return arc, nil
}

// parseManifest parses "key = value;" / "key = \"value\";" pairs, the
// same surface grammar as a [Configuration] scalar block.
func parseManifest(src []byte) (Info, error) {
	info := Info{Extra: make(map[string]string)}
	text := string(src)
	lines := strings.Split(text, ";")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		line = strings.TrimPrefix(line, "[Info]")
		line = strings.TrimSpace(strings.Trim(line, "{}"))
		if line == "" {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		val = strings.Trim(val, `"'`)
		switch key {
		case "name":
			info.Name = val
		case "version":
			info.Version = val
		case "description":
			info.Description = val
		case "author":
			info.Author = val
		case "license":
			info.License = val
		case "dependencies":
			for _, d := range strings.Split(val, ",") {
				d = strings.TrimSpace(d)
				if d != "" {
					info.Dependencies = append(info.Dependencies, d)
				}
			}
		default:
			info.Extra[key] = val
		}
	}
	if info.Name == "" {
		return info, fmt.Errorf("manifest missing required \"name\" field")
	}
	return info, nil
}

// walkSources collects every *.chtl file under srcRoot, keyed by its
// dotted sub-module path relative to srcRoot (src/shapes/Circle.chtl
// -> "shapes.Circle").
func walkSources(fs afero.Fs, srcRoot string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			if dir == srcRoot {
				return fmt.Errorf("reading module source tree %s: %w", srcRoot, err)
			}
			return nil
		}
		for _, e := range entries {
			full := path.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if !strings.HasSuffix(e.Name(), ".chtl") {
				continue
			}
			rel := strings.TrimPrefix(full, srcRoot+"/")
			rel = strings.TrimSuffix(rel, ".chtl")
			dotted := strings.ReplaceAll(rel, "/", ".")
			content, err := afero.ReadFile(fs, full)
			if err != nil {
				return err
			}
			out[dotted] = content
		}
		return nil
	}
	if err := walk(srcRoot); err != nil {
		return nil, err
	}
	return out, nil
}

// NativeHost runs a .cjmod's optional compiled WebAssembly extension.
// This is the one piece of the pipeline that executes untrusted code,
// so it always runs inside wazero's sandboxed runtime rather than as a
// native plugin.
type NativeHost struct {
	runtime wazero.Runtime
}

// NewNativeHost constructs a wazero runtime for loading .cjmod
// extensions. Callers must Close it when done.
func NewNativeHost(ctx context.Context) *NativeHost {
	return &NativeHost{runtime: wazero.NewRuntime(ctx)}
}

// Close releases the underlying wazero runtime.
func (h *NativeHost) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// Call instantiates wasmBlob and invokes its exported function name
// with the given i32 arguments, returning its i32 results. CJmod
// extensions expose a narrow numeric ABI (offsets/lengths into the
// module's own linear memory for any string data), kept deliberately
// small since it is the only boundary where compiler-adjacent code
// from a third party runs.
func (h *NativeHost) Call(ctx context.Context, wasmBlob []byte, fn string, args ...uint64) ([]uint64, error) {
	mod, err := h.runtime.Instantiate(ctx, wasmBlob)
	if err != nil {
		return nil, fmt.Errorf("instantiating native extension: %w", err)
	}
	defer mod.Close(ctx)

	f := mod.ExportedFunction(fn)
	if f == nil {
		return nil, fmt.Errorf("native extension does not export %q", fn)
	}
	return f.Call(ctx, args...)
}
