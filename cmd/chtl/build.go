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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/clocks"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
	"github.com/spf13/fsync"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/chtl-lang/chtl/chtl/compiler"
	"github.com/chtl-lang/chtl/chtl/config"
	"github.com/chtl-lang/chtl/chtl/errors"
	"github.com/chtl-lang/chtl/chtl/generator"
	"github.com/chtl-lang/chtl/chtl/importer"
)

type buildFlags struct {
	source     string
	outDir     string
	minify     bool
	pretty     bool
	strict     bool
	debug      bool
	moduleDir  string
	officialDir string
}

func newBuildCmd() *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Compile .chtl files into an output directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "."
			if len(args) == 1 {
				src = args[0]
			}
			f.source = src
			return runBuild(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.outDir, "output", "o", "", "output directory (overrides chtl.toml output.dir)")
	cmd.Flags().BoolVar(&f.minify, "minify", false, "minify generated CSS and JavaScript")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "pretty-print generated HTML")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "treat context-constraint violations as errors")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "dump the collected diagnostics to stdout after the build")
	cmd.Flags().StringVar(&f.moduleDir, "module-dir", "", "project module search directory")
	cmd.Flags().StringVar(&f.officialDir, "official-dir", "", "official (shared) module directory")
	return cmd
}

func runBuild(cmd *cobra.Command, f *buildFlags) error {
	undo, _ := maxprocs.Set()
	defer undo()

	clock := clocks.System()
	start := clock.Now()

	projDir := f.source
	if fi, err := os.Stat(f.source); err == nil && !fi.IsDir() {
		projDir = filepath.Dir(f.source)
	}
	proj, err := config.Load(projDir)
	if err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}
	if f.outDir != "" {
		proj.Output.Dir = f.outDir
	}
	if f.minify {
		proj.Output.Minify = true
	}
	if f.pretty {
		proj.Output.Pretty = true
	}
	if f.strict {
		proj.Compile.StrictConstraints = true
	}
	if f.moduleDir != "" {
		proj.Module.SearchPath = []string{f.moduleDir}
	}
	if f.officialDir != "" {
		proj.Module.OfficialDir = f.officialDir
	}

	files, err := discoverSources(f.source)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .chtl files found under %s", f.source)
	}

	var sassCompiler *generator.DartSassCompiler
	if sc, err := generator.NewDartSassCompiler(); err == nil {
		sassCompiler = sc
		defer sassCompiler.Close()
	}

	var mu sync.Mutex
	results := make(map[string]*compiler.Output, len(files))
	var bag errors.Bag

	parallelism := proj.Compile.Parallelism
	var grp errgroup.Group
	if parallelism > 0 {
		grp.SetLimit(parallelism)
	}
	for _, file := range files {
		file := file
		grp.Go(func() error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			moduleSearch := ""
			if len(proj.Module.SearchPath) > 0 {
				moduleSearch = proj.Module.SearchPath[0]
			}
			c := compiler.New(compiler.Options{
				Roots: importer.SearchRoots{
					CurrentDir:     filepath.Dir(file),
					ProjectModule:  moduleSearch,
					OfficialModule: proj.Module.OfficialDir,
				},
				Gen: generator.Options{
					FullDocument:   true,
					Pretty:         proj.Output.Pretty,
					Minify:         proj.Output.Minify,
					RawCSSCompiler: sassCompiler,
				},
				Strict: proj.Compile.StrictConstraints,
				Clock:  clock,
			})
			out := c.Compile(file, raw)

			mu.Lock()
			results[file] = out
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	totalBytes, err := publishOutputs(proj.Output.Dir, f.source, results)
	if err != nil {
		return err
	}

	failed := printDiagnosticsTable(cmd, results)
	for _, out := range results {
		bag.Merge(out.Diagnostics)
	}

	if f.debug {
		litter.Dump(bag.All())
	}

	elapsed := clock.Now().Sub(start)
	fmt.Fprintf(cmd.OutOrStdout(), "built %d file(s), %s written, in %s\n", len(files), humanize.Bytes(totalBytes), elapsed)

	if failed {
		return fmt.Errorf("build failed")
	}
	return nil
}

func discoverSources(root string) ([]string, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{root}, nil
	}
	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".chtl") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// publishOutputs writes each file's generated HTML/CSS/JS into a
// staging directory mirroring the source tree, then syncs the staging
// tree into outDir with spf13/fsync, the same stage-then-sync shape
// Hugo's own build uses to publish a rendered site to publishDir. It
// returns the total number of bytes written.
func publishOutputs(outDir, srcRoot string, results map[string]*compiler.Output) (uint64, error) {
	staging, err := os.MkdirTemp("", "chtl-build-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(staging)

	base := srcRoot
	if fi, err := os.Stat(srcRoot); err == nil && !fi.IsDir() {
		base = filepath.Dir(srcRoot)
	}

	var total uint64
	write := func(path string, data []byte) error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		total += uint64(len(data))
		return os.WriteFile(path, data, 0o644)
	}

	for file, out := range results {
		if out == nil || !out.Success {
			continue
		}
		rel, err := filepath.Rel(base, file)
		if err != nil {
			rel = filepath.Base(file)
		}
		stem := strings.TrimSuffix(rel, filepath.Ext(rel))
		if out.HTML != "" {
			if err := write(filepath.Join(staging, stem+".html"), []byte(out.HTML)); err != nil {
				return 0, err
			}
		}
		if out.CSS != "" {
			if err := write(filepath.Join(staging, stem+".css"), []byte(out.CSS)); err != nil {
				return 0, err
			}
		}
		if out.JS != "" {
			if err := write(filepath.Join(staging, stem+".js"), []byte(out.JS)); err != nil {
				return 0, err
			}
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, err
	}
	syncer := fsync.NewSyncer()
	syncer.Delete = true
	if err := syncer.Sync(outDir, staging); err != nil {
		return 0, err
	}
	return total, nil
}

// printDiagnosticsTable renders one row per diagnostic across every
// compiled file, returning true if any file should fail the build.
func printDiagnosticsTable(cmd *cobra.Command, results map[string]*compiler.Output) bool {
	var failed bool
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"File", "Severity", "Kind", "Position", "Message"})

	for file, out := range results {
		if out == nil {
			continue
		}
		if !out.Success {
			failed = true
		}
		for _, d := range out.Diagnostics.All() {
			sev := "warning"
			if d.Severity == errors.SeverityError {
				sev = "error"
			}
			table.Append([]string{file, sev, d.Kind.String(), d.Pos.String(), d.Message})
		}
	}
	table.Render()
	return failed
}
