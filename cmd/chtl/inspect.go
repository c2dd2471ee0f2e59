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

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/chtl-lang/chtl/chtl/compiler"
	"github.com/chtl-lang/chtl/chtl/diagnostic"
	"github.com/chtl-lang/chtl/chtl/generator"
	"github.com/chtl-lang/chtl/chtl/importer"
	"github.com/chtl-lang/chtl/chtl/parser"
)

type inspectFlags struct {
	highlight bool
	ast       bool
}

func newInspectCmd() *cobra.Command {
	f := &inspectFlags{}
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Compile one file and print its generated output or parsed AST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], f)
		},
	}
	cmd.Flags().BoolVar(&f.highlight, "highlight", false, "colorize the generated HTML/CSS/JS with syntax highlighting")
	cmd.Flags().BoolVar(&f.ast, "ast", false, "print the parsed AST instead of compiling")
	return cmd
}

func runInspect(cmd *cobra.Command, file string, f *inspectFlags) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	if f.ast {
		doc, diags, _ := parser.Parse(file, raw, nil)
		litter.Dump(doc)
		for _, d := range diags.All() {
			fmt.Fprintln(cmd.ErrOrStderr(), d.Error())
		}
		return nil
	}

	c := compiler.New(compiler.Options{
		Roots: importer.SearchRoots{CurrentDir: filepath.Dir(file)},
		Gen:   generator.Options{FullDocument: true, Pretty: true},
	})
	out := c.Compile(file, raw)

	fd := os.Stdout.Fd()
	printStream(cmd, "html", out.HTML, f.highlight, fd)
	printStream(cmd, "css", out.CSS, f.highlight, fd)
	printStream(cmd, "javascript", out.JS, f.highlight, fd)

	for _, d := range out.Diagnostics.All() {
		fmt.Fprintln(cmd.ErrOrStderr(), d.Error())
	}
	if out.Diagnostics.ShouldAbort() {
		return fmt.Errorf("compilation failed")
	}
	return nil
}

func printStream(cmd *cobra.Command, lang, src string, highlight bool, fd uintptr) {
	if src == "" {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "--- %s ---\n", lang)
	if highlight {
		fmt.Fprintln(cmd.OutOrStdout(), diagnostic.HighlightOutput(fd, lang, src))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), src)
}
