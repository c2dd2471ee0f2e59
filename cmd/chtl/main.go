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

// Command chtl is the CHTL compiler's command-line entry point: build,
// serve, mod, inspect, and version, wired the way Hugo's own cmd/hugo
// wires its cobra command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chtl",
		Short: "Compile CHTL sources into HTML, CSS, and JavaScript",
		Long: "chtl compiles .chtl source files into static HTML, CSS, and\n" +
			"JavaScript, expanding templates and customs, resolving imports,\n" +
			"and lowering CHTL-JS syntax the way a build tool turns a markup\n" +
			"language into its target output.",
		SilenceUsage: true,
	}
	root.AddCommand(newBuildCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newModCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newVersionCmd())
	return root
}
