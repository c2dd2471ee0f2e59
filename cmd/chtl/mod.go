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
	"context"
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/chtl-lang/chtl/chtl/module"
)

func newModCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mod",
		Short: "Inspect .cmod/.cjmod module archives",
	}
	cmd.AddCommand(newModInfoCmd())
	return cmd
}

func newModInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <dir> <name>",
		Short: "Print a module archive's manifest, sources, and native extension status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, name := args[0], args[1]
			fs := afero.NewOsFs()
			arc, err := module.Load(fs, dir, name)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "module: %s (%s)\n", arc.Info.Name, arc.Info.Version)
			if arc.Info.Description != "" {
				fmt.Fprintln(cmd.OutOrStdout(), arc.Info.Description)
			}
			if arc.Info.Author != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "author: %s\n", arc.Info.Author)
			}
			if arc.Info.License != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "license: %s\n", arc.Info.License)
			}
			if len(arc.Info.Dependencies) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "dependencies: %v\n", arc.Info.Dependencies)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Sub-module", "Bytes"})
			names := make([]string, 0, len(arc.Sources))
			for k := range arc.Sources {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, n := range names {
				table.Append([]string{n, fmt.Sprintf("%d", len(arc.Sources[n]))})
			}
			table.Render()

			if len(arc.NativeExtension) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "native extension: %d bytes (wasm)\n", len(arc.NativeExtension))
				host := module.NewNativeHost(context.Background())
				defer host.Close(context.Background())
			}

			return nil
		},
	}
}
