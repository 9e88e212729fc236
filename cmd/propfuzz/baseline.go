// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect or reset the per-type property records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <key>",
		Short: "Print the current and baseline records of a type key (e.g. github.com/zintix-labs/propfuzz/demo/demo_world.Goblin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			cur, err := store.ReadCurrent(args[0])
			if err != nil {
				return err
			}
			base, err := store.ReadBaseline(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:      %s\n", args[0])
			printRecord(out, "current", cur)
			printRecord(out, "baseline", base)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <key>",
		Short: "Delete both records of a type key; the next pass reports every field as new",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			if err := store.Reset(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func printRecord(w io.Writer, label string, names []string) {
	fmt.Fprintf(w, "%-9s (%d) %s\n", label+":", len(names), strings.Join(names, ", "))
}
