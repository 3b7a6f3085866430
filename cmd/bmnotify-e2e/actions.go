// Copyright 2024 Alexandre Mahdhaoui
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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

type matrixRow struct {
	Kind     string   `json:"kind"`
	Action   string   `json:"action"`
	Level    string   `json:"level"`
	Expected []string `json:"expected"`
}

func newActionsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the supported kind and action pairs with their expected events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printMatrix(cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func printMatrix(w io.Writer, output string) error {
	entries := scenario.Matrix()
	rows := make([]matrixRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, matrixRow{
			Kind:     string(e.Kind),
			Action:   string(e.Action),
			Level:    e.Level.String(),
			Expected: e.Expected,
		})
	}

	switch output {
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "KIND\tACTION\tLEVEL\tEXPECTED")
		for _, r := range rows {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Kind, r.Action, r.Level, strings.Join(r.Expected, ","))
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		b, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("marshalling matrix: %w", err)
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
}
