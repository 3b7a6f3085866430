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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate SUITE...",
		Short: "Validate suite files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suites, errs := scenario.NewLoader("").LoadMultiple(args)
			for _, s := range suites {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d scenario(s)\n", s.Name, len(s.Scenarios))
			}
			for _, err := range errs {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
			}
			if len(errs) > 0 {
				return errors.Join(errs...)
			}
			return nil
		},
	}
}
