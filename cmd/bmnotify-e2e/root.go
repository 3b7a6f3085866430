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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexandremahdhaoui/bmnotify/internal/config"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   Name,
		Short: "Bare-metal notification integration tests",
		Long: `bmnotify-e2e performs administrative operations against a bare-metal
management API and checks that the matching versioned notifications are
published on the notification bus.

The configuration file is read from --config or $` + config.ConfigPathEnvKey + `.
Every setting may be overridden with ` + config.EnvPrefix + `_* environment variables.`,
		Version:       fmt.Sprintf("%s (%s) %s", Version, CommitSHA, BuildTimestamp),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to the configuration file (defaults to $"+config.ConfigPathEnvKey+")")

	cmd.AddCommand(
		newRunCmd(opts),
		newActionsCmd(),
		newValidateCmd(),
	)
	return cmd
}

// loadConfig loads the configuration from path, or from the environment when
// path is empty.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.Load()
	}
	return config.LoadFile(o.configPath)
}
