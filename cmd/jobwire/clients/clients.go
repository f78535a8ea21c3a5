// Copyright 2025 Emiliano Spinella (eminwux)
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
//
// SPDX-License-Identifier: Apache-2.0

package clients

import (
	"fmt"
	"strings"

	"github.com/eminwux/jobwire/cmd/config"
	"github.com/eminwux/jobwire/internal/discovery"
	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	listAllInput = "clients.get.all"
	outputFormat = "clients.get.output"
)

func NewClientsCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "clients",
		Aliases: []string{"cl"},
		Short:   "Inspect clients published under the run path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	getCmd, err := newGetCmd()
	if err != nil {
		return nil, err
	}
	cmd.AddCommand(getCmd, newPruneCmd())
	return cmd, nil
}

func newGetCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:          "get [ID]",
		Aliases:      []string{"list", "ls"},
		Short:        "List clients, or show one",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				if cmd.Flags().Changed("output") {
					return fmt.Errorf("%w: -o/--output needs a client ID", errdefs.ErrInvalidFlag)
				}
				return listClients(cmd)
			case len(args) > 1:
				return errdefs.ErrTooManyArguments
			}
			return getClient(cmd, args[0])
		},
		ValidArgsFunction: completeClients,
	}

	cmd.Flags().BoolP("all", "a", false, "List stale clients too")
	cmd.Flags().StringP("output", "o", "", "Output format: json|yaml (default: human-readable)")
	_ = cmd.RegisterFlagCompletionFunc(
		"output",
		func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return []string{"json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
		},
	)

	if err := config.BindFlags(cmd.Flags(),
		config.FlagBinding{Flag: "all", ViperKey: listAllInput},
		config.FlagBinding{Flag: "output", ViperKey: outputFormat},
	); err != nil {
		return nil, err
	}
	return cmd, nil
}

func listClients(cmd *cobra.Command) error {
	logger, err := logging.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	runPath := config.GetRunPathFromEnvAndFlags(cmd)
	logger.DebugContext(cmd.Context(), "clients list command invoked",
		"run_path", runPath,
		"list_all", viper.GetBool(listAllInput),
	)
	return discovery.ScanAndPrintClients(cmd.Context(), logger, runPath, cmd.OutOrStdout(), viper.GetBool(listAllInput))
}

func getClient(cmd *cobra.Command, id string) error {
	logger, err := logging.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	c, err := discovery.FindClientByID(cmd.Context(), logger, config.GetRunPathFromEnvAndFlags(cmd), id)
	if err != nil {
		return err
	}
	return discovery.PrintClient(cmd.OutOrStdout(), c, viper.GetString(outputFormat))
}

func completeClients(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	// logger is not set on autocomplete calls
	logger := logging.NewNoopLogger()
	clients, err := discovery.ScanClients(cmd.Context(), logger, config.GetRunPathFromEnvAndFlags(cmd))
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		if id := string(c.Metadata.ID); strings.HasPrefix(id, toComplete) {
			ids = append(ids, id)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "prune",
		Short:        "Remove stale clients",
		Long:         "Remove the run path entries of clients whose process or socket is gone.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) > 0 {
				return fmt.Errorf("%w: %v", errdefs.ErrTooManyArguments, args)
			}
			_, err = discovery.ScanAndPruneClients(cmd.Context(), logger, config.GetRunPathFromEnvAndFlags(cmd), cmd.OutOrStdout())
			return err
		},
	}
}
