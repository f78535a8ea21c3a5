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

package jobwire

import (
	"errors"
	"fmt"

	"github.com/eminwux/jobwire/cmd/config"
	"github.com/eminwux/jobwire/cmd/jobwire/client"
	"github.com/eminwux/jobwire/cmd/jobwire/clients"
	"github.com/eminwux/jobwire/cmd/jobwire/notify"
	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/eminwux/jobwire/pkg/env"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewJobwireRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "jobwire",
		Short: "jobwire wires a job client to its driver",
		Long: `jobwire opens the channel a driver uses to report job status and
runtime errors back to the client that submitted the job.

You can see available options and commands with:
  jobwire help

Examples:
  JOBWIRE_CLIENT_PRESENT=yes jobwire client --wait-job job-1
  jobwire notify status --channel unix:///path/socket#id --job job-1 --state DONE
  jobwire clients get --all
` + config.EnvHelp(env.CLIENT_PRESENT, env.CHANNEL_SOCKET, env.RUN_PATH, env.LOG_LEVEL, env.CONFIG_FILE),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := LoadConfig(); err != nil {
				return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
			}
			logging.SetLevel(cmd.Context(), env.LOG_LEVEL.ValueOrDefault())
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger.DebugContext(cmd.Context(), "jobwire", "args", cmd.Flags().Args())
			return cmd.Help()
		},
	}

	if err := setupRootCmd(rootCmd); err != nil {
		return nil, err
	}
	return rootCmd, nil
}

func setupRootCmd(rootCmd *cobra.Command) error {
	clientCmd, err := client.NewClientCmd()
	if err != nil {
		return err
	}
	notifyCmd, err := notify.NewNotifyCmd()
	if err != nil {
		return err
	}
	clientsCmd, err := clients.NewClientsCmd()
	if err != nil {
		return err
	}
	rootCmd.AddCommand(clientCmd, notifyCmd, clientsCmd)

	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.jobwire/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("run-path", "", "Run path directory")

	return config.BindFlags(rootCmd.PersistentFlags(),
		config.FlagBinding{Flag: "config", ViperKey: env.CONFIG_FILE.ViperKey},
		config.FlagBinding{Flag: "log-level", ViperKey: env.LOG_LEVEL.ViperKey},
		config.FlagBinding{Flag: "run-path", ViperKey: env.RUN_PATH.ViperKey},
	)
}

// LoadConfig reads the optional config file and binds the environment.
// A missing file is not an error.
func LoadConfig() error {
	_ = env.CONFIG_FILE.BindEnv()
	if configFile := viper.GetString(env.CONFIG_FILE.ViperKey); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.DefaultConfigDir())
	}

	_ = env.RUN_PATH.BindEnv()
	env.RUN_PATH.SetDefault(config.GetRunPathFromEnvAndFlags(nil))

	_ = env.LOG_LEVEL.BindEnv()
	env.LOG_LEVEL.SetDefault("info")

	_ = env.CLIENT_PRESENT.BindEnv()
	env.CLIENT_PRESENT.SetDefault(env.ClientPresentNo)

	_ = env.CHANNEL_SOCKET.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return err // Config file was found but another error was produced
		}
	}
	return nil
}
