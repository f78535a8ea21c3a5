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

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/eminwux/jobwire/cmd/config"
	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/eminwux/jobwire/pkg/api"
	"github.com/eminwux/jobwire/pkg/env"
	"github.com/eminwux/jobwire/pkg/rpcclient/driver"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	viperNotifyChannel = "notify.channel"
	viperNotifySocket  = "notify.socket"
	viperNotifyTimeout = "notify.timeout"
	viperNotifySource  = "notify.source"

	defaultTimeout = 10 * time.Second
)

// NewNotifyCmd is the driver side of the channel: it delivers one message to
// a running client and exits.
func NewNotifyCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a notification to a client channel",
		Long: `Send a job status or runtime error to a client channel, the way a driver
does. The channel is taken from --channel, then --socket, then
JOBWIRE_CHANNEL_SOCKET.
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	statusCmd, err := newStatusCmd()
	if err != nil {
		return nil, err
	}
	errorCmd, err := newErrorCmd()
	if err != nil {
		return nil, err
	}
	pingCmd := newPingCmd()
	cmd.AddCommand(statusCmd, errorCmd, pingCmd)

	cmd.PersistentFlags().String("channel", "", "Channel identifier printed by 'jobwire client'")
	cmd.PersistentFlags().String("socket", "", "Channel socket path")
	cmd.PersistentFlags().Duration("timeout", defaultTimeout, "Give up after this long")
	cmd.PersistentFlags().String("source", "", "Source stamped on the message (default driver@<host>/<pid>)")

	if err := config.BindFlags(cmd.PersistentFlags(),
		config.FlagBinding{Flag: "channel", ViperKey: viperNotifyChannel},
		config.FlagBinding{Flag: "socket", ViperKey: viperNotifySocket},
		config.FlagBinding{Flag: "timeout", ViperKey: viperNotifyTimeout},
		config.FlagBinding{Flag: "source", ViperKey: viperNotifySource},
	); err != nil {
		return nil, err
	}
	return cmd, nil
}

func resolveSocket() (string, error) {
	if identifier := viper.GetString(viperNotifyChannel); identifier != "" {
		socket, _, err := api.ParseIdentifier(identifier)
		if err != nil {
			return "", err
		}
		return socket, nil
	}
	if socket := viper.GetString(viperNotifySocket); socket != "" {
		return socket, nil
	}
	if socket := env.CHANNEL_SOCKET.ValueOrDefault(); socket != "" {
		return socket, nil
	}
	return "", errdefs.ErrNoChannelSocket
}

func newClient(logger *slog.Logger) (driver.Client, error) {
	socket, err := resolveSocket()
	if err != nil {
		return nil, err
	}
	opts := []driver.Option{driver.WithDialTimeout(viper.GetDuration(viperNotifyTimeout))}
	if source := viper.GetString(viperNotifySource); source != "" {
		opts = append(opts, driver.WithSource(source))
	}
	logger.DebugContext(context.Background(), "notify target", "socket", socket)
	return driver.NewUnix(socket, logger, opts...), nil
}

// prepare extracts the logger, rejects positional args and builds the
// driver client with its deadline.
func prepare(cmd *cobra.Command, args []string) (context.Context, context.CancelFunc, driver.Client, error) {
	logger, err := logging.FromContext(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}
	if len(args) > 0 {
		return nil, nil, nil, fmt.Errorf("%w: %v", errdefs.ErrTooManyArguments, args)
	}
	c, err := newClient(logger)
	if err != nil {
		return nil, nil, nil, err
	}

	timeout := viper.GetDuration(viperNotifyTimeout)
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return ctx, cancel, c, nil
}

// loadMessageFile decodes a YAML message document into out.
func loadMessageFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrReadMessageFile, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", errdefs.ErrReadMessageFile, path, err)
	}
	return nil
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "ping",
		Short:        "Check that a client channel answers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, c, err := prepare(cmd, args)
			if err != nil {
				return err
			}
			defer cancel()
			defer c.Close()

			var pong api.PingMessage
			if err := c.Ping(ctx, &api.PingMessage{Message: "PING"}, &pong); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pong.Message)
			return nil
		},
	}
}
