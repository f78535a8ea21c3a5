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

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eminwux/jobwire/cmd/config"
	"github.com/eminwux/jobwire/internal/clientwire"
	"github.com/eminwux/jobwire/internal/common"
	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/internal/handlers"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/eminwux/jobwire/internal/remote"
	"github.com/eminwux/jobwire/pkg/api"
	"github.com/eminwux/jobwire/pkg/env"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	viperClientID      = "client.id"
	viperClientLogFile = "client.logFile"
	viperClientWaitJob = "client.waitJob"

	errorBuffer = 8
)

type runParams struct {
	ClientPresent string
	ID            string
	Socket        string
	RunPath       string
	WaitJob       string
	Out           io.Writer
}

func NewClientCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Open the client channel and wait for driver notifications",
		Long: `Open the channel the driver reports back on, register the job status
and runtime error handlers, and print the channel identifier.

When no client is present (JOBWIRE_CLIENT_PRESENT is not "yes") no channel is
opened and the command exits immediately.
` + config.EnvHelp(env.CLIENT_PRESENT, env.CHANNEL_SOCKET, env.CLIENT_ID),
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			logFile := viper.GetString(viperClientLogFile)
			if logFile == "" {
				return nil
			}
			return logging.SetupFileLogger(cmd, logFile, env.LOG_LEVEL.ValueOrDefault())
		},
		RunE: runClientCmd,
		PostRunE: func(cmd *cobra.Command, _ []string) error {
			logging.CloseFileLogger(cmd.Context())
			return nil
		},
	}

	if err := setupClientCmd(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func setupClientCmd(cmd *cobra.Command) error {
	cmd.Flags().String("client-present", "", `Whether a client is attached ("yes" or "no")`)
	cmd.Flags().String("socket", "", "Socket path for the channel (default <run-path>/clients/<id>/socket)")
	cmd.Flags().String("id", "", "Client channel ID (default random)")
	cmd.Flags().String("log-file", "", "Write logs to this file instead of stderr")
	cmd.Flags().String("wait-job", "", "Exit once this job reaches a terminal state")

	return config.BindFlags(cmd.Flags(),
		config.FlagBinding{Flag: "client-present", ViperKey: env.CLIENT_PRESENT.ViperKey},
		config.FlagBinding{Flag: "socket", ViperKey: env.CHANNEL_SOCKET.ViperKey},
		config.FlagBinding{Flag: "id", ViperKey: viperClientID},
		config.FlagBinding{Flag: "log-file", ViperKey: viperClientLogFile},
		config.FlagBinding{Flag: "wait-job", ViperKey: viperClientWaitJob},
	)
}

func runClientCmd(cmd *cobra.Command, args []string) error {
	logger, err := logging.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return fmt.Errorf("%w: %v", errdefs.ErrTooManyArguments, args)
	}

	id := viper.GetString(viperClientID)
	if id == "" {
		id = env.CLIENT_ID.ValueOrDefault()
	}

	params := &runParams{
		ClientPresent: env.CLIENT_PRESENT.ValueOrDefault(),
		ID:            id,
		Socket:        env.CHANNEL_SOCKET.ValueOrDefault(),
		RunPath:       config.GetRunPathFromEnvAndFlags(cmd),
		WaitJob:       viper.GetString(viperClientWaitJob),
		Out:           cmd.OutOrStdout(),
	}

	logger.DebugContext(cmd.Context(), "parameters received in client",
		"clientPresent", params.ClientPresent,
		"id", params.ID,
		"socket", params.Socket,
		"runPath", params.RunPath,
		"waitJob", params.WaitJob,
	)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return runClient(ctx, logger, params)
}

func runClient(ctx context.Context, logger *slog.Logger, p *runParams) error {
	statusHandler := handlers.NewJobStatusHandler(logger, p.Out)
	errorHandler := handlers.NewRuntimeErrorHandler(logger, errorBuffer)

	gate, err := newGate(ctx, logger, p, errorHandler, statusHandler)
	if err != nil {
		return err
	}
	defer func() { _ = gate.Close() }()

	if err := gate.WireUp(); err != nil {
		return err
	}

	identifier, err := gate.ChannelIdentifier()
	if errors.Is(err, errdefs.ErrNoChannel) {
		logger.InfoContext(ctx, "no client present, running detached")
		return nil
	}
	if err != nil {
		return err
	}

	printIdentifier(p.Out, identifier)
	if err := publish(ctx, identifier); err != nil {
		return err
	}

	err = waitForJob(ctx, logger, p.WaitJob, errorHandler, statusHandler)
	for _, st := range statusHandler.Snapshot() {
		logger.DebugContext(ctx, "last job status", "job", st.JobID, "state", st.State)
	}
	return err
}

// newGate opens the channel only when a client is present.
func newGate(
	ctx context.Context,
	logger *slog.Logger,
	p *runParams,
	errorHandler api.Handler,
	statusHandler api.Handler,
) (*clientwire.Gate, error) {
	if !env.IsClientPresent(p.ClientPresent) {
		return clientwire.NewDetachedGate(ctx, logger, p.ClientPresent, errorHandler, statusHandler)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	socket := p.Socket
	if socket == "" {
		socket = common.ClientSocket(p.RunPath, api.ID(id))
	}

	mgr, err := remote.NewManager(ctx, logger, socket, remote.WithID(api.ID(id)))
	if err != nil {
		return nil, err
	}
	gate, err := clientwire.NewGate(ctx, logger, mgr, p.ClientPresent, errorHandler, statusHandler)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	return gate, nil
}

// publish writes the client metadata next to its socket.
func publish(ctx context.Context, identifier string) error {
	socket, id, err := api.ParseIdentifier(identifier)
	if err != nil {
		return err
	}
	md := api.ClientMetadata{
		ID:            id,
		Identifier:    identifier,
		Socket:        socket,
		Pid:           os.Getpid(),
		ClientPresent: true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := common.WriteMetadata(ctx, md, filepath.Dir(socket)); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrWriteMetadata, err)
	}
	return nil
}

// printIdentifier prints a labelled line on a terminal and the bare
// identifier otherwise, so scripts can capture it.
func printIdentifier(out io.Writer, identifier string) {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "client channel: %s\n", identifier)
		return
	}
	fmt.Fprintln(out, identifier)
}

func waitForJob(
	ctx context.Context,
	logger *slog.Logger,
	jobID string,
	errorHandler *handlers.RuntimeErrorHandler,
	statusHandler *handlers.JobStatusHandler,
) error {
	for {
		select {
		case <-ctx.Done():
			if jobID != "" {
				last, _ := statusHandler.Status(jobID)
				logger.WarnContext(ctx, "stopped before job finished", "job", jobID, "lastState", last.State)
				return fmt.Errorf("%w: %w", errdefs.ErrContextDone, context.Cause(ctx))
			}
			logger.InfoContext(ctx, "client stopped")
			return nil

		case rtErr := <-errorHandler.Errors():
			return fmt.Errorf("%w: %w", errdefs.ErrJobFailed, rtErr)

		case status := <-statusHandler.Done():
			if jobID == "" || status.JobID != jobID {
				continue
			}
			if status.State != api.JobDone {
				return fmt.Errorf("%w: %s is %s", errdefs.ErrJobFailed, status.JobID, status.State)
			}
			logger.InfoContext(ctx, "job finished", "job", status.JobID)
			return nil
		}
	}
}
