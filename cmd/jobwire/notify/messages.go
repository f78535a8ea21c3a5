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
	"fmt"
	"time"

	"github.com/eminwux/jobwire/cmd/config"
	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/pkg/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	viperStatusFile      = "notify.status.file"
	viperStatusJob       = "notify.status.job"
	viperStatusState     = "notify.status.state"
	viperStatusMessage   = "notify.status.message"
	viperStatusException = "notify.status.exception"

	viperErrorFile       = "notify.error.file"
	viperErrorName       = "notify.error.name"
	viperErrorMessage    = "notify.error.message"
	viperErrorIdentifier = "notify.error.identifier"
	viperErrorException  = "notify.error.exception"
)

func newStatusCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report a job status",
		Long: `Report a job status to a client channel.

Examples:
  jobwire notify status --channel unix:///run/c1/socket#c1 --job job-1 --state RUNNING
  jobwire notify status --socket /run/c1/socket --file status.yaml
`,
		SilenceUsage: true,
		RunE:         runStatusCmd,
	}

	cmd.Flags().String("file", "", "YAML file holding the status document")
	cmd.Flags().String("job", "", "Job ID")
	cmd.Flags().String("state", "", "Job state (INIT, RUNNING, DONE, SUSPEND, FAILED, KILLED)")
	cmd.Flags().String("message", "", "Status message")
	cmd.Flags().String("exception", "", "Exception details for a failed job")

	if err := config.BindFlags(cmd.Flags(),
		config.FlagBinding{Flag: "file", ViperKey: viperStatusFile},
		config.FlagBinding{Flag: "job", ViperKey: viperStatusJob},
		config.FlagBinding{Flag: "state", ViperKey: viperStatusState},
		config.FlagBinding{Flag: "message", ViperKey: viperStatusMessage},
		config.FlagBinding{Flag: "exception", ViperKey: viperStatusException},
	); err != nil {
		return nil, err
	}
	return cmd, nil
}

// buildStatus starts from the file, if any, and lets flags override it.
func buildStatus() (*api.JobStatus, error) {
	status := &api.JobStatus{}
	if file := viper.GetString(viperStatusFile); file != "" {
		if err := loadMessageFile(file, status); err != nil {
			return nil, err
		}
	}
	if job := viper.GetString(viperStatusJob); job != "" {
		status.JobID = job
	}
	if state := viper.GetString(viperStatusState); state != "" {
		status.State = api.JobState(state)
	}
	if msg := viper.GetString(viperStatusMessage); msg != "" {
		status.Message = msg
	}
	if exc := viper.GetString(viperStatusException); exc != "" {
		status.Exception = exc
	}

	if status.JobID == "" {
		return nil, fmt.Errorf("%w: --job is required", errdefs.ErrInvalidArgument)
	}
	state, err := api.ParseJobState(string(status.State))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
	}
	status.State = state
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	return status, nil
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel, c, err := prepare(cmd, args)
	if err != nil {
		return err
	}
	defer cancel()
	defer c.Close()

	status, err := buildStatus()
	if err != nil {
		return err
	}
	return c.SendJobStatus(ctx, status)
}

func newErrorCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "error",
		Short: "Report a runtime error",
		Long: `Report a failure of the runtime hosting the job to a client channel.

Examples:
  jobwire notify error --channel unix:///run/c1/socket#c1 --name local --message "executor lost"
`,
		SilenceUsage: true,
		RunE:         runErrorCmd,
	}

	cmd.Flags().String("file", "", "YAML file holding the runtime error document")
	cmd.Flags().String("name", "", "Runtime name")
	cmd.Flags().String("message", "", "Error message")
	cmd.Flags().String("identifier", "", "Identifier of the failing runtime component")
	cmd.Flags().String("exception", "", "Exception details")

	if err := config.BindFlags(cmd.Flags(),
		config.FlagBinding{Flag: "file", ViperKey: viperErrorFile},
		config.FlagBinding{Flag: "name", ViperKey: viperErrorName},
		config.FlagBinding{Flag: "message", ViperKey: viperErrorMessage},
		config.FlagBinding{Flag: "identifier", ViperKey: viperErrorIdentifier},
		config.FlagBinding{Flag: "exception", ViperKey: viperErrorException},
	); err != nil {
		return nil, err
	}
	return cmd, nil
}

func buildRuntimeError() (*api.RuntimeError, error) {
	rtErr := &api.RuntimeError{}
	if file := viper.GetString(viperErrorFile); file != "" {
		if err := loadMessageFile(file, rtErr); err != nil {
			return nil, err
		}
	}
	if name := viper.GetString(viperErrorName); name != "" {
		rtErr.Name = name
	}
	if msg := viper.GetString(viperErrorMessage); msg != "" {
		rtErr.Message = msg
	}
	if id := viper.GetString(viperErrorIdentifier); id != "" {
		rtErr.Identifier = id
	}
	if exc := viper.GetString(viperErrorException); exc != "" {
		rtErr.Exception = exc
	}

	if rtErr.Message == "" {
		return nil, fmt.Errorf("%w: --message is required", errdefs.ErrInvalidArgument)
	}
	return rtErr, nil
}

func runErrorCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel, c, err := prepare(cmd, args)
	if err != nil {
		return err
	}
	defer cancel()
	defer c.Close()

	rtErr, err := buildRuntimeError()
	if err != nil {
		return err
	}
	return c.SendRuntimeError(ctx, rtErr)
}
