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

package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/pkg/api"
	"gopkg.in/yaml.v3"
)

// JobStatusHandler keeps the latest status of every job reported by the
// driver and, when Out is set, prints each update as a YAML document.
type JobStatusHandler struct {
	logger *slog.Logger

	mu       sync.Mutex
	out      io.Writer
	statuses map[string]api.JobStatus
	doneCh   chan api.JobStatus
}

func NewJobStatusHandler(logger *slog.Logger, out io.Writer) *JobStatusHandler {
	return &JobStatusHandler{
		logger:   logger,
		out:      out,
		statuses: make(map[string]api.JobStatus),
		//nolint:mnd // terminal status buffer
		doneCh: make(chan api.JobStatus, 16),
	}
}

func (h *JobStatusHandler) Handle(ctx context.Context, env *api.Envelope) error {
	var status api.JobStatus
	if err := env.Decode(&status); err != nil {
		h.logger.ErrorContext(ctx, "could not decode job status", "source", env.Source, "error", err)
		return fmt.Errorf("%w: %w", errdefs.ErrInvalidEnvelope, err)
	}
	if status.JobID == "" {
		return fmt.Errorf("%w: job status without job id", errdefs.ErrInvalidEnvelope)
	}
	if _, err := api.ParseJobState(string(status.State)); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrInvalidEnvelope, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.statuses[status.JobID] = status
	h.logger.InfoContext(ctx, "job status", "job", status.JobID, "state", status.State, "message", status.Message)

	if h.out != nil {
		doc, err := yaml.Marshal(&status)
		if err != nil {
			return fmt.Errorf("render job status: %w", err)
		}
		if _, err := fmt.Fprintf(h.out, "---\n%s", doc); err != nil {
			h.logger.WarnContext(ctx, "could not print job status", "error", err)
		}
	}

	if status.State.Terminal() {
		select {
		case h.doneCh <- status:
		default:
			h.logger.WarnContext(ctx, "terminal status dropped, no reader", "job", status.JobID)
		}
	}
	return nil
}

// Status returns the last status seen for jobID.
func (h *JobStatusHandler) Status(jobID string) (api.JobStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.statuses[jobID]
	return st, ok
}

// Snapshot returns the last status of every job, ordered by job id.
func (h *JobStatusHandler) Snapshot() []api.JobStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]api.JobStatus, 0, len(h.statuses))
	for _, st := range h.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

// Done delivers statuses in a terminal state (DONE, FAILED, KILLED).
func (h *JobStatusHandler) Done() <-chan api.JobStatus { return h.doneCh }
