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
	"log/slog"

	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/pkg/api"
)

// RuntimeErrorHandler forwards runtime failures reported by the driver.
type RuntimeErrorHandler struct {
	logger *slog.Logger
	errCh  chan *api.RuntimeError
}

func NewRuntimeErrorHandler(logger *slog.Logger, buffer int) *RuntimeErrorHandler {
	if buffer < 1 {
		buffer = 1
	}
	return &RuntimeErrorHandler{
		logger: logger,
		errCh:  make(chan *api.RuntimeError, buffer),
	}
}

func (h *RuntimeErrorHandler) Handle(ctx context.Context, env *api.Envelope) error {
	var rtErr api.RuntimeError
	if err := env.Decode(&rtErr); err != nil {
		h.logger.ErrorContext(ctx, "could not decode runtime error", "source", env.Source, "error", err)
		return fmt.Errorf("%w: %w", errdefs.ErrInvalidEnvelope, err)
	}

	h.logger.ErrorContext(ctx, "runtime error reported by driver",
		"name", rtErr.Name,
		"identifier", rtErr.Identifier,
		"message", rtErr.Message,
	)

	select {
	case h.errCh <- &rtErr:
	default:
		h.logger.WarnContext(ctx, "runtime error dropped, no reader", "name", rtErr.Name)
	}
	return nil
}

func (h *RuntimeErrorHandler) Errors() <-chan *api.RuntimeError { return h.errCh }
