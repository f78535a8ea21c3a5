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

// Package clientwire connects a client process to the driver running its job.
//
// A Gate decides once, at construction, whether a remote channel exists. In
// detached mode there is none: wiring is a no-op and asking for the channel
// identifier fails with errdefs.ErrNoChannel. When a channel exists, WireUp
// registers the runtime error and job status handlers on it exactly once.
//
// Every public method holds the gate's lock for its whole duration, so two
// concurrent WireUp calls yield one success and one errdefs.ErrAlreadyWired.
package clientwire

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/eminwux/jobwire/pkg/api"
	"github.com/eminwux/jobwire/pkg/env"
)

// channelState is either absent (channel == nil) or present.
type channelState struct {
	channel api.Channel
}

func (s channelState) present() bool { return s.channel != nil }

type Gate struct {
	ctx    context.Context
	logger *slog.Logger

	mu            sync.Mutex
	state         channelState
	errorHandler  api.Handler
	statusHandler api.Handler
	clientPresent bool
	wired         bool
	closed        bool
}

// NewGate assembles a gate around channel. The channel is kept only when
// clientPresent equals env.ClientPresentYes; a nil channel with a present
// client is a valid headless configuration.
func NewGate(
	ctx context.Context,
	logger *slog.Logger,
	channel api.Channel,
	clientPresent string,
	errorHandler api.Handler,
	statusHandler api.Handler,
) (*Gate, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if errorHandler == nil {
		return nil, fmt.Errorf("%w: runtime error handler", errdefs.ErrNilHandler)
	}
	if statusHandler == nil {
		return nil, fmt.Errorf("%w: job status handler", errdefs.ErrNilHandler)
	}

	present := env.IsClientPresent(clientPresent)
	g := &Gate{
		ctx:           ctx,
		logger:        logger,
		errorHandler:  errorHandler,
		statusHandler: statusHandler,
		clientPresent: present,
	}
	if present && channel != nil {
		g.state = channelState{channel: channel}
	}

	logger.DebugContext(ctx, "instantiated client wire up gate",
		"clientPresent", present,
		"channelPresent", g.state.present(),
	)
	return g, nil
}

// NewDetachedGate is NewGate for environments that never have a channel to
// offer.
func NewDetachedGate(
	ctx context.Context,
	logger *slog.Logger,
	clientPresent string,
	errorHandler api.Handler,
	statusHandler api.Handler,
) (*Gate, error) {
	return NewGate(ctx, logger, nil, clientPresent, errorHandler, statusHandler)
}

// WireUp registers the handlers on the channel, if any. It may succeed only
// once per gate; later calls return errdefs.ErrAlreadyWired without touching
// the channel. A registration failure still consumes the single wiring.
func (g *Gate) WireUp() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.wired {
		g.logger.ErrorContext(g.ctx, "wire up called more than once")
		return errdefs.ErrAlreadyWired
	}
	g.wired = true

	if !g.state.present() {
		g.logger.DebugContext(g.ctx, "no remote channel, skipping wire up", "clientPresent", g.clientPresent)
		return nil
	}

	ch := g.state.channel
	g.logger.DebugContext(g.ctx, "wiring up communications channels to the driver")
	if err := ch.RegisterHandler(api.MessageRuntimeError, g.errorHandler); err != nil {
		g.logger.ErrorContext(g.ctx, "could not register handler", "type", api.MessageRuntimeError, "error", err)
		return fmt.Errorf("%w: %s: %w", errdefs.ErrWireUp, api.MessageRuntimeError, err)
	}
	if err := ch.RegisterHandler(api.MessageJobStatus, g.statusHandler); err != nil {
		g.logger.ErrorContext(g.ctx, "could not register handler", "type", api.MessageJobStatus, "error", err)
		return fmt.Errorf("%w: %s: %w", errdefs.ErrWireUp, api.MessageJobStatus, err)
	}
	g.logger.DebugContext(g.ctx, "wired up communications channels to the driver", "identifier", ch.Identifier())
	return nil
}

func (g *Gate) IsClientPresent() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clientPresent
}

func (g *Gate) IsWired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wired
}

// ChannelIdentifier returns the address the driver should reply to.
func (g *Gate) ChannelIdentifier() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.clientPresent || !g.state.present() {
		return "", errdefs.ErrNoChannel
	}
	return g.state.channel.Identifier(), nil
}

// Close releases the channel, if there was one. A failing channel close is
// logged and swallowed; Close always returns nil.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		g.logger.DebugContext(g.ctx, "gate already closed")
		return nil
	}
	g.closed = true

	if !g.state.present() {
		g.logger.DebugContext(g.ctx, "no remote channel to close")
		return nil
	}

	ch := g.state.channel
	g.state = channelState{}
	if err := ch.Close(); err != nil {
		g.logger.WarnContext(g.ctx, "exception while shutting down the remote channel",
			"error", fmt.Errorf("%w: %w", errdefs.ErrChannelClose, err),
		)
		return nil
	}
	g.logger.DebugContext(g.ctx, "remote channel closed")
	return nil
}
