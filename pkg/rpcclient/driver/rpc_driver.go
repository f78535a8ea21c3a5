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

package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"time"

	"github.com/eminwux/jobwire/internal/common"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/eminwux/jobwire/pkg/api"
)

type Dialer func(ctx context.Context) (net.Conn, error)

type client struct {
	dial   Dialer
	logger *slog.Logger
	source string
	delays []time.Duration
}

type (
	Option   func(*unixOpts)
	unixOpts struct {
		DialTimeout time.Duration
		Source      string
		Delays      []time.Duration
	}
)

func WithDialTimeout(d time.Duration) Option {
	return func(o *unixOpts) { o.DialTimeout = d }
}

// WithSource sets the Source stamped on every envelope.
func WithSource(source string) Option {
	return func(o *unixOpts) { o.Source = source }
}

// WithRetryDelays replaces the per-attempt delays; the first entry is
// normally 0.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(o *unixOpts) { o.Delays = delays }
}

// NewUnix returns a ctx-aware client that dials a Unix socket per call.
func NewUnix(sockPath string, logger *slog.Logger, opts ...Option) Client {
	hostname, _ := os.Hostname()
	//nolint:mnd // default timeout and retry schedule
	cfg := unixOpts{
		DialTimeout: 5 * time.Second,
		Source:      fmt.Sprintf("driver@%s/%d", hostname, os.Getpid()),
		Delays:      []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond},
	}
	for _, o := range opts {
		o(&cfg)
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if len(cfg.Delays) == 0 {
		cfg.Delays = []time.Duration{0}
	}
	dialer := func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: cfg.DialTimeout}
		return d.DialContext(ctx, "unix", sockPath)
	}
	return &client{dial: dialer, logger: logger, source: cfg.Source, delays: cfg.Delays}
}

// NewFromIdentifier resolves a channel identifier to its socket.
func NewFromIdentifier(identifier string, logger *slog.Logger, opts ...Option) (Client, error) {
	socket, _, err := api.ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return NewUnix(socket, logger, opts...), nil
}

func (c *client) call(ctx context.Context, method string, in, out any) error {
	var lastErr error

	for attempt, d := range c.delays {
		if d > 0 {
			c.logger.DebugContext(ctx, "delaying before retry", "attempt", attempt, "delay", d)
			select {
			case <-ctx.Done():
				c.logger.WarnContext(ctx, "context done before retry", "attempt", attempt, "error", ctx.Err())
				return ctx.Err()
			case <-time.After(d):
			}
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "dial failed", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		lc := &common.LoggingConn{
			Conn:        conn,
			Ctx:         ctx,
			Logger:      c.logger,
			PrefixWrite: "driver->client",
			PrefixRead:  "client->driver",
		}
		rpcc := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(lc))
		errCh := make(chan error, 1)
		go func() {
			errCh <- rpcc.Call(method, in, out)
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			c.logger.WarnContext(ctx, "context done during RPC call", "method", method, "attempt", attempt, "error", ctx.Err())
			_ = conn.SetDeadline(time.Now().Add(10 * time.Millisecond))
			_ = rpcc.Close()
			return ctx.Err()
		case err = <-errCh:
			_ = rpcc.Close()
			if err == nil {
				c.logger.DebugContext(ctx, "RPC call succeeded", "method", method, "attempt", attempt)
				return nil
			}
			var serverErr rpc.ServerError
			if errors.As(err, &serverErr) {
				// The client answered; retrying would deliver the message twice.
				c.logger.ErrorContext(ctx, "RPC call rejected", "method", method, "error", err)
				return err
			}
			c.logger.ErrorContext(ctx, "RPC call failed", "method", method, "attempt", attempt, "error", err)
			lastErr = err
		}
	}
	c.logger.ErrorContext(ctx, "all attempts failed for RPC call", "method", method, "error", lastErr)
	return lastErr
}

func (c *client) Close() error { return nil } // stateless client

func (c *client) Ping(ctx context.Context, ping *api.PingMessage, pong *api.PingMessage) error {
	return c.call(ctx, api.ChannelMethodPing, ping, pong)
}

func (c *client) Deliver(ctx context.Context, env *api.Envelope) error {
	if env.Source == "" {
		stamped := *env
		stamped.Source = c.source
		env = &stamped
	}
	if err := c.call(ctx, api.ChannelMethodDeliver, env, &api.Empty{}); err != nil {
		return fmt.Errorf("deliver %s: %w", env.Type, err)
	}
	return nil
}

func (c *client) SendJobStatus(ctx context.Context, status *api.JobStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	env, err := api.NewEnvelope(api.MessageJobStatus, c.source, status)
	if err != nil {
		return err
	}
	return c.Deliver(ctx, env)
}

func (c *client) SendRuntimeError(ctx context.Context, rtErr *api.RuntimeError) error {
	env, err := api.NewEnvelope(api.MessageRuntimeError, c.source, rtErr)
	if err != nil {
		return err
	}
	return c.Deliver(ctx, env)
}
