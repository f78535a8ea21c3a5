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

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eminwux/jobwire/internal/common"
	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/eminwux/jobwire/pkg/api"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Manager is an api.Channel served over a unix socket. The driver delivers
// api.Envelope values through JSON-RPC and the manager routes each one to the
// handler registered for its type.
type Manager struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	logger *slog.Logger

	id       api.ID
	socket   string
	peerUIDs map[int]struct{}
	ln       net.Listener
	group    *errgroup.Group

	mu       sync.RWMutex
	handlers map[api.MessageType]api.Handler
	conns    map[net.Conn]struct{}
	closed   bool

	closeOnce sync.Once
	closeErr  error
}

type (
	Option      func(*managerOpts)
	managerOpts struct {
		ID       api.ID
		SockPerm os.FileMode
		PeerUIDs []int
	}
)

// WithID overrides the random channel id.
func WithID(id api.ID) Option {
	return func(o *managerOpts) { o.ID = id }
}

func WithSocketPerm(mode os.FileMode) Option {
	return func(o *managerOpts) { o.SockPerm = mode }
}

// WithPeerUIDs lists the uids allowed to connect. By default only the
// current user may deliver messages. An empty list disables the check.
func WithPeerUIDs(uids ...int) Option {
	return func(o *managerOpts) { o.PeerUIDs = uids }
}

// NewManager listens on socketPath and starts serving. Any stale socket file
// at that path is removed first.
func NewManager(ctx context.Context, logger *slog.Logger, socketPath string, opts ...Option) (*Manager, error) {
	cfg := managerOpts{
		ID:       api.ID(uuid.NewString()),
		SockPerm: 0o600,
		PeerUIDs: []int{os.Getuid()},
	}
	for _, o := range opts {
		o(&cfg)
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrOpenSocket, err)
	}
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: remove stale socket: %w", errdefs.ErrOpenSocket, err)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrOpenSocket, err)
	}
	if err := os.Chmod(socketPath, cfg.SockPerm); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("%w: chmod: %w", errdefs.ErrOpenSocket, err)
	}

	newCtx, cancel := context.WithCancelCause(ctx)
	group, groupCtx := errgroup.WithContext(newCtx)

	m := &Manager{
		ctx:      groupCtx,
		cancel:   cancel,
		logger:   logger.With("channel", string(cfg.ID)),
		id:       cfg.ID,
		socket:   socketPath,
		peerUIDs: make(map[int]struct{}, len(cfg.PeerUIDs)),
		ln:       ln,
		group:    group,
		handlers: make(map[api.MessageType]api.Handler),
		conns:    make(map[net.Conn]struct{}),
	}

	for _, uid := range cfg.PeerUIDs {
		m.peerUIDs[uid] = struct{}{}
	}

	srv := rpc.NewServer()
	if err := srv.RegisterName(api.ChannelService, &ChannelRPC{Ctx: m.ctx, Core: m}); err != nil {
		cancel(err)
		_ = ln.Close()
		_ = os.Remove(socketPath)
		return nil, fmt.Errorf("%w: register rpc service: %w", errdefs.ErrOpenSocket, err)
	}

	// stop accepting when ctx is canceled.
	group.Go(func() error {
		<-m.ctx.Done()
		_ = m.ln.Close()
		return nil
	})
	group.Go(func() error { return m.serve(srv) })

	m.logger.InfoContext(ctx, "remote channel listening", "socket", socketPath)
	return m, nil
}

func (m *Manager) serve(srv *rpc.Server) error {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			// Normal path: listener closed by ctx cancel
			if errors.Is(err, net.ErrClosed) || m.ctx.Err() != nil {
				m.logger.DebugContext(m.ctx, "accept loop stopped")
				return nil
			}
			m.logger.ErrorContext(m.ctx, "accept failed", "error", err)
			return err
		}
		if err := m.checkPeer(conn); err != nil {
			m.logger.WarnContext(m.ctx, "driver connection refused", "error", err)
			_ = conn.Close()
			continue
		}
		if !m.track(conn) {
			_ = conn.Close()
			continue
		}

		m.logger.DebugContext(m.ctx, "driver connected", "remote", conn.RemoteAddr())
		lc := &common.LoggingConn{
			Conn:        conn,
			Ctx:         m.ctx,
			Logger:      m.logger,
			PrefixWrite: "client->driver",
			PrefixRead:  "driver->client",
		}
		m.group.Go(func() error {
			defer m.untrack(conn)
			srv.ServeCodec(jsonrpc.NewServerCodec(lc))
			return nil
		})
	}
}

func (m *Manager) checkPeer(conn net.Conn) error {
	if len(m.peerUIDs) == 0 {
		return nil
	}
	uid, ok, err := peerUID(conn)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrPeerRejected, err)
	}
	if !ok {
		return nil
	}
	if _, allowed := m.peerUIDs[uid]; !allowed {
		return fmt.Errorf("%w: uid %d", errdefs.ErrPeerRejected, uid)
	}
	return nil
}

func (m *Manager) track(conn net.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.conns[conn] = struct{}{}
	return true
}

func (m *Manager) untrack(conn net.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, conn)
}

func (m *Manager) ID() api.ID { return m.id }

func (m *Manager) Socket() string { return m.socket }

func (m *Manager) Identifier() string {
	return api.FormatIdentifier(m.socket, m.id)
}

func (m *Manager) RegisterHandler(msgType api.MessageType, h api.Handler) error {
	if h == nil {
		return fmt.Errorf("%w: %s", errdefs.ErrNilHandler, msgType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errdefs.ErrChannelClosed
	}
	if _, ok := m.handlers[msgType]; ok {
		return fmt.Errorf("%w: %s", errdefs.ErrHandlerExists, msgType)
	}
	m.handlers[msgType] = h
	m.logger.DebugContext(m.ctx, "handler registered", "type", msgType)
	return nil
}

func (m *Manager) Ping(in *api.PingMessage) (*api.PingMessage, error) {
	if in.Message == "PING" {
		return &api.PingMessage{Message: "PONG"}, nil
	}
	return &api.PingMessage{}, fmt.Errorf("unexpected ping message: %s", in.Message)
}

// Dispatch hands env to the handler registered for its type. The handler's
// error, if any, is returned to the driver.
func (m *Manager) Dispatch(ctx context.Context, env *api.Envelope) error {
	if env == nil || env.Type == "" {
		return errdefs.ErrInvalidEnvelope
	}

	m.mu.RLock()
	h, ok := m.handlers[env.Type]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return errdefs.ErrChannelClosed
	}
	if !ok {
		m.logger.WarnContext(ctx, "no handler for message", "type", env.Type, "source", env.Source)
		return fmt.Errorf("%w: %s", errdefs.ErrNoHandler, env.Type)
	}

	m.logger.DebugContext(ctx, "dispatching message", "type", env.Type, "source", env.Source)
	if err := h.Handle(ctx, env); err != nil {
		m.logger.ErrorContext(ctx, "handler failed", "type", env.Type, "error", err)
		return err
	}
	return nil
}

// Close stops the listener, ends open driver connections, waits for the
// serving goroutines and removes the socket file. Only the first call does
// any work; later calls return the same result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.logger.InfoContext(m.ctx, "closing remote channel")

		m.mu.Lock()
		m.closed = true
		conns := make([]net.Conn, 0, len(m.conns))
		for c := range m.conns {
			conns = append(conns, c)
		}
		m.mu.Unlock()

		m.cancel(errdefs.ErrChannelClosed)
		// Unblock pending reads only; ServeCodec still flushes in-flight
		// replies before closing the connection.
		now := time.Now()
		for _, c := range conns {
			if err := c.SetReadDeadline(now); err != nil {
				_ = c.Close()
			}
		}

		var errs []error
		if err := m.group.Wait(); err != nil {
			errs = append(errs, err)
		}
		if err := os.Remove(m.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove socket: %w", err))
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}
