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

package remote_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/internal/remote"
	"github.com/eminwux/jobwire/pkg/api"
	"github.com/eminwux/jobwire/pkg/rpcclient/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// shortSocket keeps the path under the unix socket length limit.
func shortSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "jw")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "c", "socket")
}

type captureHandler struct {
	mu   sync.Mutex
	got  []*api.Envelope
	err  error
	seen chan struct{}
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{seen: make(chan struct{}, 8)}
}

func (h *captureHandler) Handle(_ context.Context, env *api.Envelope) error {
	h.mu.Lock()
	h.got = append(h.got, env)
	h.mu.Unlock()
	h.seen <- struct{}{}
	return h.err
}

func (h *captureHandler) envelopes() []*api.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*api.Envelope(nil), h.got...)
}

func newManager(t *testing.T) *remote.Manager {
	t.Helper()
	m, err := remote.NewManager(context.Background(), newTestLogger(), shortSocket(t), remote.WithID("test-channel"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newDriver(t *testing.T, m *remote.Manager) driver.Client {
	t.Helper()
	c, err := driver.NewFromIdentifier(m.Identifier(), newTestLogger(),
		driver.WithSource("test-driver"),
		driver.WithRetryDelays(0, 20*time.Millisecond),
	)
	require.NoError(t, err)
	return c
}

func TestManagerIdentifier(t *testing.T) {
	m := newManager(t)

	socket, id, err := api.ParseIdentifier(m.Identifier())
	require.NoError(t, err)
	assert.Equal(t, m.Socket(), socket)
	assert.Equal(t, api.ID("test-channel"), id)

	info, err := os.Stat(m.Socket())
	require.NoError(t, err)
	assert.Equal(t, os.ModeSocket, info.Mode()&os.ModeSocket)
}

func TestManagerRandomID(t *testing.T) {
	a, err := remote.NewManager(context.Background(), newTestLogger(), shortSocket(t))
	require.NoError(t, err)
	defer a.Close()
	b, err := remote.NewManager(context.Background(), newTestLogger(), shortSocket(t))
	require.NoError(t, err)
	defer b.Close()

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestManagerPing(t *testing.T) {
	m := newManager(t)
	c := newDriver(t, m)

	var pong api.PingMessage
	require.NoError(t, c.Ping(context.Background(), &api.PingMessage{Message: "PING"}, &pong))
	assert.Equal(t, "PONG", pong.Message)

	err := c.Ping(context.Background(), &api.PingMessage{Message: "HELLO"}, &pong)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected ping message")
}

func TestManagerDeliversToRegisteredHandler(t *testing.T) {
	m := newManager(t)
	statusH := newCaptureHandler()
	errorH := newCaptureHandler()
	require.NoError(t, m.RegisterHandler(api.MessageJobStatus, statusH))
	require.NoError(t, m.RegisterHandler(api.MessageRuntimeError, errorH))

	c := newDriver(t, m)
	ctx := context.Background()
	require.NoError(t, c.SendJobStatus(ctx, &api.JobStatus{JobID: "job-1", State: api.JobRunning}))
	require.NoError(t, c.SendRuntimeError(ctx, &api.RuntimeError{Name: "local", Message: "boom"}))

	got := statusH.envelopes()
	require.Len(t, got, 1)
	assert.Equal(t, api.MessageJobStatus, got[0].Type)
	assert.Equal(t, "test-driver", got[0].Source)

	var status api.JobStatus
	require.NoError(t, got[0].Decode(&status))
	assert.Equal(t, "job-1", status.JobID)
	assert.Equal(t, api.JobRunning, status.State)
	assert.False(t, status.UpdatedAt.IsZero())

	require.Len(t, errorH.envelopes(), 1)
	var rtErr api.RuntimeError
	require.NoError(t, errorH.envelopes()[0].Decode(&rtErr))
	assert.Equal(t, "boom", rtErr.Message)
}

func TestManagerNoHandler(t *testing.T) {
	m := newManager(t)
	c := newDriver(t, m)

	err := c.SendJobStatus(context.Background(), &api.JobStatus{JobID: "job-1", State: api.JobInit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), errdefs.ErrNoHandler.Error())
}

func TestManagerHandlerErrorReturnedToDriver(t *testing.T) {
	m := newManager(t)
	h := newCaptureHandler()
	h.err = errors.New("status rejected")
	require.NoError(t, m.RegisterHandler(api.MessageJobStatus, h))

	c := newDriver(t, m)
	err := c.SendJobStatus(context.Background(), &api.JobStatus{JobID: "job-1", State: api.JobInit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status rejected")
	// a handler error is an answer, not a transport failure: no retry.
	assert.Len(t, h.envelopes(), 1)
}

func TestManagerRegisterHandlerErrors(t *testing.T) {
	m := newManager(t)

	require.ErrorIs(t, m.RegisterHandler(api.MessageJobStatus, nil), errdefs.ErrNilHandler)
	require.NoError(t, m.RegisterHandler(api.MessageJobStatus, newCaptureHandler()))
	require.ErrorIs(t, m.RegisterHandler(api.MessageJobStatus, newCaptureHandler()), errdefs.ErrHandlerExists)

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.RegisterHandler(api.MessageRuntimeError, newCaptureHandler()), errdefs.ErrChannelClosed)
}

func TestManagerDispatchErrInvalidEnvelope(t *testing.T) {
	m := newManager(t)
	require.ErrorIs(t, m.Dispatch(context.Background(), nil), errdefs.ErrInvalidEnvelope)
	require.ErrorIs(t, m.Dispatch(context.Background(), &api.Envelope{}), errdefs.ErrInvalidEnvelope)
}

func TestManagerClose(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.RegisterHandler(api.MessageJobStatus, newCaptureHandler()))

	c := newDriver(t, m)
	var pong api.PingMessage
	require.NoError(t, c.Ping(context.Background(), &api.PingMessage{Message: "PING"}, &pong))

	done := make(chan error, 1)
	go func() { done <- m.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	_, err := os.Stat(m.Socket())
	assert.True(t, errors.Is(err, os.ErrNotExist), "socket should be removed, got %v", err)

	// idempotent
	require.NoError(t, m.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = c.SendJobStatus(ctx, &api.JobStatus{JobID: "job-1", State: api.JobDone})
	require.Error(t, err)

	require.ErrorIs(t, m.Dispatch(context.Background(), &api.Envelope{Type: api.MessageJobStatus}), errdefs.ErrChannelClosed)
}

func TestManagerCloseOnParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m, err := remote.NewManager(ctx, newTestLogger(), shortSocket(t))
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		_, statErr := os.Stat(m.Socket())
		return errors.Is(statErr, os.ErrNotExist)
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Close())
}

func TestManagerReplacesStaleSocket(t *testing.T) {
	socket := shortSocket(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(socket), 0o700))
	require.NoError(t, os.WriteFile(socket, []byte("stale"), 0o600))

	m, err := remote.NewManager(context.Background(), newTestLogger(), socket)
	require.NoError(t, err)
	defer m.Close()

	c := newDriver(t, m)
	var pong api.PingMessage
	require.NoError(t, c.Ping(context.Background(), &api.PingMessage{Message: "PING"}, &pong))
}

func TestManagerRejectsForeignPeer(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("peer credentials are only checked on linux")
	}
	m, err := remote.NewManager(context.Background(), newTestLogger(), shortSocket(t),
		remote.WithPeerUIDs(os.Getuid()+1))
	require.NoError(t, err)
	defer m.Close()

	c := newDriver(t, m)
	var pong api.PingMessage
	require.Error(t, c.Ping(context.Background(), &api.PingMessage{Message: "PING"}, &pong))
	assert.Empty(t, pong.Message)
}

func TestManagerPeerCheckDisabled(t *testing.T) {
	m, err := remote.NewManager(context.Background(), newTestLogger(), shortSocket(t), remote.WithPeerUIDs())
	require.NoError(t, err)
	defer m.Close()

	c := newDriver(t, m)
	var pong api.PingMessage
	require.NoError(t, c.Ping(context.Background(), &api.PingMessage{Message: "PING"}, &pong))
	assert.Equal(t, "PONG", pong.Message)
}
