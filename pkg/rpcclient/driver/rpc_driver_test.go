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
	"io/fs"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eminwux/jobwire/internal/logging"
	"github.com/eminwux/jobwire/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type channelService struct {
	mu      sync.Mutex
	sources []string
	release chan struct{}
}

func (s *channelService) Ping(in *api.PingMessage, out *api.PingMessage) error {
	out.Message = "PONG"
	return nil
}

func (s *channelService) Deliver(env *api.Envelope, _ *api.Empty) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	s.sources = append(s.sources, env.Source)
	s.mu.Unlock()
	return nil
}

func (s *channelService) seenSources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources...)
}

func tempSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "jwd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "socket")
}

func serveChannel(t *testing.T, svc *channelService) string {
	t.Helper()
	sock := tempSocket(t)
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName(api.ChannelService, svc))
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, errAccept := ln.Accept()
			if errAccept != nil {
				return
			}
			go srv.ServeCodec(jsonrpc.NewServerCodec(conn))
		}
	}()
	return sock
}

func TestCallRetriesDialAndReturnsLastError(t *testing.T) {
	attempts := 0
	c := &client{
		dial: func(context.Context) (net.Conn, error) {
			attempts++
			return nil, errors.New("dial " + string(rune('0'+attempts)))
		},
		logger: logging.NewNoopLogger(),
		delays: []time.Duration{0, time.Millisecond, time.Millisecond},
	}

	err := c.call(context.Background(), api.ChannelMethodPing, &api.PingMessage{}, &api.PingMessage{})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "dial 3", err.Error())
}

func TestDeliverMissingSocket(t *testing.T) {
	c := NewUnix(filepath.Join(tempSocket(t), "missing"), nil,
		WithRetryDelays(0, time.Millisecond),
		WithDialTimeout(100*time.Millisecond),
	)

	env, err := api.NewEnvelope(api.MessageJobStatus, "", &api.JobStatus{JobID: "j1", State: api.JobRunning})
	require.NoError(t, err)
	err = c.Deliver(context.Background(), env)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCallContextDoneBeforeRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	c := &client{
		dial: func(context.Context) (net.Conn, error) {
			attempts++
			cancel()
			return nil, errors.New("refused")
		},
		logger: logging.NewNoopLogger(),
		delays: []time.Duration{0, time.Hour},
	}

	err := c.call(ctx, api.ChannelMethodPing, &api.PingMessage{}, &api.PingMessage{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDeliverContextDeadlineMidCall(t *testing.T) {
	svc := &channelService{release: make(chan struct{})}
	sock := serveChannel(t, svc)
	t.Cleanup(func() { close(svc.release) })

	c := NewUnix(sock, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	env, err := api.NewEnvelope(api.MessageJobStatus, "", &api.JobStatus{JobID: "j1", State: api.JobRunning})
	require.NoError(t, err)

	start := time.Now()
	err = c.Deliver(ctx, env)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPing(t *testing.T) {
	sock := serveChannel(t, &channelService{})
	c := NewUnix(sock, nil)

	var pong api.PingMessage
	require.NoError(t, c.Ping(context.Background(), &api.PingMessage{Message: "PING"}, &pong))
	assert.Equal(t, "PONG", pong.Message)
}

func TestDeliverLeavesCallerEnvelopeUntouched(t *testing.T) {
	svc := &channelService{}
	sock := serveChannel(t, svc)
	first := NewUnix(sock, nil, WithSource("driver-a"))
	second := NewUnix(sock, nil, WithSource("driver-b"))

	env, err := api.NewEnvelope(api.MessageJobStatus, "", &api.JobStatus{JobID: "j1", State: api.JobRunning})
	require.NoError(t, err)

	require.NoError(t, first.Deliver(context.Background(), env))
	assert.Empty(t, env.Source)
	require.NoError(t, second.Deliver(context.Background(), env))

	assert.Equal(t, []string{"driver-a", "driver-b"}, svc.seenSources())
}

func TestDeliverKeepsExplicitSource(t *testing.T) {
	svc := &channelService{}
	sock := serveChannel(t, svc)
	c := NewUnix(sock, nil, WithSource("driver-a"))

	env, err := api.NewEnvelope(api.MessageJobStatus, "scheduler", &api.JobStatus{JobID: "j1", State: api.JobDone})
	require.NoError(t, err)
	require.NoError(t, c.Deliver(context.Background(), env))

	assert.Equal(t, []string{"scheduler"}, svc.seenSources())
}
