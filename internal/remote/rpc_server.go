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

	"github.com/eminwux/jobwire/pkg/api"
)

// Dispatcher is the core behind the RPC service.
type Dispatcher interface {
	Ping(in *api.PingMessage) (*api.PingMessage, error)
	Dispatch(ctx context.Context, env *api.Envelope) error
}

// ChannelRPC is registered with net/rpc under api.ChannelService.
type ChannelRPC struct {
	Ctx  context.Context
	Core Dispatcher
}

func (s *ChannelRPC) Ping(in *api.PingMessage, out *api.PingMessage) error {
	pong, err := s.Core.Ping(in)
	if err != nil {
		return err
	}
	*out = *pong
	return nil
}

func (s *ChannelRPC) Deliver(env *api.Envelope, _ *api.Empty) error {
	ctx := s.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return s.Core.Dispatch(ctx, env)
}
