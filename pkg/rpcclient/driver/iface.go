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

	"github.com/eminwux/jobwire/pkg/api"
)

// Client is the driver side of a client channel: it delivers job status and
// runtime error notifications to the process that submitted the job.
type Client interface {
	Ping(ctx context.Context, ping *api.PingMessage, pong *api.PingMessage) error
	Deliver(ctx context.Context, env *api.Envelope) error
	SendJobStatus(ctx context.Context, status *api.JobStatus) error
	SendRuntimeError(ctx context.Context, rtErr *api.RuntimeError) error
	Close() error
}
