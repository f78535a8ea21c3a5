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

package api

import "context"

// MessageType tags an inbound message so a channel can route it to the
// handler registered for it.
type MessageType string

const (
	MessageRuntimeError MessageType = "RuntimeError"
	MessageJobStatus    MessageType = "JobStatus"
)

func (t MessageType) String() string { return string(t) }

// Handler receives messages of the type it was registered for. Handlers are
// owned by the caller; a channel only keeps a reference.
type Handler interface {
	Handle(ctx context.Context, env *Envelope) error
}

type HandlerFunc func(ctx context.Context, env *Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env *Envelope) error { return f(ctx, env) }

// Channel is a remote communication endpoint that dispatches typed messages
// to registered handlers.
type Channel interface {
	RegisterHandler(msgType MessageType, h Handler) error
	// Identifier returns the address a driver uses to reach this channel.
	Identifier() string
	Close() error
}
