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

package errdefs

import "errors"

var (
	ErrFuncNotSet       = errors.New("function not set")
	ErrAlreadyWired     = errors.New("wire up is only to be called once")
	ErrNoChannel        = errors.New("no remote channel: client is not present or no channel was supplied")
	ErrChannelClose     = errors.New("error while shutting down the remote channel")
	ErrNilHandler       = errors.New("handler must not be nil")
	ErrWireUp           = errors.New("could not wire up handlers to the driver")
	ErrHandlerExists    = errors.New("handler already registered for message type")
	ErrNoHandler        = errors.New("no handler registered for message type")
	ErrChannelClosed    = errors.New("remote channel is closed")
	ErrOpenSocket       = errors.New("could not open channel socket")
	ErrInvalidEnvelope  = errors.New("invalid envelope")
	ErrContextDone      = errors.New("context has been cancelled")
	ErrConfig           = errors.New("config error")
	ErrLoggerNotFound   = errors.New("logger not found in context")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNoChannelSocket  = errors.New("no channel socket or identifier provided")
	ErrWriteMetadata    = errors.New("could not write metadata file")
	ErrTooManyArguments = errors.New("too many arguments")
	ErrJobFailed        = errors.New("job did not complete successfully")
	ErrReadMessageFile  = errors.New("could not read message file")
	ErrPeerRejected     = errors.New("peer credentials rejected")
	ErrInvalidFlag      = errors.New("invalid flag usage")
)
