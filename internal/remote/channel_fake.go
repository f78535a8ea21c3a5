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
	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/pkg/api"
)

// ChannelTest is an api.Channel whose behaviour is set per test.
type ChannelTest struct {
	RegisterHandlerFunc func(msgType api.MessageType, h api.Handler) error
	IdentifierFunc      func() string
	CloseFunc           func() error
}

func (f *ChannelTest) RegisterHandler(msgType api.MessageType, h api.Handler) error {
	if f.RegisterHandlerFunc != nil {
		return f.RegisterHandlerFunc(msgType, h)
	}
	return errdefs.ErrFuncNotSet
}

func (f *ChannelTest) Identifier() string {
	if f.IdentifierFunc != nil {
		return f.IdentifierFunc()
	}
	return ""
}

func (f *ChannelTest) Close() error {
	if f.CloseFunc != nil {
		return f.CloseFunc()
	}
	return errdefs.ErrFuncNotSet
}
