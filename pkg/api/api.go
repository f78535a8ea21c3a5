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

import "time"

type Empty struct{}

type ID string

type PingMessage struct {
	Message string `json:"message"`
}

// RPC service exposed by a client channel to the driver.
const (
	ChannelService       = "Channel"
	ChannelMethodPing    = ChannelService + ".Ping"
	ChannelMethodDeliver = ChannelService + ".Deliver"
)

// ClientMetadata is published under the run path so a driver can find where
// to send its notifications.
type ClientMetadata struct {
	ID            ID        `json:"id"            yaml:"id"`
	Identifier    string    `json:"identifier"    yaml:"identifier"`
	Socket        string    `json:"socket"        yaml:"socket"`
	Pid           int       `json:"pid"           yaml:"pid"`
	ClientPresent bool      `json:"clientPresent" yaml:"clientPresent"`
	CreatedAt     time.Time `json:"createdAt"     yaml:"createdAt"`
}
