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

package env

import (
	"os"

	"github.com/spf13/viper"
)

const Prefix = "JOBWIRE"

// Values accepted for CLIENT_PRESENT. Anything other than ClientPresentYes,
// including an unset variable, means no client is attached.
const (
	ClientPresentYes = "yes"
	ClientPresentNo  = "no"
)

// Var is a named setting resolved from viper, the environment or its default.
type Var struct {
	Key        string // e.g. "JOBWIRE_RUN_PATH"
	ViperKey   string // optional, e.g. "global.runPath"
	Doc        string // optional
	Default    string // optional
	HasDefault bool
}

func DefineKV(envName, viperKey string, defaultVal ...string) Var {
	v := Var{Key: Prefix + "_" + envName, ViperKey: viperKey}
	if len(defaultVal) > 0 {
		v.Default = defaultVal[0]
		v.HasDefault = true
	}
	return v
}

func Define(envName string, defaultVal ...string) Var {
	return DefineKV(envName, "", defaultVal...)
}

// WithDoc returns a copy of v carrying a description for help output.
func (v Var) WithDoc(doc string) Var {
	v.Doc = doc
	return v
}

func (v Var) EnvKey() string               { return v.Key }
func (v Var) DefaultValue() (string, bool) { return v.Default, v.HasDefault }

// Precedence: viper (if ViperKey set and value present) → OS env → default → "".
func (v Var) ValueOrDefault() string {
	if v.ViperKey != "" && viper.IsSet(v.ViperKey) {
		return viper.GetString(v.ViperKey)
	}
	if val, ok := os.LookupEnv(v.Key); ok {
		return val
	}
	if v.HasDefault {
		return v.Default
	}
	return ""
}

// Safe if ViperKey is empty: does nothing.
func (v Var) BindEnv() error {
	if v.ViperKey == "" {
		return nil
	}
	return viper.BindEnv(v.ViperKey, v.Key)
}

func (v Var) Set(value string) error { return os.Setenv(v.Key, value) }

func (v *Var) SetDefault(val string) {
	v.Default = val
	v.HasDefault = true
	if v.ViperKey != "" {
		viper.SetDefault(v.ViperKey, val)
	}
}

func KV(v Var, value string) string { return v.Key + "=" + value }

// IsClientPresent reports whether value is the "client attached" sentinel.
func IsClientPresent(value string) bool { return value == ClientPresentYes }

// ---- Declare statically (Viper key optional per var) ----.
//
//nolint:revive,gochecknoglobals,staticcheck // env-style names
var (
	CLIENT_PRESENT = DefineKV("CLIENT_PRESENT", "client.present", ClientPresentNo).
			WithDoc("Whether a client is attached to the job and needs a channel to the driver")
	CHANNEL_SOCKET = DefineKV("CHANNEL_SOCKET", "client.socket").
			WithDoc("Unix socket the client channel listens on")
	RUN_PATH    = DefineKV("RUN_PATH", "global.runPath")
	LOG_LEVEL   = DefineKV("LOG_LEVEL", "global.logLevel", "info")
	CONFIG_FILE = DefineKV("CONFIG_FILE", "global.config")
	CLIENT_ID   = Define("CLIENT_ID")
)
