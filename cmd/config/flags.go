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

package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagBinding maps a flag name to the viper key it feeds.
type FlagBinding struct {
	Flag     string
	ViperKey string
}

// BindFlags binds every listed flag of fs to its viper key. A missing flag
// is an error so that typos surface at command construction.
func BindFlags(fs *pflag.FlagSet, bindings ...FlagBinding) error {
	for _, b := range bindings {
		f := fs.Lookup(b.Flag)
		if f == nil {
			return fmt.Errorf("flag %q not defined", b.Flag)
		}
		if err := viper.BindPFlag(b.ViperKey, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", b.Flag, err)
		}
	}
	return nil
}
