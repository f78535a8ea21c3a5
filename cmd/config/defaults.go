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
	"os"
	"path/filepath"

	"github.com/eminwux/jobwire/internal/common"
	"github.com/eminwux/jobwire/pkg/env"
	"github.com/spf13/cobra"
)

func DefaultConfigDir() string {
	base, err := os.UserHomeDir()
	if err != nil {
		// fallback to tmp if home dir cannot be determined
		base = os.TempDir()
	}
	return filepath.Join(base, ".jobwire")
}

// GetRunPathFromEnvAndFlags resolves the run path from --run-path, then
// JOBWIRE_RUN_PATH, then the default under $HOME.
func GetRunPathFromEnvAndFlags(cmd *cobra.Command) string {
	if cmd != nil {
		if runPath, _ := cmd.Flags().GetString("run-path"); runPath != "" {
			return runPath
		}
	}
	if runPath := env.RUN_PATH.ValueOrDefault(); runPath != "" {
		return runPath
	}
	return common.DefaultRunPath()
}

// EnvHelp renders the documented variables for a command's long help.
func EnvHelp(vars ...env.Var) string {
	out := "\nEnvironment:\n"
	for _, v := range vars {
		def, ok := v.DefaultValue()
		if ok {
			out += fmt.Sprintf("  %-24s %s (default %q)\n", v.EnvKey(), v.Doc, def)
			continue
		}
		out += fmt.Sprintf("  %-24s %s\n", v.EnvKey(), v.Doc)
	}
	return out
}
