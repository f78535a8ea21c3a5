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

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/eminwux/jobwire/cmd/jobwire"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/spf13/cobra"
)

type rootFactory func() (*cobra.Command, error)

func execRoot(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func runWithFactory(ctx context.Context, factory rootFactory) int {
	root, err := factory()
	if err != nil {
		logger, _ := logging.FromContext(ctx)
		if logger != nil {
			logger.ErrorContext(ctx, "could not build command tree", "error", err)
		}
		return 1
	}

	root.SetContext(ctx)
	return execRoot(root)
}

func main() {
	levelVar := new(slog.LevelVar)
	// Default to info, PersistentPreRunE applies the configured level
	levelVar.Set(slog.LevelInfo)
	logger := logging.NewLogger(os.Stderr, levelVar)

	ctx := context.WithValue(context.Background(), logging.CtxLogger, logger)
	ctx = context.WithValue(ctx, logging.CtxLevelVar, levelVar)
	ctx = context.WithValue(ctx, logging.CtxHandler, logger.Handler())

	os.Exit(runWithFactory(ctx, jobwire.NewJobwireRootCmd))
}
