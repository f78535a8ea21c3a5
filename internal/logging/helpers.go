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

package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/spf13/cobra"
)

func ParseLevel(lvl string) slog.Level {
	switch lvl {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		// default if unknown
		return slog.LevelInfo
	}
}

// NewLogger builds a ReformatHandler logger on w, filtered by levelVar.
func NewLogger(w io.Writer, levelVar *slog.LevelVar) *slog.Logger {
	return slog.New(&ReformatHandler{
		Inner:  slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}),
		Writer: w,
	})
}

func NewNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// FromContext returns the logger stored under CtxLogger.
func FromContext(ctx context.Context) (*slog.Logger, error) {
	if ctx == nil {
		return nil, errdefs.ErrLoggerNotFound
	}
	logger, ok := ctx.Value(CtxLogger).(*slog.Logger)
	if !ok || logger == nil {
		return nil, errdefs.ErrLoggerNotFound
	}
	return logger, nil
}

// SetLevel adjusts the level of the logger stored in ctx, if any.
func SetLevel(ctx context.Context, lvl string) {
	if levelVar, ok := ctx.Value(CtxLevelVar).(*slog.LevelVar); ok && levelVar != nil {
		levelVar.Set(ParseLevel(lvl))
	}
}

func SetupFileLogger(cmd *cobra.Command, logfile string, loglevel string) error {
	if cmd == nil || logfile == "" || loglevel == "" {
		return errors.New("cmd, logfile, and loglevel must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(logfile), 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		return err
	}

	f, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return err
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(ParseLevel(loglevel))
	logger := NewLogger(f, levelVar)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, CtxLogger, logger)
	ctx = context.WithValue(ctx, CtxLevelVar, levelVar)
	ctx = context.WithValue(ctx, CtxHandler, logger.Handler())
	ctx = context.WithValue(ctx, CtxCloser, f)

	cmd.SetContext(ctx)
	return nil
}

// CloseFileLogger closes the file opened by SetupFileLogger, if any.
func CloseFileLogger(ctx context.Context) {
	if c, _ := ctx.Value(CtxCloser).(io.Closer); c != nil {
		_ = c.Close()
	}
}
