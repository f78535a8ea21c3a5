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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/spf13/cobra"
)

func Test_ParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"err":     slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v; want %v", in, got, want)
		}
	}
}

func Test_ReformatHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)
	logger := NewLogger(&buf, lv).With("channel", "c1").WithGroup("job")

	logger.Debug("hidden")
	logger.Info("wired up", "state", "RUNNING")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record must be filtered; got:\n%s", out)
	}
	if !strings.Contains(out, `INFO "wired up" channel=c1 job.state=RUNNING`) {
		t.Fatalf("unexpected format:\n%s", out)
	}
}

func Test_ErrLoggerNotFound(t *testing.T) {
	if _, err := FromContext(context.Background()); !errors.Is(err, errdefs.ErrLoggerNotFound) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrLoggerNotFound, err)
	}
	ctx := context.WithValue(context.Background(), CtxLogger, NewNoopLogger())
	if _, err := FromContext(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func Test_SetupFileLogger(t *testing.T) {
	logfile := filepath.Join(t.TempDir(), "client", "log")
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	if err := SetupFileLogger(cmd, logfile, "debug"); err != nil {
		t.Fatalf("SetupFileLogger: %v", err)
	}
	logger, err := FromContext(cmd.Context())
	if err != nil {
		t.Fatalf("FromContext: %v", err)
	}
	logger.Debug("to file")

	SetLevel(cmd.Context(), "error")
	logger.Info("filtered")
	CloseFileLogger(cmd.Context())

	data, err := os.ReadFile(logfile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") || strings.Contains(string(data), "filtered") {
		t.Fatalf("unexpected log contents:\n%s", data)
	}
}

func Test_SetupFileLoggerEmptyArgs(t *testing.T) {
	if err := SetupFileLogger(nil, "x", "info"); err == nil {
		t.Fatal("expected error for nil cmd")
	}
}
