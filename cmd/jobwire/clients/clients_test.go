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

package clients

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/eminwux/jobwire/internal/common"
	"github.com/eminwux/jobwire/internal/errdefs"
	"github.com/eminwux/jobwire/internal/logging"
	"github.com/eminwux/jobwire/pkg/api"
	"github.com/eminwux/jobwire/pkg/env"
	"github.com/spf13/viper"
)

func execClients(t *testing.T, runPath string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)
	t.Setenv(env.RUN_PATH.Key, runPath)

	cmd, err := NewClientsCmd()
	if err != nil {
		t.Fatalf("NewClientsCmd() error = %v", err)
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	ctx := context.WithValue(context.Background(), logging.CtxLogger, logging.NewNoopLogger())
	err = cmd.ExecuteContext(ctx)
	return out.String(), err
}

// seedStale publishes a client whose process and socket are gone.
func seedStale(t *testing.T, runPath, id string) {
	t.Helper()
	dir := common.ClientDir(runPath, api.ID(id))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	md := api.ClientMetadata{
		ID:         api.ID(id),
		Socket:     common.ClientSocket(runPath, api.ID(id)),
		Identifier: api.FormatIdentifier(common.ClientSocket(runPath, api.ID(id)), api.ID(id)),
		CreatedAt:  time.Now().UTC(),
	}
	if err := common.WriteMetadata(context.Background(), md, dir); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
}

func TestClientsGet(t *testing.T) {
	runPath := t.TempDir()
	seedStale(t, runPath, "old-1")

	out, err := execClients(t, runPath, "get")
	if err != nil {
		t.Fatalf("clients get: %v", err)
	}
	if strings.Contains(out, "old-1") {
		t.Fatalf("stale client listed without --all:\n%s", out)
	}

	out, err = execClients(t, runPath, "get", "--all")
	if err != nil {
		t.Fatalf("clients get --all: %v", err)
	}
	if !strings.Contains(out, "old-1") {
		t.Fatalf("expected stale client with --all:\n%s", out)
	}

	out, err = execClients(t, runPath, "get", "old-1", "-o", "yaml")
	if err != nil {
		t.Fatalf("clients get old-1: %v", err)
	}
	if !strings.Contains(out, "id: old-1") {
		t.Fatalf("expected yaml document, got:\n%s", out)
	}
}

func TestClientsGet_ErrInvalidFlag(t *testing.T) {
	if _, err := execClients(t, t.TempDir(), "get", "-o", "json"); !errors.Is(err, errdefs.ErrInvalidFlag) {
		t.Fatalf("expected %v; got %v", errdefs.ErrInvalidFlag, err)
	}
}

func TestClientsGet_ErrTooManyArguments(t *testing.T) {
	if _, err := execClients(t, t.TempDir(), "get", "a", "b"); !errors.Is(err, errdefs.ErrTooManyArguments) {
		t.Fatalf("expected %v; got %v", errdefs.ErrTooManyArguments, err)
	}
}

func TestClientsPrune(t *testing.T) {
	runPath := t.TempDir()
	seedStale(t, runPath, "old-1")
	seedStale(t, runPath, "old-2")

	out, err := execClients(t, runPath, "prune")
	if err != nil {
		t.Fatalf("clients prune: %v", err)
	}
	if !strings.Contains(out, "Pruned client old-1") || !strings.Contains(out, "Pruned client old-2") {
		t.Fatalf("unexpected prune output:\n%s", out)
	}
	if _, err := os.Stat(common.ClientDir(runPath, "old-1")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected client dir removed, stat: %v", err)
	}
}
