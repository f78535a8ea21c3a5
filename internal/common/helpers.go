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

package common

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eminwux/jobwire/pkg/api"
)

const (
	metadataFile = "metadata.json"
	socketFile   = "socket"
)

func DefaultRunPath() string {
	base, err := os.UserHomeDir()
	if err != nil {
		// fallback to tmp if home dir cannot be determined
		return filepath.Join(os.TempDir(), "jobwire", "run")
	}
	return filepath.Join(base, ".jobwire", "run")
}

// ClientDir is where a client publishes its socket and metadata.
func ClientDir(runPath string, id api.ID) string {
	return filepath.Join(runPath, "clients", string(id))
}

func ClientSocket(runPath string, id api.ID) string {
	return filepath.Join(ClientDir(runPath, id), socketFile)
}

func WriteMetadata(ctx context.Context, metadata any, dir string) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", dir, err)
	}
	data = append(data, '\n')

	// Allow cancellation before disk work
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	dst := filepath.Join(dir, metadataFile)
	const filePerm = 0o644
	if err := atomicWriteFile(dst, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func ReadClientMetadata(dir string) (*api.ClientMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}
	var md api.ClientMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decode %s: %w", dir, err)
	}
	return &md, nil
}

// atomicWriteFile writes to a temp file in the same dir, fsyncs, then renames.
func atomicWriteFile(dst string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(dst)

	f, err := os.CreateTemp(dir, ".meta-*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp) // safe if already renamed
	}()

	if err := f.Chmod(mode); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
