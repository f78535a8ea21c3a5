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

package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/eminwux/jobwire/pkg/api"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sys/unix"
)

const NoClientsString = "no clients found\n"

// ClientEntry is a published client with its liveness.
type ClientEntry struct {
	Metadata api.ClientMetadata `json:"metadata" yaml:"metadata"`
	Dir      string             `json:"dir"      yaml:"dir"`
	Alive    bool               `json:"alive"    yaml:"alive"`
}

// ScanClients reads runPath/clients/*/metadata.json, sorted by ID.
func ScanClients(ctx context.Context, logger *slog.Logger, runPath string) ([]ClientEntry, error) {
	pattern := filepath.Join(runPath, "clients", "*", "metadata.json")
	logger.DebugContext(ctx, "ScanClients: globbing for metadata", "pattern", pattern)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	out := make([]ClientEntry, 0, len(paths))
	for _, p := range paths {
		select {
		case <-ctx.Done():
			logger.WarnContext(ctx, "ScanClients: context done while reading")
			return nil, ctx.Err()
		default:
		}
		b, errRead := os.ReadFile(p)
		if errRead != nil {
			return nil, fmt.Errorf("read %s: %w", p, errRead)
		}
		var md api.ClientMetadata
		if errUnmarshal := json.Unmarshal(b, &md); errUnmarshal != nil {
			// A half-written or foreign file must not hide the other clients.
			logger.WarnContext(ctx, "ScanClients: skipping undecodable metadata", "file", p, "error", errUnmarshal)
			continue
		}
		entry := ClientEntry{Metadata: md, Dir: filepath.Dir(p), Alive: isAlive(md)}
		logger.DebugContext(ctx, "ScanClients: loaded metadata", "id", md.ID, "alive", entry.Alive)
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.ID < out[j].Metadata.ID })
	logger.InfoContext(ctx, "ScanClients: finished scanning", "count", len(out))
	return out, nil
}

// isAlive reports whether the owning process still exists and its socket is
// still on disk.
func isAlive(md api.ClientMetadata) bool {
	if md.Pid <= 0 {
		return false
	}
	if err := unix.Kill(md.Pid, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}
	info, err := os.Stat(md.Socket)
	return err == nil && info.Mode()&os.ModeSocket != 0
}

func ScanAndPrintClients(ctx context.Context, logger *slog.Logger, runPath string, w io.Writer, printAll bool) error {
	clients, err := ScanClients(ctx, logger, runPath)
	if err != nil {
		logger.ErrorContext(ctx, "ScanAndPrintClients: failed to scan clients", "error", err)
		return err
	}
	return printClients(w, clients, printAll)
}

func printClients(w io.Writer, clients []ClientEntry, printAll bool) error {
	//nolint:mnd // tabwriter padding
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(clients) == 0 {
		fmt.Fprint(tw, NoClientsString)
		return tw.Flush()
	}

	fmt.Fprintln(tw, "ID\tPID\tSTATUS\tAGE\tIDENTIFIER")
	printed := 0
	for _, c := range clients {
		if !c.Alive && !printAll {
			continue
		}
		status := "stale"
		if c.Alive {
			status = "alive"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			c.Metadata.ID,
			c.Metadata.Pid,
			status,
			age(c.Metadata.CreatedAt),
			c.Metadata.Identifier,
		)
		printed++
	}
	if printed == 0 {
		fmt.Fprintln(tw, "no live clients found (use --all to list stale ones)")
	}
	return tw.Flush()
}

func age(created time.Time) string {
	if created.IsZero() {
		return "-"
	}
	return time.Since(created).Truncate(time.Second).String()
}

// ScanAndPruneClients removes the directories of stale clients and returns
// how many were removed.
func ScanAndPruneClients(ctx context.Context, logger *slog.Logger, runPath string, w io.Writer) (int, error) {
	clients, err := ScanClients(ctx, logger, runPath)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, c := range clients {
		if c.Alive {
			continue
		}
		logger.InfoContext(ctx, "ScanAndPruneClients: pruning client", "id", c.Metadata.ID, "dir", c.Dir)
		if errRm := os.RemoveAll(c.Dir); errRm != nil {
			logger.ErrorContext(ctx, "ScanAndPruneClients: failed to prune client", "id", c.Metadata.ID, "error", errRm)
			return pruned, fmt.Errorf("prune client %s: %w", c.Metadata.ID, errRm)
		}
		pruned++
		if w != nil {
			fmt.Fprintf(w, "Pruned client %s\n", c.Metadata.ID)
		}
	}
	logger.InfoContext(ctx, "ScanAndPruneClients: prune complete", "pruned", pruned)
	return pruned, nil
}

// FindClientByID returns the client published under id.
func FindClientByID(ctx context.Context, logger *slog.Logger, runPath string, id string) (*ClientEntry, error) {
	clients, err := ScanClients(ctx, logger, runPath)
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		if string(c.Metadata.ID) == id {
			found := c
			return &found, nil
		}
	}
	return nil, fmt.Errorf("client %q not found", id)
}

// PrintClient writes one client as json, yaml or an aligned key/value list.
func PrintClient(w io.Writer, c *ClientEntry, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case "yaml":
		b, err := yaml.Marshal(c)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "":
		//nolint:mnd // tabwriter padding
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "ID:\t%s\n", c.Metadata.ID)
		fmt.Fprintf(tw, "Identifier:\t%s\n", c.Metadata.Identifier)
		fmt.Fprintf(tw, "Socket:\t%s\n", c.Metadata.Socket)
		fmt.Fprintf(tw, "Pid:\t%d\n", c.Metadata.Pid)
		fmt.Fprintf(tw, "Alive:\t%t\n", c.Alive)
		fmt.Fprintf(tw, "Created:\t%s\n", c.Metadata.CreatedAt.Format(time.RFC3339))
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format: %q (use json|yaml)", format)
	}
}
