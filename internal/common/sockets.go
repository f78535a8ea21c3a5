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
	"encoding/hex"
	"log/slog"
	"net"
	"strings"
)

// maxDump bounds how many bytes of a frame end up in a single log record.
const maxDump = 256

// LogBytes records data at debug level as printable ASCII plus a hex prefix.
func LogBytes(ctx context.Context, logger *slog.Logger, prefix string, data []byte) {
	if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	shown := data
	if len(shown) > maxDump {
		shown = shown[:maxDump]
	}
	logger.DebugContext(ctx, prefix,
		"len", len(data),
		"truncated", len(data) > maxDump,
		"ascii", printable(shown),
		"hex", hex.EncodeToString(shown),
	)
}

func printable(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 32 && c < 127 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// LoggingConn dumps every read and write of the wrapped connection.
type LoggingConn struct {
	net.Conn

	Ctx         context.Context
	Logger      *slog.Logger
	PrefixWrite string
	PrefixRead  string
}

func (l *LoggingConn) context() context.Context {
	if l.Ctx == nil {
		return context.Background()
	}
	return l.Ctx
}

func (l *LoggingConn) Read(p []byte) (int, error) {
	n, err := l.Conn.Read(p)
	if n > 0 {
		LogBytes(l.context(), l.Logger, l.PrefixRead+" (recv)", p[:n])
	}
	return n, err
}

func (l *LoggingConn) Write(p []byte) (int, error) {
	LogBytes(l.context(), l.Logger, l.PrefixWrite+" (send)", p)
	return l.Conn.Write(p)
}
