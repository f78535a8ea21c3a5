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

package api

import (
	"errors"
	"fmt"
	"strings"
)

const identifierScheme = "unix://"

var ErrBadIdentifier = errors.New("malformed channel identifier")

// FormatIdentifier builds "unix://<socket>#<id>".
func FormatIdentifier(socket string, id ID) string {
	return identifierScheme + socket + "#" + string(id)
}

// ParseIdentifier splits an identifier built by FormatIdentifier.
func ParseIdentifier(identifier string) (string, ID, error) {
	rest, ok := strings.CutPrefix(identifier, identifierScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q: missing %s scheme", ErrBadIdentifier, identifier, identifierScheme)
	}
	socket, id, _ := strings.Cut(rest, "#")
	if socket == "" {
		return "", "", fmt.Errorf("%w: %q: empty socket path", ErrBadIdentifier, identifier)
	}
	return socket, ID(id), nil
}
