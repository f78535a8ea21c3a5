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
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type JobState string

const (
	JobInit    JobState = "INIT"
	JobRunning JobState = "RUNNING"
	JobDone    JobState = "DONE"
	JobSuspend JobState = "SUSPEND"
	JobFailed  JobState = "FAILED"
	JobKilled  JobState = "KILLED"
)

// Terminal reports whether no further status is expected for the job.
func (s JobState) Terminal() bool {
	switch s {
	case JobDone, JobFailed, JobKilled:
		return true
	case JobInit, JobRunning, JobSuspend:
		return false
	}
	return false
}

func ParseJobState(s string) (JobState, error) {
	switch st := JobState(s); st {
	case JobInit, JobRunning, JobDone, JobSuspend, JobFailed, JobKilled:
		return st, nil
	}
	return "", fmt.Errorf("unknown job state %q", s)
}

type JobStatus struct {
	JobID     string    `json:"jobId"     yaml:"jobId"`
	State     JobState  `json:"state"     yaml:"state"`
	Message   string    `json:"message"   yaml:"message,omitempty"`
	Exception string    `json:"exception" yaml:"exception,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// RuntimeError is sent by the driver when the runtime hosting the job fails.
type RuntimeError struct {
	Name       string `json:"name"                yaml:"name"`
	Message    string `json:"message"             yaml:"message"`
	Identifier string `json:"identifier"          yaml:"identifier"`
	Exception  string `json:"exception,omitempty" yaml:"exception,omitempty"`
}

func (e *RuntimeError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Name, e.Identifier, e.Message)
}

// Envelope is the unit delivered over a channel.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Source  string          `json:"source"`
	SentAt  time.Time       `json:"sentAt"`
	Payload json.RawMessage `json:"payload"`
}

func NewEnvelope(msgType MessageType, source string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Envelope{
		Type:    msgType,
		Source:  source,
		SentAt:  time.Now().UTC(),
		Payload: raw,
	}, nil
}

func (e *Envelope) Decode(out any) error {
	if e == nil || len(e.Payload) == 0 {
		return errors.New("empty envelope payload")
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
