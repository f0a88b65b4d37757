package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// InProgress is the sentinel recorded for fields of a usage record whose
// session has not ended yet.
const InProgress = "In Progress"

// Session is one user's visit, held only in process memory. Lost on restart
// by design.
type Session struct {
	ID            string
	UserName      string
	Start         time.Time
	UserInput     string
	SelectedKPI   string
	CustomKPI     string
	LastActivity  time.Time
	FormSubmitted bool
}

// PendingSeconds is a duration-in-seconds value that serializes as the
// InProgress sentinel until the session is finalized.
type PendingSeconds struct {
	Seconds int
	Done    bool
}

func (p PendingSeconds) MarshalJSON() ([]byte, error) {
	if !p.Done {
		return json.Marshal(InProgress)
	}
	return json.Marshal(p.Seconds)
}

func (p *PendingSeconds) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == InProgress {
			*p = PendingSeconds{}
			return nil
		}
		return fmt.Errorf("unexpected duration string %q", s)
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("parse session duration: %w", err)
	}
	*p = PendingSeconds{Seconds: n, Done: true}
	return nil
}

// UsageRecord is the durable log row for one session. While the session is
// live it carries the session id and the active flag; finalization strips
// both and replaces the sentinels with concrete values.
type UsageRecord struct {
	Date               string         `json:"date"`
	UserName           string         `json:"userName"`
	SelectedKPI        string         `json:"selectedKPI,omitempty"`
	CustomKPI          string         `json:"customKPI,omitempty"`
	PromptText         string         `json:"promptText"`
	FormSubmissionTime string         `json:"formSubmissionTime"`
	SessionEnd         string         `json:"sessionEnd"`
	SessionDuration    PendingSeconds `json:"sessionDuration"`
	SessionID          string         `json:"sessionId,omitempty"`
	IsActive           bool           `json:"isActive,omitempty"`
}
