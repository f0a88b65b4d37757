package session

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

var csvHeader = []string{
	"Date",
	"User Name",
	"KPI Selected",
	"Form Submission Time",
	"Session End",
	"Duration (seconds)",
	"Prompt Text",
}

// ExportCSV renders the finalized usage records as CSV. A best-effort sweep
// runs first so stale in-progress records get reconciled; rows still pending
// after that are excluded, and duplicates identical on (user, date, prompt,
// submission time) collapse to the first occurrence.
func (m *Manager) ExportCSV() ([]byte, error) {
	m.SweepAbandoned()
	records := m.Records()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	seen := make(map[string]struct{})
	for _, record := range records {
		if !record.SessionDuration.Done || record.SessionEnd == InProgress {
			continue
		}
		key := strings.Join([]string{record.UserName, record.Date, record.PromptText, record.FormSubmissionTime}, "|")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kpi := record.SelectedKPI
		if kpi == "" || strings.EqualFold(kpi, "other") {
			if record.CustomKPI != "" {
				kpi = record.CustomKPI
			}
		}
		row := []string{
			record.Date,
			record.UserName,
			kpi,
			record.FormSubmissionTime,
			record.SessionEnd,
			fmt.Sprintf("%d", record.SessionDuration.Seconds),
			record.PromptText,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Stats summarizes the store for the read-only diagnostics endpoint.
type Stats struct {
	ActiveSessions    int    `json:"activeSessions"`
	TotalRecords      int    `json:"totalRecords"`
	CompletedRecords  int    `json:"completedRecords"`
	InProgressRecords int    `json:"inProgressRecords"`
	UniqueUsers       int    `json:"uniqueUsers"`
	LastSubmission    string `json:"lastSubmission,omitempty"`
}

func (m *Manager) UsageStats() Stats {
	records := m.Records()
	stats := Stats{
		ActiveSessions: m.ActiveSessionCount(),
		TotalRecords:   len(records),
	}
	users := make(map[string]struct{})
	for _, record := range records {
		users[record.UserName] = struct{}{}
		if record.SessionDuration.Done {
			stats.CompletedRecords++
		} else {
			stats.InProgressRecords++
		}
		if record.FormSubmissionTime > stats.LastSubmission {
			stats.LastSubmission = record.FormSubmissionTime
		}
	}
	stats.UniqueUsers = len(users)
	return stats
}
