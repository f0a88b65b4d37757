package session

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"
)

func finalized(user, date, prompt, submitted string, seconds int) UsageRecord {
	return UsageRecord{
		Date:               date,
		UserName:           user,
		SelectedKPI:        "conversion_rate",
		PromptText:         prompt,
		FormSubmissionTime: submitted,
		SessionEnd:         "2026-09-01T10:05:00Z",
		SessionDuration:    PendingSeconds{Seconds: seconds, Done: true},
	}
}

func parseCSV(t *testing.T, payload []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestExportCSVExcludesInProgressAndDedupes(t *testing.T) {
	m, _ := newTestManager(&recordingFlusher{})
	m.Seed([]UsageRecord{
		finalized("Alice", "2026-09-01", "grow signups", "2026-09-01T10:00:00Z", 90),
		finalized("Alice", "2026-09-01", "grow signups", "2026-09-01T10:00:00Z", 90),
		{
			Date: "2026-09-01", UserName: "Bob", PromptText: "pending goal",
			FormSubmissionTime: "2026-09-01T10:01:00Z",
			SessionEnd:         InProgress, IsActive: true, SessionID: "gone",
		},
		finalized("Carol", "2026-09-02", "retention push", "2026-09-02T09:00:00Z", 45),
	})
	// The in-progress record has no live session, so the pre-export sweep
	// finalizes it with the default estimate rather than dropping it.
	payload, err := m.ExportCSV()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows := parseCSV(t, payload)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d rows", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][6] != "Prompt Text" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	users := map[string]int{}
	for _, row := range rows[1:] {
		users[row[1]]++
	}
	if users["Alice"] != 1 {
		t.Fatalf("duplicate rows must collapse, Alice appeared %d times", users["Alice"])
	}
	if users["Bob"] != 1 || users["Carol"] != 1 {
		t.Fatalf("unexpected row set: %v", users)
	}
}

func TestExportCSVStillPendingRowsExcluded(t *testing.T) {
	m, clock := newTestManager(&recordingFlusher{})
	if err := m.StartSession("Dave", "s1", "fresh goal", "", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	*clock = clock.Add(time.Minute)
	m.TrackFormSubmission("s1", "fresh goal", "", "")
	m.flushWG.Wait()
	payload, err := m.ExportCSV()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows := parseCSV(t, payload)
	if len(rows) != 1 {
		t.Fatalf("a still-active fresh session must not be exported, got %d rows", len(rows))
	}
}

func TestExportCSVCustomKPIColumn(t *testing.T) {
	record := finalized("Eve", "2026-09-01", "velocity goal", "2026-09-01T11:00:00Z", 30)
	record.SelectedKPI = "other"
	record.CustomKPI = "signup velocity"
	m, _ := newTestManager(&recordingFlusher{})
	m.Seed([]UsageRecord{record})
	payload, err := m.ExportCSV()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows := parseCSV(t, payload)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[1][2] != "signup velocity" {
		t.Fatalf("KPI column should fall back to the custom KPI, got %q", rows[1][2])
	}
}

func TestUsageStats(t *testing.T) {
	m, _ := newTestManager(&recordingFlusher{})
	m.Seed([]UsageRecord{
		finalized("Alice", "2026-09-01", "a", "2026-09-01T10:00:00Z", 90),
		finalized("Alice", "2026-09-01", "b", "2026-09-01T12:00:00Z", 20),
		{
			Date: "2026-09-01", UserName: "Bob",
			FormSubmissionTime: "2026-09-01T11:00:00Z",
			SessionEnd:         InProgress, IsActive: true, SessionID: "live",
		},
	})
	stats := m.UsageStats()
	if stats.TotalRecords != 3 || stats.CompletedRecords != 2 || stats.InProgressRecords != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.UniqueUsers != 2 {
		t.Fatalf("expected 2 unique users, got %d", stats.UniqueUsers)
	}
	if stats.LastSubmission != "2026-09-01T12:00:00Z" {
		t.Fatalf("unexpected last submission: %s", stats.LastSubmission)
	}
}
