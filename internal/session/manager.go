package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/common/telemetry"
)

const (
	// maxPromptChars bounds the prompt text stored per usage record.
	maxPromptChars = 500
	// defaultEstimatedSeconds is used when a sweep finds an active record
	// whose session no longer exists, leaving nothing to estimate from.
	defaultEstimatedSeconds = 600
	// flushTimeout bounds each durable write, including the detached ones.
	flushTimeout = 30 * time.Second
)

// Flusher persists the full ordered usage-record list.
type Flusher interface {
	Write(ctx context.Context, records []UsageRecord) error
}

// Manager owns the active-session map and the usage-record list. One
// instance is constructed at startup and injected into the HTTP handlers;
// all state lives behind its mutex.
type Manager struct {
	flusher       Flusher
	idleThreshold time.Duration
	sweepInterval time.Duration
	flushInterval time.Duration

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	records  []*UsageRecord

	flushWG sync.WaitGroup
}

func NewManager(flusher Flusher, idleThreshold, sweepInterval, flushInterval time.Duration) *Manager {
	if idleThreshold <= 0 {
		idleThreshold = 30 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Minute
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Minute
	}
	return &Manager{
		flusher:       flusher,
		idleThreshold: idleThreshold,
		sweepInterval: sweepInterval,
		flushInterval: flushInterval,
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

// Seed loads previously persisted records so history accumulates across
// restarts. Active sessions are not restored; in-memory only by design.
func (m *Manager) Seed(records []UsageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = m.records[:0]
	for i := range records {
		rec := records[i]
		m.records = append(m.records, &rec)
	}
	common.Logger().Info("session: seeded usage history", "records", len(m.records))
}

// StartSession registers a new session. Creation is idempotent: an existing
// id is left untouched.
func (m *Manager) StartSession(userName, sessionID, userInput, selectedKPI, customKPI string) error {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return fmt.Errorf("userName required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("sessionId required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[sessionID]; exists {
		common.Logger().Debug("session: start ignored, id already active", "session_id", sessionID)
		return nil
	}
	now := m.now()
	m.sessions[sessionID] = &Session{
		ID:           sessionID,
		UserName:     userName,
		Start:        now,
		UserInput:    userInput,
		SelectedKPI:  selectedKPI,
		CustomKPI:    customKPI,
		LastActivity: now,
	}
	telemetry.RecordSessionStarted()
	common.Logger().Info("session: started", "session_id", sessionID, "user", userName)
	return nil
}

// TrackFormSubmission upserts the single usage record for a live session and
// triggers a detached durable flush. An unknown session id is a logged no-op.
func (m *Manager) TrackFormSubmission(sessionID, userInput, selectedKPI, customKPI string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		common.Logger().Warn("session: form submission for unknown session", "session_id", sessionID)
		return
	}
	now := m.now()
	sess.FormSubmitted = true
	sess.LastActivity = now
	if strings.TrimSpace(userInput) != "" {
		sess.UserInput = userInput
	}
	if strings.TrimSpace(selectedKPI) != "" {
		sess.SelectedKPI = selectedKPI
	}
	if strings.TrimSpace(customKPI) != "" {
		sess.CustomKPI = customKPI
	}
	record := &UsageRecord{
		Date:               now.Format("2006-01-02"),
		UserName:           sess.UserName,
		SelectedKPI:        sess.SelectedKPI,
		CustomKPI:          sess.CustomKPI,
		PromptText:         truncatePrompt(sess.UserInput),
		FormSubmissionTime: now.Format(time.RFC3339),
		SessionEnd:         InProgress,
		SessionID:          sessionID,
		IsActive:           true,
	}
	replaced := false
	for i, existing := range m.records {
		if existing.SessionID == sessionID {
			m.records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		m.records = append(m.records, record)
	}
	m.mu.Unlock()
	common.Logger().Info("session: form submission tracked", "session_id", sessionID, "replaced", replaced)
	m.flushAsync("form-submission")
}

// EndSession finalizes a submitted session's record and flushes. Unknown ids
// and sessions that never submitted a form are no-ops: a premature end signal
// (browser unload fires before the form lands) leaves the session in place
// for a late submission, and the sweep reaps it if none arrives.
func (m *Manager) EndSession(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		common.Logger().Debug("session: end for unknown session", "session_id", sessionID)
		return
	}
	if !sess.FormSubmitted {
		m.mu.Unlock()
		common.Logger().Debug("session: end before submission ignored", "session_id", sessionID)
		return
	}
	now := m.now()
	duration := int(now.Sub(sess.Start).Seconds())
	if duration < 0 {
		duration = 0
	}
	for _, record := range m.records {
		if record.SessionID == sessionID {
			finalizeRecord(record, now.Format(time.RFC3339), duration)
			break
		}
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	telemetry.RecordSessionFinalized(false)
	common.Logger().Info("session: ended", "session_id", sessionID, "duration_s", duration)
	m.flush(context.Background(), "session-end")
}

// SweepAbandoned finalizes active records whose session disappeared or idled
// past the threshold, using an estimated duration, then flushes if anything
// changed. Runs on the sweep timer and once more before CSV export.
func (m *Manager) SweepAbandoned() int {
	m.mu.Lock()
	now := m.now()
	swept := 0
	for _, record := range m.records {
		if !record.IsActive {
			continue
		}
		sess, alive := m.sessions[record.SessionID]
		estimated := defaultEstimatedSeconds
		endStamp := now
		switch {
		case !alive:
			// Session map lost the entry (restart or already removed);
			// nothing better than the fixed default remains.
		case now.Sub(sess.LastActivity) < m.idleThreshold:
			continue
		default:
			estimated = int(sess.LastActivity.Sub(sess.Start).Seconds())
			if estimated < 0 {
				estimated = 0
			}
			endStamp = sess.LastActivity
			delete(m.sessions, sess.ID)
		}
		finalizeRecord(record, endStamp.Format(time.RFC3339), estimated)
		swept++
		telemetry.RecordSessionFinalized(true)
	}
	// Drop never-submitted sessions that idled out; they have no record.
	for id, sess := range m.sessions {
		if !sess.FormSubmitted && now.Sub(sess.LastActivity) >= m.idleThreshold {
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	if swept > 0 {
		common.Logger().Info("session: sweep finalized abandoned records", "count", swept)
		m.flush(context.Background(), "sweep")
	}
	return swept
}

// Run starts the periodic flush and abandoned-session sweep loops and blocks
// until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	logger := common.Logger()
	logger.Info("session: lifecycle loops starting",
		"flush_interval", m.flushInterval, "sweep_interval", m.sweepInterval, "idle_threshold", m.idleThreshold)
	flushTicker := time.NewTicker(m.flushInterval)
	sweepTicker := time.NewTicker(m.sweepInterval)
	defer flushTicker.Stop()
	defer sweepTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("session: lifecycle loops stopping")
			return
		case <-flushTicker.C:
			if m.RecordCount() > 0 {
				m.flush(context.Background(), "periodic")
			}
		case <-sweepTicker.C:
			m.SweepAbandoned()
		}
	}
}

// Close waits for detached flushes and performs the final durable write.
func (m *Manager) Close(ctx context.Context) {
	m.flushWG.Wait()
	if m.RecordCount() > 0 {
		m.flush(ctx, "shutdown")
	}
}

// RecordCount reports the current usage-record count.
func (m *Manager) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// ActiveSessionCount reports the live session count.
func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Records returns a snapshot copy of the usage-record list.
func (m *Manager) Records() []UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Sessions returns a snapshot copy of the active sessions, for diagnostics.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, *sess)
	}
	return out
}

// flushAsync spawns a detached durable write. Failures are logged and never
// propagate to the request that triggered them.
func (m *Manager) flushAsync(reason string) {
	m.flushWG.Add(1)
	go func() {
		defer m.flushWG.Done()
		m.flush(context.Background(), reason)
	}()
}

// flush snapshots the record list at the moment the write is issued and
// hands it to the durable store. The store owns conflict retry and fallback;
// an error here means even the fallback failed, which is only logged.
func (m *Manager) flush(parent context.Context, reason string) {
	snapshot := m.Records()
	if len(snapshot) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(parent, flushTimeout)
	defer cancel()
	if err := m.flusher.Write(ctx, snapshot); err != nil {
		common.Logger().Error("session: durable flush failed", "reason", reason, "records", len(snapshot), "error", err)
		return
	}
	common.Logger().Debug("session: flushed usage records", "reason", reason, "records", len(snapshot))
}

func (m *Manager) snapshotLocked() []UsageRecord {
	out := make([]UsageRecord, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, *record)
	}
	return out
}

func finalizeRecord(record *UsageRecord, endStamp string, durationSeconds int) {
	record.SessionEnd = endStamp
	record.SessionDuration = PendingSeconds{Seconds: durationSeconds, Done: true}
	record.SessionID = ""
	record.IsActive = false
}

func truncatePrompt(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxPromptChars {
		return string(runes)
	}
	return string(runes[:maxPromptChars])
}
