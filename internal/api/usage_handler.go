package api

import (
	"net/http"

	"github.com/ideaforge-io/ideaforge/internal/common"
)

func (s *Server) handleDownloadUsageData(w http.ResponseWriter, r *http.Request) {
	payload, err := s.sessions.ExportCSV()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="usage-data.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.UsageStats())
}

// handleDebugData exposes a read-only snapshot of live sessions, usage
// records, and the recent log buffer.
func (s *Server) handleDebugData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": s.sessions.Sessions(),
		"records":  s.sessions.Records(),
		"logs":     common.LogEntries(),
	})
}
