package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ideaforge-io/ideaforge/internal/common"
)

type sessionRequest struct {
	UserName    string `json:"userName"`
	SessionID   string `json:"sessionId"`
	UserInput   string `json:"userInput"`
	SelectedKPI string `json:"selectedKPI"`
	CustomKPI   string `json:"customKPI"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var body sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sessionID := strings.TrimSpace(body.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
		common.Logger().Debug("api: generated session id", "session_id", sessionID)
	}
	if err := s.sessions.StartSession(body.UserName, sessionID, body.UserInput, body.SelectedKPI, body.CustomKPI); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "sessionId": sessionID})
}

func (s *Server) handleTrackFormSubmission(w http.ResponseWriter, r *http.Request) {
	var body sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(body.SessionID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("sessionId required"))
		return
	}
	s.sessions.TrackFormSubmission(body.SessionID, body.UserInput, body.SelectedKPI, body.CustomKPI)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var body sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(body.SessionID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("sessionId required"))
		return
	}
	s.sessions.EndSession(body.SessionID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
