package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/ideas"
)

const maxUploadBytes = 32 << 20

// refinementPresets maps the one-click refinement buttons to the instruction
// sent to the model.
var refinementPresets = map[string]string{
	"more_specific":   "Make this idea more specific and concrete: name the exact audience segment, channel, and mechanics.",
	"lower_effort":    "Rework this idea so it can be launched with minimal engineering and design effort, ideally within one week.",
	"different_angle": "Keep the same goal but approach it from a completely different angle than the current idea.",
	"bolder":          "Make this idea bolder and higher-impact, even at the cost of more effort or risk.",
}

func (s *Server) handleGenerateIdeas(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("api: generate parse form failed", "error", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid form data: %w", err))
		return
	}
	req := ideas.GenerateRequest{
		UserInput:   trimmedForm(r, "userInput"),
		SelectedKPI: trimmedForm(r, "selectedKPI"),
		CustomKPI:   trimmedForm(r, "customKPI"),
	}
	// Uploads are staged only when the request can reach extraction, which
	// owns their removal; a rejected request must not leave files behind.
	if req.UserInput != "" && r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			path, err := s.saveUpload(header)
			if err != nil {
				logger.Warn("api: upload save failed, skipping", "filename", header.Filename, "error", err)
				continue
			}
			req.Uploads = append(req.Uploads, ideas.Upload{Path: path, Filename: header.Filename})
		}
	}
	logger.Info("api: generate ideas", "input_length", len(req.UserInput), "kpi", req.SelectedKPI, "uploads", len(req.Uploads))
	result, err := s.service.GenerateIdeas(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ideas": result})
}

func (s *Server) handleRefineCustom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Idea              string `json:"idea"`
		ExpectedResult    string `json:"expectedResult"`
		CustomRefinement  string `json:"customRefinement"`
		OriginalUserInput string `json:"originalUserInput"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	refined, err := s.service.RefineIdea(r.Context(), ideas.RefineRequest{
		Idea:              body.Idea,
		ExpectedResult:    body.ExpectedResult,
		CustomRefinement:  body.CustomRefinement,
		OriginalUserInput: body.OriginalUserInput,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refined)
}

// handleRefinePreset is the button-driven variant of refinement: the client
// sends a preset key instead of free text. A free-text customRefinement is
// accepted too, so both client payload shapes land here safely.
func (s *Server) handleRefinePreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Idea              string `json:"idea"`
		ExpectedResult    string `json:"expectedResult"`
		RefinementType    string `json:"refinementType"`
		CustomRefinement  string `json:"customRefinement"`
		OriginalUserInput string `json:"originalUserInput"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	instruction, ok := refinementPresets[strings.ToLower(strings.TrimSpace(body.RefinementType))]
	if !ok {
		if strings.TrimSpace(body.CustomRefinement) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown refinementType %q", body.RefinementType))
			return
		}
		instruction = body.CustomRefinement
	}
	refined, err := s.service.RefineIdea(r.Context(), ideas.RefineRequest{
		Idea:              body.Idea,
		ExpectedResult:    body.ExpectedResult,
		CustomRefinement:  instruction,
		OriginalUserInput: body.OriginalUserInput,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refined)
}

func (s *Server) handleImplementationSteps(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Idea              string `json:"idea"`
		ExpectedResult    string `json:"expectedResult"`
		OriginalUserInput string `json:"originalUserInput"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	steps, err := s.service.ImplementationSteps(r.Context(), ideas.StepsRequest{
		Idea:              body.Idea,
		ExpectedResult:    body.ExpectedResult,
		OriginalUserInput: body.OriginalUserInput,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"implementationSteps": steps})
}

// saveUpload copies one received file into the upload root. The extractor
// removes the temp file once it has pulled the text out.
func (s *Server) saveUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	dst, err := os.CreateTemp(s.uploadRoot, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
