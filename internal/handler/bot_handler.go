package handler

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/botclash/internal/config"
)

var (
	teamNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	templateRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// BotHandler manages team submissions on disk. Submissions land under the
// bots directory where the loader picks them up; compiling and sandboxing
// the sources is the loader's concern.
type BotHandler struct {
	botsDir      string
	templatesDir string
}

// NewBotHandler creates a BotHandler rooted at the configured directories.
func NewBotHandler(cfg *config.Config) *BotHandler {
	return &BotHandler{botsDir: cfg.BotsDir, templatesDir: cfg.TemplatesDir}
}

// SubmissionFile is one source file within a submission.
type SubmissionFile struct {
	FileName string `json:"fileName"`
	Code     string `json:"code"`
}

type submitRequest struct {
	TeamName  string           `json:"teamName"`
	Files     []SubmissionFile `json:"files"`
	Overwrite bool             `json:"overwrite"`
	GameType  string           `json:"gameType,omitempty"`
}

type submitResponse struct {
	Success      bool     `json:"success"`
	SubmissionID string   `json:"submissionId,omitempty"`
	Errors       []string `json:"errors"`
}

// Submit handles POST /api/bots/submit.
func (h *BotHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.submit(w, req)
}

func (h *BotHandler) submit(w http.ResponseWriter, req submitRequest) {
	if status, errs := validateSubmission(req); status != 0 {
		writeJSON(w, status, submitResponse{Success: false, Errors: errs})
		return
	}

	dir := filepath.Join(h.botsDir, req.TeamName)
	if _, err := os.Stat(dir); err == nil && !req.Overwrite {
		writeJSON(w, http.StatusConflict, submitResponse{
			Success: false,
			Errors:  []string{"team already exists; set overwrite to replace"},
		})
		return
	}

	if err := os.RemoveAll(dir); err != nil {
		log.Error().Err(err).Str("teamName", req.TeamName).Msg("Failed to clear submission dir")
		writeError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}
	for _, f := range req.Files {
		path := filepath.Join(dir, f.FileName)
		if err := os.WriteFile(path, []byte(f.Code), 0o644); err != nil {
			log.Error().Err(err).Str("file", f.FileName).Msg("Failed to write submission file")
			writeError(w, http.StatusInternalServerError, "failed to store submission")
			return
		}
	}

	id := uuid.New().String()
	log.Info().
		Str("teamName", req.TeamName).
		Str("submissionId", id).
		Int("files", len(req.Files)).
		Msg("Submission stored")
	writeJSON(w, http.StatusOK, submitResponse{Success: true, SubmissionID: id, Errors: []string{}})
}

type batchRequest struct {
	Submissions []submitRequest `json:"submissions"`
}

type batchResult struct {
	TeamName string         `json:"teamName"`
	Status   int            `json:"status"`
	Result   submitResponse `json:"result"`
}

// SubmitBatch handles POST /api/bots/submit-batch. Each submission is
// validated and stored independently; one bad entry does not abort the rest.
func (h *BotHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Submissions) == 0 {
		writeError(w, http.StatusBadRequest, "no submissions provided")
		return
	}

	results := make([]batchResult, 0, len(req.Submissions))
	for _, sub := range req.Submissions {
		rec := &responseRecorder{header: make(http.Header)}
		h.submit(rec, sub)
		results = append(results, batchResult{
			TeamName: sub.TeamName,
			Status:   rec.status,
			Result:   rec.decoded(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// BotInfo describes one stored submission.
type BotInfo struct {
	TeamName string   `json:"teamName"`
	Files    []string `json:"files"`
}

// List handles GET /api/bots/list.
func (h *BotHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.botsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusOK, map[string]any{"bots": []BotInfo{}})
			return
		}
		log.Error().Err(err).Msg("Failed to list bots dir")
		writeError(w, http.StatusInternalServerError, "failed to list bots")
		return
	}

	bots := make([]BotInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !teamNameRe.MatchString(e.Name()) {
			continue
		}
		var files []string
		inner, err := os.ReadDir(filepath.Join(h.botsDir, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range inner {
			if !f.IsDir() {
				files = append(files, f.Name())
			}
		}
		sort.Strings(files)
		bots = append(bots, BotInfo{TeamName: e.Name(), Files: files})
	}
	sort.Slice(bots, func(i, j int) bool { return bots[i].TeamName < bots[j].TeamName })
	writeJSON(w, http.StatusOK, map[string]any{"bots": bots})
}

// Delete handles DELETE /api/bots/{teamName}.
func (h *BotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	teamName := r.PathValue("teamName")
	if !teamNameRe.MatchString(teamName) {
		writeError(w, http.StatusBadRequest, "invalid team name")
		return
	}

	dir := filepath.Join(h.botsDir, teamName)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Error().Err(err).Str("teamName", teamName).Msg("Failed to delete submission")
		writeError(w, http.StatusInternalServerError, "failed to delete submission")
		return
	}
	log.Info().Str("teamName", teamName).Msg("Submission deleted")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type verifyResponse struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Message  string   `json:"message"`
}

// Verify handles POST /api/bots/verify — a dry run of the submit
// validation without touching disk.
func (h *BotHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := verifyResponse{Errors: []string{}, Warnings: []string{}}
	if _, errs := validateSubmission(req); len(errs) > 0 {
		resp.Errors = errs
	}
	for _, f := range req.Files {
		if !strings.Contains(f.FileName, ".") {
			resp.Warnings = append(resp.Warnings, "file "+f.FileName+" has no extension")
		}
	}
	if req.GameType != "" {
		found := false
		needle := strings.ToLower(req.GameType)
		for _, f := range req.Files {
			if strings.Contains(strings.ToLower(f.Code), needle) {
				found = true
				break
			}
		}
		if !found {
			resp.Warnings = append(resp.Warnings, "no file references game type "+req.GameType)
		}
	}

	resp.IsValid = len(resp.Errors) == 0
	if resp.IsValid {
		resp.Message = "submission looks valid"
	} else {
		resp.Message = "submission failed validation"
	}
	writeJSON(w, http.StatusOK, resp)
}

// Template handles GET /api/resources/templates/{name} — serves a starter
// package as a zip archive.
func (h *BotHandler) Template(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	name = strings.TrimSuffix(name, ".zip")
	if !templateRe.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid template name")
		return
	}

	path := filepath.Join(h.templatesDir, name+".zip")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+".zip\"")
	http.ServeFile(w, r, path)
}

// validateSubmission returns a non-zero HTTP status and the reasons when
// the submission is structurally invalid.
func validateSubmission(req submitRequest) (int, []string) {
	var errs []string
	status := http.StatusBadRequest

	if !teamNameRe.MatchString(req.TeamName) {
		errs = append(errs, "team name must match [A-Za-z0-9_-]+")
	}
	if len(req.Files) == 0 {
		errs = append(errs, "at least one file is required")
	}

	seen := make(map[string]bool)
	total := 0
	for _, f := range req.Files {
		if f.FileName == "" {
			errs = append(errs, "file name must not be empty")
			continue
		}
		if strings.ContainsAny(f.FileName, `/\`) || f.FileName == "." || f.FileName == ".." {
			errs = append(errs, "file name "+f.FileName+" must not contain path separators")
		}
		if seen[f.FileName] {
			errs = append(errs, "duplicate file name "+f.FileName)
		}
		seen[f.FileName] = true
		if len(f.Code) > config.MaxFileBytes {
			errs = append(errs, "file "+f.FileName+" exceeds the per-file size limit")
			status = http.StatusRequestEntityTooLarge
		}
		total += len(f.Code)
	}
	if total > config.MaxSubmissionBytes {
		errs = append(errs, "submission exceeds the total size limit")
		status = http.StatusRequestEntityTooLarge
	}

	if len(errs) == 0 {
		return 0, nil
	}
	return status, errs
}

// responseRecorder captures one submit result for the batch endpoint.
type responseRecorder struct {
	header http.Header
	status int
	body   []byte
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) { r.status = status }

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body = append(r.body, b...)
	return len(b), nil
}

func (r *responseRecorder) decoded() submitResponse {
	var resp submitResponse
	if err := json.Unmarshal(r.body, &resp); err != nil {
		resp.Errors = []string{string(r.body)}
	}
	return resp
}
