package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Kassag-stack/visionly.ai/internal/domain"
	"github.com/Kassag-stack/visionly.ai/internal/domain/model"
)

// chatMessage mirrors the OpenAI-style envelope the storefront plugin sends.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type submitRequest struct {
	Messages []chatMessage `json:"messages"`
}

// submissionPayload is the serialized structure inside the last user
// message: the analysis query plus the commerce snapshot, flattened.
type submissionPayload struct {
	Query   string   `json:"query"`
	Sources []string `json:"sources,omitempty"`
	model.StoreSnapshot
}

type submitResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status        string                         `json:"status"`
	Progress      int                            `json:"progress"`
	SourceResults map[string]*model.SourceResult `json:"source_results,omitempty"`
	Result        *statusResult                  `json:"result,omitempty"`
	Error         string                         `json:"error,omitempty"`
}

type statusResult struct {
	Insights           *model.CombinedInsight     `json:"insights,omitempty"`
	VisualizationFiles map[string]json.RawMessage `json:"visualization_files,omitempty"`
	DetailedAnalysis   string                     `json:"detailed_analysis,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	payload, err := extractPayload(req.Messages)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.orchestrator.Submit(r.Context(), model.Query{
		Text:     payload.Query,
		Sources:  payload.Sources,
		Snapshot: payload.StoreSnapshot,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		Status:  "success",
		JobID:   job.ID,
		Message: "analysis started, poll /api/chat/status/" + job.ID,
	})
}

// extractPayload pulls the submission out of the last user message.
func extractPayload(messages []chatMessage) (*submissionPayload, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.ToLower(messages[i].Role) != "user" {
			continue
		}
		var payload submissionPayload
		if err := json.Unmarshal([]byte(messages[i].Content), &payload); err != nil {
			return nil, errors.New("last user message is not a valid submission payload")
		}
		return &payload, nil
	}
	return nil, errors.New("no user message in request")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.orchestrator.Status(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(job))
}

func toStatusResponse(job *model.Job) statusResponse {
	resp := statusResponse{
		Status:        string(job.Status),
		Progress:      job.Progress,
		SourceResults: job.SourceResults,
		Error:         job.LastError,
	}
	if job.Status.Terminal() {
		resp.Result = &statusResult{
			Insights:           job.Insight,
			VisualizationFiles: job.Artifacts,
			DetailedAnalysis:   job.DetailedAnalysis,
		}
	}
	return resp
}

// ===== admin handlers =====

type adminLoginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil || s.adminAPIKey == "" {
		writeError(w, http.StatusForbidden, "admin surface disabled")
		return
	}
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey != s.adminAPIKey {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session mint failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "token": token})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		s.auth.Clear(w)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type jobListItem struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Shop      string `json:"shop"`
	Query     string `json:"query"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}

	jobs, err := s.orchestrator.List(r.Context(), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]jobListItem, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, jobListItem{
			ID:        j.ID,
			Status:    string(j.Status),
			Progress:  j.Progress,
			Shop:      j.Query.Snapshot.ShopDomain,
			Query:     j.Query.Text,
			CreatedAt: j.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAdminJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.orchestrator.Status(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.statsUC.JobCounts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": counts})
}

// ===== helpers =====

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "error", "message": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrUnknownSource),
		errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many submissions, slow down")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
