package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
)

type jobView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Status      string     `json:"status"`
	Checkpoint  string     `json:"checkpoint,omitempty"`
	Chunks      int        `json:"chunks"`
	Transcribed int        `json:"transcribed"`
	LastError   string     `json:"last_error,omitempty"`
	AddedAt     time.Time  `json:"added_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toView(j *model.Job) jobView {
	return jobView{
		ID:          j.ID,
		Name:        j.Name,
		URL:         j.URL,
		Status:      string(j.Status),
		Checkpoint:  string(j.Checkpoint),
		Chunks:      len(j.Chunks),
		Transcribed: len(j.Transcriptions),
		LastError:   j.LastError,
		AddedAt:     j.AddedAt,
		UpdatedAt:   j.UpdatedAt,
		CompletedAt: j.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" {
		if _, err := model.ParseJobStatus(status); err != nil && status != "pending" {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	items := []jobView{}
	for _, j := range s.jobs.List() {
		switch {
		case status == "":
		case status == "pending" && !j.IsPending():
			continue
		case status != "pending" && string(j.Status) != status:
			continue
		}
		items = append(items, toView(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Get(chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toView(j))
}

type enqueueRequest struct {
	Names []string `json:"names"`
	URLs  []string `json:"urls"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for i := range req.Names {
		req.Names[i] = strings.TrimSpace(req.Names[i])
	}
	jobs, err := s.jobs.Enqueue(r.Context(), req.Names, req.URLs)
	if errors.Is(err, domain.ErrInvalidArgument) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("enqueue failed")
		http.Error(w, "Failed to enqueue jobs", http.StatusInternalServerError)
		return
	}
	items := make([]jobView, len(jobs))
	for i, j := range jobs {
		items[i] = toView(j)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": items})
}

func (s *Server) handleCancelPending(w http.ResponseWriter, r *http.Request) {
	n, err := s.jobs.CancelPending(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("cancel pending failed")
		http.Error(w, "Failed to cancel jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	byStatus := map[string]int{}
	pending := 0
	jobs := s.jobs.List()
	for _, j := range jobs {
		key := string(j.Status)
		if _, ok := j.Status.ChunkIndex(); ok {
			key = "transcribing"
		}
		byStatus[key]++
		if j.IsPending() {
			pending++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(jobs),
		"pending":   pending,
		"by_status": byStatus,
	})
}

type keyView struct {
	Key       string          `json:"key"`
	Usage     map[string]int  `json:"usage"`
	Exhausted map[string]bool `json:"exhausted"`
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	if s.keys == nil {
		http.Error(w, "Not implemented", http.StatusNotImplemented)
		return
	}
	creds, err := s.keys.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list keys", http.StatusInternalServerError)
		return
	}
	items := make([]keyView, len(creds))
	for i, c := range creds {
		items[i] = keyView{Key: c.Masked(), Usage: c.Usage, Exhausted: c.Exhausted}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
