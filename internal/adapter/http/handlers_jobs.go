package http

import (
	"net/http"
	"strconv"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
)

// GetJob handles GET /api/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.Jobs.GetJob(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// ListJobs handles GET /api/jobs?limit=
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJobLimit)
	}
	jobs, err := h.Jobs.ListJobs(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err, "jobs not found")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
