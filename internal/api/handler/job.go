package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/api/response"
	"github.com/openfleet/maestro/internal/core"
)

type Job struct {
	svc *core.JobService
}

func NewJob(svc *core.JobService) *Job {
	return &Job{svc: svc}
}

func (h *Job) List(w http.ResponseWriter, r *http.Request) {
	params := request.ParseListParams(r, "start_time")
	scheduleID := r.URL.Query().Get("schedule_id")

	jobs, hasMore, err := h.svc.List(r.Context(), scheduleID, params)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nextCursor := ""
	if hasMore && len(jobs) > 0 {
		nextCursor = jobs[len(jobs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, jobs, nextCursor, hasMore)
}

// Get returns the job with its schedule name and per-host task rows.
func (h *Job) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, detail)
}
