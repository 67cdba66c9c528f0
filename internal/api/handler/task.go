package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/api/response"
	"github.com/openfleet/maestro/internal/core"
)

type Task struct {
	svc *core.TaskService
}

func NewTask(svc *core.TaskService) *Task {
	return &Task{svc: svc}
}

func (h *Task) List(w http.ResponseWriter, r *http.Request) {
	params := request.ParseListParams(r, "created_at")
	hostID := r.URL.Query().Get("host_id")

	tasks, hasMore, err := h.svc.List(r.Context(), hostID, params)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nextCursor := ""
	if hasMore && len(tasks) > 0 {
		nextCursor = tasks[len(tasks)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, tasks, nextCursor, hasMore)
}

func (h *Task) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, task)
}
