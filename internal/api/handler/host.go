package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/openfleet/maestro/internal/api/middleware"
	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/api/response"
	"github.com/openfleet/maestro/internal/core"
	"github.com/openfleet/maestro/internal/model"
)

// UpdateDispatcher starts update jobs and tasks.
// *dispatch.Dispatcher satisfies this interface.
type UpdateDispatcher interface {
	DispatchScheduleRun(ctx context.Context, schedule model.Schedule, fireTime time.Time) error
	DispatchHostUpdate(ctx context.Context, host *model.Host, firmwarePath string, dryRun bool, createdBy string) (string, error)
}

type Host struct {
	svc        *core.HostService
	tasks      *core.TaskService
	dispatcher UpdateDispatcher
}

func NewHost(svc *core.HostService, tasks *core.TaskService, dispatcher UpdateDispatcher) *Host {
	return &Host{svc: svc, tasks: tasks, dispatcher: dispatcher}
}

func (h *Host) List(w http.ResponseWriter, r *http.Request) {
	params := request.ParseListParams(r, "hostname")

	hosts, hasMore, err := h.svc.List(r.Context(), params)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nextCursor := ""
	if hasMore && len(hosts) > 0 {
		nextCursor = hosts[len(hosts)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, hosts, nextCursor, hasMore)
}

func (h *Host) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateHost
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	host := &model.Host{
		Hostname:   req.Hostname,
		BMCAddr:    req.BMCAddr,
		VCenter:    req.VCenter,
		Cluster:    req.Cluster,
		HostPolicy: req.HostPolicy,
	}
	if err := h.svc.Create(r.Context(), host); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, host)
}

func (h *Host) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	host, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, host)
}

func (h *Host) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateHost
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	host := &model.Host{
		ID:         id,
		Hostname:   req.Hostname,
		BMCAddr:    req.BMCAddr,
		VCenter:    req.VCenter,
		Cluster:    req.Cluster,
		HostPolicy: req.HostPolicy,
	}
	if err := h.svc.Update(r.Context(), host); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, updated)
}

func (h *Host) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.WriteError(w, http.StatusConflict, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Tasks lists the update history for one host, newest first.
func (h *Host) Tasks(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := request.ParseListParams(r, "created_at")
	tasks, hasMore, err := h.tasks.List(r.Context(), id, params)
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

// DispatchUpdate starts a manual firmware update against one host.
func (h *Host) DispatchUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.DispatchHostUpdate
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	host, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	taskID, err := h.dispatcher.DispatchHostUpdate(r.Context(), host, req.FirmwarePath, req.DryRun, mw.CreatedBy(r.Context()))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// BatchUpdateResult reports the dispatch outcome for one host of a batch.
type BatchUpdateResult struct {
	HostID string `json:"host_id"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DispatchBatch starts a manual update against an explicit list of hosts.
// Hosts that fail to enqueue are reported per host; the rest keep running.
func (h *Host) DispatchBatch(w http.ResponseWriter, r *http.Request) {
	var req request.DispatchBatchUpdate
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	createdBy := mw.CreatedBy(r.Context())
	results := make([]BatchUpdateResult, 0, len(req.HostIDs))
	for _, hostID := range req.HostIDs {
		result := BatchUpdateResult{HostID: hostID}

		host, err := h.svc.GetByID(r.Context(), hostID)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		taskID, err := h.dispatcher.DispatchHostUpdate(r.Context(), host, req.FirmwarePath, req.DryRun, createdBy)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.TaskID = taskID
		}
		results = append(results, result)
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]any{"results": results})
}
