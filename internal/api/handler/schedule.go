package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/api/response"
	"github.com/openfleet/maestro/internal/core"
	"github.com/openfleet/maestro/internal/model"
)

type Schedule struct {
	svc        *core.ScheduleService
	dispatcher UpdateDispatcher
}

func NewSchedule(svc *core.ScheduleService, dispatcher UpdateDispatcher) *Schedule {
	return &Schedule{svc: svc, dispatcher: dispatcher}
}

func (h *Schedule) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	schedules, hasMore, err := h.svc.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nextCursor := ""
	if hasMore && len(schedules) > 0 {
		nextCursor = schedules[len(schedules)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, schedules, nextCursor, hasMore)
}

func (h *Schedule) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := request.ValidateTrigger(req.CronExpr, req.IntervalMinutes); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule := &model.Schedule{
		Name:            req.Name,
		FirmwarePath:    req.FirmwarePath,
		GroupID:         req.GroupID,
		CronExpr:        req.CronExpr,
		IntervalMinutes: req.IntervalMinutes,
		MaxConcurrent:   req.MaxConcurrent,
		Enabled:         req.Enabled,
		DryRun:          req.DryRun,
	}
	if err := h.svc.Create(r.Context(), schedule); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, schedule)
}

func (h *Schedule) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, schedule)
}

func (h *Schedule) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := request.ValidateTrigger(req.CronExpr, req.IntervalMinutes); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule := &model.Schedule{
		ID:              id,
		Name:            req.Name,
		FirmwarePath:    req.FirmwarePath,
		GroupID:         req.GroupID,
		CronExpr:        req.CronExpr,
		IntervalMinutes: req.IntervalMinutes,
		MaxConcurrent:   req.MaxConcurrent,
		Enabled:         req.Enabled,
		DryRun:          req.DryRun,
	}
	if err := h.svc.Update(r.Context(), schedule); err != nil {
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

func (h *Schedule) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	enabled, err := h.svc.Toggle(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// Run fires the schedule immediately, outside its trigger. The dispatcher
// applies the same coalescing as a timed firing.
func (h *Schedule) Run(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.dispatcher.DispatchScheduleRun(r.Context(), *schedule, time.Now()); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Schedule) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
