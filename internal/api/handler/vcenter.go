package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/api/response"
	"github.com/openfleet/maestro/internal/core"
	"github.com/openfleet/maestro/internal/model"
)

type VCenter struct {
	svc *core.VCenterService
}

func NewVCenter(svc *core.VCenterService) *VCenter {
	return &VCenter{svc: svc}
}

func (h *VCenter) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	vcenters, hasMore, err := h.svc.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nextCursor := ""
	if hasMore && len(vcenters) > 0 {
		nextCursor = vcenters[len(vcenters)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, vcenters, nextCursor, hasMore)
}

func (h *VCenter) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateVCenter
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	vc := &model.VCenter{
		Name:     req.Name,
		URL:      req.URL,
		Username: req.Username,
	}
	if err := h.svc.Create(r.Context(), vc, req.Password); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, vc)
}

func (h *VCenter) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	vc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, vc)
}

func (h *VCenter) Delete(w http.ResponseWriter, r *http.Request) {
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
