package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/openfleet/maestro/internal/api/middleware"
	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/api/response"
	"github.com/openfleet/maestro/internal/core"
	"github.com/openfleet/maestro/internal/model"
)

type FirmwareImage struct {
	svc *core.FirmwareImageService
}

func NewFirmwareImage(svc *core.FirmwareImageService) *FirmwareImage {
	return &FirmwareImage{svc: svc}
}

func (h *FirmwareImage) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	images, hasMore, err := h.svc.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	nextCursor := ""
	if hasMore && len(images) > 0 {
		nextCursor = images[len(images)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, images, nextCursor, hasMore)
}

func (h *FirmwareImage) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateFirmwareImage
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	image := &model.FirmwareImage{
		Filename:    req.Filename,
		ImageURI:    req.ImageURI,
		Version:     req.Version,
		ModelCompat: req.ModelCompat,
		UploadedBy:  mw.CreatedBy(r.Context()),
	}
	if err := h.svc.Create(r.Context(), image); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, image)
}

func (h *FirmwareImage) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, image)
}

func (h *FirmwareImage) Delete(w http.ResponseWriter, r *http.Request) {
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
