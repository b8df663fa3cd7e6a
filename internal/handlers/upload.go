package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/internal/response"
)

type uploadService interface {
	CreateImageUpload(ctx context.Context, req dto.ImageUploadRequest) (dto.ImageUpload, error)
}

type uploadHandlers struct {
	ResponseHandler response.ResponseHandler
	UploadSvc       uploadService
}

func NewUploadHandlers(deps *Deps) *uploadHandlers {
	return &uploadHandlers{
		ResponseHandler: deps.ResponseHandler,
		UploadSvc:       deps.UploadSvc,
	}
}

func (h *uploadHandlers) UploadRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/images", h.CreateImageUpload)
	return r
}

// CreateImageUpload hands out a presigned PUT for an image tile. Viewers
// and system users cannot edit tiles, so they cannot upload either.
func (h *uploadHandlers) CreateImageUpload(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r); sess == nil || (!sess.IsAdmin() && sess.Role != models.RoleEditor) {
		h.ResponseHandler.HandleError(w, r, errs.NewForbiddenError("editor access required"))
		return
	}
	var req dto.ImageUploadRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	upload, err := h.UploadSvc.CreateImageUpload(r.Context(), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, upload)
}
