package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/embed"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/internal/response"
)

type embedService interface {
	Parse(ctx context.Context, input string) embed.Target
	Resolve(ctx context.Context, sess *models.Session, req dto.ResolveEmbedRequest) (embed.Frame, error)
	FilterEnabled(ctx context.Context, sess *models.Session, resourceKey string) bool
	SetFilterEnabled(ctx context.Context, sess *models.Session, resourceKey string, enabled bool) (dto.FilterToggle, error)
}

type embedHandlers struct {
	ResponseHandler response.ResponseHandler
	EmbedSvc        embedService
}

func NewEmbedHandlers(deps *Deps) *embedHandlers {
	return &embedHandlers{
		ResponseHandler: deps.ResponseHandler,
		EmbedSvc:        deps.EmbedSvc,
	}
}

// EmbedRoutes expects a session in the request context.
func (h *embedHandlers) EmbedRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/parse", h.Parse)
	r.Post("/resolve", h.Resolve)
	r.Get("/filters/{resourceKey}", h.GetFilter)
	r.Put("/filters/{resourceKey}", h.SetFilter)
	return r
}

// Parse never fails on bad input; the target reports valid=false instead.
func (h *embedHandlers) Parse(w http.ResponseWriter, r *http.Request) {
	var req dto.ParseEmbedRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, h.EmbedSvc.Parse(r.Context(), req.Input))
}

func (h *embedHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveEmbedRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	frame, err := h.EmbedSvc.Resolve(r.Context(), sessionFrom(r), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, frame)
}

func (h *embedHandlers) GetFilter(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "resourceKey")
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, dto.FilterToggle{
		ResourceKey: key,
		Enabled:     h.EmbedSvc.FilterEnabled(r.Context(), sessionFrom(r), key),
	})
}

func (h *embedHandlers) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req dto.FilterToggleRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	toggle, err := h.EmbedSvc.SetFilterEnabled(r.Context(), sessionFrom(r), chi.URLParam(r, "resourceKey"), req.Enabled)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, toggle)
}
