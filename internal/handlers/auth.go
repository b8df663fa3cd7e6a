package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/middleware"
	"github.com/GregMSThompson/insight-portal/internal/response"
)

type authService interface {
	Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResult, error)
	FirebaseLogin(ctx context.Context, req dto.FirebaseLoginRequest) (dto.AuthResult, error)
	Session(ctx context.Context, id string) (dto.AuthResult, error)
	Logout(ctx context.Context, id string) error
}

type authHandlers struct {
	ResponseHandler response.ResponseHandler
	AuthSvc         authService
	Limiter         *middleware.RateLimiter
}

func NewAuthHandlers(deps *Deps) *authHandlers {
	return &authHandlers{
		ResponseHandler: deps.ResponseHandler,
		AuthSvc:         deps.AuthSvc,
		Limiter:         deps.LoginLimiter,
	}
}

func (h *authHandlers) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if h.Limiter != nil {
			r.Use(h.Limiter.Limit)
		}
		r.Post("/login", h.Login)
		r.Post("/firebase", h.FirebaseLogin)
	})
	r.Post("/logout", h.Logout)
	r.Get("/session/{sessionId}", h.GetSession)
	return r
}

func (h *authHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	res, err := h.AuthSvc.Login(r.Context(), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, res)
}

func (h *authHandlers) FirebaseLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.FirebaseLoginRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	res, err := h.AuthSvc.FirebaseLogin(r.Context(), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, res)
}

// Logout takes the session id from the body, falling back to the
// Authorization or X-Session-ID header.
func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = middleware.SessionID(r)
	}
	if err := h.AuthSvc.Logout(r.Context(), req.SessionID); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *authHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.AuthSvc.Session(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, res)
}
