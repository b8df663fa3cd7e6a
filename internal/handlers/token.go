package handlers

import (
	"context"
	"net/http"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/response"
)

type tokenService interface {
	IssueGuestToken(ctx context.Context, req dto.GuestTokenRequest) (*dto.GuestToken, error)
	TestConnection(ctx context.Context) dto.ConnectionStatus
}

type tokenHandlers struct {
	ResponseHandler response.ResponseHandler
	TokenSvc        tokenService
}

func NewTokenHandlers(deps *Deps) *tokenHandlers {
	return &tokenHandlers{
		ResponseHandler: deps.ResponseHandler,
		TokenSvc:        deps.TokenSvc,
	}
}

func (h *tokenHandlers) GetGuestToken(w http.ResponseWriter, r *http.Request) {
	var req dto.GuestTokenRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	tok, err := h.TokenSvc.IssueGuestToken(r.Context(), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, dto.GuestTokenResponse{
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt,
	})
}

// TestConnection always answers 200; the body says what failed.
func (h *tokenHandlers) TestConnection(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, h.TokenSvc.TestConnection(r.Context()))
}
