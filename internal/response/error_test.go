package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

func TestHandleError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", errs.NewNotFoundError("missing"), http.StatusNotFound, "not_found"},
		{"exists", errs.NewAlreadyExistsError("dup"), http.StatusConflict, "already_exists"},
		{"validation", errs.NewValidationError("bad"), http.StatusBadRequest, "invalid_input"},
		{"unauthorized", errs.NewUnauthorizedError("no"), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", errs.NewForbiddenError("no"), http.StatusForbidden, "forbidden"},
		{"rate limited", errs.NewRateLimitedError(), http.StatusTooManyRequests, "rate_limited"},
		{"database", errs.NewDatabaseError("read", "boom", errors.New("x")), http.StatusInternalServerError, "internal_error"},
		{"transient upstream", errs.NewExternalServiceError("superset", "down", true, nil), http.StatusServiceUnavailable, "service_unavailable"},
		{"upstream", errs.NewExternalServiceError("superset", "rejected", false, nil), http.StatusBadGateway, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	h := New(slog.New(logger.NewTestHandler(slog.LevelInfo)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			h.HandleError(rr, req, tt.err)

			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, body.Code)
			}
			if body.Success {
				t.Error("error envelope must not report success")
			}
		})
	}
}

func TestWriteSuccess_Envelope(t *testing.T) {
	h := New(slog.New(logger.NewTestHandler(slog.LevelInfo)))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.WriteSuccess(rr, req, http.StatusCreated, map[string]string{"id": "d1"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success || body.Data["id"] != "d1" {
		t.Errorf("unexpected body: %+v", body)
	}
}
