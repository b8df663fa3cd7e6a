package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/middleware"
	"github.com/GregMSThompson/insight-portal/internal/models"
)

type stubAuthService struct {
	loginReq    dto.LoginRequest
	firebaseReq dto.FirebaseLoginRequest
	sessionID   string
	logoutID    string
	result      dto.AuthResult
	err         error
}

func (s *stubAuthService) Login(_ context.Context, req dto.LoginRequest) (dto.AuthResult, error) {
	s.loginReq = req
	return s.result, s.err
}

func (s *stubAuthService) FirebaseLogin(_ context.Context, req dto.FirebaseLoginRequest) (dto.AuthResult, error) {
	s.firebaseReq = req
	return s.result, s.err
}

func (s *stubAuthService) Session(_ context.Context, id string) (dto.AuthResult, error) {
	s.sessionID = id
	return s.result, s.err
}

func (s *stubAuthService) Logout(_ context.Context, id string) error {
	s.logoutID = id
	return s.err
}

func TestLogin_OK(t *testing.T) {
	svc := &stubAuthService{result: dto.AuthResult{Session: &models.Session{ID: "s1", Role: models.RoleAdmin}}}
	resp := &stubResponseHandler{}
	h := NewAuthHandlers(&Deps{ResponseHandler: resp, AuthSvc: svc})

	body := `{"email":"admin@sdxpartners.com","password":"admin123"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	h.Login(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess 200, got called=%v status=%d", resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
	if svc.loginReq.Email != "admin@sdxpartners.com" || svc.loginReq.Password != "admin123" {
		t.Errorf("unexpected login request: %+v", svc.loginReq)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	svc := &stubAuthService{err: errs.NewUnauthorizedError("invalid email or password")}
	resp := &stubResponseHandler{}
	h := NewAuthHandlers(&Deps{ResponseHandler: resp, AuthSvc: svc})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a","password":"b"}`))
	h.Login(httptest.NewRecorder(), req)

	if _, ok := resp.handleError.(*errs.UnauthorizedError); !ok {
		t.Fatalf("expected UnauthorizedError, got %T", resp.handleError)
	}
}

func TestLogin_InvalidJSON(t *testing.T) {
	svc := &stubAuthService{}
	resp := &stubResponseHandler{}
	h := NewAuthHandlers(&Deps{ResponseHandler: resp, AuthSvc: svc})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{bad`))
	h.Login(httptest.NewRecorder(), req)

	if _, ok := resp.handleError.(*errs.ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", resp.handleError)
	}
	if svc.loginReq.Email != "" {
		t.Error("service should not be called")
	}
}

func TestFirebaseLogin(t *testing.T) {
	svc := &stubAuthService{}
	resp := &stubResponseHandler{}
	h := NewAuthHandlers(&Deps{ResponseHandler: resp, AuthSvc: svc})

	req := httptest.NewRequest(http.MethodPost, "/firebase", strings.NewReader(`{"idToken":"tok"}`))
	h.FirebaseLogin(httptest.NewRecorder(), req)

	if svc.firebaseReq.IDToken != "tok" || !resp.writeSuccessCalled {
		t.Errorf("expected id token to reach the service, got %+v", svc.firebaseReq)
	}
}

func TestLogout_FallsBackToHeader(t *testing.T) {
	svc := &stubAuthService{}
	resp := &stubResponseHandler{}
	h := NewAuthHandlers(&Deps{ResponseHandler: resp, AuthSvc: svc})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set(middleware.SessionHeader, "from-header")
	h.Logout(httptest.NewRecorder(), req)

	if svc.logoutID != "from-header" {
		t.Errorf("expected header session id, got %q", svc.logoutID)
	}

	req = httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(`{"sessionId":"from-body"}`))
	req.Header.Set(middleware.SessionHeader, "from-header")
	h.Logout(httptest.NewRecorder(), req)
	if svc.logoutID != "from-body" {
		t.Errorf("body should win, got %q", svc.logoutID)
	}
}

func TestGetSession(t *testing.T) {
	svc := &stubAuthService{err: errs.NewNotFoundError("session not found")}
	resp := &stubResponseHandler{}
	h := NewAuthHandlers(&Deps{ResponseHandler: resp, AuthSvc: svc})

	req := httptest.NewRequest(http.MethodGet, "/session/s9", nil)
	req = withChiParam(req, "sessionId", "s9")
	h.GetSession(httptest.NewRecorder(), req)

	if svc.sessionID != "s9" {
		t.Errorf("expected s9, got %q", svc.sessionID)
	}
	if !errs.IsNotFound(resp.handleError) {
		t.Errorf("expected NotFound, got %v", resp.handleError)
	}
}
