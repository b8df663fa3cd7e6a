package services

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/helpers"
)

type fakeVerifier struct {
	token *auth.Token
	err   error
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, _ string) (*auth.Token, error) {
	return f.token, f.err
}

type authFixture struct {
	svc        *authService
	kv         *fakeKV
	dashboards *dashboardService
}

func newAuthFixture(t *testing.T, verifier idTokenVerifier) authFixture {
	t.Helper()
	ctx := helpers.TestCtx()
	hasher := testHasher()

	users := NewUserService(newFakeUserStore(), hasher)
	if _, err := users.EnsureSeeded(ctx, []*models.User{
		{Email: "admin@sdxpartners.com", Password: "admin123", Name: "Admin", Type: models.UserTypeAdmin},
		{Email: "ops@example.com", Password: "ops", Name: "Ops", Type: models.UserTypeSystem},
	}); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	dashboards, _, _ := newTestDashboardService()
	for _, name := range []string{"Sales", "Finance"} {
		d, err := dashboards.Create(ctx, dto.CreateDashboardRequest{Name: name})
		if err != nil {
			t.Fatalf("create dashboard: %v", err)
		}
		if _, err := dashboards.AddDashboardUser(ctx, d.ID, dto.DashboardUserRequest{
			Email: "guest@example.com", Password: "guestpw", Role: models.RoleViewer,
		}); err != nil {
			t.Fatalf("add dashboard user: %v", err)
		}
	}

	kv := newFakeKV()
	svc := NewAuthService(users.Store, dashboards, NewSessionService(kv, 0), hasher, verifier)
	return authFixture{svc: svc, kv: kv, dashboards: dashboards}
}

func TestLogin_AdminSeesEverything(t *testing.T) {
	f := newAuthFixture(t, nil)

	res, err := f.svc.Login(helpers.TestCtx(), dto.LoginRequest{Email: "admin@sdxpartners.com", Password: "admin123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User.Role != models.RoleAdmin {
		t.Errorf("expected admin role, got %s", res.User.Role)
	}
	if len(res.Dashboards) != 2 {
		t.Errorf("expected all dashboards, got %d", len(res.Dashboards))
	}
	if res.Session == nil || len(f.kv.data) != 1 {
		t.Error("expected one stored session")
	}
}

func TestLogin_WrongPasswordCreatesNoSession(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.Login(helpers.TestCtx(), dto.LoginRequest{Email: "admin@sdxpartners.com", Password: "nope"})

	var ue *errs.UnauthorizedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if len(f.kv.data) != 0 {
		t.Errorf("expected no session, got %d", len(f.kv.data))
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.Login(helpers.TestCtx(), dto.LoginRequest{Email: "who@example.com", Password: "x"})

	var ue *errs.UnauthorizedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
}

func TestLogin_SystemUserSeesVisibleOnly(t *testing.T) {
	f := newAuthFixture(t, nil)
	all := f.dashboards.List(helpers.TestCtx())
	if _, err := f.dashboards.Update(helpers.TestCtx(), all[0].ID, dto.UpdateDashboardRequest{Visible: helpers.Ptr(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	res, err := f.svc.Login(helpers.TestCtx(), dto.LoginRequest{Email: "OPS@example.com", Password: "ops"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User.Role != models.RoleSystem {
		t.Errorf("expected system role, got %s", res.User.Role)
	}
	if len(res.Dashboards) != 1 || res.Dashboards[0].ID != all[0].ID {
		t.Errorf("expected only the visible dashboard, got %+v", res.Dashboards)
	}
}

func TestLogin_DashboardUserIsScoped(t *testing.T) {
	f := newAuthFixture(t, nil)

	res, err := f.svc.Login(helpers.TestCtx(), dto.LoginRequest{Email: "guest@example.com", Password: "guestpw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User.Role != models.RoleViewer {
		t.Errorf("expected viewer role, got %s", res.User.Role)
	}
	if len(res.Session.DashboardIDs) != 2 || len(res.Dashboards) != 2 {
		t.Errorf("expected two scoped dashboards, got ids=%v dashboards=%d", res.Session.DashboardIDs, len(res.Dashboards))
	}
	for _, d := range res.Dashboards {
		for _, u := range d.Users {
			if u.Password != "" {
				t.Error("dashboards in a login response must be redacted")
			}
		}
	}
}

func TestSessionAndLogout(t *testing.T) {
	f := newAuthFixture(t, nil)
	res, err := f.svc.Login(helpers.TestCtx(), dto.LoginRequest{Email: "admin@sdxpartners.com", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	again, err := f.svc.Session(helpers.TestCtx(), res.Session.ID)
	if err != nil {
		t.Fatalf("Session returned error: %v", err)
	}
	if again.User.Email != "admin@sdxpartners.com" {
		t.Errorf("unexpected session user: %+v", again.User)
	}

	if err := f.svc.Logout(helpers.TestCtx(), res.Session.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, err := f.svc.Session(helpers.TestCtx(), res.Session.ID); err == nil {
		t.Error("expected session to be gone after logout")
	}
}

func TestFirebaseLogin(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		_, err := f.svc.FirebaseLogin(helpers.TestCtx(), dto.FirebaseLoginRequest{IDToken: "tok"})
		var fe *errs.ForbiddenError
		if !errors.As(err, &fe) {
			t.Fatalf("expected ForbiddenError, got %v", err)
		}
	})

	t.Run("known email", func(t *testing.T) {
		f := newAuthFixture(t, &fakeVerifier{token: &auth.Token{UID: "fb-1", Claims: map[string]interface{}{"email": "Admin@sdxpartners.com"}}})
		res, err := f.svc.FirebaseLogin(helpers.TestCtx(), dto.FirebaseLoginRequest{IDToken: "tok"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.User.Role != models.RoleAdmin {
			t.Errorf("expected admin, got %s", res.User.Role)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newAuthFixture(t, &fakeVerifier{token: &auth.Token{UID: "fb-2", Claims: map[string]interface{}{"email": "x@example.com"}}})
		_, err := f.svc.FirebaseLogin(helpers.TestCtx(), dto.FirebaseLoginRequest{IDToken: "tok"})
		var ue *errs.UnauthorizedError
		if !errors.As(err, &ue) {
			t.Fatalf("expected UnauthorizedError, got %v", err)
		}
	})

	t.Run("bad token", func(t *testing.T) {
		f := newAuthFixture(t, &fakeVerifier{err: errors.New("expired")})
		_, err := f.svc.FirebaseLogin(helpers.TestCtx(), dto.FirebaseLoginRequest{IDToken: "tok"})
		var ue *errs.UnauthorizedError
		if !errors.As(err, &ue) {
			t.Fatalf("expected UnauthorizedError, got %v", err)
		}
	})
}
