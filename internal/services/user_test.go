package services

import (
	"context"
	"errors"
	"testing"

	"github.com/GregMSThompson/insight-portal/internal/crypto"
	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/helpers"
)

// --- Fake store ---

type fakeUserStore struct {
	users     map[string]*models.User
	listErr   error
	createErr error
	updates   int
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	f := &fakeUserStore{users: make(map[string]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) ListUsers(_ context.Context, userType models.UserType) ([]*models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.User
	for _, u := range f.users {
		if userType == "" || u.Type == userType {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeUserStore) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errs.NewNotFoundError("user not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.NewNotFoundError("user not found")
}

func (f *fakeUserStore) CreateUser(_ context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) UpdateUser(_ context.Context, user *models.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return errs.NewNotFoundError("user not found")
	}
	f.updates++
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) DeleteUser(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return errs.NewNotFoundError("user not found")
	}
	delete(f.users, id)
	return nil
}

// --- Tests ---

func TestUserCreate_HashesAndRedacts(t *testing.T) {
	store := newFakeUserStore()
	svc := NewUserService(store, testHasher())

	u, err := svc.Create(helpers.TestCtx(), dto.CreateUserRequest{
		Email:    " Admin@Example.com ",
		Password: "secret",
		Name:     "Admin",
		Type:     models.UserTypeAdmin,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Password != "" {
		t.Error("returned user must not carry a password")
	}
	if u.Email != "admin@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	stored := store.users[u.ID]
	if !crypto.IsHashed(stored.Password) {
		t.Errorf("expected stored hash, got %q", stored.Password)
	}
}

func TestUserCreate_Validation(t *testing.T) {
	svc := NewUserService(newFakeUserStore(), testHasher())

	tests := []struct {
		name string
		req  dto.CreateUserRequest
	}{
		{"missing email", dto.CreateUserRequest{Password: "pw", Type: models.UserTypeAdmin}},
		{"missing password", dto.CreateUserRequest{Email: "a@example.com", Type: models.UserTypeAdmin}},
		{"bad type", dto.CreateUserRequest{Email: "a@example.com", Password: "pw", Type: "guest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(helpers.TestCtx(), tt.req)
			var ve *errs.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	store := newFakeUserStore(&models.User{ID: "u1", Email: "a@example.com", Type: models.UserTypeSystem})
	svc := NewUserService(store, testHasher())

	_, err := svc.Create(helpers.TestCtx(), dto.CreateUserRequest{Email: "A@example.com", Password: "pw", Type: models.UserTypeSystem})

	var ae *errs.AlreadyExistsError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}
}

func TestUserCreate_StoreError(t *testing.T) {
	store := newFakeUserStore()
	store.createErr = errs.NewDatabaseError("create", "failed", errors.New("boom"))
	svc := NewUserService(store, testHasher())

	_, err := svc.Create(helpers.TestCtx(), dto.CreateUserRequest{Email: "a@example.com", Password: "pw", Type: models.UserTypeSystem})

	var de *errs.DatabaseError
	if !errors.As(err, &de) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
}

func TestUserList_FiltersAndRedacts(t *testing.T) {
	store := newFakeUserStore(
		&models.User{ID: "a", Email: "a@example.com", Password: "hash", Type: models.UserTypeAdmin},
		&models.User{ID: "s", Email: "s@example.com", Password: "hash", Type: models.UserTypeSystem},
	)
	svc := NewUserService(store, testHasher())

	users, err := svc.List(helpers.TestCtx(), models.UserTypeSystem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].ID != "s" {
		t.Fatalf("expected only the system user, got %+v", users)
	}
	if users[0].Password != "" {
		t.Error("listed user must be redacted")
	}

	if _, err := svc.List(helpers.TestCtx(), "robot"); err == nil {
		t.Error("expected error for invalid type filter")
	}
}

func TestUserUpdate(t *testing.T) {
	store := newFakeUserStore(
		&models.User{ID: "u1", Email: "a@example.com", Name: "A", Type: models.UserTypeSystem},
		&models.User{ID: "u2", Email: "b@example.com", Type: models.UserTypeSystem},
	)
	svc := NewUserService(store, testHasher())

	admin := models.UserTypeAdmin
	u, err := svc.Update(helpers.TestCtx(), "u1", dto.UpdateUserRequest{Type: &admin, Password: helpers.Ptr("new")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Type != models.UserTypeAdmin || u.Name != "A" {
		t.Errorf("unexpected user: %+v", u)
	}
	if !crypto.IsHashed(store.users["u1"].Password) {
		t.Error("expected new password to be hashed")
	}

	_, err = svc.Update(helpers.TestCtx(), "u1", dto.UpdateUserRequest{Email: helpers.Ptr("b@example.com")})
	var ae *errs.AlreadyExistsError
	if !errors.As(err, &ae) {
		t.Errorf("expected AlreadyExistsError on email clash, got %v", err)
	}

	if _, err := svc.Update(helpers.TestCtx(), "missing", dto.UpdateUserRequest{}); !errs.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestUserDelete(t *testing.T) {
	store := newFakeUserStore(&models.User{ID: "u1", Email: "a@example.com", Type: models.UserTypeSystem})
	svc := NewUserService(store, testHasher())

	if err := svc.Delete(helpers.TestCtx(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(helpers.TestCtx(), "u1"); !errs.IsNotFound(err) {
		t.Errorf("expected NotFoundError on second delete, got %v", err)
	}
}

func TestEnsureSeeded(t *testing.T) {
	store := newFakeUserStore()
	svc := NewUserService(store, testHasher())
	seeds := []*models.User{{Email: "admin@example.com", Password: "admin123", Name: "Admin", Type: models.UserTypeAdmin}}

	n, err := svc.EnsureSeeded(helpers.TestCtx(), seeds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || len(store.users) != 1 {
		t.Fatalf("expected one seeded user, got n=%d stored=%d", n, len(store.users))
	}

	n, err = svc.EnsureSeeded(helpers.TestCtx(), seeds)
	if err != nil || n != 0 {
		t.Errorf("expected no-op on populated store, got n=%d err=%v", n, err)
	}
}

func TestMigratePasswords(t *testing.T) {
	hasher := testHasher()
	hashed, _ := hasher.Hash("already")
	store := newFakeUserStore(
		&models.User{ID: "plain", Email: "p@example.com", Password: "plaintext", Type: models.UserTypeSystem},
		&models.User{ID: "hashed", Email: "h@example.com", Password: hashed, Type: models.UserTypeSystem},
	)
	svc := NewUserService(store, hasher)

	n, err := svc.MigratePasswords(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || store.updates != 1 {
		t.Errorf("expected one migration, got n=%d updates=%d", n, store.updates)
	}
	if !hasher.Compare(store.users["plain"].Password, "plaintext") {
		t.Error("migrated hash should verify against the old plaintext")
	}
}
