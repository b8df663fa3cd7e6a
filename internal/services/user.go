package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GregMSThompson/insight-portal/internal/crypto"
	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/helpers"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

type userStore interface {
	ListUsers(ctx context.Context, userType models.UserType) ([]*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	Store  userStore
	Hasher passwordHasher
	now    func() time.Time
}

func NewUserService(store userStore, hasher passwordHasher) *userService {
	return &userService{
		Store:  store,
		Hasher: hasher,
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// List returns users of one type, or all users when userType is empty.
func (s *userService) List(ctx context.Context, userType models.UserType) ([]*models.User, error) {
	if userType != "" && !userType.Valid() {
		return nil, errs.NewValidationError(fmt.Sprintf("invalid user type %q", userType))
	}
	users, err := s.Store.ListUsers(ctx, userType)
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Redacted())
	}
	return out, nil
}

func (s *userService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Redacted(), nil
}

func (s *userService) Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	log := logger.FromContext(ctx)

	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, errs.NewValidationError("email is required")
	}
	if req.Password == "" {
		return nil, errs.NewValidationError("password is required")
	}
	if !req.Type.Valid() {
		return nil, errs.NewValidationError(fmt.Sprintf("invalid user type %q", req.Type))
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  hash,
		Name:      strings.TrimSpace(req.Name),
		Type:      req.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		log.Error("failed to create user in store", "error", err)
		return nil, err
	}

	log.Info("user created", "user_id", user.ID, "type", user.Type)
	return user.Redacted(), nil
}

func (s *userService) Update(ctx context.Context, id string, req dto.UpdateUserRequest) (*models.User, error) {
	user, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email == "" {
			return nil, errs.NewValidationError("email is required")
		}
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
		}
		user.Email = email
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, errs.NewValidationError(fmt.Sprintf("invalid user type %q", *req.Type))
		}
		user.Type = *req.Type
	}
	if req.Password != nil {
		if *req.Password == "" {
			return nil, errs.NewValidationError("password must not be empty")
		}
		if user.Password, err = s.Hasher.Hash(*req.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	user.Name = strings.TrimSpace(helpers.ValueOr(req.Name, user.Name))
	user.UpdatedAt = s.now()

	if err := s.Store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user.Redacted(), nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if err := s.Store.DeleteUser(ctx, id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("user deleted", "user_id", id)
	return nil
}

// EnsureSeeded creates the given users when the store holds none.
func (s *userService) EnsureSeeded(ctx context.Context, seeds []*models.User) (int, error) {
	existing, err := s.Store.ListUsers(ctx, "")
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	created := 0
	for _, seed := range seeds {
		_, err := s.Create(ctx, dto.CreateUserRequest{
			Email:    seed.Email,
			Password: seed.Password,
			Name:     seed.Name,
			Type:     seed.Type,
		})
		if err != nil {
			return created, fmt.Errorf("seed user %s: %w", seed.Email, err)
		}
		created++
	}
	return created, nil
}

// MigratePasswords hashes any password still stored in plaintext.
func (s *userService) MigratePasswords(ctx context.Context) (int, error) {
	users, err := s.Store.ListUsers(ctx, "")
	if err != nil {
		return 0, err
	}
	migrated := 0
	for _, u := range users {
		if u.Password == "" || crypto.IsHashed(u.Password) {
			continue
		}
		if u.Password, err = s.Hasher.Hash(u.Password); err != nil {
			return migrated, fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		u.UpdatedAt = s.now()
		if err := s.Store.UpdateUser(ctx, u); err != nil {
			return migrated, err
		}
		migrated++
	}
	if migrated > 0 {
		logger.FromContext(ctx).Info("migrated plaintext passwords", "count", migrated)
	}
	return migrated, nil
}

func (s *userService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.Store.GetUserByEmail(ctx, email)
	switch {
	case errs.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return errs.NewAlreadyExistsError("a user with this email already exists")
	}
	return nil
}
