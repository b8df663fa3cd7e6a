package services

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

type authUsers interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type authDashboards interface {
	Memberships(ctx context.Context, email string) []Membership
	ListAccessible(ctx context.Context, sess *models.Session) []*models.Dashboard
}

type authSessions interface {
	Create(ctx context.Context, identity models.Session) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// idTokenVerifier is satisfied by *auth.Client.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type authService struct {
	users      authUsers
	dashboards authDashboards
	sessions   authSessions
	hasher     passwordHasher
	firebase   idTokenVerifier
}

// NewAuthService wires login. firebase may be nil, which disables SSO.
func NewAuthService(users authUsers, dashboards authDashboards, sessions authSessions, hasher passwordHasher, firebase idTokenVerifier) *authService {
	return &authService{
		users:      users,
		dashboards: dashboards,
		sessions:   sessions,
		hasher:     hasher,
		firebase:   firebase,
	}
}

// Login checks portal users first, then dashboard-level users. A dashboard
// user is scoped to the dashboards whose entry matched the password.
func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResult, error) {
	log := logger.FromContext(ctx)
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return dto.AuthResult{}, errs.NewUnauthorizedError("invalid credentials")
	}

	identity, ok, err := s.matchUser(ctx, email, req.Password)
	if err != nil {
		return dto.AuthResult{}, err
	}
	if !ok {
		identity, ok = s.matchMembers(ctx, email, req.Password)
	}
	if !ok {
		log.Warn("login rejected", "email", email)
		return dto.AuthResult{}, errs.NewUnauthorizedError("invalid credentials")
	}

	sess, err := s.sessions.Create(ctx, identity)
	if err != nil {
		return dto.AuthResult{}, err
	}
	log.Info("login succeeded", "user_id", sess.UserID, "role", sess.Role)
	return s.result(ctx, sess), nil
}

// FirebaseLogin exchanges a Firebase ID token for a portal session.
// Only portal users can sign in this way.
func (s *authService) FirebaseLogin(ctx context.Context, req dto.FirebaseLoginRequest) (dto.AuthResult, error) {
	if s.firebase == nil {
		return dto.AuthResult{}, errs.NewForbiddenError("firebase sign-in is not enabled")
	}
	if req.IDToken == "" {
		return dto.AuthResult{}, errs.NewValidationError("idToken is required")
	}
	token, err := s.firebase.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return dto.AuthResult{}, errs.NewUnauthorizedError("invalid or expired token")
	}
	email, _ := token.Claims["email"].(string)
	email = normalizeEmail(email)
	if email == "" {
		return dto.AuthResult{}, errs.NewUnauthorizedError("token has no email")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errs.IsNotFound(err) {
		return dto.AuthResult{}, errs.NewUnauthorizedError("no portal account for this email")
	}
	if err != nil {
		return dto.AuthResult{}, err
	}

	sess, err := s.sessions.Create(ctx, userIdentity(user))
	if err != nil {
		return dto.AuthResult{}, err
	}
	logger.FromContext(ctx).Info("firebase login succeeded", "user_id", sess.UserID, "firebase_uid", token.UID)
	return s.result(ctx, sess), nil
}

func (s *authService) Session(ctx context.Context, id string) (dto.AuthResult, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return dto.AuthResult{}, err
	}
	return s.result(ctx, sess), nil
}

func (s *authService) Logout(ctx context.Context, id string) error {
	if id == "" {
		return errs.NewValidationError("sessionId is required")
	}
	return s.sessions.Delete(ctx, id)
}

func (s *authService) matchUser(ctx context.Context, email, password string) (models.Session, bool, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errs.IsNotFound(err) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, err
	}
	if !s.hasher.Compare(user.Password, password) {
		return models.Session{}, false, nil
	}
	return userIdentity(user), true, nil
}

func (s *authService) matchMembers(ctx context.Context, email, password string) (models.Session, bool) {
	identity := models.Session{Email: email, Role: models.RoleViewer}
	for _, m := range s.dashboards.Memberships(ctx, email) {
		if !s.hasher.Compare(m.User.Password, password) {
			continue
		}
		if identity.UserID == "" {
			identity.UserID = m.User.ID
			identity.Name = m.User.Name
		}
		if m.User.Role == models.RoleEditor {
			identity.Role = models.RoleEditor
		}
		identity.DashboardIDs = append(identity.DashboardIDs, m.DashboardID)
	}
	return identity, len(identity.DashboardIDs) > 0
}

func userIdentity(u *models.User) models.Session {
	role := models.RoleSystem
	if u.Type == models.UserTypeAdmin {
		role = models.RoleAdmin
	}
	return models.Session{UserID: u.ID, Email: u.Email, Name: u.Name, Role: role}
}

func (s *authService) result(ctx context.Context, sess *models.Session) dto.AuthResult {
	return dto.AuthResult{
		User:       dto.AuthUser{ID: sess.UserID, Email: sess.Email, Name: sess.Name, Role: sess.Role},
		Session:    sess,
		Dashboards: s.dashboards.ListAccessible(ctx, sess),
	}
}
