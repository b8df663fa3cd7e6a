package dto

import "github.com/GregMSThompson/insight-portal/internal/models"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LogoutRequest struct {
	SessionID string `json:"sessionId"`
}

type FirebaseLoginRequest struct {
	IDToken string `json:"idToken"`
}

type AuthUser struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name,omitempty"`
	Role  models.Role `json:"role"`
}

// AuthResult is returned by login and session lookups.
type AuthResult struct {
	User       AuthUser            `json:"user"`
	Session    *models.Session     `json:"session"`
	Dashboards []*models.Dashboard `json:"dashboards"`
}
