package models

import (
	"slices"
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Session is the server-side record behind an opaque session id.
// DashboardIDs scopes dashboard-level users to the dashboards whose
// credentials they signed in with; it is empty for admin and system users.
type Session struct {
	ID           string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Role         Role      `json:"role"`
	DashboardIDs []string  `json:"dashboardIds,omitempty"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Scoped reports whether the session belongs to a dashboard-level user.
func (s *Session) Scoped() bool {
	return s.Role == RoleEditor || s.Role == RoleViewer
}

func (s *Session) InScope(dashboardID string) bool {
	return slices.Contains(s.DashboardIDs, dashboardID)
}
