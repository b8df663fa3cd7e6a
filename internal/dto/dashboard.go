package dto

import (
	"github.com/GregMSThompson/insight-portal/internal/models"
)

type CreateDashboardRequest struct {
	Name    string `json:"name"`
	Theme   string `json:"theme,omitempty"`
	Visible bool   `json:"visible"`
}

// UpdateDashboardRequest carries only the fields being changed.
type UpdateDashboardRequest struct {
	Name    *string `json:"name,omitempty"`
	Theme   *string `json:"theme,omitempty"`
	Visible *bool   `json:"visible,omitempty"`
}

type SyncDashboardsRequest struct {
	Dashboards []*models.Dashboard `json:"dashboards"`
}

type SheetRequest struct {
	Name string `json:"name"`
}

type LayoutItem struct {
	TileID string `json:"i"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	W      int    `json:"w"`
	H      int    `json:"h"`
}

type UpdateLayoutRequest struct {
	Items []LayoutItem `json:"layout"`
}

type DashboardUserRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name,omitempty"`
	Role     models.Role `json:"role"`
}

type UpdateDashboardUserRequest struct {
	Email    *string      `json:"email,omitempty"`
	Password *string      `json:"password,omitempty"`
	Name     *string      `json:"name,omitempty"`
	Role     *models.Role `json:"role,omitempty"`
}

type TileTypeInfo struct {
	Type   models.TileType `json:"type"`
	Schema map[string]any  `json:"schema"`
}
