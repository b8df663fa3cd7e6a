package dto

import "time"

// GuestTokenRequest names the resource to embed. Any one of the ids is
// enough; EmbedID wins when several are set.
type GuestTokenRequest struct {
	EmbedID     string `json:"embedId,omitempty"`
	DashboardID string `json:"dashboardId,omitempty"`
	ChartID     string `json:"chartId,omitempty"`
	Type        string `json:"embedType,omitempty"`
}

type GuestToken struct {
	Token        string    `json:"token"`
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// GuestTokenResponse is the public shape of an issued guest token.
type GuestTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ConnectionStatus struct {
	Reachable     bool   `json:"reachable"`
	Authenticated bool   `json:"authenticated"`
	BaseURL       string `json:"baseUrl"`
	LatencyMS     int64  `json:"latencyMs"`
	Error         string `json:"error,omitempty"`
}
