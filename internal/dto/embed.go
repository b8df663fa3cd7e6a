package dto

type ParseEmbedRequest struct {
	Input string `json:"input"`
}

// ResolveEmbedRequest renders either a raw input or a stored tile.
// From and To use the YYYY-MM-DD layout.
type ResolveEmbedRequest struct {
	Input       string `json:"input,omitempty"`
	DashboardID string `json:"dashboardId,omitempty"`
	SheetID     string `json:"sheetId,omitempty"`
	TileID      string `json:"tileId,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

type FilterToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type FilterToggle struct {
	ResourceKey string `json:"resourceKey"`
	Enabled     bool   `json:"enabled"`
}
