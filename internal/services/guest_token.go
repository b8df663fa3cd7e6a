package services

import (
	"context"
	"strings"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/embed"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/pkg/helpers"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

type supersetClient interface {
	GuestToken(ctx context.Context, resourceType, id string) (dto.GuestToken, error)
	TestConnection(ctx context.Context) dto.ConnectionStatus
}

type guestTokenService struct {
	client supersetClient
}

func NewGuestTokenService(client supersetClient) *guestTokenService {
	return &guestTokenService{client: client}
}

// IssueGuestToken asks Superset for a guest token. Superset only issues
// dashboard-scoped tokens, so every request is sent as a dashboard whatever
// type was asked for.
func (s *guestTokenService) IssueGuestToken(ctx context.Context, req dto.GuestTokenRequest) (*dto.GuestToken, error) {
	id := strings.TrimSpace(helpers.FirstNonZero(req.EmbedID, req.DashboardID, req.ChartID))
	if id == "" {
		return nil, errs.NewValidationError("one of embedId, dashboardId or chartId is required")
	}
	if s.client == nil {
		return nil, errs.NewExternalServiceError("superset", "superset is not configured", false, nil)
	}
	if req.Type != "" && req.Type != string(embed.ResourceDashboard) {
		logger.FromContext(ctx).Debug("guest token type forced to dashboard", "requested", req.Type, "resource_id", id)
	}

	tok, err := s.client.GuestToken(ctx, string(embed.ResourceDashboard), id)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *guestTokenService) TestConnection(ctx context.Context) dto.ConnectionStatus {
	if s.client == nil {
		return dto.ConnectionStatus{Error: "superset is not configured"}
	}
	return s.client.TestConnection(ctx)
}
