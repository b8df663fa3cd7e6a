package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/embed"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

type embedRenderer interface {
	Render(ctx context.Context, req embed.Request) embed.Frame
}

type embedTiles interface {
	Tile(ctx context.Context, id, sheetID, tileID string) (models.Tile, error)
	Authorize(ctx context.Context, sess *models.Session, id string, need Access) error
}

type embedService struct {
	renderer embedRenderer
	toggles  keyValueStore
	tiles    embedTiles
}

func NewEmbedService(renderer embedRenderer, toggles keyValueStore, tiles embedTiles) *embedService {
	return &embedService{renderer: renderer, toggles: toggles, tiles: tiles}
}

func filterKey(sess *models.Session, resourceKey string) string {
	return "embed:filter:" + sess.UserID + ":" + resourceKey
}

func (s *embedService) Parse(ctx context.Context, input string) embed.Target {
	return embed.Parse(input)
}

// Resolve renders a frame for a raw embed input or a stored tile, applying
// the date range unless the caller switched filtering off for the resource.
func (s *embedService) Resolve(ctx context.Context, sess *models.Session, req dto.ResolveEmbedRequest) (embed.Frame, error) {
	rng, err := embed.ParseDateRange(req.From, req.To)
	if err != nil {
		return embed.Frame{}, errs.NewValidationError(err.Error())
	}

	input := req.Input
	if req.TileID != "" {
		if input, err = s.tileInput(ctx, sess, req); err != nil {
			return embed.Frame{}, err
		}
	}
	if input == "" {
		return embed.Frame{}, errs.NewValidationError("input or tileId is required")
	}

	target := embed.Parse(input)
	frame := s.renderer.Render(ctx, embed.Request{
		Target:        target,
		Range:         rng,
		FilterEnabled: s.FilterEnabled(ctx, sess, target.Key()),
	})
	logger.FromContext(ctx).Debug("embed resolved", "resource", target.Key(), "state", frame.State, "mode", frame.Mode)
	return frame, nil
}

func (s *embedService) tileInput(ctx context.Context, sess *models.Session, req dto.ResolveEmbedRequest) (string, error) {
	if err := s.tiles.Authorize(ctx, sess, req.DashboardID, AccessView); err != nil {
		return "", err
	}
	tile, err := s.tiles.Tile(ctx, req.DashboardID, req.SheetID, req.TileID)
	if err != nil {
		return "", err
	}
	src := &tileEmbedSource{}
	if err := tile.Content.Accept(src); err != nil {
		return "", err
	}
	return src.url, nil
}

// FilterEnabled reports the stored toggle for a resource. Filtering is on
// unless it was switched off.
func (s *embedService) FilterEnabled(ctx context.Context, sess *models.Session, resourceKey string) bool {
	raw, err := s.toggles.Get(ctx, filterKey(sess, resourceKey))
	if err != nil {
		if !errs.IsNotFound(err) {
			logger.FromContext(ctx).Warn("failed to read filter toggle", "resource", resourceKey, "error", err)
		}
		return true
	}
	enabled, err := strconv.ParseBool(raw)
	return err != nil || enabled
}

func (s *embedService) SetFilterEnabled(ctx context.Context, sess *models.Session, resourceKey string, enabled bool) (dto.FilterToggle, error) {
	if resourceKey == "" {
		return dto.FilterToggle{}, errs.NewValidationError("resource key is required")
	}
	if err := s.toggles.Set(ctx, filterKey(sess, resourceKey), strconv.FormatBool(enabled), 0); err != nil {
		return dto.FilterToggle{}, errs.NewDatabaseError("update", "failed to store filter toggle", err)
	}
	return dto.FilterToggle{ResourceKey: resourceKey, Enabled: enabled}, nil
}

// tileEmbedSource pulls the embed URL out of tiles that show Superset content.
type tileEmbedSource struct {
	url string
}

func (t *tileEmbedSource) VisitChart(c models.ChartContent) error {
	t.url = c.URL
	return nil
}

func (t *tileEmbedSource) VisitDashboard(c models.DashboardContent) error {
	t.url = c.URL
	return nil
}

func (t *tileEmbedSource) VisitText(models.TextContent) error { return notEmbeddable(models.TileText) }
func (t *tileEmbedSource) VisitTextbox(models.TextboxContent) error {
	return notEmbeddable(models.TileTextbox)
}
func (t *tileEmbedSource) VisitLine(models.LineContent) error   { return notEmbeddable(models.TileLine) }
func (t *tileEmbedSource) VisitShape(models.ShapeContent) error { return notEmbeddable(models.TileShape) }
func (t *tileEmbedSource) VisitImage(models.ImageContent) error { return notEmbeddable(models.TileImage) }
func (t *tileEmbedSource) VisitKPI(models.KPIContent) error     { return notEmbeddable(models.TileKPI) }

func notEmbeddable(t models.TileType) error {
	return errs.NewValidationError(fmt.Sprintf("%s tiles have no embed", t))
}
