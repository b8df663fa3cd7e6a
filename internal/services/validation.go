package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/embed"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
)

func nonEmpty() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

// tileSchemas holds the required content fields per tile variant.
var tileSchemas = map[models.TileType]map[string]any{
	models.TileChart: {
		"type":       "object",
		"required":   []string{"url"},
		"properties": map[string]any{"url": nonEmpty(), "title": map[string]any{"type": "string"}},
	},
	models.TileDashboard: {
		"type":       "object",
		"required":   []string{"url"},
		"properties": map[string]any{"url": nonEmpty(), "title": map[string]any{"type": "string"}},
	},
	models.TileText: {
		"type":     "object",
		"required": []string{"text"},
		"properties": map[string]any{
			"text":     nonEmpty(),
			"fontSize": map[string]any{"type": "integer", "minimum": 1},
			"align":    map[string]any{"enum": []string{"left", "center", "right"}},
		},
	},
	models.TileTextbox: {
		"type":     "object",
		"required": []string{"html"},
		"properties": map[string]any{
			"html":       map[string]any{"type": "string"},
			"background": map[string]any{"type": "string"},
		},
	},
	models.TileLine: {
		"type":     "object",
		"required": []string{"orientation"},
		"properties": map[string]any{
			"orientation": map[string]any{"enum": []string{"horizontal", "vertical"}},
			"thickness":   map[string]any{"type": "integer", "minimum": 1},
		},
	},
	models.TileShape: {
		"type":     "object",
		"required": []string{"shape"},
		"properties": map[string]any{
			"shape": map[string]any{"enum": []string{"rectangle", "circle", "triangle"}},
		},
	},
	models.TileImage: {
		"type":     "object",
		"required": []string{"imageUrl"},
		"properties": map[string]any{
			"imageUrl": nonEmpty(),
			"fit":      map[string]any{"enum": []string{"contain", "cover", "fill"}},
		},
	},
	models.TileKPI: {
		"type":       "object",
		"required":   []string{"label", "value"},
		"properties": map[string]any{"label": nonEmpty(), "value": nonEmpty()},
	},
}

// TileTypeCatalog lists the tile variants with the schema each must satisfy.
func TileTypeCatalog() []dto.TileTypeInfo {
	out := make([]dto.TileTypeInfo, 0, len(models.TileTypes))
	for _, t := range models.TileTypes {
		out = append(out, dto.TileTypeInfo{Type: t, Schema: tileSchemas[t]})
	}
	return out
}

type tileValidator struct {
	mu       sync.RWMutex
	compiled map[models.TileType]*jsonschema.Schema
}

func NewTileValidator() *tileValidator {
	return &tileValidator{compiled: make(map[models.TileType]*jsonschema.Schema)}
}

// ValidateTile checks the envelope, the content schema of the variant and
// the embed target of chart and dashboard tiles.
func (v *tileValidator) ValidateTile(t models.Tile) error {
	if t.ID == "" {
		return errs.NewValidationError("tile id is required")
	}
	if _, ok := tileSchemas[t.Type]; !ok {
		return errs.NewValidationError(fmt.Sprintf("unknown tile type %q", t.Type))
	}
	if t.Content == nil {
		return errs.NewValidationError(fmt.Sprintf("tile %s has no content", t.ID))
	}
	if t.Content.Kind() != t.Type {
		return errs.NewValidationError(fmt.Sprintf("tile %s content is %s, want %s", t.ID, t.Content.Kind(), t.Type))
	}
	if t.Layout.W < 1 || t.Layout.H < 1 || t.Layout.X < 0 || t.Layout.Y < 0 {
		return errs.NewValidationError(fmt.Sprintf("tile %s has an invalid layout", t.ID))
	}

	schema, err := v.schemaFor(t.Type)
	if err != nil {
		return err
	}
	payload, err := normalize(t.Content)
	if err != nil {
		return err
	}
	if err := schema.Validate(payload); err != nil {
		return errs.NewValidationError(fmt.Sprintf("tile %s content is invalid for type %s: %v", t.ID, t.Type, err))
	}
	return t.Content.Accept(embedTargetCheck{tileID: t.ID})
}

func (v *tileValidator) schemaFor(t models.TileType) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[t]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}
	data, err := json.Marshal(tileSchemas[t])
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", t, err)
	}
	compiler := jsonschema.NewCompiler()
	name := string(t) + ".json"
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", t, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", t, err)
	}
	v.mu.Lock()
	v.compiled[t] = compiled
	v.mu.Unlock()
	return compiled, nil
}

func normalize(content models.TileContent) (any, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal tile content: %w", err)
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("normalize tile content: %w", err)
	}
	return payload, nil
}

// embedTargetCheck rejects chart and dashboard tiles whose URL cannot be
// resolved to an embed target.
type embedTargetCheck struct {
	tileID string
}

func (c embedTargetCheck) VisitChart(content models.ChartContent) error {
	return c.target(content.URL)
}

func (c embedTargetCheck) VisitDashboard(content models.DashboardContent) error {
	return c.target(content.URL)
}

func (embedTargetCheck) VisitText(models.TextContent) error       { return nil }
func (embedTargetCheck) VisitTextbox(models.TextboxContent) error { return nil }
func (embedTargetCheck) VisitLine(models.LineContent) error       { return nil }
func (embedTargetCheck) VisitShape(models.ShapeContent) error     { return nil }
func (embedTargetCheck) VisitImage(models.ImageContent) error     { return nil }
func (embedTargetCheck) VisitKPI(models.KPIContent) error         { return nil }

func (c embedTargetCheck) target(raw string) error {
	if !embed.Parse(raw).Valid {
		return errs.NewValidationError(fmt.Sprintf("tile %s: invalid embed", c.tileID))
	}
	return nil
}

// ValidateDashboard checks the structural invariants of a whole tree.
func (v *tileValidator) ValidateDashboard(d *models.Dashboard) error {
	if d == nil {
		return errs.NewValidationError("dashboard is required")
	}
	if d.ID == "" {
		return errs.NewValidationError("dashboard id is required")
	}
	if d.Name == "" {
		return errs.NewValidationError(fmt.Sprintf("dashboard %s: name is required", d.ID))
	}
	if len(d.Sheets) == 0 {
		return errs.NewValidationError(fmt.Sprintf("dashboard %s: at least one sheet is required", d.ID))
	}

	sheetIDs := make(map[string]struct{}, len(d.Sheets))
	for _, s := range d.Sheets {
		if s.ID == "" {
			return errs.NewValidationError(fmt.Sprintf("dashboard %s: sheet id is required", d.ID))
		}
		if _, dup := sheetIDs[s.ID]; dup {
			return errs.NewValidationError(fmt.Sprintf("dashboard %s: duplicate sheet id %s", d.ID, s.ID))
		}
		sheetIDs[s.ID] = struct{}{}

		tileIDs := make(map[string]struct{}, len(s.Tiles))
		for _, t := range s.Tiles {
			if _, dup := tileIDs[t.ID]; dup {
				return errs.NewValidationError(fmt.Sprintf("sheet %s: duplicate tile id %s", s.ID, t.ID))
			}
			tileIDs[t.ID] = struct{}{}
			if err := v.ValidateTile(t); err != nil {
				return err
			}
		}
	}

	emails := make(map[string]struct{}, len(d.Users))
	for _, u := range d.Users {
		if err := validateMember(u.Email, u.Role); err != nil {
			return err
		}
		key := normalizeEmail(u.Email)
		if _, dup := emails[key]; dup {
			return errs.NewValidationError(fmt.Sprintf("dashboard %s: duplicate user %s", d.ID, u.Email))
		}
		emails[key] = struct{}{}
	}
	return nil
}

func validateMember(email string, role models.Role) error {
	if normalizeEmail(email) == "" {
		return errs.NewValidationError("user email is required")
	}
	if role != models.RoleViewer && role != models.RoleEditor {
		return errs.NewValidationError(fmt.Sprintf("invalid dashboard role %q", role))
	}
	return nil
}
