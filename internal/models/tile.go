package models

import (
	"encoding/json"
	"fmt"
	"maps"
)

type TileType string

const (
	TileChart     TileType = "chart"
	TileDashboard TileType = "dashboard"
	TileText      TileType = "text"
	TileTextbox   TileType = "textbox"
	TileLine      TileType = "line"
	TileShape     TileType = "shape"
	TileImage     TileType = "image"
	TileKPI       TileType = "kpi"
)

// TileTypes lists every tile variant in display order.
var TileTypes = []TileType{
	TileChart, TileDashboard, TileText, TileTextbox,
	TileLine, TileShape, TileImage, TileKPI,
}

type Layout struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Tile is one positioned item on a sheet. Content holds the variant payload
// and always reports the same kind as Type.
type Tile struct {
	ID      string
	Type    TileType
	Content TileContent
	Layout  Layout
	Config  map[string]any
}

// TileContent is implemented only by the content types in this package.
type TileContent interface {
	Kind() TileType
	Accept(v TileVisitor) error
	sealed()
}

// TileVisitor has one method per tile variant, so adding a variant breaks
// every visitor until it handles the new case.
type TileVisitor interface {
	VisitChart(c ChartContent) error
	VisitDashboard(c DashboardContent) error
	VisitText(c TextContent) error
	VisitTextbox(c TextboxContent) error
	VisitLine(c LineContent) error
	VisitShape(c ShapeContent) error
	VisitImage(c ImageContent) error
	VisitKPI(c KPIContent) error
}

type ChartContent struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type DashboardContent struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type TextContent struct {
	Text     string `json:"text"`
	FontSize int    `json:"fontSize,omitempty"`
	Align    string `json:"align,omitempty"`
}

type TextboxContent struct {
	HTML       string `json:"html"`
	Background string `json:"background,omitempty"`
}

type LineContent struct {
	Orientation string `json:"orientation"`
	Color       string `json:"color,omitempty"`
	Thickness   int    `json:"thickness,omitempty"`
}

type ShapeContent struct {
	Shape  string `json:"shape"`
	Fill   string `json:"fill,omitempty"`
	Stroke string `json:"stroke,omitempty"`
}

type ImageContent struct {
	ImageURL string `json:"imageUrl"`
	Alt      string `json:"alt,omitempty"`
	Fit      string `json:"fit,omitempty"`
}

type KPIContent struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
	Trend string `json:"trend,omitempty"`
}

func (ChartContent) Kind() TileType     { return TileChart }
func (DashboardContent) Kind() TileType { return TileDashboard }
func (TextContent) Kind() TileType      { return TileText }
func (TextboxContent) Kind() TileType   { return TileTextbox }
func (LineContent) Kind() TileType      { return TileLine }
func (ShapeContent) Kind() TileType     { return TileShape }
func (ImageContent) Kind() TileType     { return TileImage }
func (KPIContent) Kind() TileType       { return TileKPI }

func (c ChartContent) Accept(v TileVisitor) error     { return v.VisitChart(c) }
func (c DashboardContent) Accept(v TileVisitor) error { return v.VisitDashboard(c) }
func (c TextContent) Accept(v TileVisitor) error      { return v.VisitText(c) }
func (c TextboxContent) Accept(v TileVisitor) error   { return v.VisitTextbox(c) }
func (c LineContent) Accept(v TileVisitor) error      { return v.VisitLine(c) }
func (c ShapeContent) Accept(v TileVisitor) error     { return v.VisitShape(c) }
func (c ImageContent) Accept(v TileVisitor) error     { return v.VisitImage(c) }
func (c KPIContent) Accept(v TileVisitor) error       { return v.VisitKPI(c) }

func (ChartContent) sealed()     {}
func (DashboardContent) sealed() {}
func (TextContent) sealed()      {}
func (TextboxContent) sealed()   {}
func (LineContent) sealed()      {}
func (ShapeContent) sealed()     {}
func (ImageContent) sealed()     {}
func (KPIContent) sealed()       {}

// UnknownTileTypeError is returned when a payload names a tile type this
// package does not know.
type UnknownTileTypeError struct {
	Type TileType
}

func (e *UnknownTileTypeError) Error() string {
	return fmt.Sprintf("unknown tile type %q", e.Type)
}

// DecodeTileContent decodes raw content for the given tile type. A missing
// payload decodes to the zero value of the variant.
func DecodeTileContent(t TileType, raw json.RawMessage) (TileContent, error) {
	switch t {
	case TileChart:
		return decodeContent[ChartContent](raw)
	case TileDashboard:
		return decodeContent[DashboardContent](raw)
	case TileText:
		return decodeContent[TextContent](raw)
	case TileTextbox:
		return decodeContent[TextboxContent](raw)
	case TileLine:
		return decodeContent[LineContent](raw)
	case TileShape:
		return decodeContent[ShapeContent](raw)
	case TileImage:
		return decodeContent[ImageContent](raw)
	case TileKPI:
		return decodeContent[KPIContent](raw)
	default:
		return nil, &UnknownTileTypeError{Type: t}
	}
}

func decodeContent[T TileContent](raw json.RawMessage) (TileContent, error) {
	var c T
	if len(raw) == 0 || string(raw) == "null" {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return c, nil
}

type tileWire struct {
	ID      string          `json:"id"`
	Type    TileType        `json:"type"`
	Content json.RawMessage `json:"content"`
	Layout  Layout          `json:"layout"`
	Config  map[string]any  `json:"config,omitempty"`
}

func (t Tile) MarshalJSON() ([]byte, error) {
	w := tileWire{ID: t.ID, Type: t.Type, Layout: t.Layout, Config: t.Config}
	if t.Content != nil {
		raw, err := json.Marshal(t.Content)
		if err != nil {
			return nil, err
		}
		w.Content = raw
	} else {
		w.Content = json.RawMessage("null")
	}
	return json.Marshal(w)
}

func (t *Tile) UnmarshalJSON(data []byte) error {
	var w tileWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := DecodeTileContent(w.Type, w.Content)
	if err != nil {
		return err
	}
	*t = Tile{ID: w.ID, Type: w.Type, Content: content, Layout: w.Layout, Config: w.Config}
	return nil
}

// Clone copies the tile. Content variants hold only scalar fields so the
// interface value copies by value.
func (t Tile) Clone() Tile {
	out := t
	if t.Config != nil {
		out.Config = maps.Clone(t.Config)
	}
	return out
}
