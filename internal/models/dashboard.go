package models

import (
	"strings"
	"time"
)

type Dashboard struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Theme     string          `json:"theme,omitempty"`
	Visible   bool            `json:"visible"`
	Sheets    []Sheet         `json:"sheets"`
	Users     []DashboardUser `json:"users"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Sheet struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tiles []Tile `json:"tiles"`
}

// DashboardUser is an account scoped to a single dashboard.
type DashboardUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role"`
}

func (d *Dashboard) Sheet(id string) (*Sheet, int) {
	for i := range d.Sheets {
		if d.Sheets[i].ID == id {
			return &d.Sheets[i], i
		}
	}
	return nil, -1
}

func (s *Sheet) Tile(id string) (*Tile, int) {
	for i := range s.Tiles {
		if s.Tiles[i].ID == id {
			return &s.Tiles[i], i
		}
	}
	return nil, -1
}

func (d *Dashboard) User(id string) (*DashboardUser, int) {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i], i
		}
	}
	return nil, -1
}

// Member looks a dashboard user up by email, case-insensitively.
func (d *Dashboard) Member(email string) (*DashboardUser, bool) {
	for i := range d.Users {
		if strings.EqualFold(d.Users[i].Email, email) {
			return &d.Users[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy that can be mutated without touching d.
func (d *Dashboard) Clone() *Dashboard {
	out := *d
	out.Sheets = make([]Sheet, len(d.Sheets))
	for i, s := range d.Sheets {
		out.Sheets[i] = s.clone()
	}
	out.Users = append(make([]DashboardUser, 0, len(d.Users)), d.Users...)
	return &out
}

// Redacted returns a deep copy with dashboard user password hashes removed.
func (d *Dashboard) Redacted() *Dashboard {
	out := d.Clone()
	for i := range out.Users {
		out.Users[i].Password = ""
	}
	return out
}

func (s Sheet) clone() Sheet {
	out := s
	out.Tiles = make([]Tile, len(s.Tiles))
	for i, t := range s.Tiles {
		out.Tiles[i] = t.Clone()
	}
	return out
}
