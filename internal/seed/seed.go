// Package seed holds the demo data loaded when no store has any dashboards.
package seed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GregMSThompson/insight-portal/internal/models"
)

const documentVersion = "1"

//go:embed demo.yaml
var demoYAML []byte

// Document is the seed file layout. Dashboards are kept as plain maps
// until Decode turns them into models so tiles go through the same JSON
// decoding as API payloads.
type Document struct {
	Version    string           `yaml:"version"`
	Users      []User           `yaml:"users"`
	Dashboards []map[string]any `yaml:"dashboards"`
}

type User struct {
	Email    string          `yaml:"email"`
	Password string          `yaml:"password"`
	Name     string          `yaml:"name"`
	Type     models.UserType `yaml:"type"`
}

// Data is a decoded seed document. Passwords are plaintext and get
// hashed by the services on the way in.
type Data struct {
	Users      []*models.User
	Dashboards []*models.Dashboard
}

// Demo decodes the embedded demo data.
func Demo() (*Data, error) {
	return Decode(bytes.NewReader(demoYAML))
}

// Read decodes a seed file from disk.
func Read(path string) (*Data, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*Data, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("seed: document is empty")
		}
		return nil, fmt.Errorf("seed: parse document: %w", err)
	}
	if doc.Version == "" {
		doc.Version = documentVersion
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("seed: unsupported version %q", doc.Version)
	}

	data := &Data{
		Users:      make([]*models.User, 0, len(doc.Users)),
		Dashboards: make([]*models.Dashboard, 0, len(doc.Dashboards)),
	}
	for i, u := range doc.Users {
		if u.Email == "" || !u.Type.Valid() {
			return nil, fmt.Errorf("seed: user at index %d needs an email and a valid type", i)
		}
		data.Users = append(data.Users, &models.User{
			Email:    u.Email,
			Password: u.Password,
			Name:     u.Name,
			Type:     u.Type,
		})
	}
	for i, raw := range doc.Dashboards {
		d, err := toDashboard(raw)
		if err != nil {
			return nil, fmt.Errorf("seed: dashboard at index %d: %w", i, err)
		}
		data.Dashboards = append(data.Dashboards, d)
	}
	return data, nil
}

func toDashboard(raw map[string]any) (*models.Dashboard, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var d models.Dashboard
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	if d.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	return &d, nil
}

// Dashboards returns fresh copies of the demo dashboards. It matches the
// seed hook the dashboard service takes at startup.
func Dashboards() ([]*models.Dashboard, error) {
	data, err := Demo()
	if err != nil {
		return nil, err
	}
	return data.Dashboards, nil
}

// Users returns the demo portal users.
func Users() ([]*models.User, error) {
	data, err := Demo()
	if err != nil {
		return nil, err
	}
	return data.Users, nil
}
