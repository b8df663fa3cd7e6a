package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
)

const (
	usersFile      = "users.json"
	dashboardsFile = "dashboards.json"
)

// usersDocument is the on-disk layout of users.json.
type usersDocument struct {
	AdminUsers  []*models.User `json:"adminUsers"`
	SystemUsers []*models.User `json:"systemUsers"`
}

// fileStore keeps portal data as JSON files in one directory. Writes go
// through a temp file and a rename so readers never see a partial file.
type fileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) Dir() string { return s.dir }

func (s *fileStore) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *fileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

// --- Dashboards ---

type dashboardFile struct {
	fs *fileStore
}

// Dashboards returns the local dashboard snapshot backed by dashboards.json.
func (s *fileStore) Dashboards() *dashboardFile {
	return &dashboardFile{fs: s}
}

func (f *dashboardFile) Load(_ context.Context) ([]*models.Dashboard, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	var out []*models.Dashboard
	if _, err := f.fs.readJSON(dashboardsFile, &out); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to read dashboards file", err)
	}
	return out, nil
}

func (f *dashboardFile) Save(_ context.Context, dashboards []*models.Dashboard) error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if dashboards == nil {
		dashboards = []*models.Dashboard{}
	}
	if err := f.fs.writeJSON(dashboardsFile, dashboards); err != nil {
		return errs.NewDatabaseError("update", "failed to write dashboards file", err)
	}
	return nil
}

// --- Users ---

type fileUserStore struct {
	fs *fileStore
}

// Users returns a user store backed by users.json.
func (s *fileStore) Users() *fileUserStore {
	return &fileUserStore{fs: s}
}

func (u *fileUserStore) load() ([]*models.User, error) {
	var doc usersDocument
	if _, err := u.fs.readJSON(usersFile, &doc); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to read users file", err)
	}
	users := make([]*models.User, 0, len(doc.AdminUsers)+len(doc.SystemUsers))
	for _, a := range doc.AdminUsers {
		a.Type = models.UserTypeAdmin
		users = append(users, a)
	}
	for _, su := range doc.SystemUsers {
		su.Type = models.UserTypeSystem
		users = append(users, su)
	}
	return users, nil
}

func (u *fileUserStore) save(users []*models.User) error {
	doc := usersDocument{AdminUsers: []*models.User{}, SystemUsers: []*models.User{}}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	for _, usr := range users {
		if usr.Type == models.UserTypeAdmin {
			doc.AdminUsers = append(doc.AdminUsers, usr)
		} else {
			doc.SystemUsers = append(doc.SystemUsers, usr)
		}
	}
	if err := u.fs.writeJSON(usersFile, doc); err != nil {
		return errs.NewDatabaseError("update", "failed to write users file", err)
	}
	return nil
}

func (u *fileUserStore) ListUsers(_ context.Context, userType models.UserType) ([]*models.User, error) {
	u.fs.mu.Lock()
	defer u.fs.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(users))
	for _, usr := range users {
		if userType == "" || usr.Type == userType {
			out = append(out, usr)
		}
	}
	return out, nil
}

func (u *fileUserStore) GetUser(_ context.Context, id string) (*models.User, error) {
	u.fs.mu.Lock()
	defer u.fs.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return nil, err
	}
	for _, usr := range users {
		if usr.ID == id {
			return usr, nil
		}
	}
	return nil, errs.NewNotFoundError("user not found")
}

func (u *fileUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u.fs.mu.Lock()
	defer u.fs.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return nil, err
	}
	for _, usr := range users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return nil, errs.NewNotFoundError("user not found")
}

func (u *fileUserStore) CreateUser(_ context.Context, user *models.User) error {
	u.fs.mu.Lock()
	defer u.fs.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return err
	}
	for _, usr := range users {
		if usr.ID == user.ID {
			return errs.NewAlreadyExistsError("user already exists")
		}
	}
	cp := *user
	return u.save(append(users, &cp))
}

func (u *fileUserStore) UpdateUser(_ context.Context, user *models.User) error {
	u.fs.mu.Lock()
	defer u.fs.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return err
	}
	for i, usr := range users {
		if usr.ID == user.ID {
			cp := *user
			users[i] = &cp
			return u.save(users)
		}
	}
	return errs.NewNotFoundError("user not found")
}

func (u *fileUserStore) DeleteUser(_ context.Context, id string) error {
	u.fs.mu.Lock()
	defer u.fs.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return err
	}
	for i, usr := range users {
		if usr.ID == id {
			return u.save(append(users[:i], users[i+1:]...))
		}
	}
	return errs.NewNotFoundError("user not found")
}
