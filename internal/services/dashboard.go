package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GregMSThompson/insight-portal/internal/crypto"
	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/helpers"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const firstSheetName = "Sheet 1"

// dashboardSnapshot is the local copy written on every mutation.
type dashboardSnapshot interface {
	Load(ctx context.Context) ([]*models.Dashboard, error)
	Save(ctx context.Context, dashboards []*models.Dashboard) error
}

// dashboardReplicator forwards mutations to the remote store without blocking.
type dashboardReplicator interface {
	Put(d *models.Dashboard)
	Delete(id string)
	ReplaceAll(dashboards []*models.Dashboard)
}

// dashboardSource is the remote store read once at startup.
type dashboardSource interface {
	List(ctx context.Context) ([]*models.Dashboard, error)
}

type dashboardValidator interface {
	ValidateTile(t models.Tile) error
	ValidateDashboard(d *models.Dashboard) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// Access is the level of rights an operation needs on a dashboard.
type Access int

const (
	AccessView Access = iota
	AccessEdit
	AccessManage
)

// Membership is a dashboard user entry matched by email.
type Membership struct {
	DashboardID string
	User        models.DashboardUser
}

type dashboardService struct {
	local      dashboardSnapshot
	replicator dashboardReplicator
	validator  dashboardValidator
	hasher     passwordHasher
	now        func() time.Time
	newID      func() string

	mu         sync.RWMutex
	dashboards map[string]*models.Dashboard
}

func NewDashboardService(local dashboardSnapshot, replicator dashboardReplicator, validator dashboardValidator, hasher passwordHasher) *dashboardService {
	return &dashboardService{
		local:      local,
		replicator: replicator,
		validator:  validator,
		hasher:     hasher,
		now:        time.Now,
		newID:      uuid.NewString,
		dashboards: make(map[string]*models.Dashboard),
	}
}

// --- Loading ---

// Hydrate fills the in-memory tree from the remote store, then the local
// snapshot, then seed data, using the first source that has dashboards.
// It returns the name of the source used.
func (s *dashboardService) Hydrate(ctx context.Context, remote dashboardSource, seed func() ([]*models.Dashboard, error)) (string, error) {
	log := logger.FromContext(ctx)

	var (
		loaded      []*models.Dashboard
		source      string
		remoteEmpty bool
	)
	if remote != nil {
		ds, err := remote.List(ctx)
		switch {
		case err != nil:
			log.Warn("remote dashboard load failed, falling back to local snapshot", "error", err)
		case len(ds) > 0:
			loaded, source = ds, "remote"
		default:
			remoteEmpty = true
		}
	}
	if loaded == nil {
		ds, err := s.local.Load(ctx)
		if err != nil {
			log.Warn("local dashboard load failed", "error", err)
		} else if len(ds) > 0 {
			loaded, source = ds, "local"
		}
	}
	if loaded == nil && seed != nil {
		ds, err := seed()
		if err != nil {
			return "", fmt.Errorf("seed dashboards: %w", err)
		}
		loaded, source = ds, "seed"
	}

	migrated := false
	for _, d := range loaded {
		changed, err := s.migrate(d)
		if err != nil {
			return "", err
		}
		migrated = migrated || changed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboards = make(map[string]*models.Dashboard, len(loaded))
	for _, d := range loaded {
		s.dashboards[d.ID] = d
	}

	if source != "local" || migrated {
		s.saveLocked(ctx)
	}
	if remoteEmpty && len(loaded) > 0 {
		s.replicator.ReplaceAll(s.snapshotLocked())
	}
	log.Info("dashboards loaded", "source", source, "count", len(loaded), "migrated", migrated)
	return source, nil
}

// migrate patches records written by older versions: missing users or
// sheets and plaintext member passwords.
func (s *dashboardService) migrate(d *models.Dashboard) (bool, error) {
	changed := false
	if d.Users == nil {
		d.Users = []models.DashboardUser{}
		changed = true
	}
	if len(d.Sheets) == 0 {
		d.Sheets = []models.Sheet{{ID: s.newID(), Name: firstSheetName, Tiles: []models.Tile{}}}
		changed = true
	}
	for i := range d.Sheets {
		if d.Sheets[i].Tiles == nil {
			d.Sheets[i].Tiles = []models.Tile{}
		}
	}
	for i := range d.Users {
		u := &d.Users[i]
		if u.ID == "" {
			u.ID = s.newID()
			changed = true
		}
		if u.Password != "" && !crypto.IsHashed(u.Password) {
			hash, err := s.hasher.Hash(u.Password)
			if err != nil {
				return false, fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			u.Password = hash
			changed = true
		}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
		changed = true
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	return changed, nil
}

// --- Reads ---

func (s *dashboardService) List(ctx context.Context) []*models.Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return redactAll(s.snapshotLocked())
}

func (s *dashboardService) ListAccessible(ctx context.Context, sess *models.Session) []*models.Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Dashboard{}
	for _, d := range s.snapshotLocked() {
		if canAccess(d, sess, AccessView) {
			out = append(out, d.Redacted())
		}
	}
	return out
}

func (s *dashboardService) Get(ctx context.Context, id string) (*models.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dashboards[id]
	if !ok {
		return nil, errs.NewNotFoundError("dashboard not found")
	}
	return d.Redacted(), nil
}

func (s *dashboardService) Tile(ctx context.Context, id, sheetID, tileID string) (models.Tile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dashboards[id]
	if !ok {
		return models.Tile{}, errs.NewNotFoundError("dashboard not found")
	}
	sheet, _ := d.Sheet(sheetID)
	if sheet == nil {
		return models.Tile{}, errs.NewNotFoundError("sheet not found")
	}
	tile, _ := sheet.Tile(tileID)
	if tile == nil {
		return models.Tile{}, errs.NewNotFoundError("tile not found")
	}
	return tile.Clone(), nil
}

// Authorize checks that sess may perform an operation needing the given
// access on dashboard id.
func (s *dashboardService) Authorize(ctx context.Context, sess *models.Session, id string, need Access) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dashboards[id]
	if !ok {
		return errs.NewNotFoundError("dashboard not found")
	}
	if !canAccess(d, sess, need) {
		return errs.NewForbiddenError("access to dashboard denied")
	}
	return nil
}

// Memberships returns every dashboard user entry for email, password
// hashes included.
func (s *dashboardService) Memberships(ctx context.Context, email string) []Membership {
	email = normalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Membership
	for _, d := range s.snapshotLocked() {
		if m, ok := d.Member(email); ok {
			out = append(out, Membership{DashboardID: d.ID, User: *m})
		}
	}
	return out
}

func canAccess(d *models.Dashboard, sess *models.Session, need Access) bool {
	if sess == nil {
		return false
	}
	if sess.IsAdmin() {
		return true
	}
	if need == AccessManage {
		return false
	}
	if sess.Scoped() && !sess.InScope(d.ID) {
		return false
	}
	member, listed := d.Member(sess.Email)
	switch need {
	case AccessView:
		return listed || (sess.Role == models.RoleSystem && d.Visible)
	case AccessEdit:
		return listed && member.Role == models.RoleEditor
	}
	return false
}

// --- Dashboards ---

func (s *dashboardService) Create(ctx context.Context, req dto.CreateDashboardRequest) (*models.Dashboard, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errs.NewValidationError("dashboard name is required")
	}
	now := s.now()
	d := &models.Dashboard{
		ID:        s.newID(),
		Name:      name,
		Theme:     req.Theme,
		Visible:   req.Visible,
		Sheets:    []models.Sheet{{ID: s.newID(), Name: firstSheetName, Tiles: []models.Tile{}}},
		Users:     []models.DashboardUser{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboards[d.ID] = d
	s.persistLocked(ctx, d)
	logger.FromContext(ctx).Info("dashboard created", "dashboard_id", d.ID)
	return d.Redacted(), nil
}

func (s *dashboardService) Update(ctx context.Context, id string, req dto.UpdateDashboardRequest) (*models.Dashboard, error) {
	return s.mutate(ctx, id, func(d *models.Dashboard) error {
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return errs.NewValidationError("dashboard name is required")
			}
			d.Name = name
		}
		d.Theme = helpers.ValueOr(req.Theme, d.Theme)
		d.Visible = helpers.ValueOr(req.Visible, d.Visible)
		return nil
	})
}

func (s *dashboardService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dashboards[id]; !ok {
		return errs.NewNotFoundError("dashboard not found")
	}
	delete(s.dashboards, id)
	s.saveLocked(ctx)
	s.replicator.Delete(id)
	logger.FromContext(ctx).Info("dashboard deleted", "dashboard_id", id)
	return nil
}

// Sync replaces the whole tree. Nothing changes unless every dashboard
// passes validation. Members sent without a password keep their stored hash.
func (s *dashboardService) Sync(ctx context.Context, dashboards []*models.Dashboard) ([]*models.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*models.Dashboard, len(dashboards))
	now := s.now()
	for _, in := range dashboards {
		if err := s.validator.ValidateDashboard(in); err != nil {
			return nil, err
		}
		if _, dup := next[in.ID]; dup {
			return nil, errs.NewValidationError(fmt.Sprintf("duplicate dashboard id %s", in.ID))
		}
		d := in.Clone()
		if err := s.carryPasswords(d, s.dashboards[d.ID]); err != nil {
			return nil, err
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		d.UpdatedAt = now
		next[d.ID] = d
	}

	s.dashboards = next
	s.saveLocked(ctx)
	s.replicator.ReplaceAll(s.snapshotLocked())
	logger.FromContext(ctx).Info("dashboards synced", "count", len(next))
	return redactAll(s.snapshotLocked()), nil
}

func (s *dashboardService) carryPasswords(d, prev *models.Dashboard) error {
	for i := range d.Users {
		u := &d.Users[i]
		if u.ID == "" {
			u.ID = s.newID()
		}
		switch {
		case u.Password == "":
			if prev == nil {
				continue
			}
			if old, _ := prev.User(u.ID); old != nil {
				u.Password = old.Password
			} else if old, ok := prev.Member(u.Email); ok {
				u.Password = old.Password
			}
		case !crypto.IsHashed(u.Password):
			hash, err := s.hasher.Hash(u.Password)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			u.Password = hash
		}
	}
	return nil
}

// --- Sheets ---

func (s *dashboardService) AddSheet(ctx context.Context, id string, req dto.SheetRequest) (*models.Sheet, error) {
	var out models.Sheet
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = fmt.Sprintf("Sheet %d", len(d.Sheets)+1)
		}
		out = models.Sheet{ID: s.newID(), Name: name, Tiles: []models.Tile{}}
		d.Sheets = append(d.Sheets, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *dashboardService) RenameSheet(ctx context.Context, id, sheetID string, req dto.SheetRequest) (*models.Sheet, error) {
	var out models.Sheet
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return errs.NewValidationError("sheet name is required")
		}
		sheet, _ := d.Sheet(sheetID)
		if sheet == nil {
			return errs.NewNotFoundError("sheet not found")
		}
		sheet.Name = name
		out = *sheet
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSheet refuses to remove the last sheet of a dashboard.
func (s *dashboardService) DeleteSheet(ctx context.Context, id, sheetID string) error {
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		_, idx := d.Sheet(sheetID)
		if idx < 0 {
			return errs.NewNotFoundError("sheet not found")
		}
		if len(d.Sheets) == 1 {
			return errs.NewValidationError("a dashboard must keep at least one sheet")
		}
		d.Sheets = slices.Delete(d.Sheets, idx, idx+1)
		return nil
	})
	return err
}

// --- Tiles ---

func (s *dashboardService) AddTile(ctx context.Context, id, sheetID string, tile models.Tile) (*models.Tile, error) {
	if tile.ID == "" {
		tile.ID = s.newID()
	}
	if err := s.validator.ValidateTile(tile); err != nil {
		return nil, err
	}
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		sheet, _ := d.Sheet(sheetID)
		if sheet == nil {
			return errs.NewNotFoundError("sheet not found")
		}
		if existing, _ := sheet.Tile(tile.ID); existing != nil {
			return errs.NewAlreadyExistsError(fmt.Sprintf("tile %s already exists", tile.ID))
		}
		sheet.Tiles = append(sheet.Tiles, tile.Clone())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tile, nil
}

func (s *dashboardService) UpdateTile(ctx context.Context, id, sheetID, tileID string, tile models.Tile) (*models.Tile, error) {
	tile.ID = tileID
	if err := s.validator.ValidateTile(tile); err != nil {
		return nil, err
	}
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		sheet, _ := d.Sheet(sheetID)
		if sheet == nil {
			return errs.NewNotFoundError("sheet not found")
		}
		_, idx := sheet.Tile(tileID)
		if idx < 0 {
			return errs.NewNotFoundError("tile not found")
		}
		sheet.Tiles[idx] = tile.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tile, nil
}

func (s *dashboardService) DeleteTile(ctx context.Context, id, sheetID, tileID string) error {
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		sheet, _ := d.Sheet(sheetID)
		if sheet == nil {
			return errs.NewNotFoundError("sheet not found")
		}
		_, idx := sheet.Tile(tileID)
		if idx < 0 {
			return errs.NewNotFoundError("tile not found")
		}
		sheet.Tiles = slices.Delete(sheet.Tiles, idx, idx+1)
		return nil
	})
	return err
}

// UpdateLayout copies grid positions onto tiles. Items naming unknown
// tiles are ignored.
func (s *dashboardService) UpdateLayout(ctx context.Context, id, sheetID string, req dto.UpdateLayoutRequest) (*models.Sheet, error) {
	for _, item := range req.Items {
		if item.W < 1 || item.H < 1 || item.X < 0 || item.Y < 0 {
			return nil, errs.NewValidationError(fmt.Sprintf("invalid layout for tile %s", item.TileID))
		}
	}
	var out models.Sheet
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		sheet, _ := d.Sheet(sheetID)
		if sheet == nil {
			return errs.NewNotFoundError("sheet not found")
		}
		for _, item := range req.Items {
			if tile, _ := sheet.Tile(item.TileID); tile != nil {
				tile.Layout = models.Layout{X: item.X, Y: item.Y, W: item.W, H: item.H}
			}
		}
		out = *sheet
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Dashboard users ---

func (s *dashboardService) AddDashboardUser(ctx context.Context, id string, req dto.DashboardUserRequest) (*models.DashboardUser, error) {
	email := normalizeEmail(req.Email)
	if err := validateMember(email, req.Role); err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, errs.NewValidationError("password is required")
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var out models.DashboardUser
	_, err = s.mutate(ctx, id, func(d *models.Dashboard) error {
		if _, exists := d.Member(email); exists {
			return errs.NewAlreadyExistsError("user already exists on this dashboard")
		}
		out = models.DashboardUser{
			ID:       s.newID(),
			Email:    email,
			Password: hash,
			Name:     strings.TrimSpace(req.Name),
			Role:     req.Role,
		}
		d.Users = append(d.Users, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Password = ""
	return &out, nil
}

func (s *dashboardService) UpdateDashboardUser(ctx context.Context, id, userID string, req dto.UpdateDashboardUserRequest) (*models.DashboardUser, error) {
	var hash string
	if req.Password != nil {
		if *req.Password == "" {
			return nil, errs.NewValidationError("password must not be empty")
		}
		var err error
		if hash, err = s.hasher.Hash(*req.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	var out models.DashboardUser
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		u, _ := d.User(userID)
		if u == nil {
			return errs.NewNotFoundError("dashboard user not found")
		}
		email := normalizeEmail(helpers.ValueOr(req.Email, u.Email))
		role := helpers.ValueOr(req.Role, u.Role)
		if err := validateMember(email, role); err != nil {
			return err
		}
		if other, ok := d.Member(email); ok && other.ID != u.ID {
			return errs.NewAlreadyExistsError("user already exists on this dashboard")
		}
		u.Email = email
		u.Role = role
		u.Name = helpers.ValueOr(req.Name, u.Name)
		if hash != "" {
			u.Password = hash
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Password = ""
	return &out, nil
}

func (s *dashboardService) RemoveDashboardUser(ctx context.Context, id, userID string) error {
	_, err := s.mutate(ctx, id, func(d *models.Dashboard) error {
		_, idx := d.User(userID)
		if idx < 0 {
			return errs.NewNotFoundError("dashboard user not found")
		}
		d.Users = slices.Delete(d.Users, idx, idx+1)
		return nil
	})
	return err
}

// --- Internal helpers ---

// mutate applies fn to a copy of the dashboard and swaps it in only when
// fn succeeds, so a rejected change leaves the stored tree untouched.
func (s *dashboardService) mutate(ctx context.Context, id string, fn func(d *models.Dashboard) error) (*models.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.dashboards[id]
	if !ok {
		return nil, errs.NewNotFoundError("dashboard not found")
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	s.dashboards[id] = next
	s.persistLocked(ctx, next)
	return next.Redacted(), nil
}

func (s *dashboardService) persistLocked(ctx context.Context, d *models.Dashboard) {
	s.saveLocked(ctx)
	s.replicator.Put(d.Clone())
}

// saveLocked writes the local snapshot. A failed write is logged and the
// in-memory change is kept.
func (s *dashboardService) saveLocked(ctx context.Context) {
	if err := s.local.Save(ctx, s.snapshotLocked()); err != nil {
		logger.FromContext(ctx).Error("failed to save local dashboard snapshot", "error", err)
	}
}

func (s *dashboardService) snapshotLocked() []*models.Dashboard {
	out := make([]*models.Dashboard, 0, len(s.dashboards))
	for _, d := range s.dashboards {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func redactAll(ds []*models.Dashboard) []*models.Dashboard {
	out := make([]*models.Dashboard, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Redacted())
	}
	return out
}
