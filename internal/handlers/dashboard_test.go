package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/internal/services"
)

// --- Stub service ---

type stubDashboardService struct {
	authorizeErr error
	lastNeed     services.Access
	lastID       string
	lastSheetID  string
	lastTileID   string
	lastUserID   string

	dashboard *models.Dashboard
	err       error

	lastCreateReq dto.CreateDashboardRequest
	lastUpdateReq dto.UpdateDashboardRequest
	lastSync      []*models.Dashboard
	lastSheetReq  dto.SheetRequest
	lastLayout    dto.UpdateLayoutRequest
	lastTile      models.Tile
	lastMember    dto.DashboardUserRequest
	lastMemberUpd dto.UpdateDashboardUserRequest

	calls []string
}

func (s *stubDashboardService) called(name string) { s.calls = append(s.calls, name) }

func (s *stubDashboardService) ListAccessible(_ context.Context, sess *models.Session) []*models.Dashboard {
	s.called("list")
	return []*models.Dashboard{s.dashboard}
}

func (s *stubDashboardService) Get(_ context.Context, id string) (*models.Dashboard, error) {
	s.called("get")
	s.lastID = id
	return s.dashboard, s.err
}

func (s *stubDashboardService) Authorize(_ context.Context, _ *models.Session, id string, need services.Access) error {
	s.lastID = id
	s.lastNeed = need
	return s.authorizeErr
}

func (s *stubDashboardService) Create(_ context.Context, req dto.CreateDashboardRequest) (*models.Dashboard, error) {
	s.called("create")
	s.lastCreateReq = req
	return s.dashboard, s.err
}

func (s *stubDashboardService) Update(_ context.Context, id string, req dto.UpdateDashboardRequest) (*models.Dashboard, error) {
	s.called("update")
	s.lastUpdateReq = req
	return s.dashboard, s.err
}

func (s *stubDashboardService) Delete(_ context.Context, id string) error {
	s.called("delete")
	return s.err
}

func (s *stubDashboardService) Sync(_ context.Context, ds []*models.Dashboard) ([]*models.Dashboard, error) {
	s.called("sync")
	s.lastSync = ds
	return ds, s.err
}

func (s *stubDashboardService) AddSheet(_ context.Context, id string, req dto.SheetRequest) (*models.Sheet, error) {
	s.called("add_sheet")
	s.lastSheetReq = req
	return &models.Sheet{ID: "new", Name: req.Name}, s.err
}

func (s *stubDashboardService) RenameSheet(_ context.Context, id, sheetID string, req dto.SheetRequest) (*models.Sheet, error) {
	s.called("rename_sheet")
	s.lastSheetID = sheetID
	s.lastSheetReq = req
	return &models.Sheet{ID: sheetID, Name: req.Name}, s.err
}

func (s *stubDashboardService) DeleteSheet(_ context.Context, id, sheetID string) error {
	s.called("delete_sheet")
	s.lastSheetID = sheetID
	return s.err
}

func (s *stubDashboardService) UpdateLayout(_ context.Context, id, sheetID string, req dto.UpdateLayoutRequest) (*models.Sheet, error) {
	s.called("layout")
	s.lastSheetID = sheetID
	s.lastLayout = req
	return &models.Sheet{ID: sheetID}, s.err
}

func (s *stubDashboardService) AddTile(_ context.Context, id, sheetID string, tile models.Tile) (*models.Tile, error) {
	s.called("add_tile")
	s.lastSheetID = sheetID
	s.lastTile = tile
	return &tile, s.err
}

func (s *stubDashboardService) UpdateTile(_ context.Context, id, sheetID, tileID string, tile models.Tile) (*models.Tile, error) {
	s.called("update_tile")
	s.lastSheetID = sheetID
	s.lastTileID = tileID
	s.lastTile = tile
	return &tile, s.err
}

func (s *stubDashboardService) DeleteTile(_ context.Context, id, sheetID, tileID string) error {
	s.called("delete_tile")
	s.lastSheetID = sheetID
	s.lastTileID = tileID
	return s.err
}

func (s *stubDashboardService) AddDashboardUser(_ context.Context, id string, req dto.DashboardUserRequest) (*models.DashboardUser, error) {
	s.called("add_user")
	s.lastMember = req
	return &models.DashboardUser{ID: "m1", Email: req.Email, Role: req.Role}, s.err
}

func (s *stubDashboardService) UpdateDashboardUser(_ context.Context, id, userID string, req dto.UpdateDashboardUserRequest) (*models.DashboardUser, error) {
	s.called("update_user")
	s.lastUserID = userID
	s.lastMemberUpd = req
	return &models.DashboardUser{ID: userID}, s.err
}

func (s *stubDashboardService) RemoveDashboardUser(_ context.Context, id, userID string) error {
	s.called("remove_user")
	s.lastUserID = userID
	return s.err
}

func newDashboardTest(svc *stubDashboardService) (*dashboardHandlers, *stubResponseHandler) {
	resp := &stubResponseHandler{}
	return NewDashboardHandlers(&Deps{ResponseHandler: resp, DashboardSvc: svc}), resp
}

// --- Tests ---

func TestListDashboards(t *testing.T) {
	svc := &stubDashboardService{dashboard: &models.Dashboard{ID: "d1"}}
	h, resp := newDashboardTest(svc)

	req := withSession(httptest.NewRequest(http.MethodGet, "/dashboards", nil), viewerSession("d1"))
	h.ListDashboards(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess with 200, got called=%v status=%d", resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
}

func TestGetDashboard_ChecksViewAccess(t *testing.T) {
	svc := &stubDashboardService{dashboard: &models.Dashboard{ID: "d1"}}
	h, resp := newDashboardTest(svc)

	req := withChiParam(httptest.NewRequest(http.MethodGet, "/dashboards/d1", nil), "dashboardId", "d1")
	req = withSession(req, viewerSession("d1"))
	h.GetDashboard(httptest.NewRecorder(), req)

	if svc.lastNeed != services.AccessView || svc.lastID != "d1" {
		t.Errorf("expected view check on d1, got need=%v id=%s", svc.lastNeed, svc.lastID)
	}
	if !resp.writeSuccessCalled {
		t.Fatal("expected WriteSuccess")
	}
}

func TestGetDashboard_Forbidden(t *testing.T) {
	svc := &stubDashboardService{authorizeErr: errs.NewForbiddenError("access to dashboard denied")}
	h, resp := newDashboardTest(svc)

	req := withChiParam(httptest.NewRequest(http.MethodGet, "/dashboards/d2", nil), "dashboardId", "d2")
	req = withSession(req, viewerSession("d1"))
	h.GetDashboard(httptest.NewRecorder(), req)

	if _, ok := resp.handleError.(*errs.ForbiddenError); !ok {
		t.Fatalf("expected ForbiddenError, got %T", resp.handleError)
	}
	if len(svc.calls) != 0 {
		t.Errorf("service should not be called after a failed check, got %v", svc.calls)
	}
}

func TestCreateDashboard_AdminOnly(t *testing.T) {
	svc := &stubDashboardService{dashboard: &models.Dashboard{ID: "d1"}}
	h, resp := newDashboardTest(svc)

	req := withSession(httptest.NewRequest(http.MethodPost, "/dashboards", strings.NewReader(`{"name":"Sales"}`)), viewerSession())
	h.CreateDashboard(httptest.NewRecorder(), req)
	if _, ok := resp.handleError.(*errs.ForbiddenError); !ok {
		t.Fatalf("expected ForbiddenError for viewer, got %T", resp.handleError)
	}

	h, resp = newDashboardTest(svc)
	req = withSession(httptest.NewRequest(http.MethodPost, "/dashboards", strings.NewReader(`{"name":"Sales","visible":true}`)), adminSession())
	h.CreateDashboard(httptest.NewRecorder(), req)
	if resp.writeSuccessStatus != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.writeSuccessStatus)
	}
	if svc.lastCreateReq.Name != "Sales" || !svc.lastCreateReq.Visible {
		t.Errorf("unexpected create request: %+v", svc.lastCreateReq)
	}
}

func TestSyncDashboards(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newDashboardTest(svc)

	body := `{"dashboards":[{"id":"d1","name":"A","sheets":[{"id":"s1","name":"Sheet 1","tiles":[]}],"users":[]}]}`
	req := withSession(httptest.NewRequest(http.MethodPost, "/dashboards/sync", strings.NewReader(body)), adminSession())
	h.SyncDashboards(httptest.NewRecorder(), req)

	if !resp.writeSuccessCalled {
		t.Fatalf("expected WriteSuccess, got error %v", resp.handleError)
	}
	if len(svc.lastSync) != 1 || svc.lastSync[0].ID != "d1" {
		t.Errorf("unexpected sync payload: %+v", svc.lastSync)
	}
}

func TestUpdateAndDeleteDashboard_AccessLevels(t *testing.T) {
	svc := &stubDashboardService{dashboard: &models.Dashboard{ID: "d1"}}
	h, _ := newDashboardTest(svc)

	req := withChiParam(httptest.NewRequest(http.MethodPut, "/dashboards/d1", strings.NewReader(`{"name":"Renamed"}`)), "dashboardId", "d1")
	h.UpdateDashboard(httptest.NewRecorder(), withSession(req, adminSession()))
	if svc.lastNeed != services.AccessEdit {
		t.Errorf("update should need edit access, got %v", svc.lastNeed)
	}
	if svc.lastUpdateReq.Name == nil || *svc.lastUpdateReq.Name != "Renamed" || svc.lastUpdateReq.Visible != nil {
		t.Errorf("unexpected update request: %+v", svc.lastUpdateReq)
	}

	req = withChiParam(httptest.NewRequest(http.MethodDelete, "/dashboards/d1", nil), "dashboardId", "d1")
	h.DeleteDashboard(httptest.NewRecorder(), withSession(req, adminSession()))
	if svc.lastNeed != services.AccessManage {
		t.Errorf("delete should need manage access, got %v", svc.lastNeed)
	}
}

func TestSheetRoutes(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newDashboardTest(svc)

	req := withChiParam(httptest.NewRequest(http.MethodPost, "/sheets", strings.NewReader(`{"name":"Q2"}`)), "dashboardId", "d1")
	h.AddSheet(httptest.NewRecorder(), withSession(req, adminSession()))
	if resp.writeSuccessStatus != http.StatusCreated || svc.lastSheetReq.Name != "Q2" {
		t.Errorf("add sheet: status=%d req=%+v", resp.writeSuccessStatus, svc.lastSheetReq)
	}

	req = withChiParam(httptest.NewRequest(http.MethodPut, "/sheets/s1", strings.NewReader(`{"name":"Q3"}`)), "dashboardId", "d1", "sheetId", "s1")
	h.RenameSheet(httptest.NewRecorder(), withSession(req, adminSession()))
	if svc.lastSheetID != "s1" || svc.lastSheetReq.Name != "Q3" {
		t.Errorf("rename sheet: id=%s req=%+v", svc.lastSheetID, svc.lastSheetReq)
	}

	svc.err = errs.NewValidationError("a dashboard must keep at least one sheet")
	h, resp = newDashboardTest(svc)
	req = withChiParam(httptest.NewRequest(http.MethodDelete, "/sheets/s1", nil), "dashboardId", "d1", "sheetId", "s1")
	h.DeleteSheet(httptest.NewRecorder(), withSession(req, adminSession()))
	if _, ok := resp.handleError.(*errs.ValidationError); !ok {
		t.Errorf("delete sheet: expected ValidationError, got %T", resp.handleError)
	}
}

func TestUpdateLayout(t *testing.T) {
	svc := &stubDashboardService{}
	h, _ := newDashboardTest(svc)

	body := `{"layout":[{"i":"t1","x":1,"y":2,"w":3,"h":4}]}`
	req := withChiParam(httptest.NewRequest(http.MethodPut, "/layout", strings.NewReader(body)), "dashboardId", "d1", "sheetId", "s1")
	h.UpdateLayout(httptest.NewRecorder(), withSession(req, adminSession()))

	want := dto.LayoutItem{TileID: "t1", X: 1, Y: 2, W: 3, H: 4}
	if len(svc.lastLayout.Items) != 1 || svc.lastLayout.Items[0] != want {
		t.Errorf("unexpected layout: %+v", svc.lastLayout)
	}
}

func TestAddTile_DecodesVariant(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newDashboardTest(svc)

	body := `{"type":"image","content":{"imageUrl":"https://cdn.example.com/a.png"},"layout":{"x":0,"y":0,"w":2,"h":2}}`
	req := withChiParam(httptest.NewRequest(http.MethodPost, "/tiles", strings.NewReader(body)), "dashboardId", "d1", "sheetId", "s1")
	h.AddTile(httptest.NewRecorder(), withSession(req, adminSession()))

	if resp.writeSuccessStatus != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", resp.writeSuccessStatus, resp.handleError)
	}
	img, ok := svc.lastTile.Content.(models.ImageContent)
	if !ok || img.ImageURL != "https://cdn.example.com/a.png" {
		t.Errorf("expected image content, got %#v", svc.lastTile.Content)
	}
}

func TestAddTile_UnknownTypeIsValidationError(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newDashboardTest(svc)

	req := withChiParam(httptest.NewRequest(http.MethodPost, "/tiles", strings.NewReader(`{"type":"video"}`)), "dashboardId", "d1", "sheetId", "s1")
	h.AddTile(httptest.NewRecorder(), withSession(req, adminSession()))

	if _, ok := resp.handleError.(*errs.ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", resp.handleError)
	}
	if len(svc.calls) != 0 {
		t.Errorf("service should not be called, got %v", svc.calls)
	}
}

func TestUpdateAndDeleteTile(t *testing.T) {
	svc := &stubDashboardService{}
	h, _ := newDashboardTest(svc)

	body := `{"type":"text","content":{"text":"hello"}}`
	req := withChiParam(httptest.NewRequest(http.MethodPut, "/tiles/t1", strings.NewReader(body)), "dashboardId", "d1", "sheetId", "s1", "tileId", "t1")
	h.UpdateTile(httptest.NewRecorder(), withSession(req, adminSession()))
	if svc.lastTileID != "t1" || svc.lastTile.Type != models.TileText {
		t.Errorf("update tile: id=%s tile=%+v", svc.lastTileID, svc.lastTile)
	}

	req = withChiParam(httptest.NewRequest(http.MethodDelete, "/tiles/t2", nil), "dashboardId", "d1", "sheetId", "s1", "tileId", "t2")
	h.DeleteTile(httptest.NewRecorder(), withSession(req, adminSession()))
	if svc.lastTileID != "t2" || svc.lastNeed != services.AccessEdit {
		t.Errorf("delete tile: id=%s need=%v", svc.lastTileID, svc.lastNeed)
	}
}

func TestGetTileTypes(t *testing.T) {
	h, resp := newDashboardTest(&stubDashboardService{})
	h.GetTileTypes(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tile-types", nil))

	catalog, ok := resp.writeSuccessData.([]dto.TileTypeInfo)
	if !ok || len(catalog) != len(models.TileTypes) {
		t.Fatalf("expected a catalog entry per tile type, got %#v", resp.writeSuccessData)
	}
}

func TestDashboardUserRoutes(t *testing.T) {
	svc := &stubDashboardService{}
	h, resp := newDashboardTest(svc)

	body := `{"email":"v@example.com","password":"pw","role":"viewer"}`
	req := withChiParam(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)), "dashboardId", "d1")
	h.AddDashboardUser(httptest.NewRecorder(), withSession(req, adminSession()))
	if resp.writeSuccessStatus != http.StatusCreated || svc.lastMember.Role != models.RoleViewer {
		t.Errorf("add user: status=%d req=%+v", resp.writeSuccessStatus, svc.lastMember)
	}
	if svc.lastNeed != services.AccessManage {
		t.Errorf("dashboard users need manage access, got %v", svc.lastNeed)
	}

	req = withChiParam(httptest.NewRequest(http.MethodPut, "/users/m1", strings.NewReader(`{"role":"editor"}`)), "dashboardId", "d1", "userId", "m1")
	h.UpdateDashboardUser(httptest.NewRecorder(), withSession(req, adminSession()))
	if svc.lastUserID != "m1" || svc.lastMemberUpd.Role == nil || *svc.lastMemberUpd.Role != models.RoleEditor {
		t.Errorf("update user: id=%s req=%+v", svc.lastUserID, svc.lastMemberUpd)
	}

	req = withChiParam(httptest.NewRequest(http.MethodDelete, "/users/m2", nil), "dashboardId", "d1", "userId", "m2")
	h.RemoveDashboardUser(httptest.NewRecorder(), withSession(req, adminSession()))
	if svc.lastUserID != "m2" {
		t.Errorf("remove user: expected m2, got %s", svc.lastUserID)
	}
}
