package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/internal/response"
	"github.com/GregMSThompson/insight-portal/internal/services"
)

type dashboardService interface {
	ListAccessible(ctx context.Context, sess *models.Session) []*models.Dashboard
	Get(ctx context.Context, id string) (*models.Dashboard, error)
	Authorize(ctx context.Context, sess *models.Session, id string, need services.Access) error

	Create(ctx context.Context, req dto.CreateDashboardRequest) (*models.Dashboard, error)
	Update(ctx context.Context, id string, req dto.UpdateDashboardRequest) (*models.Dashboard, error)
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context, dashboards []*models.Dashboard) ([]*models.Dashboard, error)

	AddSheet(ctx context.Context, id string, req dto.SheetRequest) (*models.Sheet, error)
	RenameSheet(ctx context.Context, id, sheetID string, req dto.SheetRequest) (*models.Sheet, error)
	DeleteSheet(ctx context.Context, id, sheetID string) error
	UpdateLayout(ctx context.Context, id, sheetID string, req dto.UpdateLayoutRequest) (*models.Sheet, error)

	AddTile(ctx context.Context, id, sheetID string, tile models.Tile) (*models.Tile, error)
	UpdateTile(ctx context.Context, id, sheetID, tileID string, tile models.Tile) (*models.Tile, error)
	DeleteTile(ctx context.Context, id, sheetID, tileID string) error

	AddDashboardUser(ctx context.Context, id string, req dto.DashboardUserRequest) (*models.DashboardUser, error)
	UpdateDashboardUser(ctx context.Context, id, userID string, req dto.UpdateDashboardUserRequest) (*models.DashboardUser, error)
	RemoveDashboardUser(ctx context.Context, id, userID string) error
}

type dashboardHandlers struct {
	ResponseHandler response.ResponseHandler
	DashboardSvc    dashboardService
}

func NewDashboardHandlers(deps *Deps) *dashboardHandlers {
	return &dashboardHandlers{
		ResponseHandler: deps.ResponseHandler,
		DashboardSvc:    deps.DashboardSvc,
	}
}

// DashboardRoutes expects a session in the request context.
func (h *dashboardHandlers) DashboardRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListDashboards)
	r.Post("/", h.CreateDashboard)
	r.Post("/sync", h.SyncDashboards)
	r.Get("/tile-types", h.GetTileTypes) // must be before /{dashboardId}

	r.Route("/{dashboardId}", func(r chi.Router) {
		r.Get("/", h.GetDashboard)
		r.Put("/", h.UpdateDashboard)
		r.Delete("/", h.DeleteDashboard)

		r.Post("/sheets", h.AddSheet)
		r.Put("/sheets/{sheetId}", h.RenameSheet)
		r.Delete("/sheets/{sheetId}", h.DeleteSheet)
		r.Put("/sheets/{sheetId}/layout", h.UpdateLayout)

		r.Post("/sheets/{sheetId}/tiles", h.AddTile)
		r.Put("/sheets/{sheetId}/tiles/{tileId}", h.UpdateTile)
		r.Delete("/sheets/{sheetId}/tiles/{tileId}", h.DeleteTile)

		r.Post("/users", h.AddDashboardUser)
		r.Put("/users/{userId}", h.UpdateDashboardUser)
		r.Delete("/users/{userId}", h.RemoveDashboardUser)
	})
	return r
}

// authorize checks the session against the dashboard in the URL and
// returns its id.
func (h *dashboardHandlers) authorize(w http.ResponseWriter, r *http.Request, need services.Access) (string, bool) {
	id := chi.URLParam(r, "dashboardId")
	if err := h.DashboardSvc.Authorize(r.Context(), sessionFrom(r), id, need); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return "", false
	}
	return id, true
}

func (h *dashboardHandlers) ListDashboards(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, h.DashboardSvc.ListAccessible(r.Context(), sessionFrom(r)))
}

func (h *dashboardHandlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessView)
	if !ok {
		return
	}
	d, err := h.DashboardSvc.Get(r.Context(), id)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, d)
}

func (h *dashboardHandlers) CreateDashboard(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(sessionFrom(r)); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	var req dto.CreateDashboardRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	d, err := h.DashboardSvc.Create(r.Context(), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, d)
}

// SyncDashboards replaces the whole dashboard set with the posted one.
func (h *dashboardHandlers) SyncDashboards(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(sessionFrom(r)); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	var req dto.SyncDashboardsRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	ds, err := h.DashboardSvc.Sync(r.Context(), req.Dashboards)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, ds)
}

func (h *dashboardHandlers) UpdateDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessEdit)
	if !ok {
		return
	}
	var req dto.UpdateDashboardRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	d, err := h.DashboardSvc.Update(r.Context(), id, req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, d)
}

func (h *dashboardHandlers) DeleteDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessManage)
	if !ok {
		return
	}
	if err := h.DashboardSvc.Delete(r.Context(), id); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

// --- Sheets ---

func (h *dashboardHandlers) AddSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessEdit)
	if !ok {
		return
	}
	var req dto.SheetRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	sheet, err := h.DashboardSvc.AddSheet(r.Context(), id, req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, sheet)
}

func (h *dashboardHandlers) RenameSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessEdit)
	if !ok {
		return
	}
	var req dto.SheetRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	sheet, err := h.DashboardSvc.RenameSheet(r.Context(), id, chi.URLParam(r, "sheetId"), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, sheet)
}

func (h *dashboardHandlers) DeleteSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessEdit)
	if !ok {
		return
	}
	if err := h.DashboardSvc.DeleteSheet(r.Context(), id, chi.URLParam(r, "sheetId")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *dashboardHandlers) UpdateLayout(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessEdit)
	if !ok {
		return
	}
	var req dto.UpdateLayoutRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	sheet, err := h.DashboardSvc.UpdateLayout(r.Context(), id, chi.URLParam(r, "sheetId"), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, sheet)
}

// --- Tiles ---

func (h *dashboardHandlers) AddTile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessEdit)
	if !ok {
		return
	}
	var tile models.Tile
	if err := decode(r, &tile); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	created, err := h.DashboardSvc.AddTile(r.Context(), id, chi.URLParam(r, "sheetId"), tile)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, created)
}

func (h *dashboardHandlers) UpdateTile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessEdit)
	if !ok {
		return
	}
	var tile models.Tile
	if err := decode(r, &tile); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	updated, err := h.DashboardSvc.UpdateTile(r.Context(), id, chi.URLParam(r, "sheetId"), chi.URLParam(r, "tileId"), tile)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, updated)
}

func (h *dashboardHandlers) DeleteTile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessEdit)
	if !ok {
		return
	}
	if err := h.DashboardSvc.DeleteTile(r.Context(), id, chi.URLParam(r, "sheetId"), chi.URLParam(r, "tileId")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

// GetTileTypes returns the tile variants and the content schema of each.
func (h *dashboardHandlers) GetTileTypes(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, services.TileTypeCatalog())
}

// --- Dashboard users ---

func (h *dashboardHandlers) AddDashboardUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessManage)
	if !ok {
		return
	}
	var req dto.DashboardUserRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	user, err := h.DashboardSvc.AddDashboardUser(r.Context(), id, req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, user)
}

func (h *dashboardHandlers) UpdateDashboardUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessManage)
	if !ok {
		return
	}
	var req dto.UpdateDashboardUserRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	user, err := h.DashboardSvc.UpdateDashboardUser(r.Context(), id, chi.URLParam(r, "userId"), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, user)
}

func (h *dashboardHandlers) RemoveDashboardUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, services.AccessManage)
	if !ok {
		return
	}
	if err := h.DashboardSvc.RemoveDashboardUser(r.Context(), id, chi.URLParam(r, "userId")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}
