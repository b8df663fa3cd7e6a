package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/embed"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
)

type stubEmbedService struct {
	parseInput string
	resolveReq dto.ResolveEmbedRequest
	resolveErr error
	filterKey  string
	filterOn   bool
	setErr     error
}

func (s *stubEmbedService) Parse(_ context.Context, input string) embed.Target {
	s.parseInput = input
	return embed.Target{Type: embed.ResourceChart, ID: "42", Valid: true}
}

func (s *stubEmbedService) Resolve(_ context.Context, _ *models.Session, req dto.ResolveEmbedRequest) (embed.Frame, error) {
	s.resolveReq = req
	return embed.Frame{State: embed.StateSuccess}, s.resolveErr
}

func (s *stubEmbedService) FilterEnabled(_ context.Context, _ *models.Session, key string) bool {
	s.filterKey = key
	return s.filterOn
}

func (s *stubEmbedService) SetFilterEnabled(_ context.Context, _ *models.Session, key string, enabled bool) (dto.FilterToggle, error) {
	s.filterKey = key
	s.filterOn = enabled
	return dto.FilterToggle{ResourceKey: key, Enabled: enabled}, s.setErr
}

func TestParseEmbed(t *testing.T) {
	svc := &stubEmbedService{}
	resp := &stubResponseHandler{}
	h := NewEmbedHandlers(&Deps{ResponseHandler: resp, EmbedSvc: svc})

	req := httptest.NewRequest(http.MethodPost, "/embeds/parse", strings.NewReader(`{"input":"/explore/?slice_id=42"}`))
	h.Parse(httptest.NewRecorder(), req)

	if svc.parseInput != "/explore/?slice_id=42" {
		t.Errorf("unexpected input %q", svc.parseInput)
	}
	target, ok := resp.writeSuccessData.(embed.Target)
	if !ok || target.ID != "42" {
		t.Fatalf("expected target, got %#v", resp.writeSuccessData)
	}
}

func TestResolveEmbed(t *testing.T) {
	svc := &stubEmbedService{}
	resp := &stubResponseHandler{}
	h := NewEmbedHandlers(&Deps{ResponseHandler: resp, EmbedSvc: svc})

	body := `{"dashboardId":"d1","sheetId":"s1","tileId":"t1","from":"2024-01-01","to":"2024-01-31"}`
	req := withSession(httptest.NewRequest(http.MethodPost, "/embeds/resolve", strings.NewReader(body)), adminSession())
	h.Resolve(httptest.NewRecorder(), req)

	want := dto.ResolveEmbedRequest{DashboardID: "d1", SheetID: "s1", TileID: "t1", From: "2024-01-01", To: "2024-01-31"}
	if svc.resolveReq != want {
		t.Errorf("unexpected request %+v", svc.resolveReq)
	}
	if !resp.writeSuccessCalled {
		t.Fatal("expected WriteSuccess")
	}
}

func TestResolveEmbedError(t *testing.T) {
	svc := &stubEmbedService{resolveErr: errs.NewForbiddenError("access to dashboard denied")}
	resp := &stubResponseHandler{}
	h := NewEmbedHandlers(&Deps{ResponseHandler: resp, EmbedSvc: svc})

	req := withSession(httptest.NewRequest(http.MethodPost, "/embeds/resolve", strings.NewReader(`{"dashboardId":"d9"}`)), viewerSession("d1"))
	h.Resolve(httptest.NewRecorder(), req)

	if _, ok := resp.handleError.(*errs.ForbiddenError); !ok {
		t.Fatalf("expected ForbiddenError, got %T", resp.handleError)
	}
}

func TestFilterToggleRoutes(t *testing.T) {
	svc := &stubEmbedService{}
	resp := &stubResponseHandler{}
	h := NewEmbedHandlers(&Deps{ResponseHandler: resp, EmbedSvc: svc})

	req := withChiParam(httptest.NewRequest(http.MethodPut, "/filters/chart-42", strings.NewReader(`{"enabled":true}`)), "resourceKey", "chart-42")
	h.SetFilter(httptest.NewRecorder(), withSession(req, adminSession()))
	if svc.filterKey != "chart-42" || !svc.filterOn {
		t.Fatalf("expected chart-42 enabled, got key=%s on=%v", svc.filterKey, svc.filterOn)
	}

	req = withChiParam(httptest.NewRequest(http.MethodGet, "/filters/chart-42", nil), "resourceKey", "chart-42")
	h.GetFilter(httptest.NewRecorder(), withSession(req, adminSession()))
	got, ok := resp.writeSuccessData.(dto.FilterToggle)
	if !ok || !got.Enabled || got.ResourceKey != "chart-42" {
		t.Errorf("unexpected toggle %#v", resp.writeSuccessData)
	}
}
