package services

import (
	"context"
	"errors"
	"testing"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/pkg/helpers"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedStats dto.ReplicationStats

func (f fixedStats) Stats() dto.ReplicationStats { return dto.ReplicationStats(f) }

func TestHealthCheck(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	svc := NewHealthService("file", fixedStats{Enabled: true, Acked: 3}, map[string]Pinger{"redis": ok})
	h := svc.Check(helpers.TestCtx())
	if h.Status != dto.HealthOK || h.Storage != "file" || h.Checks["redis"] != dto.HealthOK {
		t.Errorf("unexpected health: %+v", h)
	}
	if h.Replication.Acked != 3 {
		t.Errorf("expected replication stats, got %+v", h.Replication)
	}

	svc = NewHealthService("postgres", nil, map[string]Pinger{"redis": ok, "postgres": down})
	h = svc.Check(helpers.TestCtx())
	if h.Status != dto.HealthDegraded {
		t.Errorf("expected degraded, got %s", h.Status)
	}
	if h.Checks["postgres"] != "connection refused" {
		t.Errorf("expected failure detail, got %q", h.Checks["postgres"])
	}
}

func TestHealthCheckWithoutBackends(t *testing.T) {
	h := NewHealthService("file", nil, nil).Check(helpers.TestCtx())
	if h.Status != dto.HealthOK || h.Checks != nil {
		t.Errorf("unexpected health: %+v", h)
	}
}
