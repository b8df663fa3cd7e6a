package services

import (
	"context"
	"time"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a backend the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type replicationStats interface {
	Stats() dto.ReplicationStats
}

type healthService struct {
	storage     string
	replication replicationStats
	checks      map[string]Pinger
}

func NewHealthService(storage string, replication replicationStats, checks map[string]Pinger) *healthService {
	return &healthService{storage: storage, replication: replication, checks: checks}
}

// Check pings every backend. Any failure reports the service as degraded.
func (s *healthService) Check(ctx context.Context) dto.Health {
	h := dto.Health{Status: dto.HealthOK, Storage: s.storage}
	if s.replication != nil {
		h.Replication = s.replication.Stats()
	}
	if len(s.checks) == 0 {
		return h
	}

	h.Checks = make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		pctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			logger.FromContext(ctx).Warn("health check failed", "check", name, "error", err)
			h.Checks[name] = err.Error()
			h.Status = dto.HealthDegraded
			continue
		}
		h.Checks[name] = dto.HealthOK
	}
	return h
}
