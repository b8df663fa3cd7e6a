package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"firebase.google.com/go/v4/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/GregMSThompson/insight-portal/internal/config"
	"github.com/GregMSThompson/insight-portal/internal/store"
	"github.com/GregMSThompson/insight-portal/internal/telemetry"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const serviceName = "insight-portal"

// Bootstrap holds the process-wide clients. Clients for backends that are
// not configured stay nil.
type Bootstrap struct {
	Log       *slog.Logger
	Firestore *firestore.Client
	Firebase  *auth.Client
	Redis     *redis.Client
	Postgres  *pgxpool.Pool
	Secrets   *secretmanager.Client

	shutdownTracing func(context.Context) error
}

func Run(cfg *config.Config) (*Bootstrap, error) {
	var err error
	applicationCtx := context.Background()
	bs := new(Bootstrap)

	bs.Log = logger.New(cfg.LogLevel, logger.HandlerFor(cfg.LogFormat))
	slog.SetDefault(bs.Log)

	bs.shutdownTracing = telemetry.Setup(applicationCtx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, bs.Log)

	switch cfg.Storage {
	case config.StorageFirestore:
		bs.Firestore, err = InitFirestore(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, fmt.Errorf("init firestore: %w", err)
		}
	case config.StoragePostgres:
		bs.Postgres, err = InitPostgres(applicationCtx, cfg.DatabaseURL)
		if err != nil {
			return bs, err
		}
	}

	if cfg.FirebaseAuth {
		bs.Firebase, err = InitFirebase(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, fmt.Errorf("init firebase: %w", err)
		}
	}

	if cfg.RedisAddr != "" {
		bs.Redis, err = InitRedis(applicationCtx, cfg)
		if err != nil {
			return bs, err
		}
	}

	if cfg.SupersetPasswordSecret != "" {
		bs.Secrets, err = secretmanager.NewClient(applicationCtx)
		if err != nil {
			return bs, fmt.Errorf("init secret manager: %w", err)
		}
		cfg.SupersetPassword, err = store.NewSecretsStore(bs.Secrets, cfg.ProjectID).Access(applicationCtx, cfg.SupersetPasswordSecret)
		if err != nil {
			return bs, fmt.Errorf("read superset password: %w", err)
		}
	}

	bs.Log.Info("bootstrap complete",
		"storage", cfg.Storage,
		"redis", bs.Redis != nil,
		"firebase", bs.Firebase != nil,
		"superset", cfg.SupersetURL != "",
	)
	return bs, nil
}

// Close releases every client that was opened.
func (bs *Bootstrap) Close() {
	if bs.Firestore != nil {
		bs.Firestore.Close()
	}
	if bs.Postgres != nil {
		bs.Postgres.Close()
	}
	if bs.Redis != nil {
		bs.Redis.Close()
	}
	if bs.Secrets != nil {
		bs.Secrets.Close()
	}
	if bs.shutdownTracing != nil {
		if err := bs.shutdownTracing(context.Background()); err != nil && bs.Log != nil {
			bs.Log.Warn("tracing shutdown failed", "error", err)
		}
	}
}
