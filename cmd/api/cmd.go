package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	supersetclient "github.com/GregMSThompson/insight-portal/internal/client/superset"
	"github.com/GregMSThompson/insight-portal/internal/bootstrap"
	"github.com/GregMSThompson/insight-portal/internal/config"
	"github.com/GregMSThompson/insight-portal/internal/crypto"
	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/embed"
	"github.com/GregMSThompson/insight-portal/internal/handlers"
	"github.com/GregMSThompson/insight-portal/internal/middleware"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/internal/replica"
	"github.com/GregMSThompson/insight-portal/internal/response"
	"github.com/GregMSThompson/insight-portal/internal/router"
	"github.com/GregMSThompson/insight-portal/internal/seed"
	"github.com/GregMSThompson/insight-portal/internal/services"
	"github.com/GregMSThompson/insight-portal/internal/store"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// dashboardRemote is the durable store behind the in-memory dashboard tree.
type dashboardRemote interface {
	replica.Remote
	List(ctx context.Context) ([]*models.Dashboard, error)
}

type replicator interface {
	Put(d *models.Dashboard)
	Delete(id string)
	ReplaceAll(dashboards []*models.Dashboard)
	Close(ctx context.Context) error
	Stats() dto.ReplicationStats
}

type userStore interface {
	ListUsers(ctx context.Context, userType models.UserType) ([]*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

func exitOnError(message string, err error, log *slog.Logger) {
	if err != nil {
		log.Error(message, "error", err)
		os.Exit(1)
	}
}

func main() {
	// bootstrap
	cfg := config.New()
	bs, err := bootstrap.Run(cfg)
	exitOnError("bootstrap failed", err, bs.Log)
	defer bs.Close()

	ctx := logger.ToContext(context.Background(), bs.Log)
	checks := make(map[string]services.Pinger)

	// stores
	files, err := store.NewFileStore(cfg.DataDir)
	exitOnError("data dir unavailable", err, bs.Log)

	var (
		ustore userStore = files.Users()
		remote dashboardRemote
	)
	switch cfg.Storage {
	case config.StorageFirestore:
		ustore = store.NewUserStore(bs.Firestore)
		remote = store.NewDashboardStore(bs.Firestore)
	case config.StoragePostgres:
		ustore = store.NewPostgresUserStore(bs.Postgres)
		remote = store.NewPostgresDashboardStore(bs.Postgres)
		checks["postgres"] = bs.Postgres
	}

	var repl replicator = replica.Nop{}
	if remote != nil {
		q := replica.NewQueue(remote, bs.Log, replica.DefaultQueueSize)
		q.Start(ctx)
		repl = q
	}

	var kv interface {
		services.Pinger
		Set(ctx context.Context, key, value string, ttl time.Duration) error
		Get(ctx context.Context, key string) (string, error)
		Delete(ctx context.Context, key string) error
	} = store.NewMemoryKV()
	if bs.Redis != nil {
		kv = store.NewRedisKV(bs.Redis)
		checks["redis"] = kv
	}

	// services
	hasher := crypto.NewPasswordHasher(0)
	userv := services.NewUserService(ustore, hasher)
	dserv := services.NewDashboardService(files.Dashboards(), repl, services.NewTileValidator(), hasher)
	sserv := services.NewSessionService(kv, cfg.SessionTTL)

	source, err := dserv.Hydrate(ctx, remote, seed.Dashboards)
	exitOnError("dashboard load failed", err, bs.Log)
	bs.Log.Info("dashboards loaded", "source", source)

	seedUsers, err := seed.Users()
	exitOnError("seed users unreadable", err, bs.Log)
	created, err := userv.EnsureSeeded(ctx, seedUsers)
	exitOnError("user seeding failed", err, bs.Log)
	migrated, err := userv.MigratePasswords(ctx)
	exitOnError("password migration failed", err, bs.Log)
	bs.Log.Info("users ready", "seeded", created, "passwords_migrated", migrated)

	tserv := services.NewGuestTokenService(nil)
	if cfg.SupersetURL != "" {
		tserv = services.NewGuestTokenService(supersetclient.NewAdapter(supersetclient.Config{
			BaseURL:   cfg.SupersetURL,
			Username:  cfg.SupersetUsername,
			Password:  cfg.SupersetPassword,
			GuestTTL:  cfg.GuestTokenTTL,
			GuestUser: "portal",
		}))
	}
	renderer := embed.NewRenderer(services.NewTokenManager(tserv), embed.NewFilterInjector(cfg.DateFilterColumn))
	eserv := services.NewEmbedService(renderer, kv, dserv)

	upserv := services.NewUploadService(nil)
	if cfg.S3Bucket != "" {
		objects, err := store.NewObjectStore(ctx, store.ObjectStoreConfig{
			Endpoint:  cfg.S3Endpoint,
			PublicURL: cfg.S3PublicURL,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		exitOnError("object storage setup failed", err, bs.Log)
		upserv = services.NewUploadService(objects)
		checks["objects"] = objects
	}

	hserv := services.NewHealthService(string(cfg.Storage), repl, checks)

	// response handler
	rh := response.New(bs.Log)

	// dependencies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = rh
	deps.Middleware = middleware.NewMiddleware(sserv, rh)
	deps.LoginLimiter = middleware.NewRateLimiter(cfg.LoginRatePerMinute, rh)
	deps.AuthSvc = services.NewAuthService(ustore, dserv, sserv, hasher, nil)
	if bs.Firebase != nil {
		deps.AuthSvc = services.NewAuthService(ustore, dserv, sserv, hasher, bs.Firebase)
	}
	deps.UserSvc = userv
	deps.DashboardSvc = dserv
	deps.EmbedSvc = eserv
	deps.TokenSvc = tserv
	deps.UploadSvc = upserv
	deps.HealthSvc = hserv

	// router
	r := router.NewRouter(deps, router.Options{CORSOrigins: cfg.CORSOrigins})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Instrument(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		bs.Log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			bs.Log.Error("server start failed", "error", err)
			stop()
		}
	}()

	<-sigCtx.Done()
	bs.Log.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		bs.Log.Warn("server shutdown incomplete", "error", err)
	}
	if err := repl.Close(shutdownCtx); err != nil {
		bs.Log.Warn("replication queue not drained", "error", err, "stats", repl.Stats())
	}
}
