package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	sessionKeyPrefix  = "session:"
)

// keyValueStore is the expiring key-value store behind sessions and embed
// filter toggles. Get returns errs.NotFoundError for a missing key.
type keyValueStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type sessionService struct {
	kv  keyValueStore
	ttl time.Duration
	now func() time.Time
}

func NewSessionService(kv keyValueStore, ttl time.Duration) *sessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionService{kv: kv, ttl: ttl, now: time.Now}
}

// Create stores a new session for the given identity and returns it.
func (s *sessionService) Create(ctx context.Context, identity models.Session) (*models.Session, error) {
	now := s.now()
	sess := identity
	sess.ID = uuid.NewString()
	sess.IssuedAt = now
	sess.ExpiresAt = now.Add(s.ttl)

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKeyPrefix+sess.ID, string(data), s.ttl); err != nil {
		return nil, errs.NewDatabaseError("create", "failed to store session", err)
	}
	return &sess, nil
}

// Get returns a live session. Expired records are deleted on the way out.
func (s *sessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, errs.NewUnauthorizedError("session required")
	}
	raw, err := s.kv.Get(ctx, sessionKeyPrefix+id)
	if errs.IsNotFound(err) {
		return nil, errs.NewUnauthorizedError("session not found")
	}
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to read session", err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to decode session", err)
	}
	if sess.Expired(s.now()) {
		if err := s.kv.Delete(ctx, sessionKeyPrefix+id); err != nil {
			logger.FromContext(ctx).Warn("failed to delete expired session", "error", err)
		}
		return nil, errs.NewUnauthorizedError("session expired")
	}
	return &sess, nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return errs.NewDatabaseError("delete", "failed to delete session", err)
	}
	return nil
}
