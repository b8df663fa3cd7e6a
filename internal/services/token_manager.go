package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/embed"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

// tokenValidityMargin is how long a cached token must still be valid
// for it to be handed out again. Tokens issued with a lifetime at or below
// the margin (Superset's default is 5 minutes) are never reused.
const tokenValidityMargin = 5 * time.Minute

var errNoGuestToken = errors.New("issuer returned no token")

type guestTokenIssuer interface {
	IssueGuestToken(ctx context.Context, req dto.GuestTokenRequest) (*dto.GuestToken, error)
}

// TokenManager caches guest tokens per resource. A nil token tells the
// caller to fall back to a plain iframe.
type TokenManager struct {
	issuer guestTokenIssuer
	now    func() time.Time
	group  singleflight.Group

	mu    sync.Mutex
	cache map[string]dto.GuestToken
}

func NewTokenManager(issuer guestTokenIssuer) *TokenManager {
	return &TokenManager{
		issuer: issuer,
		now:    time.Now,
		cache:  make(map[string]dto.GuestToken),
	}
}

func cacheKey(resourceType, id string) string {
	return resourceType + "-" + id
}

// Token returns a usable guest token or nil. Charts never get one and
// issuer failures are logged, not returned.
func (m *TokenManager) Token(ctx context.Context, resourceType, id string) *dto.GuestToken {
	if resourceType == string(embed.ResourceChart) || id == "" {
		return nil
	}
	key := cacheKey(resourceType, id)

	if tok, ok := m.cached(key); ok {
		return &tok
	}

	// Concurrent misses for one resource share a single fetch. The lock is
	// not held while the issuer runs.
	v, err, _ := m.group.Do(key, func() (any, error) {
		tok, err := m.issuer.IssueGuestToken(ctx, dto.GuestTokenRequest{DashboardID: id, Type: resourceType})
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, errNoGuestToken
		}
		m.mu.Lock()
		m.cache[key] = *tok
		m.mu.Unlock()
		return *tok, nil
	})
	if err != nil {
		logger.FromContext(ctx).Warn("guest token unavailable, using iframe fallback", "resource", key, "error", err)
		m.mu.Lock()
		delete(m.cache, key)
		m.mu.Unlock()
		return nil
	}
	out := v.(dto.GuestToken)
	return &out
}

func (m *TokenManager) cached(key string) (dto.GuestToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.cache[key]
	if !ok || !tok.ExpiresAt.After(m.now().Add(tokenValidityMargin)) {
		return dto.GuestToken{}, false
	}
	return tok, true
}

// Invalidate drops the cached token for a resource.
func (m *TokenManager) Invalidate(resourceType, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, cacheKey(resourceType, id))
}
