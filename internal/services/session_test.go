package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/helpers"
)

// fakeKV is a map-backed keyValueStore that records TTLs.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	setErr  error
	getErr  error
	deletes int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", errs.NewNotFoundError("key not found")
	}
	return v, nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.data, key)
	return nil
}

func TestSessionCreateAndGet(t *testing.T) {
	kv := newFakeKV()
	svc := NewSessionService(kv, 0)

	sess, err := svc.Create(helpers.TestCtx(), models.Session{UserID: "u1", Email: "a@example.com", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected session id")
	}
	if got := sess.ExpiresAt.Sub(sess.IssuedAt); got != DefaultSessionTTL {
		t.Errorf("expected default ttl, got %v", got)
	}
	if kv.ttls["session:"+sess.ID] != DefaultSessionTTL {
		t.Errorf("expected store ttl to match, got %v", kv.ttls["session:"+sess.ID])
	}

	got, err := svc.Get(helpers.TestCtx(), sess.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.UserID != "u1" || got.Role != models.RoleAdmin {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestSessionGet_ExpiredIsDeleted(t *testing.T) {
	kv := newFakeKV()
	svc := NewSessionService(kv, time.Hour)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	sess, err := svc.Create(helpers.TestCtx(), models.Session{UserID: "u1", Role: models.RoleSystem})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = svc.Get(helpers.TestCtx(), sess.ID)

	var ue *errs.UnauthorizedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if _, ok := kv.data["session:"+sess.ID]; ok {
		t.Error("expired session should be removed from the store")
	}
}

func TestSessionGet_Missing(t *testing.T) {
	svc := NewSessionService(newFakeKV(), 0)

	for _, id := range []string{"", "nope"} {
		_, err := svc.Get(helpers.TestCtx(), id)
		var ue *errs.UnauthorizedError
		if !errors.As(err, &ue) {
			t.Errorf("id %q: expected UnauthorizedError, got %v", id, err)
		}
	}
}

func TestSessionGet_StoreFailure(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("connection refused")
	svc := NewSessionService(kv, 0)

	_, err := svc.Get(helpers.TestCtx(), "abc")

	var de *errs.DatabaseError
	if !errors.As(err, &de) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
}

func TestSessionDelete(t *testing.T) {
	kv := newFakeKV()
	svc := NewSessionService(kv, 0)
	sess, _ := svc.Create(helpers.TestCtx(), models.Session{UserID: "u1", Role: models.RoleSystem})

	if err := svc.Delete(helpers.TestCtx(), sess.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(helpers.TestCtx(), sess.ID); err == nil {
		t.Error("expected deleted session to be gone")
	}
}
