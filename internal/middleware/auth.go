package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/internal/response"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const SessionHeader = "X-Session-ID"

type sessionLookup interface {
	Get(ctx context.Context, id string) (*models.Session, error)
}

type Middleware struct {
	Sessions        sessionLookup
	ResponseHandler response.ResponseHandler
}

func NewMiddleware(sessions sessionLookup, rh response.ResponseHandler) *Middleware {
	return &Middleware{Sessions: sessions, ResponseHandler: rh}
}

// context key
type contextKey string

const sessionKey contextKey = "session"

// SessionID reads the session id from a bearer token or the session header.
func SessionID(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}

// RequireSession rejects requests without a live session and stores the
// session in the request context.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := SessionID(r)
		if id == "" {
			m.ResponseHandler.HandleError(w, r, errs.NewUnauthorizedError("missing session"))
			return
		}

		sess, err := m.Sessions.Get(r.Context(), id)
		if err != nil {
			if errs.IsNotFound(err) {
				err = errs.NewUnauthorizedError("invalid or expired session")
			}
			m.ResponseHandler.HandleError(w, r, err)
			return
		}

		_, ctx := logger.With(r.Context(), "user_id", sess.UserID, "role", sess.Role)
		ctx = WithSession(ctx, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireSession.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Session(r.Context()).IsAdmin() {
			m.ResponseHandler.HandleError(w, r, errs.NewForbiddenError("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithSession(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// Helper to extract the session
func Session(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(sessionKey).(*models.Session)
	return sess
}
