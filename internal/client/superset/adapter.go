package supersetclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const (
	serviceName = "superset"

	loginPath      = "/api/v1/security/login"
	csrfPath       = "/api/v1/security/csrf_token/"
	guestTokenPath = "/api/v1/security/guest_token/"
	healthPath     = "/health"

	// DefaultGuestTokenTTL is assumed when a guest token carries no exp claim.
	DefaultGuestTokenTTL = 5 * time.Minute
	accessTokenTTL       = 30 * time.Minute
	requestTimeout       = 15 * time.Second
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	GuestTTL time.Duration
	// GuestUser is the identity recorded on issued guest tokens.
	GuestUser string
}

// Adapter talks to the Superset REST API as a service account.
type Adapter struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu          sync.Mutex
	accessToken string
	accessExp   time.Time
}

func NewAdapter(cfg Config) *Adapter {
	jar, _ := cookiejar.New(nil)
	return newAdapter(cfg, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   requestTimeout,
		Jar:       jar,
	})
}

func newAdapter(cfg Config, client *http.Client) *Adapter {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.GuestTTL <= 0 {
		cfg.GuestTTL = DefaultGuestTokenTTL
	}
	if cfg.GuestUser == "" {
		cfg.GuestUser = "portal-guest"
	}
	return &Adapter{cfg: cfg, http: client, now: time.Now}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Provider string `json:"provider"`
	Refresh  bool   `json:"refresh"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type csrfResponse struct {
	Result string `json:"result"`
}

type guestUser struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type guestResource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type guestTokenRequest struct {
	User      guestUser       `json:"user"`
	Resources []guestResource `json:"resources"`
	RLS       []any           `json:"rls"`
}

type guestTokenResponse struct {
	Token string `json:"token"`
}

// statusError carries a non-2xx response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("superset returned %d: %s", e.Code, e.Body)
}

func (a *Adapter) do(ctx context.Context, method, path, bearer string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// wrap turns a transport or status error into an ExternalServiceError.
// Network failures and 5xx responses are transient.
func wrap(msg string, err error) error {
	transient := true
	if se, ok := err.(*statusError); ok && se.Code < 500 {
		transient = false
	}
	return errs.NewExternalServiceError(serviceName, msg, transient, err)
}

// login returns a cached access token, logging in again when it is close
// to expiry.
func (a *Adapter) login(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && a.now().Add(time.Minute).Before(a.accessExp) {
		return a.accessToken, nil
	}

	var res loginResponse
	err := a.do(ctx, http.MethodPost, loginPath, "", nil, loginRequest{
		Username: a.cfg.Username,
		Password: a.cfg.Password,
		Provider: "db",
		Refresh:  true,
	}, &res)
	if err != nil {
		return "", wrap("superset login failed", err)
	}
	if res.AccessToken == "" {
		return "", errs.NewExternalServiceError(serviceName, "superset login returned no access token", false, nil)
	}

	a.accessToken = res.AccessToken
	a.accessExp = tokenExpiry(res.AccessToken, a.now().Add(accessTokenTTL))
	return a.accessToken, nil
}

func (a *Adapter) dropAccessToken() {
	a.mu.Lock()
	a.accessToken = ""
	a.mu.Unlock()
}

// GuestToken issues a guest token for one embedded resource.
func (a *Adapter) GuestToken(ctx context.Context, resourceType, id string) (dto.GuestToken, error) {
	log := logger.FromContext(ctx)

	access, err := a.login(ctx)
	if err != nil {
		return dto.GuestToken{}, err
	}

	var csrf csrfResponse
	if err := a.do(ctx, http.MethodGet, csrfPath, access, nil, nil, &csrf); err != nil {
		a.dropOnUnauthorized(err)
		return dto.GuestToken{}, wrap("failed to fetch csrf token", err)
	}

	var res guestTokenResponse
	err = a.do(ctx, http.MethodPost, guestTokenPath, access, map[string]string{
		"X-CSRFToken": csrf.Result,
		"Referer":     a.cfg.BaseURL + csrfPath,
	}, guestTokenRequest{
		User:      guestUser{Username: a.cfg.GuestUser, FirstName: "Portal", LastName: "Guest"},
		Resources: []guestResource{{Type: resourceType, ID: id}},
		RLS:       []any{},
	}, &res)
	if err != nil {
		a.dropOnUnauthorized(err)
		log.Warn("guest token request failed", "resource_type", resourceType, "resource_id", id, "error", err)
		return dto.GuestToken{}, wrap("failed to issue guest token", err)
	}
	if res.Token == "" {
		return dto.GuestToken{}, errs.NewExternalServiceError(serviceName, "superset returned an empty guest token", false, nil)
	}

	return dto.GuestToken{
		Token:        res.Token,
		ResourceType: resourceType,
		ResourceID:   id,
		ExpiresAt:    tokenExpiry(res.Token, a.now().Add(a.cfg.GuestTTL)),
	}, nil
}

func (a *Adapter) dropOnUnauthorized(err error) {
	if se, ok := err.(*statusError); ok && se.Code == http.StatusUnauthorized {
		a.dropAccessToken()
	}
}

// TestConnection probes the health endpoint and then the login.
func (a *Adapter) TestConnection(ctx context.Context) dto.ConnectionStatus {
	st := dto.ConnectionStatus{BaseURL: a.cfg.BaseURL}
	start := a.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+healthPath, nil)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	resp, err := a.http.Do(req)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	resp.Body.Close()
	st.LatencyMS = a.now().Sub(start).Milliseconds()
	if resp.StatusCode != http.StatusOK {
		st.Error = fmt.Sprintf("health check returned %d", resp.StatusCode)
		return st
	}
	st.Reachable = true

	if _, err := a.login(ctx); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Authenticated = true
	return st
}

// tokenExpiry reads the exp claim of a JWT without verifying it. Tokens
// that are not JWTs or carry no exp get the fallback.
func tokenExpiry(token string, fallback time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, ok := claims["exp"].(float64)
	if !ok || exp <= 0 {
		return fallback
	}
	return time.Unix(int64(exp), 0)
}
