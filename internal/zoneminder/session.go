// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/ManuGH/zmonvif/internal/metrics"
	"github.com/rs/zerolog"
)

// expiryScale converts the advertised *_expires seconds into the lifetime
// the session trusts: 900ms per second, i.e. tokens are renewed after 90% of
// their advertised lifetime.
const expiryScale = 900 * time.Millisecond

// maxExpiresSeconds caps advertised lifetimes before scaling so the product
// stays inside time.Duration (ten years).
const maxExpiresSeconds = 10 * 365 * 24 * 60 * 60

const (
	loginModeRefresh  = "refresh"
	loginModePassword = "password"
)

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Credentials identify the single ZoneMinder account used by the process.
type Credentials struct {
	BaseURL  string // ends with "/", e.g. http://zm.local/zm/
	Username string
	Password string
}

// SessionStatus is a point-in-time view of the session for health checks.
type SessionStatus struct {
	Authenticated  bool
	AccessExpires  time.Time
	RefreshExpires time.Time
	LastLogin      time.Time
	LastError      error
}

// Session owns the access/refresh token pair and renews it on demand.
type Session struct {
	creds  Credentials
	http   Doer
	clock  clock
	logger zerolog.Logger

	loginMu sync.Mutex // serialises logins

	mu             sync.RWMutex
	accessToken    string
	accessExpires  time.Time
	refreshToken   string
	refreshExpires time.Time
	lastLogin      time.Time
	lastErr        error
}

// NewSession creates a session that logs in through doer.
func NewSession(creds Credentials, doer Doer) *Session {
	return &Session{
		creds:  creds,
		http:   doer,
		clock:  realClock{},
		logger: log.WithComponent("zoneminder.session"),
	}
}

// EnsureToken returns a valid access token, logging in first when no token
// exists or the current one has expired. Freshness is checked on every call.
func (s *Session) EnsureToken(ctx context.Context) (string, error) {
	if token, ok := s.current(); ok {
		return token, nil
	}

	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	// Another caller may have logged in while we waited.
	if token, ok := s.current(); ok {
		return token, nil
	}
	if err := s.login(ctx); err != nil {
		return "", err
	}
	token, _ := s.current()
	return token, nil
}

func (s *Session) current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" || !s.clock.Now().Before(s.accessExpires) {
		return "", false
	}
	return s.accessToken, true
}

func (s *Session) login(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	useRefresh := refreshToken != "" && s.clock.Now().Before(s.refreshExpires)
	s.mu.RUnlock()

	form := url.Values{}
	mode := loginModePassword
	if useRefresh {
		mode = loginModeRefresh
		form.Set("token", refreshToken)
	} else {
		form.Set("username", s.creds.Username)
		form.Set("password", s.creds.Password)
	}

	logger := log.WithContext(ctx, s.logger).With().Str(log.FieldMode, mode).Logger()
	logger.Debug().Msg("logging in to zoneminder")

	lr, err := s.postLogin(ctx, form)
	metrics.RecordLogin(mode, err == nil)

	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		if mode == loginModeRefresh && refreshRejected(err) {
			// A rejected refresh token is never retried; fall back to the password.
			s.refreshToken = ""
			s.refreshExpires = time.Time{}
		}
		logger.Error().Err(err).Msg("zoneminder login failed")
		return err
	}
	s.accessToken = lr.AccessToken
	s.accessExpires = now.Add(lifetime(lr.AccessTokenExpires))
	if lr.RefreshToken != "" {
		s.refreshToken = lr.RefreshToken
		s.refreshExpires = now.Add(lifetime(lr.RefreshTokenExpires))
	}
	s.lastLogin = now
	logger.Info().
		Time("access_expires", s.accessExpires).
		Time("refresh_expires", s.refreshExpires).
		Msg("zoneminder session established")
	return nil
}

// lifetime converts advertised *_expires seconds into the trusted lifetime.
func lifetime(expires flexInt) time.Duration {
	secs := int64(expires)
	switch {
	case secs < 0:
		secs = 0
	case secs > maxExpiresSeconds:
		secs = maxExpiresSeconds
	}
	return time.Duration(secs) * expiryScale
}

// refreshRejected reports whether the server refused the refresh token itself.
// Transport failures and server errors leave the token usable.
func refreshRejected(err error) bool {
	var zerr *ZMError
	if !errors.As(err, &zerr) {
		return false
	}
	return zerr.Status == http.StatusUnauthorized || zerr.Status == http.StatusForbidden
}

func (s *Session) postLogin(ctx context.Context, form url.Values) (*loginResponse, error) {
	const op = "login"
	body := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.creds.BaseURL+"api/host/login.json", strings.NewReader(body))
	if err != nil {
		return nil, &ZMError{Sentinel: ErrAuthentication, Operation: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.http.Do(req)
	if err != nil {
		return nil, &ZMError{Sentinel: ErrAuthentication, Operation: op, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, &ZMError{Sentinel: ErrAuthentication, Operation: op, Status: res.StatusCode, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &ZMError{Sentinel: ErrAuthentication, Operation: op, Status: res.StatusCode, Body: snippet(raw)}
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return nil, &ZMError{Sentinel: ErrAuthentication, Operation: op, Status: res.StatusCode, Err: err}
	}
	if lr.AccessToken == "" {
		return nil, &ZMError{Sentinel: ErrAuthentication, Operation: op, Status: res.StatusCode, Body: "response carries no access_token"}
	}
	return &lr, nil
}

// Status returns a snapshot of the session state.
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionStatus{
		Authenticated:  s.accessToken != "" && s.clock.Now().Before(s.accessExpires),
		AccessExpires:  s.accessExpires,
		RefreshExpires: s.refreshExpires,
		LastLogin:      s.lastLogin,
		LastError:      s.lastErr,
	}
}
