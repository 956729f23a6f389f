// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(f *fakeZM, clk clock) *Session {
	s := NewSession(Credentials{BaseURL: f.baseURL(), Username: "u", Password: "p"}, NewRetryClient(f.srv.Client(), RetryPolicy{}))
	s.clock = clk
	return s
}

func TestSession_ConcurrentCallersShareOneLogin(t *testing.T) {
	f := newFakeZM(t)
	s := newTestSession(f, newFakeClock())

	var wg sync.WaitGroup
	tokens := make([]string, 10)
	for i := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := s.EnsureToken(t.Context())
			assert.NoError(t, err)
			tokens[i] = tok
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.Logins())
	for _, tok := range tokens {
		assert.Equal(t, "tok1", tok)
	}
}

func TestSession_ExpiryScaled(t *testing.T) {
	f := newFakeZM(t)
	f.set(func(f *fakeZM) {
		f.accessExpires = 1000
		f.refreshExpires = 2000
	})
	clk := newFakeClock()
	start := clk.Now()
	s := newTestSession(f, clk)

	_, err := s.EnsureToken(t.Context())
	require.NoError(t, err)

	st := s.Status()
	assert.True(t, st.Authenticated)
	assert.Equal(t, start.Add(900*time.Second), st.AccessExpires)
	assert.Equal(t, start.Add(1800*time.Second), st.RefreshExpires)
	assert.Equal(t, start, st.LastLogin)
	assert.NoError(t, st.LastError)

	clk.Advance(900 * time.Second)
	assert.False(t, s.Status().Authenticated, "token expires exactly at the scaled deadline")
}

func TestSession_HugeExpiryClamped(t *testing.T) {
	f := newFakeZM(t)
	f.set(func(f *fakeZM) {
		f.accessExpires = 1 << 40
		f.refreshExpires = 1 << 40
	})
	clk := newFakeClock()
	start := clk.Now()
	s := newTestSession(f, clk)

	_, err := s.EnsureToken(t.Context())
	require.NoError(t, err)

	st := s.Status()
	want := start.Add(time.Duration(maxExpiresSeconds) * expiryScale)
	assert.Equal(t, want, st.AccessExpires)
	assert.Equal(t, want, st.RefreshExpires)
	assert.True(t, st.Authenticated)
}

func TestSession_MissingRefreshTokenKeepsPasswordMode(t *testing.T) {
	f := newFakeZM(t)
	f.set(func(f *fakeZM) {
		f.accessExpires = 10
		f.refreshExpires = 0
	})
	clk := newFakeClock()
	s := newTestSession(f, clk)

	_, err := s.EnsureToken(t.Context())
	require.NoError(t, err)
	clk.Advance(time.Minute)
	tok, err := s.EnsureToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "tok2", tok)

	assert.Equal(t, []string{
		"POST /api/host/login.json password=p&username=u",
		"POST /api/host/login.json password=p&username=u",
	}, f.Requests())
}
