// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeZM is a minimal ZoneMinder API backed by httptest.
type fakeZM struct {
	t   *testing.T
	srv *httptest.Server

	mu             sync.Mutex
	requests       []string
	logins         int
	loginStatus    int
	accessExpires  int
	refreshExpires int // 0 = no refresh token issued
	rejectRefresh  bool
	monitorServer  map[int]string
	servers        map[string]*url.URL
	gatewayErrors  map[string]int // path -> remaining 504 answers
	statusOverride map[string]int
}

func newFakeZM(t *testing.T) *fakeZM {
	t.Helper()
	f := &fakeZM{
		t:              t,
		loginStatus:    http.StatusOK,
		accessExpires:  3600,
		refreshExpires: 86400,
		monitorServer:  map[int]string{},
		servers:        map[string]*url.URL{},
		gatewayErrors:  map[string]int{},
		statusOverride: map[string]int{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)

	self, err := url.Parse(f.srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	f.servers["1"] = self
	return f
}

func (f *fakeZM) baseURL() string { return f.srv.URL + "/" }

func (f *fakeZM) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeZM) Logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeZM) set(fn func(f *fakeZM)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeZM) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path+" "+r.PostForm.Encode())
	} else {
		f.requests = append(f.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	}

	if n := f.gatewayErrors[r.URL.Path]; n > 0 {
		f.gatewayErrors[r.URL.Path] = n - 1
		w.WriteHeader(http.StatusGatewayTimeout)
		return
	}
	if code, ok := f.statusOverride[r.URL.Path]; ok {
		http.Error(w, "forced failure", code)
		return
	}

	switch {
	case r.URL.Path == "/api/host/login.json":
		f.login(w, r)
	case r.URL.Path == "/api/servers.json":
		f.writeServers(w)
	case strings.HasPrefix(r.URL.Path, "/api/monitors/alarm/"):
		writeJSON(w, map[string]any{"status": "ok"})
	case strings.HasPrefix(r.URL.Path, "/api/monitors/"):
		idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/monitors/"), ".json")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{
			"monitor": map[string]any{
				"Monitor": map[string]any{"Id": strconv.Itoa(id), "Name": fmt.Sprintf("cam%d", id), "ServerId": f.monitorServer[id]},
			},
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeZM) login(w http.ResponseWriter, r *http.Request) {
	if f.loginStatus != http.StatusOK {
		http.Error(w, "denied", f.loginStatus)
		return
	}
	if r.PostForm.Get("token") != "" && f.rejectRefresh {
		http.Error(w, "refresh token rejected", http.StatusUnauthorized)
		return
	}
	f.logins++
	resp := map[string]any{
		"access_token":         fmt.Sprintf("tok%d", f.logins),
		"access_token_expires": f.accessExpires,
		"version":              "1.36.33",
		"apiversion":           "2.0",
	}
	if f.refreshExpires > 0 {
		resp["refresh_token"] = fmt.Sprintf("ref%d", f.logins)
		resp["refresh_token_expires"] = f.refreshExpires
	}
	writeJSON(w, resp)
}

func (f *fakeZM) writeServers(w http.ResponseWriter) {
	list := make([]map[string]any, 0, len(f.servers))
	for id, u := range f.servers {
		list = append(list, map[string]any{
			"Server": map[string]any{
				"Id":        id,
				"Name":      "zm" + id,
				"Protocol":  u.Scheme,
				"Hostname":  u.Hostname(),
				"Port":      u.Port(),
				"PathToApi": "/api",
			},
		})
	}
	writeJSON(w, map[string]any{"servers": list})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
