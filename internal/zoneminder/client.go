// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/ManuGH/zmonvif/internal/metrics"
	"github.com/ManuGH/zmonvif/internal/platform/httpx"
	xnet "github.com/ManuGH/zmonvif/internal/platform/net"
	"github.com/ManuGH/zmonvif/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
)

// Options configure a Client.
type Options struct {
	BaseURL  string // ZoneMinder web root, e.g. http://zm.local/zm/
	Username string
	Password string

	Timeout     time.Duration // per request; defaults to 30s
	InsecureTLS bool          // accept self-signed certificates
	Retry       RetryPolicy

	// HTTPClient overrides the transport built from Timeout/InsecureTLS.
	HTTPClient Doer

	clock clock
}

// Client exposes the ZoneMinder operations the bridge needs. All operations
// are queued; nothing talks to the server on the caller's goroutine.
type Client struct {
	base    string // web root, ends with "/"
	apiBase string // {base}api
	http    Doer
	session *Session
	queue   *Queue
	logger  zerolog.Logger

	mu       sync.RWMutex
	servers  map[string]string // server id -> API base URL
	monitors map[int]string    // monitor id -> server id
}

// New builds a client and enqueues the initial server directory load. ctx
// bounds every request issued by the client.
func New(ctx context.Context, opts Options) (*Client, error) {
	base, err := normalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	doer := opts.HTTPClient
	if doer == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		clientOpts := []httpx.Option{httpx.WithTracing("zoneminder")}
		if opts.InsecureTLS {
			clientOpts = append(clientOpts, httpx.WithInsecureTLS())
		}
		doer = httpx.NewClient(timeout, clientOpts...)
	}
	retry := NewRetryClient(doer, opts.Retry)

	session := NewSession(Credentials{
		BaseURL:  base,
		Username: opts.Username,
		Password: opts.Password,
	}, retry)
	if opts.clock != nil {
		session.clock = opts.clock
	}

	c := &Client{
		base:     base,
		apiBase:  base + "api",
		http:     retry,
		session:  session,
		queue:    NewQueue(ctx, session),
		logger:   log.WithComponent("zoneminder"),
		servers:  make(map[string]string),
		monitors: make(map[int]string),
	}
	c.LoadServers()
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("zoneminder: base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("zoneminder: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("zoneminder: unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("zoneminder: base URL must have a host")
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw, nil
}

// Session returns the token manager, mainly for health reporting.
func (c *Client) Session() *Session {
	return c.session
}

// Pending reports the number of queued units not yet started.
func (c *Client) Pending() int {
	return c.queue.Len()
}

// Wait blocks until every queued unit has run or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	return c.queue.Wait(ctx)
}

// LoadServers refreshes the server directory from servers.json.
func (c *Client) LoadServers() <-chan error {
	return c.queue.Enqueue("load_servers", c.loadServers)
}

func (c *Client) loadServers(ctx context.Context, token string) error {
	var sr serversResponse
	if err := c.getJSON(ctx, "servers", c.apiBase+"/servers.json", token, &sr); err != nil {
		return err
	}

	servers := make(map[string]string, len(sr.Servers))
	for _, s := range sr.Servers {
		id := string(s.Server.ID)
		if id == "" {
			continue
		}
		servers[id] = serverAPIBase(s.Server)
	}

	c.mu.Lock()
	c.servers = servers
	c.mu.Unlock()
	metrics.SetServersKnown(len(servers))

	logger := log.WithContext(ctx, c.logger)
	logger.Info().Int("servers", len(servers)).Msg("loaded zoneminder servers")
	for id, base := range servers {
		logger.Debug().Str(log.FieldServerID, id).Str(log.FieldBaseURL, base).Msg("zoneminder server")
	}
	return nil
}

// serverAPIBase composes protocol://host:port/pathToApi without a trailing slash.
func serverAPIBase(s server) string {
	protocol := s.Protocol
	if protocol == "" {
		protocol = "http"
	}
	host := s.Hostname
	if port := string(s.Port); port != "" {
		host = host + ":" + port
	}
	path := strings.Trim(s.PathToAPI, "/")
	if path == "" {
		return protocol + "://" + host
	}
	return protocol + "://" + host + "/" + path
}

// GetMonitorData refreshes the routing entry of one monitor.
func (c *Client) GetMonitorData(monitorID int) <-chan error {
	return c.queue.Enqueue("monitor_data", func(ctx context.Context, token string) error {
		return c.getMonitorData(log.ContextWithMonitorID(ctx, monitorID), token, monitorID)
	})
}

func (c *Client) getMonitorData(ctx context.Context, token string, monitorID int) error {
	trace.SpanFromContext(ctx).SetAttributes(telemetry.MonitorAttributes(monitorID, "")...)
	var mr monitorResponse
	endpoint := c.apiBase + "/monitors/" + strconv.Itoa(monitorID) + ".json"
	if err := c.getJSON(ctx, "monitor", endpoint, token, &mr); err != nil {
		return err
	}
	serverID := string(mr.Monitor.Monitor.ServerID)

	c.mu.Lock()
	prev, known := c.monitors[monitorID]
	c.monitors[monitorID] = serverID
	c.mu.Unlock()

	if !known || prev != serverID {
		logger := log.WithContext(ctx, c.logger)
		logger.Debug().
			Str(log.FieldServerID, serverID).
			Msg("monitor routed to server")
	}
	return nil
}

// SetAlarm refreshes the monitor's routing and then switches its alarm on or
// off. Both steps go through the global queue. The returned channel carries
// the alarm command's result.
func (c *Client) SetAlarm(monitorID int, on bool) <-chan error {
	c.logger.Info().
		Int(log.FieldMonitorID, monitorID).
		Str(log.FieldCommand, alarmCommand(on)).
		Msg("setting monitor alarm")

	c.GetMonitorData(monitorID)
	return c.queue.Enqueue("alarm", func(ctx context.Context, token string) error {
		return c.sendAlarm(log.ContextWithMonitorID(ctx, monitorID), token, monitorID, on)
	})
}

func (c *Client) sendAlarm(ctx context.Context, token string, monitorID int, on bool) error {
	cmd := alarmCommand(on)
	logger := log.WithContext(ctx, c.logger)
	trace.SpanFromContext(ctx).SetAttributes(telemetry.MonitorAttributes(monitorID, cmd)...)
	base, err := c.resolve(monitorID)
	if err != nil {
		metrics.IncRoutingMiss()
		logger.Warn().
			Err(err).
			Str(log.FieldBaseURL, c.apiBase).
			Msg("monitor server unknown, using primary api")
		base = c.apiBase
	}

	endpoint := fmt.Sprintf("%s/monitors/alarm/id:%d/command:%s.json", base, monitorID, cmd)
	err = c.getJSON(ctx, "alarm", endpoint, token, nil)
	metrics.RecordAlarmCommand(cmd, err == nil)
	if err != nil {
		return err
	}
	logger.Info().Str(log.FieldCommand, cmd).Msg("monitor alarm set")
	return nil
}

// resolve maps a monitor to the API base of its owning server.
func (c *Client) resolve(monitorID int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	serverID, ok := c.monitors[monitorID]
	if !ok || serverID == "" || serverID == "0" {
		return "", fmt.Errorf("%w: monitor %d has no server", ErrRoutingMiss, monitorID)
	}
	base, ok := c.servers[serverID]
	if !ok {
		return "", fmt.Errorf("%w: server %s not in directory", ErrRoutingMiss, serverID)
	}
	return base, nil
}

// ServerURL returns the API base of a known server.
func (c *Client) ServerURL(serverID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	base, ok := c.servers[serverID]
	return base, ok
}

// MonitorServer returns the cached server id of a monitor.
func (c *Client) MonitorServer(monitorID int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.monitors[monitorID]
	return id, ok
}

func alarmCommand(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// getJSON issues an authenticated GET and decodes the body into out (if non-nil).
func (c *Client) getJSON(ctx context.Context, op, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		return &ZMError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &ZMError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: xnet.RedactURLError(err)}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return &ZMError{Sentinel: ErrUpstreamUnavailable, Operation: op, Status: res.StatusCode, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &ZMError{Sentinel: ErrUpstreamStatus, Operation: op, Status: res.StatusCode, Body: snippet(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ZMError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
	}
	return nil
}
