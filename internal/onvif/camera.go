// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package onvif implements the subset of the ONVIF device and event services
// needed to follow camera motion events over a PullPoint subscription.
package onvif

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/ManuGH/zmonvif/internal/platform/httpx"
	"github.com/rs/zerolog"
)

const (
	DefaultPort = 80

	defaultTimeout     = 10 * time.Second
	devicePath         = "/onvif/device_service"
	actionCreatePull   = "http://www.onvif.org/ver10/events/wsdl/EventPortType/CreatePullPointSubscriptionRequest"
	actionPullMessages = "http://www.onvif.org/ver10/events/wsdl/PullPointSubscription/PullMessagesRequest"
	actionRenew        = "http://docs.oasis-open.org/wsn/bw-2/SubscriptionManager/RenewRequest"
	actionUnsubscribe  = "http://docs.oasis-open.org/wsn/bw-2/SubscriptionManager/UnsubscribeRequest"
)

// ErrNoEventService is returned when a device does not advertise events.
var ErrNoEventService = errors.New("onvif: device has no event service")

// Doer issues a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configure a Camera.
type Options struct {
	Address  string
	Port     int // defaults to 80
	Username string
	Password string

	// Timeout bounds each SOAP call; PullMessages adds its own long-poll
	// timeout on top.
	Timeout    time.Duration
	HTTPClient Doer
}

// Subscription is an active PullPoint subscription.
type Subscription struct {
	Address         string
	TerminationTime time.Time // device clock
}

// Camera talks SOAP to one ONVIF device.
type Camera struct {
	deviceURL string
	username  string
	password  string
	http      Doer
	now       func() time.Time
	logger    zerolog.Logger

	mu         sync.RWMutex
	offset     time.Duration // device clock minus local clock
	eventsAddr string
}

// NewCamera builds a client for the device service at address:port.
func NewCamera(opts Options) *Camera {
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	doer := opts.HTTPClient
	if doer == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		doer = httpx.NewClient(timeout+defaultPullTimeout, httpx.WithLongPoll(), httpx.WithTracing("onvif"))
	}
	host := net.JoinHostPort(opts.Address, strconv.Itoa(port))
	return &Camera{
		deviceURL: "http://" + host + devicePath,
		username:  opts.Username,
		password:  opts.Password,
		http:      doer,
		now:       time.Now,
		logger:    log.WithComponent("onvif").With().Str(log.FieldCamera, host).Logger(),
	}
}

// DeviceURL returns the device service endpoint.
func (c *Camera) DeviceURL() string {
	return c.deviceURL
}

// EventsAddress returns the event service XAddr discovered by Connect.
func (c *Camera) EventsAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventsAddr
}

// Reset forgets the discovered event service so the next session reconnects.
func (c *Camera) Reset() {
	c.mu.Lock()
	c.eventsAddr = ""
	c.mu.Unlock()
}

type getSystemDateAndTime struct {
	XMLName xml.Name `xml:"http://www.onvif.org/ver10/device/wsdl GetSystemDateAndTime"`
}

type systemDateAndTimeResponse struct {
	UTC struct {
		Date struct {
			Year  int `xml:"Year"`
			Month int `xml:"Month"`
			Day   int `xml:"Day"`
		} `xml:"Date"`
		Time struct {
			Hour   int `xml:"Hour"`
			Minute int `xml:"Minute"`
			Second int `xml:"Second"`
		} `xml:"Time"`
	} `xml:"SystemDateAndTime>UTCDateTime"`
}

type getCapabilities struct {
	XMLName  xml.Name `xml:"http://www.onvif.org/ver10/device/wsdl GetCapabilities"`
	Category string   `xml:"http://www.onvif.org/ver10/device/wsdl Category"`
}

type capabilitiesResponse struct {
	EventsXAddr string `xml:"Capabilities>Events>XAddr"`
}

// Connect reads the device clock and discovers the event service.
func (c *Camera) Connect(ctx context.Context) error {
	var dt systemDateAndTimeResponse
	if err := c.call(ctx, c.deviceURL, "", &getSystemDateAndTime{}, false, &dt); err != nil {
		return fmt.Errorf("get system date and time: %w", err)
	}
	if dt.UTC.Date.Year > 0 {
		u := dt.UTC
		device := time.Date(u.Date.Year, time.Month(u.Date.Month), u.Date.Day, u.Time.Hour, u.Time.Minute, u.Time.Second, 0, time.UTC)
		c.mu.Lock()
		c.offset = device.Sub(c.now())
		c.mu.Unlock()
	}

	var caps capabilitiesResponse
	if err := c.call(ctx, c.deviceURL, "", &getCapabilities{Category: "Events"}, true, &caps); err != nil {
		return fmt.Errorf("get capabilities: %w", err)
	}
	addr := strings.TrimSpace(caps.EventsXAddr)
	if addr == "" {
		return ErrNoEventService
	}

	c.mu.Lock()
	c.eventsAddr = addr
	offset := c.offset
	c.mu.Unlock()

	c.logger.Info().
		Str(log.FieldURL, addr).
		Dur("clock_offset", offset).
		Msg("connected to camera")
	return nil
}

type createPullPointSubscription struct {
	XMLName                xml.Name `xml:"http://www.onvif.org/ver10/events/wsdl CreatePullPointSubscription"`
	InitialTerminationTime string   `xml:"http://www.onvif.org/ver10/events/wsdl InitialTerminationTime"`
}

type createPullPointResponse struct {
	Address         string `xml:"SubscriptionReference>Address"`
	TerminationTime string `xml:"TerminationTime"`
}

// Subscribe creates a PullPoint subscription that lives for ttl unless renewed.
func (c *Camera) Subscribe(ctx context.Context, ttl time.Duration) (*Subscription, error) {
	addr := c.EventsAddress()
	if addr == "" {
		return nil, ErrNoEventService
	}
	var resp createPullPointResponse
	req := &createPullPointSubscription{InitialTerminationTime: formatDuration(ttl)}
	if err := c.call(ctx, addr, actionCreatePull, req, true, &resp); err != nil {
		return nil, fmt.Errorf("create pull point subscription: %w", err)
	}
	sub := &Subscription{Address: strings.TrimSpace(resp.Address)}
	if sub.Address == "" {
		return nil, fmt.Errorf("create pull point subscription: %w: no subscription address", ErrMalformed)
	}
	sub.TerminationTime = parseTime(resp.TerminationTime)
	return sub, nil
}

type pullMessages struct {
	XMLName      xml.Name `xml:"http://www.onvif.org/ver10/events/wsdl PullMessages"`
	Timeout      string   `xml:"http://www.onvif.org/ver10/events/wsdl Timeout"`
	MessageLimit int      `xml:"http://www.onvif.org/ver10/events/wsdl MessageLimit"`
}

type pullMessagesResponse struct {
	TerminationTime string                `xml:"TerminationTime"`
	Messages        []notificationMessage `xml:"NotificationMessage"`
}

// Pull waits up to timeout for at most limit notifications.
func (c *Camera) Pull(ctx context.Context, sub *Subscription, timeout time.Duration, limit int) ([]Event, error) {
	var resp pullMessagesResponse
	req := &pullMessages{Timeout: formatDuration(timeout), MessageLimit: limit}
	if err := c.call(ctx, sub.Address, actionPullMessages, req, true, &resp); err != nil {
		return nil, fmt.Errorf("pull messages: %w", err)
	}
	if t := parseTime(resp.TerminationTime); !t.IsZero() {
		sub.TerminationTime = t
	}
	events := make([]Event, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		events = append(events, m.event())
	}
	return events, nil
}

type renew struct {
	XMLName         xml.Name `xml:"http://docs.oasis-open.org/wsn/b-2 Renew"`
	TerminationTime string   `xml:"http://docs.oasis-open.org/wsn/b-2 TerminationTime"`
}

type renewResponse struct {
	TerminationTime string `xml:"TerminationTime"`
}

// Renew extends the subscription by ttl.
func (c *Camera) Renew(ctx context.Context, sub *Subscription, ttl time.Duration) error {
	var resp renewResponse
	if err := c.call(ctx, sub.Address, actionRenew, &renew{TerminationTime: formatDuration(ttl)}, true, &resp); err != nil {
		return fmt.Errorf("renew subscription: %w", err)
	}
	if t := parseTime(resp.TerminationTime); !t.IsZero() {
		sub.TerminationTime = t
	}
	return nil
}

type unsubscribe struct {
	XMLName xml.Name `xml:"http://docs.oasis-open.org/wsn/b-2 Unsubscribe"`
}

// Unsubscribe releases the subscription on the device.
func (c *Camera) Unsubscribe(ctx context.Context, sub *Subscription) error {
	if err := c.call(ctx, sub.Address, actionUnsubscribe, &unsubscribe{}, true, nil); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// call posts one SOAP request to endpoint and decodes the reply into out.
func (c *Camera) call(ctx context.Context, endpoint, action string, content any, auth bool, out any) error {
	h := &header{}
	if action != "" {
		h.Action = &addressing{Value: action}
		h.To = &addressing{Value: endpoint}
	}
	if auth && c.username != "" {
		c.mu.RLock()
		deviceNow := c.now().Add(c.offset)
		c.mu.RUnlock()
		sec, err := newUsernameToken(c.username, c.password, deviceNow)
		if err != nil {
			return err
		}
		h.Security = sec
	}
	if h.Action == nil && h.Security == nil {
		h = nil
	}

	payload, err := marshalEnvelope(h, content)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	contentType := `application/soap+xml; charset=utf-8`
	if action != "" {
		contentType += `; action="` + action + `"`
	}
	req.Header.Set("Content-Type", contentType)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxEnvelopeBytes))
	if err != nil {
		return err
	}
	return decodeEnvelope(raw, res.StatusCode, out)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
