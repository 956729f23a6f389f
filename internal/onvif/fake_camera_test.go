// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package onvif

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const envelopeOpen = `<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"
 xmlns:tds="http://www.onvif.org/ver10/device/wsdl"
 xmlns:tev="http://www.onvif.org/ver10/events/wsdl"
 xmlns:tt="http://www.onvif.org/ver10/schema"
 xmlns:wsnt="http://docs.oasis-open.org/wsn/b-2"
 xmlns:wsa="http://www.w3.org/2005/08/addressing"
 xmlns:ter="http://www.onvif.org/ver10/error"><s:Body>`

const envelopeClose = `</s:Body></s:Envelope>`

const authFault = `<s:Fault><s:Code><s:Value>s:Sender</s:Value><s:Subcode><s:Value>ter:NotAuthorized</s:Value></s:Subcode></s:Code><s:Reason><s:Text xml:lang="en">Sender not authorized</s:Text></s:Reason></s:Fault>`

// capturedRequest is what the fake camera saw of one SOAP call.
type capturedRequest struct {
	Op       string
	Action   string
	To       string
	Username string
	Password string
	Nonce    string
	Created  string
}

func parseRequest(r io.Reader) (capturedRequest, error) {
	var out capturedRequest
	dec := xml.NewDecoder(r)
	var current string
	inBody := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
			if inBody && out.Op == "" {
				out.Op = current
			}
			if current == "Body" {
				inBody = true
			}
		case xml.EndElement:
			current = ""
		case xml.CharData:
			v := strings.TrimSpace(string(t))
			switch current {
			case "Action":
				out.Action = v
			case "To":
				out.To = v
			case "Username":
				out.Username = v
			case "Password":
				out.Password = v
			case "Nonce":
				out.Nonce = v
			case "Created":
				out.Created = v
			}
		}
	}
}

// fakeCamera answers the device and event service calls used by Camera.
type fakeCamera struct {
	t   *testing.T
	srv *httptest.Server

	mu              sync.Mutex
	requests        []capturedRequest
	deviceTime      time.Time
	requireAuth     bool
	password        string
	subscribeFaults int
	pending         [][]string // queued PullMessages payloads (NotificationMessage fragments)
	pullDelay       time.Duration
}

func newFakeCamera(t *testing.T) *fakeCamera {
	t.Helper()
	f := &fakeCamera{
		t:          t,
		deviceTime: time.Date(2030, 6, 1, 8, 30, 0, 0, time.UTC),
		password:   "secret",
		pullDelay:  5 * time.Millisecond,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCamera) hostPort() (string, int) {
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(f.srv.URL, "http://"))
	if err != nil {
		f.t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		f.t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func (f *fakeCamera) camera(username string) *Camera {
	host, port := f.hostPort()
	return NewCamera(Options{Address: host, Port: port, Username: username, Password: f.password, HTTPClient: f.srv.Client()})
}

func (f *fakeCamera) Requests() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func (f *fakeCamera) ops() []string {
	var ops []string
	for _, r := range f.Requests() {
		ops = append(ops, r.Op)
	}
	return ops
}

func (f *fakeCamera) queueEvents(fragments ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, fragments)
}

func (f *fakeCamera) serve(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	requireAuth := f.requireAuth
	password := f.password
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	if requireAuth && req.Op != "GetSystemDateAndTime" && !validDigest(req, password) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, envelopeOpen+authFault+envelopeClose)
		return
	}

	switch req.Op {
	case "GetSystemDateAndTime":
		d := f.deviceTime
		f.write(w, fmt.Sprintf(`<tds:GetSystemDateAndTimeResponse><tds:SystemDateAndTime><tt:DateTimeType>NTP</tt:DateTimeType><tt:UTCDateTime><tt:Time><tt:Hour>%d</tt:Hour><tt:Minute>%d</tt:Minute><tt:Second>%d</tt:Second></tt:Time><tt:Date><tt:Year>%d</tt:Year><tt:Month>%d</tt:Month><tt:Day>%d</tt:Day></tt:Date></tt:UTCDateTime></tds:SystemDateAndTime></tds:GetSystemDateAndTimeResponse>`,
			d.Hour(), d.Minute(), d.Second(), d.Year(), int(d.Month()), d.Day()))
	case "GetCapabilities":
		f.write(w, `<tds:GetCapabilitiesResponse><tds:Capabilities><tt:Events><tt:XAddr>`+f.srv.URL+`/onvif/event_service</tt:XAddr><tt:WSPullPointSupport>true</tt:WSPullPointSupport></tt:Events></tds:Capabilities></tds:GetCapabilitiesResponse>`)
	case "CreatePullPointSubscription":
		f.mu.Lock()
		fault := f.subscribeFaults > 0
		if fault {
			f.subscribeFaults--
		}
		f.mu.Unlock()
		if fault {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, envelopeOpen+`<s:Fault><s:Code><s:Value>s:Receiver</s:Value><s:Subcode><s:Value>ter:Action</s:Value></s:Subcode></s:Code><s:Reason><s:Text>too many subscriptions</s:Text></s:Reason></s:Fault>`+envelopeClose)
			return
		}
		f.write(w, `<tev:CreatePullPointSubscriptionResponse><tev:SubscriptionReference><wsa:Address>`+f.srv.URL+`/onvif/subscription/1</wsa:Address></tev:SubscriptionReference><wsnt:CurrentTime>2030-06-01T08:30:00Z</wsnt:CurrentTime><wsnt:TerminationTime>2030-06-01T08:31:00Z</wsnt:TerminationTime></tev:CreatePullPointSubscriptionResponse>`)
	case "PullMessages":
		f.mu.Lock()
		var batch []string
		if len(f.pending) > 0 {
			batch = f.pending[0]
			f.pending = f.pending[1:]
		}
		delay := f.pullDelay
		f.mu.Unlock()
		if len(batch) == 0 {
			time.Sleep(delay)
		}
		f.write(w, `<tev:PullMessagesResponse><tev:CurrentTime>2030-06-01T08:30:10Z</tev:CurrentTime><tev:TerminationTime>2030-06-01T08:31:10Z</tev:TerminationTime>`+strings.Join(batch, "")+`</tev:PullMessagesResponse>`)
	case "Renew":
		f.write(w, `<wsnt:RenewResponse><wsnt:TerminationTime>2030-06-01T08:32:00Z</wsnt:TerminationTime></wsnt:RenewResponse>`)
	case "Unsubscribe":
		f.write(w, `<wsnt:UnsubscribeResponse/>`)
	default:
		http.Error(w, "unknown operation "+req.Op, http.StatusBadRequest)
	}
}

func (f *fakeCamera) write(w http.ResponseWriter, inner string) {
	_, _ = io.WriteString(w, envelopeOpen+inner+envelopeClose)
}

func validDigest(req capturedRequest, password string) bool {
	nonce, err := decodeBase64(req.Nonce)
	if err != nil || req.Created == "" {
		return false
	}
	return req.Password == passwordDigest(nonce, req.Created, password)
}

func motionMessage(value string) string {
	return `<wsnt:NotificationMessage><wsnt:Topic Dialect="http://www.onvif.org/ver10/tev/topicExpression/ConcreteSet">tns1:RuleEngine/CellMotionDetector/Motion</wsnt:Topic><wsnt:Message><tt:Message UtcTime="2030-06-01T08:30:05Z" PropertyOperation="Changed"><tt:Source><tt:SimpleItem Name="VideoSourceConfigurationToken" Value="VideoSourceToken"/><tt:SimpleItem Name="Rule" Value="MyMotionDetectorRule"/></tt:Source><tt:Data><tt:SimpleItem Name="IsMotion" Value="` + value + `"/></tt:Data></tt:Message></wsnt:Message></wsnt:NotificationMessage>`
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
