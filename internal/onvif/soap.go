// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package onvif

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1" // #nosec G505 -- mandated by the WS-Security UsernameToken profile
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	nsSOAP     = "http://www.w3.org/2003/05/soap-envelope"
	nsAddr     = "http://www.w3.org/2005/08/addressing"
	nsDevice   = "http://www.onvif.org/ver10/device/wsdl"
	nsEvents   = "http://www.onvif.org/ver10/events/wsdl"
	nsNotify   = "http://docs.oasis-open.org/wsn/b-2"
	nsSecurity = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	nsUtility  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"

	passwordDigestType = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest"
	nonceEncodingType  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"

	createdLayout = "2006-01-02T15:04:05.000Z"

	// maxEnvelopeBytes bounds response bodies read from a device.
	maxEnvelopeBytes = 4 << 20
)

type envelope struct {
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`
	Header  *header  `xml:"http://www.w3.org/2003/05/soap-envelope Header,omitempty"`
	Body    body     `xml:"http://www.w3.org/2003/05/soap-envelope Body"`
}

type header struct {
	Action   *addressing `xml:"http://www.w3.org/2005/08/addressing Action,omitempty"`
	To       *addressing `xml:"http://www.w3.org/2005/08/addressing To,omitempty"`
	Security *security   `xml:"http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd Security,omitempty"`
}

type addressing struct {
	Value string `xml:",chardata"`
}

type body struct {
	Content any
}

type security struct {
	UsernameToken usernameToken `xml:"http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd UsernameToken"`
}

type usernameToken struct {
	Username string       `xml:"http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd Username"`
	Password typedValue   `xml:"http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd Password"`
	Nonce    encodedValue `xml:"http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd Nonce"`
	Created  string       `xml:"http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd Created"`
}

type typedValue struct {
	Type  string `xml:"Type,attr"`
	Value string `xml:",chardata"`
}

type encodedValue struct {
	EncodingType string `xml:"EncodingType,attr"`
	Value        string `xml:",chardata"`
}

// passwordDigest computes base64(sha1(nonce + created + password)).
func passwordDigest(nonce []byte, created, password string) string {
	h := sha1.New() // #nosec G401
	h.Write(nonce)
	h.Write([]byte(created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func newUsernameToken(username, password string, now time.Time) (*security, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	created := now.UTC().Format(createdLayout)
	return &security{UsernameToken: usernameToken{
		Username: username,
		Password: typedValue{Type: passwordDigestType, Value: passwordDigest(nonce, created, password)},
		Nonce:    encodedValue{EncodingType: nonceEncodingType, Value: base64.StdEncoding.EncodeToString(nonce)},
		Created:  created,
	}}, nil
}

// marshalEnvelope renders a SOAP 1.2 request.
func marshalEnvelope(h *header, content any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(envelope{Header: h, Body: body{Content: content}}); err != nil {
		return nil, fmt.Errorf("encode soap envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// FaultError is a SOAP fault returned by a device.
type FaultError struct {
	Status  int
	Code    string
	Subcode string
	Reason  string
}

func (e *FaultError) Error() string {
	msg := "onvif: soap fault"
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Subcode != "" {
		msg += "/" + e.Subcode
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	return msg
}

// IsAuthFailure reports whether the fault rejects the credentials.
func (e *FaultError) IsAuthFailure() bool {
	return strings.HasSuffix(e.Subcode, "NotAuthorized") || strings.HasSuffix(e.Subcode, "FailedAuthentication")
}

type soapFault struct {
	Code struct {
		Value   string `xml:"Value"`
		Subcode struct {
			Value string `xml:"Value"`
		} `xml:"Subcode"`
	} `xml:"Code"`
	Reason struct {
		Text string `xml:"Text"`
	} `xml:"Reason"`
}

type responseEnvelope struct {
	Body struct {
		Fault   *soapFault `xml:"Fault"`
		Content []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

// ErrMalformed marks responses that are not a usable SOAP envelope.
var ErrMalformed = errors.New("onvif: malformed response")

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	// No entity expansion (XXE).
	dec.Entity = make(map[string]string)
	return dec
}

// decodeEnvelope unpacks a response body into out, or returns a *FaultError.
func decodeEnvelope(raw []byte, status int, out any) error {
	var env responseEnvelope
	if err := newDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f := env.Body.Fault; f != nil {
		return &FaultError{
			Status:  status,
			Code:    localName(f.Code.Value),
			Subcode: localName(f.Code.Subcode.Value),
			Reason:  strings.TrimSpace(f.Reason.Text),
		}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrMalformed, status)
	}
	if out == nil {
		return nil
	}
	if err := newDecoder(bytes.NewReader(env.Body.Content)).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// localName strips a namespace prefix ("ter:NotAuthorized" -> "NotAuthorized").
func localName(qname string) string {
	qname = strings.TrimSpace(qname)
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

// formatDuration renders an xs:duration in whole seconds.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("PT%dS", int64(d/time.Second))
}
