package httpx

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
)

type clientOptions struct {
	insecureTLS   bool
	longPoll      bool
	tracingPrefix string
}

// Option customises NewClient.
type Option func(*clientOptions)

// WithInsecureTLS disables certificate verification (self-signed NVRs and cameras).
func WithInsecureTLS() Option {
	return func(o *clientOptions) { o.insecureTLS = true }
}

// WithLongPoll lifts the response header cap so that servers holding a
// request open (ONVIF PullMessages) are bounded by the client timeout only.
func WithLongPoll() Option {
	return func(o *clientOptions) { o.longPoll = true }
}

// WithTracing wraps the transport with otelhttp; spans are named "<prefix> <METHOD>".
func WithTracing(prefix string) Option {
	return func(o *clientOptions) { o.tracingPrefix = prefix }
}

// NewClient returns a hardened HTTP client for upstream APIs and ops probes.
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	dialTimeout := timeout
	if dialTimeout > defaultDialTimeout {
		dialTimeout = defaultDialTimeout
	}

	responseHeaderTimeout := timeout
	if !o.longPoll && responseHeaderTimeout > defaultResponseHeaderTimeout {
		responseHeaderTimeout = defaultResponseHeaderTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	if o.insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for self-signed devices
	}

	var rt http.RoundTripper = transport
	if o.tracingPrefix != "" {
		prefix := o.tracingPrefix
		rt = otelhttp.NewTransport(transport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return prefix + " " + r.Method
			}),
		)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}
