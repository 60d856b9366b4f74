// Package ctlog provides the HTTP client shared by the downloader and the
// log directory resolver: every outbound request to a CT log or its
// directory goes through NewInstrumentedClient so it carries OpenTelemetry
// spans and a fixed User-Agent, the same otelhttp-wrapping idiom this
// package's teacher used for its inbound add-chain/add-pre-chain handlers,
// redirected here to outbound egress instead.
package ctlog

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultUserAgent is used by cmd/ctoidscan when no override is configured.
const DefaultUserAgent = "ctoidscan/1.0"

// NewInstrumentedClient returns an *http.Client whose RoundTripper wraps
// http.DefaultTransport with OpenTelemetry instrumentation and sets a fixed
// User-Agent header on every outbound request.
func NewInstrumentedClient(userAgent string) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	base := &userAgentTransport{
		userAgent: userAgent,
		base:      http.DefaultTransport,
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(base),
	}
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
