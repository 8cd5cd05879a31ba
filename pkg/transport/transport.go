// Package transport instruments outbound HTTP round trips so callers can split
// a request's latency into the wait for response headers and the time spent
// consuming the body.
//
// The mechanism is a plain http.RoundTripper, so it sits under any client
// built on net/http: a JSON client over HTTP/1.1 and a gRPC client over
// golang.org/x/net/http2 are measured the same way.
package transport

import (
	"net/http"
)

// Transport is an http.RoundTripper decorator. Requests whose context carries
// a Probe are measured; all others pass straight through.
//
// Transport keeps no per-request state and is safe for concurrent use. The
// Probe is not: each Probe must see at most one in-flight request.
type Transport struct {
	next http.RoundTripper
}

// Instrument decorates next. A nil next means http.DefaultTransport.
func Instrument(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	p := ProbeFrom(req.Context())
	if p == nil {
		return t.next.RoundTrip(req)
	}

	p.reset()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Headers are available now; nothing has touched the body yet.
	p.MarkHeaders()

	body := resp.Body
	if body == nil {
		body = http.NoBody
	}
	resp.Body = p.attach(body)
	return resp, nil
}

// Unwrap returns the decorated RoundTripper.
func (t *Transport) Unwrap() http.RoundTripper {
	return t.next
}

// CloseIdleConnections forwards to the decorated transport when supported,
// so http.Client.CloseIdleConnections keeps working through the decorator.
func (t *Transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.next.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}
