package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Probe holds the measurements for one request/response pair: when the
// response headers arrived and how many body bytes the caller consumed.
//
// A Probe belongs to a single call. Create a fresh one per measured call
// and attach it to the request context with WithProbe. Only one request
// may be in flight per Probe; a second request through the same Probe
// overwrites the first one's values rather than adding to them.
type Probe struct {
	clock clockwork.Clock
	start time.Time

	mu        sync.Mutex
	headersAt time.Time
	doneAt    time.Time
	body      *CountingReader
}

// NewProbe starts a probe whose timer begins now on clock. A nil clock means the real clock.
func NewProbe(clock clockwork.Clock) *Probe {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Probe{clock: clock, start: clock.Now()}
}

// Start returns the instant the probe's timer began.
func (p *Probe) Start() time.Time {
	return p.start
}

// Elapsed returns the time since the probe was created.
func (p *Probe) Elapsed() time.Duration {
	return p.clock.Since(p.start)
}

// reset clears everything recorded by a previous request.
func (p *Probe) reset() {
	p.mu.Lock()
	p.headersAt = time.Time{}
	p.doneAt = time.Time{}
	p.body = nil
	p.mu.Unlock()
}

// MarkHeaders records that response headers are available.
func (p *Probe) MarkHeaders() {
	now := p.clock.Now()
	p.mu.Lock()
	p.headersAt = now
	p.mu.Unlock()
}

func (p *Probe) markDone() {
	now := p.clock.Now()
	p.mu.Lock()
	p.doneAt = now
	p.mu.Unlock()
}

// attach wraps body in a fresh CountingReader owned by this probe.
func (p *Probe) attach(body io.ReadCloser) *CountingReader {
	cr := NewCountingReader(body)
	cr.onEOF = p.markDone
	p.mu.Lock()
	p.body = cr
	p.mu.Unlock()
	return cr
}

// HeadersReceived reports whether the last request produced response headers.
func (p *Probe) HeadersReceived() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.headersAt.IsZero()
}

// NetworkWait returns the time from probe start to header arrival.
// The boolean is false when no headers were received.
func (p *Probe) NetworkWait() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.headersAt.IsZero() {
		return 0, false
	}
	return p.headersAt.Sub(p.start), true
}

// BodyConsumed returns the time from probe start to the body reaching EOF.
func (p *Probe) BodyConsumed() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doneAt.IsZero() {
		return 0, false
	}
	return p.doneAt.Sub(p.start), true
}

// BytesRead returns the body bytes consumed for the last request, or 0 when
// no body has been attached.
func (p *Probe) BytesRead() int64 {
	p.mu.Lock()
	body := p.body
	p.mu.Unlock()
	if body == nil {
		return 0
	}
	return body.BytesRead()
}

type probeKey struct{}

// WithProbe returns a copy of ctx carrying p.
func WithProbe(ctx context.Context, p *Probe) context.Context {
	return context.WithValue(ctx, probeKey{}, p)
}

// ProbeFrom returns the probe carried by ctx, or nil.
func ProbeFrom(ctx context.Context) *Probe {
	p, _ := ctx.Value(probeKey{}).(*Probe)
	return p
}
