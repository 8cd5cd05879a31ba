// Package bench drives the measurement loop: every cycle it calls each
// client once with a fresh transport.Probe and turns the probe into a Sample.
package bench

import (
	"context"
	"time"

	"github.com/appnet-org/wirebench/internal/client"
	"github.com/appnet-org/wirebench/pkg/forecast"
	"github.com/appnet-org/wirebench/pkg/logging"
	"github.com/appnet-org/wirebench/pkg/transport"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Observer receives every completed cycle.
type Observer interface {
	Observe(c Cycle)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(c Cycle)

// Observe implements Observer.
func (f ObserverFunc) Observe(c Cycle) { f(c) }

// Runner calls each client in order, once per cycle.
type Runner struct {
	clients   []client.Client
	clock     clockwork.Clock
	request   forecast.Request
	pause     time.Duration
	timeout   time.Duration
	clamp     bool
	maxCycles int
	observers []Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used for the pause and for probes.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithRequest sets the workload every client receives.
func WithRequest(req forecast.Request) Option {
	return func(r *Runner) { r.request = req }
}

// WithPause sets the wait before each cycle.
func WithPause(d time.Duration) Option {
	return func(r *Runner) { r.pause = d }
}

// WithRequestTimeout bounds each fetch. d <= 0 disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithClamp selects whether negative deserialization times are reported as zero.
func WithClamp(clamp bool) Option {
	return func(r *Runner) { r.clamp = clamp }
}

// WithMaxCycles stops Run after n cycles. n <= 0 runs until cancelled.
func WithMaxCycles(n int) Option {
	return func(r *Runner) { r.maxCycles = n }
}

// WithObserver adds a sink for completed cycles. Observers run in the order added.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// NewRunner creates a Runner over clients.
func NewRunner(clients []client.Client, opts ...Option) *Runner {
	r := &Runner{
		clients: clients,
		clock:   clockwork.NewRealClock(),
		request: forecast.Request{ReturnCount: forecast.DefaultReturnCount},
		pause:   time.Second,
		timeout: time.Minute,
		clamp:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run waits the pause, runs a cycle and hands it to the observers, until
// ctx is cancelled or the cycle limit is reached. Cancellation is not an error.
func (r *Runner) Run(ctx context.Context) error {
	for n := 0; r.maxCycles <= 0 || n < r.maxCycles; n++ {
		if err := r.wait(ctx); err != nil {
			logging.Info("Benchmark stopped", zap.Int("cycles", n))
			return nil
		}

		c := r.RunCycle(ctx)
		if ctx.Err() != nil {
			// A cycle cut short by cancellation is incomplete; drop it.
			logging.Info("Benchmark stopped", zap.Int("cycles", n))
			return nil
		}
		for _, o := range r.observers {
			o.Observe(c)
		}
	}
	logging.Info("Benchmark finished", zap.Int("cycles", r.maxCycles))
	return nil
}

func (r *Runner) wait(ctx context.Context) error {
	if r.pause <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(r.pause):
		return nil
	}
}

// RunCycle calls every client once, in order. A failing client is recorded
// in Cycle.Failures and does not stop the others. Once ctx is done no
// further client is called.
func (r *Runner) RunCycle(ctx context.Context) Cycle {
	c := Cycle{ID: uuid.New(), Started: r.clock.Now()}

	for _, cl := range r.clients {
		if ctx.Err() != nil {
			break
		}
		c.Clients = append(c.Clients, cl.Name())
		s, err := r.measure(ctx, cl)
		if err != nil {
			logging.Warn("Client failed",
				zap.Stringer("cycle", c.ID),
				zap.String("client", cl.Name()),
				zap.Error(err),
			)
			c.Failures = append(c.Failures, Failure{Client: cl.Name(), Err: err})
			continue
		}
		if s.Clamped {
			logging.Warn("Negative deserialization time",
				zap.Stringer("cycle", c.ID),
				zap.String("client", s.Client),
				zap.Bool("clamped", r.clamp),
				zap.Float64("deserializationSeconds", s.DeserializationSeconds),
			)
		}
		c.Samples = append(c.Samples, s)
	}

	logging.Debug("Cycle complete",
		zap.Stringer("cycle", c.ID),
		zap.Int("samples", len(c.Samples)),
		zap.Int("failures", len(c.Failures)),
	)
	return c
}

func (r *Runner) measure(ctx context.Context, cl client.Client) (Sample, error) {
	probe := transport.NewProbe(r.clock)
	ctx = transport.WithProbe(ctx, probe)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	n, err := cl.Fetch(ctx, r.request)
	total := probe.Elapsed()
	if err != nil {
		return Sample{}, err
	}

	s, err := ComputeSample(cl.Name(), probe, total, r.clamp)
	if err != nil {
		return Sample{}, err
	}
	s.Records = n
	return s, nil
}
