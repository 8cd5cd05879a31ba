// Package relay forwards TCP connections to a fixed upstream, optionally
// holding back every upstream chunk for a fixed latency. Placed between the
// benchmark and the forecast services it stretches the network share of a
// call without touching either side.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/appnet-org/wirebench/pkg/logging"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const chunkSize = 32 << 10

// Relay forwards accepted connections to a single upstream address.
type Relay struct {
	upstream string
	latency  time.Duration
	clock    clockwork.Clock
	dialer   net.Dialer
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock sets the clock that schedules delayed chunks.
func WithClock(c clockwork.Clock) Option {
	return func(r *Relay) { r.clock = c }
}

// New creates a relay to upstream. Bytes flowing back to the client are
// delayed by latency; 0 forwards them immediately.
func New(upstream string, latency time.Duration, opts ...Option) *Relay {
	r := &Relay{upstream: upstream, latency: latency, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Serve accepts connections on lis until ctx is done.
func (r *Relay) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.handle(ctx, conn)
		}()
	}
}

func (r *Relay) handle(ctx context.Context, clientConn net.Conn) {
	defer clientConn.Close()
	clientAddr := clientConn.RemoteAddr().String()

	targetConn, err := r.dialer.DialContext(ctx, "tcp", r.upstream)
	if err != nil {
		logging.Warn("Failed to connect upstream", zap.String("client", clientAddr), zap.String("upstream", r.upstream), zap.Error(err))
		return
	}
	defer targetConn.Close()

	// Unblock both copies when the relay shuts down.
	stop := context.AfterFunc(ctx, func() {
		clientConn.Close()
		targetConn.Close()
	})
	defer stop()

	logging.Debug("New connection", zap.String("client", clientAddr), zap.String("upstream", r.upstream))

	done := make(chan struct{}, 2)

	// Client -> Target
	go func() {
		n, err := io.Copy(targetConn, clientConn)
		logging.Debug("Client to target closed", zap.String("client", clientAddr), zap.Int64("bytes", n), zap.Error(err))
		closeWrite(targetConn)
		done <- struct{}{}
	}()

	// Target -> Client
	go func() {
		n, err := delayedCopy(clientConn, targetConn, r.latency, r.clock)
		logging.Debug("Target to client closed", zap.String("client", clientAddr), zap.Int64("bytes", n), zap.Error(err))
		closeWrite(clientConn)
		done <- struct{}{}
	}()

	<-done
	<-done
}

func closeWrite(c net.Conn) {
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
}

type chunk struct {
	data []byte
	due  time.Time
}

// delayedCopy copies src to dst, writing each chunk latency after it was read.
// Reading continues while earlier chunks wait, so throughput is unchanged.
func delayedCopy(dst io.Writer, src io.Reader, latency time.Duration, clock clockwork.Clock) (int64, error) {
	if latency <= 0 {
		return io.Copy(dst, src)
	}

	chunks := make(chan chunk, 64)
	readErr := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, chunkSize)
			n, err := src.Read(buf)
			if n > 0 {
				select {
				case chunks <- chunk{data: buf[:n], due: clock.Now().Add(latency)}:
				case <-quit:
					readErr <- nil
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				readErr <- err
				return
			}
		}
	}()

	var written int64
	for c := range chunks {
		if d := c.due.Sub(clock.Now()); d > 0 {
			<-clock.After(d)
		}
		n, err := dst.Write(c.data)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, <-readErr
}
