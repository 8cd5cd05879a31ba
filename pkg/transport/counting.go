package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// CountingReader passes reads through to an underlying response body and
// keeps a running total of the bytes handed to the caller. It never
// buffers, transforms or throttles the stream.
//
// The total is only meaningful once the consumer has drained the stream;
// reading it earlier gives an undercount, not an error.
type CountingReader struct {
	rc io.ReadCloser
	n  atomic.Int64

	onEOF   func()
	eofOnce sync.Once
}

// NewCountingReader wraps rc.
func NewCountingReader(rc io.ReadCloser) *CountingReader {
	return &CountingReader{rc: rc}
}

// Read implements io.Reader. Bytes returned together with an error are counted too.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	if n > 0 {
		c.n.Add(int64(n))
	}
	if err == io.EOF && c.onEOF != nil {
		c.eofOnce.Do(c.onEOF)
	}
	return n, err
}

// Close closes the underlying body.
func (c *CountingReader) Close() error {
	return c.rc.Close()
}

// Seek forwards to the underlying body when it is an io.Seeker.
// Repositioning does not change the byte count.
func (c *CountingReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := c.rc.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("seek on %T: %w", c.rc, errors.ErrUnsupported)
	}
	return s.Seek(offset, whence)
}

// Len reports the unread length of the underlying body when it exposes one
// (bytes.Reader, strings.Reader and friends), or -1.
func (c *CountingReader) Len() int {
	if l, ok := c.rc.(interface{ Len() int }); ok {
		return l.Len()
	}
	return -1
}

// BytesRead returns the number of bytes read so far. Safe to call from any goroutine.
func (c *CountingReader) BytesRead() int64 {
	return c.n.Load()
}
