package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// frameHeaderLen is the gRPC length-prefix: 1 byte compressed flag + 4 byte big-endian length.
	frameHeaderLen = 5

	contentType = "application/grpc"
)

// frame prepends the gRPC length-prefix to payload.
func frame(payload []byte) []byte {
	b := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(b[1:frameHeaderLen], uint32(len(payload)))
	copy(b[frameHeaderLen:], payload)
	return b
}

// readMessage reads one length-prefixed message from r. It returns io.EOF
// when the stream ends cleanly before a message starts. maxSize <= 0 means
// no limit.
func readMessage(r io.Reader, maxSize int) ([]byte, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}

	switch hdr[0] {
	case 0:
	case 1:
		return nil, status.Error(codes.Internal, "compressed message received but no compression was negotiated")
	default:
		return nil, status.Errorf(codes.Internal, "invalid compressed flag %d", hdr[0])
	}

	length := binary.BigEndian.Uint32(hdr[1:])
	if maxSize > 0 && int64(length) > int64(maxSize) {
		return nil, status.Errorf(codes.ResourceExhausted, "received message larger than max (%d vs. %d)", length, maxSize)
	}

	msg := make([]byte, length)
	if _, err := io.ReadFull(r, msg); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	return msg, nil
}

// statusFromHeader extracts grpc-status and grpc-message from h. It returns
// nil when h carries no status.
func statusFromHeader(h http.Header) (*status.Status, error) {
	raw := h.Get("Grpc-Status")
	if raw == "" {
		return nil, nil
	}
	code, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "malformed grpc-status %q", raw)
	}
	msg := h.Get("Grpc-Message")
	if decoded, err := url.PathUnescape(msg); err == nil {
		msg = decoded
	}
	return status.New(codes.Code(code), msg), nil
}

// codeFromHTTPStatus maps a non-200 HTTP status to a gRPC code.
func codeFromHTTPStatus(httpStatus int) codes.Code {
	switch httpStatus {
	case http.StatusBadRequest:
		return codes.Internal
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.Unimplemented
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// encodeTimeout renders d as a grpc-timeout value: at most 8 digits plus a unit.
func encodeTimeout(d time.Duration) string {
	const maxDigits = 99999999
	if d <= 0 {
		return "0n"
	}
	units := []struct {
		size   time.Duration
		suffix string
	}{
		{time.Nanosecond, "n"},
		{time.Microsecond, "u"},
		{time.Millisecond, "m"},
		{time.Second, "S"},
		{time.Minute, "M"},
		{time.Hour, "H"},
	}
	for _, u := range units {
		v := (d + u.size - 1) / u.size
		if v <= maxDigits {
			return strconv.FormatInt(int64(v), 10) + u.suffix
		}
	}
	return strconv.Itoa(maxDigits) + "H"
}

// isGRPCContentType accepts application/grpc and its +codec / ;params variants.
func isGRPCContentType(ct string) bool {
	if !strings.HasPrefix(ct, contentType) {
		return false
	}
	rest := ct[len(contentType):]
	return rest == "" || rest[0] == '+' || rest[0] == ';'
}
