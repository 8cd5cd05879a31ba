package rpc

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/appnet-org/wirebench/pkg/forecast"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFrameAndReadMessage(t *testing.T) {
	payload := []byte("forecast payload")
	r := bytes.NewReader(append(frame(payload), frame(nil)...))

	msg, err := readMessage(r, 0)
	require.NoError(t, err)
	require.Equal(t, payload, msg)

	msg, err = readMessage(r, 0)
	require.NoError(t, err)
	require.Empty(t, msg)

	_, err = readMessage(r, 0)
	require.Equal(t, io.EOF, err)
}

func TestReadMessage_Errors(t *testing.T) {
	t.Run("TruncatedHeader", func(t *testing.T) {
		_, err := readMessage(bytes.NewReader([]byte{0, 0}), 0)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("TruncatedBody", func(t *testing.T) {
		b := frame([]byte("abcdef"))
		_, err := readMessage(bytes.NewReader(b[:len(b)-2]), 0)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("Compressed", func(t *testing.T) {
		b := frame([]byte("abc"))
		b[0] = 1
		_, err := readMessage(bytes.NewReader(b), 0)
		require.Equal(t, codes.Internal, status.Code(err))
	})

	t.Run("TooLarge", func(t *testing.T) {
		_, err := readMessage(bytes.NewReader(frame(make([]byte, 10))), 9)
		require.Equal(t, codes.ResourceExhausted, status.Code(err))
	})
}

func TestStatusFromHeader(t *testing.T) {
	st, err := statusFromHeader(http.Header{})
	require.NoError(t, err)
	require.Nil(t, st)

	h := http.Header{}
	h.Set("Grpc-Status", "14")
	h.Set("Grpc-Message", "upstream%20connect%20error")
	st, err = statusFromHeader(h)
	require.NoError(t, err)
	require.Equal(t, codes.Unavailable, st.Code())
	require.Equal(t, "upstream connect error", st.Message())

	h.Set("Grpc-Status", "fourteen")
	_, err = statusFromHeader(h)
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestCodeFromHTTPStatus(t *testing.T) {
	require.Equal(t, codes.Internal, codeFromHTTPStatus(http.StatusBadRequest))
	require.Equal(t, codes.Unauthenticated, codeFromHTTPStatus(http.StatusUnauthorized))
	require.Equal(t, codes.PermissionDenied, codeFromHTTPStatus(http.StatusForbidden))
	require.Equal(t, codes.Unimplemented, codeFromHTTPStatus(http.StatusNotFound))
	require.Equal(t, codes.Unavailable, codeFromHTTPStatus(http.StatusServiceUnavailable))
	require.Equal(t, codes.Unknown, codeFromHTTPStatus(http.StatusTeapot))
}

func TestEncodeTimeout(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "0n",
		-time.Second:            "0n",
		500 * time.Nanosecond:   "500n",
		time.Second:             "1000000u",
		2 * time.Minute:         "120000m",
		30 * time.Minute:        "1800000m",
		100 * 24 * time.Hour:    "8640000S",
		2000000 * time.Hour:     "2000000H",
		1500 * time.Millisecond: "1500000u",
	}
	for d, want := range cases {
		require.Equal(t, want, encodeTimeout(d), d.String())
	}
}

func TestIsGRPCContentType(t *testing.T) {
	require.True(t, isGRPCContentType("application/grpc"))
	require.True(t, isGRPCContentType("application/grpc+proto"))
	require.True(t, isGRPCContentType("application/grpc;charset=utf-8"))
	require.False(t, isGRPCContentType("application/grpc-web"))
	require.False(t, isGRPCContentType("application/json"))
	require.False(t, isGRPCContentType(""))
}

func TestBinarySerializer(t *testing.T) {
	s := BinarySerializer{}
	require.Equal(t, "proto", s.Name())

	b, err := s.Marshal(&forecast.GetForecastsRequest{ReturnCount: 42})
	require.NoError(t, err)

	var req forecast.GetForecastsRequest
	require.NoError(t, s.Unmarshal(b, &req))
	require.Equal(t, int32(42), req.ReturnCount)

	_, err = s.Marshal(struct{}{})
	require.Error(t, err)
	require.Error(t, s.Unmarshal(b, &struct{}{}))
}
