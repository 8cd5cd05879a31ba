// Package rpc implements a unary gRPC client on top of net/http, so any
// http.RoundTripper (including an instrumenting one) sits on the wire path,
// and a small grpc-go server wrapper for the stub services.
package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/appnet-org/wirebench/pkg/logging"
	"github.com/appnet-org/wirebench/pkg/metadata"
	"github.com/appnet-org/wirebench/pkg/rpc/element"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcmd "google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const userAgent = "wirebench-rpc/1.0"

// GenerateRPCID creates a unique RPC ID
func GenerateRPCID() uint64 {
	return uint64(time.Now().UnixNano())
}

// Client represents an RPC client with an HTTP/2 capable http.Client and a serializer.
type Client struct {
	httpClient      *http.Client
	serializer      Serializer
	metadataCodec   metadata.MetadataCodec
	baseURL         string
	rpcElementChain *element.RPCElementChain
	maxRecvMsgSize  int
}

// Option configures a Client.
type Option func(*Client)

// WithMaxReceiveMessageSize limits the size of a response message. n <= 0 means unlimited.
func WithMaxReceiveMessageSize(n int) Option {
	return func(c *Client) {
		c.maxRecvMsgSize = n
	}
}

// NewClient creates a new Client calling addr through httpClient.
// addr is host:port or a URL with an http or https scheme; host:port means plaintext (h2c).
func NewClient(httpClient *http.Client, addr string, serializer Serializer, rpcElements []element.RPCElement, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if addr == "" {
		return nil, fmt.Errorf("target address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		return nil, fmt.Errorf("unsupported scheme in address %q", addr)
	}

	c := &Client{
		httpClient:      httpClient,
		serializer:      serializer,
		metadataCodec:   metadata.MetadataCodec{},
		baseURL:         strings.TrimRight(addr, "/"),
		rpcElementChain: element.NewRPCElementChain(rpcElements...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Target returns the base URL calls are sent to.
func (c *Client) Target() string {
	return c.baseURL
}

// Call makes an RPC call with RPC element processing
func (c *Client) Call(ctx context.Context, service, method string, req any, resp any) error {
	md, _ := grpcmd.FromOutgoingContext(ctx)

	rpcReq := &element.RPCRequest{
		ID:          GenerateRPCID(),
		ServiceName: service,
		Method:      method,
		Payload:     req,
		Metadata:    md.Copy(),
	}

	// Process request through RPC elements
	rpcReq, ctx, err := c.rpcElementChain.ProcessRequest(ctx, rpcReq)
	if err != nil {
		return err
	}

	// Serialize the request payload
	reqPayloadBytes, err := c.serializer.Marshal(rpcReq.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newHTTPRequest(ctx, rpcReq, reqPayloadBytes)
	if err != nil {
		return err
	}

	rpcResp := &element.RPCResponse{ID: rpcReq.ID, Result: resp}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		rpcResp.Error = fmt.Errorf("failed to send request: %w", err)
	} else {
		rpcResp.Error = c.handleResponse(httpResp, rpcResp)
	}

	// Process response through RPC elements
	rpcResp, _, err = c.rpcElementChain.ProcessResponse(ctx, rpcResp)
	if err != nil {
		return err
	}

	return rpcResp.Error
}

func (c *Client) newHTTPRequest(ctx context.Context, rpcReq *element.RPCRequest, payload []byte) (*http.Request, error) {
	url := c.baseURL + "/" + rpcReq.ServiceName + "/" + rpcReq.Method
	body := frame(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.ContentLength = int64(len(body))

	c.metadataCodec.EncodeHeaders(rpcReq.Metadata, httpReq.Header)
	httpReq.Header.Set("Content-Type", contentType+"+"+c.serializer.Name())
	httpReq.Header.Set("Te", "trailers")
	httpReq.Header.Set("User-Agent", userAgent)
	if deadline, ok := ctx.Deadline(); ok {
		httpReq.Header.Set("Grpc-Timeout", encodeTimeout(time.Until(deadline)))
	}
	return httpReq, nil
}

// handleResponse validates the HTTP response, reads the single response
// message, drains the body so trailers arrive, and unmarshals into rpcResp.Result.
func (c *Client) handleResponse(httpResp *http.Response, rpcResp *element.RPCResponse) error {
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return status.Errorf(codeFromHTTPStatus(httpResp.StatusCode), "unexpected HTTP status %d %s", httpResp.StatusCode, http.StatusText(httpResp.StatusCode))
	}
	if ct := httpResp.Header.Get("Content-Type"); !isGRPCContentType(ct) {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return status.Errorf(codes.Internal, "unexpected content-type %q", ct)
	}

	header, err := c.metadataCodec.DecodeHeaders(httpResp.Header)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	rpcResp.Header = header

	// Trailers-only response: the status travels in the headers.
	if st, err := statusFromHeader(httpResp.Header); err != nil || st != nil {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		if err != nil {
			return err
		}
		return st.Err()
	}

	msg, err := readMessage(httpResp.Body, c.maxRecvMsgSize)
	if err != nil && err != io.EOF {
		return err
	}
	gotMessage := err == nil

	if _, err := io.Copy(io.Discard, httpResp.Body); err != nil {
		return fmt.Errorf("failed to read trailers: %w", err)
	}

	trailer, err := c.metadataCodec.DecodeHeaders(httpResp.Trailer)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	rpcResp.Trailer = trailer

	st, err := statusFromHeader(httpResp.Trailer)
	if err != nil {
		return err
	}
	if st == nil {
		return status.Error(codes.Internal, "server closed the stream without sending trailers")
	}
	if st.Code() != codes.OK {
		return st.Err()
	}
	if !gotMessage {
		return status.Error(codes.Internal, "server closed the stream without sending a response message")
	}

	if err := c.serializer.Unmarshal(msg, rpcResp.Result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logging.Debug("Successfully received response", zap.Uint64("rpcID", rpcResp.ID), zap.Int("bytes", len(msg)))
	return nil
}

// CloseIdleConnections releases pooled connections held by the http.Client.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
