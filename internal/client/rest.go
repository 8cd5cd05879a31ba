package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/appnet-org/wirebench/internal/config"
	"github.com/appnet-org/wirebench/pkg/forecast"
	"github.com/appnet-org/wirebench/pkg/transport"
	json "github.com/goccy/go-json"
)

// StatusError is returned when the REST endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %s", e.Status)
}

// REST fetches forecasts as a JSON array over HTTP.
type REST struct {
	name       string
	endpoint   *url.URL
	httpClient *http.Client
}

// NewREST creates a REST client for cfg. tlsCfg is used for https addresses.
func NewREST(cfg config.Endpoint, tlsCfg *tls.Config) (*REST, error) {
	u, err := url.Parse(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", cfg.Address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme in address %q", cfg.Address)
	}
	u = u.JoinPath(cfg.Path)

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tlsCfg
	base.ForceAttemptHTTP2 = true
	// Count bytes as they arrive on the wire, not after gzip expansion.
	base.DisableCompression = true

	return &REST{
		name:       cfg.Name,
		endpoint:   u,
		httpClient: &http.Client{Transport: transport.Instrument(base)},
	}, nil
}

// Name implements Client.
func (c *REST) Name() string {
	return c.name
}

// Fetch implements Client.
func (c *REST) Fetch(ctx context.Context, req forecast.Request) (int, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("returnCount", strconv.Itoa(int(req.ReturnCount)))
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var records []forecast.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	// Consume what the decoder left so the probe sees the whole body.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	return len(records), nil
}

// CloseIdleConnections releases pooled connections.
func (c *REST) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
