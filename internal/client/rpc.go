package client

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"

	"github.com/appnet-org/wirebench/internal/config"
	"github.com/appnet-org/wirebench/pkg/forecast"
	"github.com/appnet-org/wirebench/pkg/rpc"
	"github.com/appnet-org/wirebench/pkg/rpc/element"
	"github.com/appnet-org/wirebench/pkg/transport"
	"golang.org/x/net/http2"
)

// RPC fetches forecasts from a WeatherForecasts service over gRPC.
type RPC struct {
	name   string
	client *rpc.Client
}

// NewRPC creates an RPC client for cfg. A host:port address uses h2c when
// cfg.Plaintext is set and TLS with tlsCfg otherwise.
func NewRPC(cfg config.Endpoint, tlsCfg *tls.Config, elements ...element.RPCElement) (*RPC, error) {
	addr := cfg.Address
	if !strings.Contains(addr, "://") {
		if cfg.Plaintext {
			addr = "http://" + addr
		} else {
			addr = "https://" + addr
		}
	}

	var h2 *http2.Transport
	if strings.HasPrefix(addr, "http://") {
		h2 = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}
	} else {
		h2 = &http2.Transport{TLSClientConfig: tlsCfg}
	}

	httpClient := &http.Client{Transport: transport.Instrument(h2)}
	c, err := rpc.NewClient(httpClient, addr, rpc.BinarySerializer{}, elements,
		rpc.WithMaxReceiveMessageSize(cfg.MaxReceiveMessageSize))
	if err != nil {
		return nil, err
	}

	return &RPC{name: cfg.Name, client: c}, nil
}

// Name implements Client.
func (c *RPC) Name() string {
	return c.name
}

// Fetch implements Client.
func (c *RPC) Fetch(ctx context.Context, req forecast.Request) (int, error) {
	var reply forecast.GetForecastsReply
	err := c.client.Call(ctx, forecast.ServiceName, forecast.GetForecastsName,
		&forecast.GetForecastsRequest{ReturnCount: req.ReturnCount}, &reply)
	if err != nil {
		return 0, err
	}
	return len(reply.Forecasts), nil
}

// CloseIdleConnections releases pooled connections.
func (c *RPC) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
