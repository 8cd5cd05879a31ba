// Package client builds the benchmarked clients. Every client sends its
// requests through transport.Instrument, so a Probe on the request context
// sees the same measurements whatever the wire protocol.
package client

import (
	"context"
	"fmt"

	"github.com/appnet-org/wirebench/internal/config"
	"github.com/appnet-org/wirebench/pkg/forecast"
	"github.com/appnet-org/wirebench/pkg/logging"
	"github.com/appnet-org/wirebench/pkg/rpc/element"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"
)

// Client fetches forecasts from one service.
type Client interface {
	// Name is the label printed in the report.
	Name() string

	// Fetch sends req and fully decodes the response. It returns the
	// number of records decoded.
	Fetch(ctx context.Context, req forecast.Request) (int, error)
}

// Build creates the enabled clients in report order: REST, RPC v1, RPC v2.
func Build(cfg *config.Config) ([]Client, error) {
	tlsCfg, err := cfg.TLS.ClientTLS()
	if err != nil {
		return nil, fmt.Errorf("failed to build TLS config: %w", err)
	}

	var clients []Client

	if cfg.REST.Enabled {
		c, err := NewREST(cfg.REST, tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.REST.Name, err)
		}
		clients = append(clients, c)
	}

	for _, ep := range []config.Endpoint{cfg.RPC.V1, cfg.RPC.V2} {
		if !ep.Enabled {
			continue
		}
		c, err := NewRPC(ep, tlsCfg,
			element.NewMetadataElement(metadata.Pairs(ClientHeader, ep.Name)),
			element.NewLoggingElement(cfg.Logging.Level == "debug"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", ep.Name, err)
		}
		clients = append(clients, c)
	}

	for _, c := range clients {
		logging.Info("Client configured", zap.String("client", c.Name()))
	}
	return clients, nil
}

// ClientHeader names the benchmark client on every RPC.
const ClientHeader = "x-bench-client"

// CloseIdleConnections releases pooled connections of every client that holds any.
func CloseIdleConnections(clients []Client) {
	for _, c := range clients {
		if ic, ok := c.(interface{ CloseIdleConnections() }); ok {
			ic.CloseIdleConnections()
		}
	}
}
