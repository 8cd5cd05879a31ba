package element

import (
	"context"

	"github.com/appnet-org/wirebench/pkg/logging"
	"go.uber.org/zap"
)

// LoggingElement implements RPCElement to provide logging functionality
type LoggingElement struct {
	verbose bool
}

// NewLoggingElement creates a new logging element
func NewLoggingElement(verbose bool) *LoggingElement {
	return &LoggingElement{
		verbose: verbose,
	}
}

// ProcessRequest logs the outgoing request and returns it unchanged
func (l *LoggingElement) ProcessRequest(ctx context.Context, req *RPCRequest) (*RPCRequest, context.Context, error) {
	logging.Debug("REQUEST",
		zap.Uint64("rpc_id", req.ID),
		zap.String("service", req.ServiceName),
		zap.String("method", req.Method),
	)

	if l.verbose && len(req.Metadata) > 0 {
		logging.Debug("Request metadata", zap.Any("metadata", req.Metadata))
	}

	return req, ctx, nil
}

// ProcessResponse logs the response and returns it unchanged
func (l *LoggingElement) ProcessResponse(ctx context.Context, resp *RPCResponse) (*RPCResponse, context.Context, error) {
	if resp.Error != nil {
		logging.Debug("RESPONSE", zap.Uint64("rpc_id", resp.ID), zap.Error(resp.Error))
		return resp, ctx, nil
	}

	logging.Debug("RESPONSE", zap.Uint64("rpc_id", resp.ID))

	if l.verbose {
		logging.Debug("Response metadata",
			zap.Any("header", resp.Header),
			zap.Any("trailer", resp.Trailer),
		)
	}

	return resp, ctx, nil
}

// Name returns the name of this element
func (l *LoggingElement) Name() string {
	return "LoggingElement"
}
