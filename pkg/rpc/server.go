package rpc

import (
	"context"
	"net"
	"time"

	"github.com/appnet-org/wirebench/pkg/logging"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// MethodHandler serves one unary method. dec decodes the request payload into its argument.
type MethodHandler func(ctx context.Context, dec func(any) error) (any, error)

// MethodDesc represents an RPC service's method specification.
type MethodDesc struct {
	MethodName string
	Handler    MethodHandler
}

// ServiceDesc represents an RPC service's specification.
type ServiceDesc struct {
	ServiceName string
	Methods     []MethodDesc
}

// Server is a grpc-go server whose codec is fixed to a Serializer, so
// messages need no generated protobuf code.
type Server struct {
	grpc *grpc.Server
}

// NewServer initializes a new server. opts are passed to grpc.NewServer after the codec option.
func NewServer(serializer Serializer, opts ...grpc.ServerOption) *Server {
	base := []grpc.ServerOption{
		grpc.ForceServerCodec(serializer),
		grpc.ChainUnaryInterceptor(loggingInterceptor),
	}
	return &Server{grpc: grpc.NewServer(append(base, opts...)...)}
}

// RegisterService registers a service and its methods with the server.
// It must be called before Serve.
func (s *Server) RegisterService(desc *ServiceDesc) {
	gd := &grpc.ServiceDesc{
		ServiceName: desc.ServiceName,
		HandlerType: (*any)(nil),
	}
	for _, m := range desc.Methods {
		fullMethod := "/" + desc.ServiceName + "/" + m.MethodName
		handler := m.Handler
		gd.Methods = append(gd.Methods, grpc.MethodDesc{
			MethodName: m.MethodName,
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				if interceptor == nil {
					return handler(ctx, dec)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
				return interceptor(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
					return handler(ctx, dec)
				})
			},
		})
	}
	s.grpc.RegisterService(gd, desc)
	logging.Info("Registered service", zap.String("service", desc.ServiceName), zap.Int("methods", len(desc.Methods)))
}

// Serve accepts connections on lis until Stop or GracefulStop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop stops accepting new RPCs and waits for in-flight ones.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// Stop closes all connections immediately.
func (s *Server) Stop() {
	s.grpc.Stop()
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logging.Debug("Handled RPC",
		zap.String("method", info.FullMethod),
		zap.Duration("duration", time.Since(start)),
		zap.Stringer("code", status.Code(err)),
	)
	return resp, err
}
