package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appnet-org/wirebench/internal/config"
	"github.com/appnet-org/wirebench/internal/stub"
	"github.com/appnet-org/wirebench/pkg/logging"
	"github.com/appnet-org/wirebench/pkg/rpc"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// v2ServerOptions tune the second RPC service version: larger flow-control
// windows and a shared write buffer.
var v2ServerOptions = []grpc.ServerOption{
	grpc.InitialWindowSize(1 << 20),
	grpc.InitialConnWindowSize(4 << 20),
	grpc.WriteBufferSize(64 << 10),
	grpc.SharedWriteBuffer(true),
}

// listeners are the three endpoints forecastd serves.
type listeners struct {
	rest  net.Listener
	rpcV1 net.Listener
	rpcV2 net.Listener
}

func listen(cfg config.ServerConfig) (*listeners, error) {
	var ls listeners
	var err error
	if ls.rest, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.RESTPort)); err != nil {
		return nil, fmt.Errorf("failed to listen for REST: %w", err)
	}
	if ls.rpcV1, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.RPCV1Port)); err != nil {
		ls.rest.Close()
		return nil, fmt.Errorf("failed to listen for RPC v1: %w", err)
	}
	if ls.rpcV2, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.RPCV2Port)); err != nil {
		ls.rest.Close()
		ls.rpcV1.Close()
		return nil, fmt.Errorf("failed to listen for RPC v2: %w", err)
	}
	return &ls, nil
}

// serve runs the REST API and both RPC versions until ctx is done.
func serve(ctx context.Context, ls *listeners, src *stub.Source) error {
	httpServer := &http.Server{
		Handler:           stub.NewRouter(src),
		ReadHeaderTimeout: 10 * time.Second,
	}

	v1 := rpc.NewServer(rpc.BinarySerializer{})
	v1.RegisterService(stub.ForecastService(src))

	v2 := rpc.NewServer(rpc.BinarySerializer{}, v2ServerOptions...)
	v2.RegisterService(stub.ForecastService(src))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("REST server listening", zap.Stringer("addr", ls.rest.Addr()))
		if err := httpServer.Serve(ls.rest); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("REST server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logging.Info("RPC v1 server listening", zap.Stringer("addr", ls.rpcV1.Addr()))
		return v1.Serve(ls.rpcV1)
	})
	g.Go(func() error {
		logging.Info("RPC v2 server listening", zap.Stringer("addr", ls.rpcV2.Addr()))
		return v2.Serve(ls.rpcV2)
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		v1.GracefulStop()
		v2.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "forecastd",
		Short:         "Serve generated weather forecasts over REST and two RPC service versions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logging.Init(logging.ConfigFromEnv(cfg.Logging.Level, cfg.Logging.Format)); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer func() { _ = logging.Sync() }()

			if cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			ls, err := listen(cfg.Server)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, ls, stub.NewSource(nil, time.Now().UnixNano()))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a TOML configuration file")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
