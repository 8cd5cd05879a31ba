package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appnet-org/wirebench/internal/relay"
	"github.com/appnet-org/wirebench/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const netdelayExample = `# Add 20ms to every response from the v1 RPC service
netdelay --listen :6001 --upstream localhost:5001 --latency 20ms`

func newRootCmd() *cobra.Command {
	var (
		listen   string
		upstream string
		latency  time.Duration
	)
	cmd := &cobra.Command{
		Use:           "netdelay",
		Short:         "TCP relay that delays upstream bytes by a fixed latency",
		Example:       netdelayExample,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if upstream == "" {
				return fmt.Errorf("--upstream is required")
			}
			if latency < 0 {
				return fmt.Errorf("--latency must not be negative")
			}
			if err := logging.Init(logging.ConfigFromEnv("info", "console")); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer func() { _ = logging.Sync() }()

			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listen, err)
			}
			logging.Info("Relay listening",
				zap.Stringer("addr", lis.Addr()),
				zap.String("upstream", upstream),
				zap.Duration("latency", latency),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return relay.New(upstream, latency).Serve(ctx, lis)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":15002", "Address to accept connections on")
	cmd.Flags().StringVar(&upstream, "upstream", "", "host:port to forward to")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Delay applied to bytes flowing back to the client")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
