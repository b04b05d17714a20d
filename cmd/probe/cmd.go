package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/stywzn/qdashboard/internal/service"
)

const (
	defaultAddr    = "127.0.0.1:9090"
	checkTimeout   = 5 * time.Second
	reconnectDelay = 3 * time.Second
)

type options struct {
	addr    string
	service string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "probe",
		Short:        "Query the qdashboard gRPC health service",
		SilenceUsage: true,
	}

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", addr, "gRPC server address")
	root.PersistentFlags().StringVar(&opts.service, "service", service.NetworkService,
		fmt.Sprintf("service to check (%q, %q or empty for the process)", service.NetworkService, service.AIService))

	root.AddCommand(newCheckCmd(opts), newWatchCmd(opts))
	return root
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the service once; exits non-zero unless SERVING",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := dial(opts.addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			status, err := check(ctx, healthpb.NewHealthClient(conn), opts.service)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", displayName(opts.service), status)
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", displayName(opts.service), status)
			}
			return nil
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream status changes, reconnecting when the stream drops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := dial(opts.addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			watchLoop(ctx, healthpb.NewHealthClient(conn), opts.service, cmd.OutOrStdout(), reconnectDelay)
			return nil
		},
	}
}

// dial forces IPv4 so localhost never resolves to ::1 on hosts without an
// IPv6 listener.
func dial(addr string) (*grpc.ClientConn, error) {
	dialer := func(ctx context.Context, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp4", addr)
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return conn, nil
}

func check(ctx context.Context, client healthpb.HealthClient, svc string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check %s: %w", displayName(svc), err)
	}
	return resp.GetStatus(), nil
}

// watchLoop prints every status update until ctx ends. A broken stream is
// re-established after delay.
func watchLoop(ctx context.Context, client healthpb.HealthClient, svc string, out io.Writer, delay time.Duration) {
	for {
		stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err == nil {
			for {
				resp, rerr := stream.Recv()
				if rerr != nil {
					err = rerr
					break
				}
				fmt.Fprintf(out, "%s %s %s\n", time.Now().Format(time.RFC3339), displayName(svc), resp.GetStatus())
			}
		}
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "stream lost: %v, reconnecting in %s\n", err, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func displayName(svc string) string {
	if svc == "" {
		return "process"
	}
	return svc
}
