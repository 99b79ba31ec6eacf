package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"xdao.co/carpin/config"
	"xdao.co/carpin/internal/app"
	"xdao.co/carpin/internal/logger"
	"xdao.co/carpin/metrics"
	"xdao.co/carpin/pinning"
	"xdao.co/carpin/pinning/pinrpc"
	"xdao.co/carpin/storage/storeregistry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath   string
		listen       string
		listBackends bool
	)
	cmd := &cobra.Command{
		Use:   "carpin-pind",
		Short: "Serve the configured pinner over gRPC",
		Long: `carpin-pind exposes a local pinner (the block store pinner or a Kubo
node) to carpin clients configured with pinner.kind: rpc.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listBackends {
				for _, b := range storeregistry.List() {
					if b.Description == "" {
						fmt.Fprintln(cmd.OutOrStdout(), b.Name)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", b.Name, b.Description)
				}
				return nil
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			log, closeLog, err := logger.Init(cfg.Logging)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return daemon(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/carpin/config.yaml)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen)")
	cmd.Flags().BoolVar(&listBackends, "list-backends", false, "list block store backends and exit")
	return cmd
}

func daemon(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Pinner.Kind == config.PinnerRPC {
		return errors.New("carpin-pind cannot serve an rpc pinner")
	}
	p, closePinner, err := app.OpenPinner(cfg.Pinner, log)
	if err != nil {
		return err
	}
	defer closePinner()

	if cfg.Metrics.Enabled {
		reg := app.NewRegistry()
		p = app.Instrument(p, metrics.New(reg))
		metricsSrv := &http.Server{Addr: cfg.Metrics.Listen, Handler: metricsMux(reg), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer metricsSrv.Close()
		log.Info("serving metrics", "addr", cfg.Metrics.Listen)
	}

	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return err
	}
	log.Info("carpin-pind listening", "addr", lis.Addr().String(), "pinner", cfg.Pinner.Kind)
	return serve(ctx, lis, p, int(cfg.Server.MaxMessageSize))
}

// serve runs the gRPC server on lis until ctx is done, then stops it
// gracefully.
func serve(ctx context.Context, lis net.Listener, p pinning.Pinner, maxMsgBytes int) error {
	var opts []grpc.ServerOption
	if maxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMsgBytes), grpc.MaxSendMsgSize(maxMsgBytes))
	}
	s := grpc.NewServer(opts...)
	pinrpc.RegisterPinnerServer(s, &pinrpc.Server{Pinner: p})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.GracefulStop()
		<-errCh
		return nil
	}
}
