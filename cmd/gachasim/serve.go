package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/xtding233/gacha-sim/internal/banner"
	"github.com/xtding233/gacha-sim/internal/config"
	"github.com/xtding233/gacha-sim/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var reload time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve simulations over HTTP and gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), reload)
		},
	}
	f := cmd.Flags()
	f.String("listen", ":8080", "HTTP listen address")
	f.String("grpc-listen", ":9090", "gRPC listen address (empty disables gRPC)")
	f.DurationVar(&reload, "reload", 2*time.Second, "Banner directory poll interval (0 disables reloading)")
	f.Duration("request-timeout", server.DefaultTimeout, "Longest a single simulation request may run (0 disables)")
	_ = viper.BindPFlag(config.KeyListenAddress, f.Lookup("listen"))
	_ = viper.BindPFlag(config.KeyGRPCAddress, f.Lookup("grpc-listen"))
	_ = viper.BindPFlag(config.KeyRequestTimeout, f.Lookup("request-timeout"))
	return cmd
}

func runServe(ctx context.Context, reload time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := newLoader()
	names, err := loader.List()
	if err != nil {
		return err
	}
	logger.Info().Str("dir", loader.Paths().Dir()).Strs("banners", names).Msg("banners found")

	if reload > 0 {
		w := banner.Watch(loader, reload, nil, logger)
		defer w.Stop()
	}

	s, err := server.New(loader, logger, config.Workers())
	if err != nil {
		return err
	}
	s.Timeout = config.RequestTimeout()

	httpSrv := &http.Server{
		Addr:              config.ListenAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var (
		gs  *grpc.Server
		lis net.Listener
	)
	if addr := config.GRPCAddress(); addr != "" {
		if lis, err = net.Listen("tcp", addr); err != nil {
			return err
		}
		gs = grpc.NewServer()
		server.RegisterSimulatorServer(gs, server.NewGRPCService(s))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpSrv.Addr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if gs != nil {
		g.Go(func() error {
			logger.Info().Str("addr", lis.Addr().String()).Msg("grpc listening")
			return gs.Serve(lis)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if gs != nil {
			gs.GracefulStop()
		}
		return httpSrv.Shutdown(sctx)
	})

	return g.Wait()
}
