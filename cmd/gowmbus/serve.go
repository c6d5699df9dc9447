package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/witoldo7/gowmbus/internal/httpapi"
	"github.com/witoldo7/gowmbus/internal/metrics"
	"github.com/witoldo7/gowmbus/internal/sink"
	"github.com/witoldo7/gowmbus/pkg/gowmbus"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the decode API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides http.addr)")
	_ = root.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func serve(ctx context.Context, a *app) error {
	if a.log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := httpapi.Deps{Log: a.log}

	opts := []gowmbus.Option{gowmbus.WithLogger(a.log)}
	if a.cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		m := metrics.New(reg)
		m.DriversLoaded.Set(float64(len(a.registry.Drivers())))
		m.DriverLintCount.Set(float64(len(a.warnings)))
		deps.Metrics = m
		deps.MetricsHandler = metrics.Handler(reg)
		opts = append(opts, gowmbus.WithObserver(m))
	}
	deps.Analyzer = gowmbus.New(a.registry, opts...)

	if a.cfg.Redis.Enabled {
		client, err := sink.Dial(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		s := sink.NewRedis(client, a.cfg.Redis, a.log)
		defer s.Close()
		deps.Publisher = s
		deps.History = s
		a.log.WithFields(logrus.Fields{"addr": a.cfg.Redis.Addr, "channel": a.cfg.Redis.Channel}).Info("publishing readouts to redis")
	}

	srv := httpapi.New(a.cfg.HTTP, a.cfg.Metrics.Path, deps)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
