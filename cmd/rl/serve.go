package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/logging"
	"github.com/vanderheijden86/routelens/pkg/metrics"
	"github.com/vanderheijden86/routelens/pkg/server"
	"github.com/vanderheijden86/routelens/pkg/watcher"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr      string
		rateLimit float64
		burst     int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the route and critical-point API over HTTP",
		Long: "Serve a JSON API with /api/places, /api/routes, /api/critical and\n" +
			"/api/snapshot.svg, plus /healthz and Prometheus /metrics.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			collector, err := metrics.NewCollector(nil)
			if err != nil {
				return err
			}
			a, err := openApp(ctx, g, appOptions{
				journal: true,
				bridge:  []engine.BridgeOption{engine.WithObserver(collector)},
			})
			if err != nil {
				return err
			}
			defer a.Close()
			collector.SetGraphSize(a.network.Stats())

			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("rate-limit") {
				a.cfg.Server.RateLimit = rateLimit
			}
			if cmd.Flags().Changed("burst") {
				a.cfg.Server.Burst = burst
			}

			if a.cfg.Graph.Watch {
				stopWatch := watchGraph(ctx, a, collector)
				defer stopWatch()
			}

			opts := []server.Option{
				server.WithLogger(a.log),
				server.WithCollector(collector),
				server.WithRateLimit(a.cfg.Server.RateLimit, a.cfg.Server.Burst),
				server.WithView(a.view()),
				server.WithRoads(a.network.Segments),
				server.WithDefaultAStar(a.cfg.UseAStar()),
			}
			if o := a.observer(); o != nil {
				opts = append(opts, server.WithObserver(o))
			}
			srv := server.New(a.bridge, a.dir, opts...)
			return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "Engine-backed requests per second, 0 for unlimited")
	cmd.Flags().IntVar(&burst, "burst", 0, "Rate limit burst size")
	return cmd
}

// watchGraph reloads the road network whenever its file changes. The
// returned func stops watching.
func watchGraph(ctx context.Context, a *app, collector *metrics.Collector) func() {
	w, err := watcher.New(a.cfg.Graph.Source,
		watcher.WithOnChange(func() {
			if err := a.reload(ctx); err == nil {
				collector.SetGraphSize(a.network.Stats())
			}
		}),
		watcher.WithOnError(func(err error) {
			a.log.Warn(ctx, "watching road network", logging.Err(err))
		}),
	)
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		a.log.Warn(ctx, "live reload disabled", logging.Err(err))
		return func() {}
	}
	a.log.Info(ctx, "watching road network", logging.String("path", w.Path()), logging.Bool("polling", w.IsPolling()))
	return w.Stop
}
