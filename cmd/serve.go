package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/monitoring"
	"github.com/smart-sustain/sustain-cli/internal/observability"
	"github.com/smart-sustain/sustain-cli/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard HTTP API",
	Long: "Serves the read-only JSON API, /health and /metrics. When " +
		"monitoring.check_interval_secs is set, also scores on that interval, " +
		"saves each snapshot and evaluates alerts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		clock := clockwork.NewRealClock()
		metrics := observability.NewMetrics()
		dash, err := buildDashboard(st, metrics)
		if err != nil {
			return err
		}

		srv := server.New(server.Deps{
			Dashboard: dash,
			Snapshots: st,
			Status:    monitoring.NewCollector(st, model.Domains, monitoring.WithClock(clock)),
			Metrics:   promhttp.Handler(),
		}, cfg.Server)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, server.Addr(port))
		})

		if cfg.Monitoring.CheckIntervalSecs > 0 {
			alerter := monitoring.NewAlerter(cfg.Monitoring, metrics, monitoring.WithClock(clock))
			checker := monitoring.NewChecker(dash, st, alerter, cfg.Monitoring, monitoring.WithClock(clock))
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
			zap.L().Info("scheduled checks enabled", zap.Int("interval_secs", cfg.Monitoring.CheckIntervalSecs))
		}

		if err := g.Wait(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
