package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-mailmerge"
	"github.com/goliatone/go-mailmerge/pkg/httpapi"
	"github.com/goliatone/go-mailmerge/pkg/metrics"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		addr        string
		withMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			enableMetrics := withMetrics || a.cfg.HTTP.Metrics

			var (
				mailerOptions []mailmerge.Option
				serverOptions = []httpapi.Option{httpapi.WithShutdownTimeout(a.cfg.HTTP.ShutdownTimeout)}
			)
			if enableMetrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				mailerOptions = append(mailerOptions, mailmerge.WithMetrics(metrics.New(reg)))
				serverOptions = append(serverOptions, httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
			}

			m, err := a.mailer(mailerOptions...)
			if err != nil {
				return err
			}
			srv, err := m.HTTPServer(serverOptions...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "expose Prometheus metrics at /metrics")
	return cmd
}
