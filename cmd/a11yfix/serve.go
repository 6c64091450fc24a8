package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/a11yfix/remedy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the remediation HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides listen)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	eng, err := rt.engine(remedy.NewMetrics(reg))
	if err != nil {
		return err
	}

	addr := rt.cfg.Listen
	if l, _ := cmd.Flags().GetString("listen"); l != "" {
		addr = l
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           eng.Handler(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		rt.logger.Info("http listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if rt.browser != nil {
		g.Go(func() error {
			// Launch eagerly so the first request does not pay for it.
			if err := rt.browser.Start(ctx); err != nil {
				rt.logger.Warn("browser start failed, static visibility in use", "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
