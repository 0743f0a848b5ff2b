package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/greenbasket/storefront/pkg/gateway"
	"github.com/greenbasket/storefront/pkg/middleware"
	"github.com/greenbasket/storefront/pkg/storage"
)

func serveCmd(g *globals) *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser gateway",
		Long: `Run the browser-facing gateway. Each browser gets its own cart and
session, persisted in the configured storage driver, and a websocket
at /ws that pushes state changes and notifications.

Examples:
  storefront serve
  storefront serve --port=9000
  STOREFRONT_STORAGE_DRIVER=redis STOREFRONT_REDIS_ADDR=localhost:6379 storefront serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Gateway.Port = port
			}
			if host != "" {
				cfg.Gateway.Host = host
			}
			logger := g.logger(cfg, cfg.Log.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := storage.Open(ctx, cfg.Storage)
			if err != nil {
				return err
			}

			opts := gateway.Options{
				Addr:           cfg.GatewayAddress(),
				BaseURL:        cfg.API.BaseURL,
				APITimeout:     cfg.APITimeout(),
				Storage:        st,
				SessionSecret:  cfg.Gateway.SessionSecret,
				Registry:       gateway.RegistryConfig{IdleTTL: cfg.ContextTTL()},
				AllowedOrigins: cfg.Gateway.AllowedOrigins,
				Tracing:        cfg.Telemetry.Tracing,
				Logger:         logger,
			}
			if cfg.Telemetry.Metrics {
				opts.Metrics = middleware.NewMetrics()
			}

			success("Gateway on http://%s", opts.Addr)
			info("API:     %s", cfg.API.BaseURL)
			info("Storage: %s", cfg.Storage.Driver)
			if opts.Metrics != nil {
				info("Metrics: http://%s/metrics", opts.Addr)
			}
			if err := gateway.New(opts).ListenAndServe(ctx); err != nil {
				errorMsg("Gateway stopped: %s", err)
				return err
			}
			info("Gateway stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from storefront.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from storefront.json)")
	return cmd
}
