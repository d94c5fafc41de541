package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/palaver/internal/demo"
	httpadapter "github.com/aretw0/palaver/pkg/adapters/http"
	"github.com/aretw0/palaver/pkg/bot"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bot over HTTP",
	Long: `Starts an HTTP server that accepts activities on POST /api/messages and
answers with the bot's replies. Proactive messages are streamed on
GET /api/conversations/{id}/events and metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			rt.Config.HTTP.Addr = addr
		}

		b, err := demo.NewBot(rt.BotOptions()...)
		if err != nil {
			return err
		}
		adapter := httpadapter.NewAdapter(bot.WithLogger(rt.Logger))
		b.Install(adapter.Adapter)

		serverOpts := []httpadapter.ServerOption{httpadapter.WithLogger(rt.Logger)}
		if rt.Registry != nil {
			serverOpts = append(serverOpts, httpadapter.WithHandler("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{})))
		}

		srv := &http.Server{
			Addr:              rt.Config.HTTP.Addr,
			Handler:           httpadapter.NewHandler(adapter, b.Handler(), serverOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := signalContext(cmd)
		defer cancel()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			rt.Logger.Info("palaver server listening", "addr", srv.Addr, "storage", rt.Config.Storage.Driver)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			rt.Logger.Info("shutting down")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.Logger.Warn("graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from config, :3978)")
}
