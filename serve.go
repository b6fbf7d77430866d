package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crew_research_assistant/metrics"
	"crew_research_assistant/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(cfg.Verbose)
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

		ctrl, err := buildController(cfg, log)
		if err != nil {
			return err
		}
		srv, err := server.New(server.Config{
			Controller:   ctrl,
			Logger:       log,
			DefaultTopic: cfg.DefaultTopic,
			SessionTTL:   cfg.SessionTTL,
		})
		if err != nil {
			return err
		}
		defer srv.Close()

		httpSrv := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting web server", "address", cfg.ServerAddr, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "http listen address (overrides server_addr)")
	_ = viper.BindPFlag("server_addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}
