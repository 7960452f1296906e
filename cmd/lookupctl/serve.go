package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sempasha/super-dns-lookup/internal/config"
)

type serveFlags struct {
	configPath string
}

func newServeCmd() *cobra.Command {
	sf := new(serveFlags)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lookup engine: hosts watcher, persistence, optional metrics/pprof HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(sf)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	cmd.Flags().StringVarP(&sf.configPath, "config", "c", "", "config file")
	return cmd
}

func runServe(sf *serveFlags) error {
	cfg, err := config.Load(sf.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	built, err := config.Build(cfg)
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}
	logger := built.Logger

	ctx := context.Background()
	if err := built.Controller.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := built.Controller.Teardown(); err != nil {
			logger.Warn("teardown failed", zap.Error(err))
		}
	}()

	var httpServer *http.Server
	if addr := built.HTTPAddr(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", built.MetricsHandler())
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		httpServer = &http.Server{Addr: addr, Handler: mux}
		errChan := make(chan error, 1)
		go func() {
			logger.Info("starting api http server", zap.String("addr", addr))
			errChan <- httpServer.ListenAndServe()
		}()

		defer httpServer.Close()
		go func() {
			if err := <-errChan; err != nil && err != http.ErrServerClosed {
				logger.Error("api http server exited", zap.Error(err))
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	return nil
}
