// Command server boots the LAN telemetry collector: it loads
// configuration, opens the store, constructs the engine and its
// components, serves the REST control surface and websocket
// push-stream, and shuts everything down cleanly on signal.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/api/rest"
	"github.com/lanwatch/lanwatch/internal/api/ws"
	"github.com/lanwatch/lanwatch/internal/core/config"
	"github.com/lanwatch/lanwatch/internal/core/engine"
	"github.com/lanwatch/lanwatch/internal/core/store"
	"github.com/lanwatch/lanwatch/internal/core/telemetry"
)

const serviceName = "lanwatch"

var (
	configPath string
	devMode    bool
	logLevel   string
	dbPath     string
	listenAddr string
)

func main() {
	root := &cobra.Command{
		Use:   serviceName,
		Short: "LAN telemetry collector: scan, poll, alert, and stream device health",
		RunE:  run,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional config file (yaml/json/toml)")
	root.PersistentFlags().BoolVar(&devMode, "dev", false, "run with a development (console, colorized) logger")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logging level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&dbPath, "db", "lanwatch.db", "path to the bbolt database file")
	root.Flags().StringVar(&listenAddr, "listen", ":8090", "HTTP listen address for the REST/websocket surface")

	root.AddCommand(scanCmd(), devicesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	var zapCfg zap.Config
	if devMode {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if logLevel != "" {
		_ = zapCfg.Level.UnmarshalText([]byte(logLevel))
	}
	return zapCfg.Build()
}

// openEngine performs the shared config-load/store-open/engine-construct
// sequence used by the server command and the CLI subcommands.
func openEngine() (*engine.Engine, *zap.Logger, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	sugar := logger.Sugar()

	boot, err := config.Load(configPath)
	if err != nil {
		return nil, logger, fmt.Errorf("load bootstrap config: %w", err)
	}

	st, err := store.OpenSeeded(dbPath, boot.Seeds())
	if err != nil {
		return nil, logger, fmt.Errorf("open store: %w", err)
	}

	metrics := telemetry.NewMetrics(nil)
	eng := engine.New(sugar, st, engine.Options{
		SNMPTimeout: time.Duration(boot.Int(config.KeySNMPTimeout)) * time.Millisecond,
		Metrics:     metrics,
	})
	return eng, logger, nil
}

func run(cmd *cobra.Command, args []string) error {
	eng, logger, err := openEngine()
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("starting lanwatch", "dev", devMode, "db", dbPath, "listen", listenAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}

	wsHub := ws.NewHub(sugar, eng.Broadcaster())
	handler := rest.NewRouter(eng, sugar, http.HandlerFunc(wsHub.ServeHTTP))

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("http server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	sugar.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("http server shutdown error", "error", err)
	}

	eng.Shutdown()
	sugar.Info("lanwatch stopped")
	return nil
}
