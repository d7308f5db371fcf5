// Command fieldcast serves work-report forecasts over HTTP and runs the
// forecast engine offline.
//
// Usage:
//
//	fieldcast serve --config fieldcast.yaml
//	fieldcast forecast --values 0.30,0.31,0.33 --group "Kelompok 1" --activity perbaikan_kwh
//	fieldcast policies
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fieldcast/fieldcast/internal/config"
	"github.com/fieldcast/fieldcast/internal/event"
	"github.com/fieldcast/fieldcast/internal/prediction"
	"github.com/fieldcast/fieldcast/internal/registry"
	"github.com/fieldcast/fieldcast/internal/roster"
	"github.com/fieldcast/fieldcast/internal/server"
	"github.com/fieldcast/fieldcast/internal/store"
	"github.com/fieldcast/fieldcast/internal/version"
	"github.com/fieldcast/fieldcast/pkg/plugin"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "fieldcast",
		Usage:   "Field-service work duration forecasting",
		Version: version.Info(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"FC_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error); overrides logging.level",
				EnvVars: []string{"FC_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			forecastCommand(),
			policiesCommand(),
			versionCommand(),
		},
	}
}

// loadConfig reads the configuration named by the global --config flag.
func loadConfig(c *cli.Context) (*viper.Viper, error) {
	v, err := server.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		v.Set("logging.level", lvl)
	}
	return v, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	v, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := config.New(v)

	logger, err := config.NewLogger(v)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("fieldcast server starting", zap.String("version", version.Short()))
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	srvCfg, err := server.ServerConfig(v)
	if err != nil {
		return err
	}

	dbPath := v.GetString("database.path")
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != store.MemoryPath {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		return err
	}
	logger.Info("database initialized", zap.String("component", "database"), zap.String("path", dbPath))

	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	modules := []plugin.Plugin{
		roster.New(),
		prediction.New(),
	}
	for _, m := range modules {
		name := m.Info().Name
		if !v.GetBool("plugins." + name + ".enabled") {
			logger.Info("plugin disabled by configuration", zap.String("name", name))
			continue
		}
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("register plugin: %w", err)
		}
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("plugin validation: %w", err)
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		return fmt.Errorf("initialize plugins: %w", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		return fmt.Errorf("start plugins: %w", err)
	}

	srv := server.New(srvCfg, reg, logger, func(ctx context.Context) error {
		return db.Ping(ctx)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	logger.Info("fieldcast server ready", zap.String("addr", srvCfg.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		logger.Error("server stopped unexpectedly", zap.Error(serveErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := reg.StopAll(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop plugins: %w", err))
	}
	if err := bus.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("drain event bus: %w", err))
	}
	logger.Info("fieldcast server stopped")

	return errors.Join(append([]error{serveErr}, errs...)...)
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, version.Info())
			return nil
		},
	}
}
