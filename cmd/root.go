package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yaswanthhh/ev-charge-optimizer/app"
	"github.com/yaswanthhh/ev-charge-optimizer/config"
	"github.com/yaswanthhh/ev-charge-optimizer/core/optimizer"
	"github.com/yaswanthhh/ev-charge-optimizer/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "evopt",
	Short:         "EV charging schedule optimizer and OCPP dispatcher",
	RunE:          serve,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the station endpoints",
	RunE:  serve,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration file. A missing default file falls
// back to defaults and K_ environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// offlineService builds the planner operations without any transport or
// store, for commands that only compute.
func offlineService(cfg *config.Config) *optimizer.Service {
	return optimizer.NewService(
		cfg.Planner.Defaults(cfg.Dispatch.DefaultChargerID),
		cfg.Dispatch.ProfileOptions(),
		nil, nil, nil, logger.NopLogger{},
	)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
