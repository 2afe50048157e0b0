package main

import (
	"fmt"
	"os"

	"netdoc/config"
	"netdoc/internal/db"
	"netdoc/internal/logs"
	"netdoc/server"

	"github.com/spf13/cobra"
)

var cfgFile string

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func runServe(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var app server.App
	if err := app.Initialize(cfg); err != nil {
		return err
	}
	return app.Run()
}

func runMigrate(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})
	if cfg.Database.Driver == "" {
		return fmt.Errorf("migrate: database.driver is not set")
	}
	gdb, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	logs.Logger.Infof("migrated %s database", cfg.Database.Driver)
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "netdoc",
		Short:         "Network documentation inventory: cabling, rack placement and branch reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./netdoc.yaml if present)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE:  runMigrate,
	})
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "netdoc:", err)
		os.Exit(1)
	}
}
