// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Courier is a multi-tenant message queuing broker speaking the v1.1 HTTP
// protocol, with pluggable storage and optional pooled sharding.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/courier-mq/courier/broker"
)

var (
	rootCmd = &cobra.Command{
		Use:   "courier",
		Short: "Courier message queuing broker",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the broker",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Write a default configuration file",
		RunE:  cmdSetup,
	}

	confDir string
)

func init() {
	defaults := broker.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&confDir, "config-dir", defaultConfigDir(), "directory holding courier.yaml")
	rootCmd.PersistentFlags().String("log-level", "info", "zap log level")

	rootCmd.PersistentFlags().String("address", defaults.Address, "HTTP listen address")
	rootCmd.PersistentFlags().String("store", defaults.Store, "store URL (bolt:// or sqlite://)")
	rootCmd.PersistentFlags().Bool("pooling.enabled", false, "route queues across registered pools")
	rootCmd.PersistentFlags().Int("pooling.cache-capacity", 1024, "catalogue cache entries")
	rootCmd.PersistentFlags().Duration("pooling.cache-expiration", 0, "catalogue cache entry lifetime")

	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd, setupCmd)
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".courier")
}

func loadConfig() (broker.Config, error) {
	viper.SetConfigName("courier")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(confDir)
	viper.SetEnvPrefix("COURIER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return broker.Config{}, errs.New("reading config: %v", err)
		}
	}

	config := broker.DefaultConfig()
	config.Address = viper.GetString("address")
	config.Store = viper.GetString("store")
	config.Pooling.Enabled = viper.GetBool("pooling.enabled")
	config.Pooling.CacheCapacity = viper.GetInt("pooling.cache-capacity")
	config.Pooling.CacheExpiration = viper.GetDuration("pooling.cache-expiration")
	return config, nil
}

func openLog() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, errs.New("invalid log level: %v", err)
	}
	logConfig := zap.NewProductionConfig()
	logConfig.Level = level
	return logConfig.Build()
}

func cmdRun(cmd *cobra.Command, args []string) error {
	log, err := openLog()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	config, err := loadConfig()
	if err != nil {
		return err
	}

	peer, err := broker.New(log, config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := peer.Run(ctx)
	return errs.Combine(runErr, peer.Close())
}

func cmdSetup(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(confDir, 0o700); err != nil {
		return errs.Wrap(err)
	}

	path := filepath.Join(confDir, "courier.yaml")
	if _, err := os.Stat(path); err == nil {
		return errs.New("configuration already exists: %s", path)
	}

	if err := viper.SafeWriteConfigAs(path); err != nil {
		return errs.Wrap(err)
	}
	fmt.Println("wrote", path)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
