package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/infirmary/internal/logger"
	"github.com/iudanet/infirmary/internal/server"
	"github.com/iudanet/infirmary/internal/server/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "infirmary-server",
		Short:         "Records server for offline-first infirmary clients",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}

			log, closeLog := logger.New(logger.Config{
				Level: cfg.LogLevel,
				File:  cfg.LogFile,
			})
			defer func() { _ = closeLog() }()

			srv, err := server.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := srv.Close(); err != nil {
					log.Error("failed to close server", "error", err)
				}
			}()

			log.Info("starting infirmary server", "version", Version, "db", cfg.DBPath)
			return srv.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default ./infirmary-server.yaml or /etc/infirmary/infirmary-server.yaml)")
	flags.StringP("address", "a", "", "listen address")
	flags.String("db", "", "path to SQLite database")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "write JSON logs to this file")

	for key, name := range map[string]string{
		"address":   "address",
		"db_path":   "db",
		"log_level": "log-level",
		"log_file":  "log-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	return cmd
}
