package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/infirmary/internal/client/config"
	"github.com/iudanet/infirmary/internal/client/iocli"
	"github.com/iudanet/infirmary/internal/logger"
)

// Factory создает Cli для выполнения команды
type Factory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Cli, error)

// OpenFactory открывает BoltDB и HTTP клиент, вывод идет в io
func OpenFactory(io iocli.IO) Factory {
	return func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Cli, error) {
		return Open(ctx, cfg, io, logger)
	}
}

// NewRootCommand собирает дерево команд infirmary
func NewRootCommand(version string, factory Factory) *cobra.Command {
	v := viper.New()
	var (
		app        *Cli
		closeLog   func() error
		configFile string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "infirmary",
		Short:         "Offline-first client of the infirmary records server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}

			var log *slog.Logger
			log, closeLog = logger.New(logger.Config{
				Level: cfg.LogLevel,
				File:  cfg.LogFile,
				Quiet: !verbose,
			})

			app, err = factory(cmd.Context(), cfg, log)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app != nil {
				if err := app.Close(); err != nil {
					return fmt.Errorf("failed to close database: %w", err)
				}
			}
			if closeLog != nil {
				return closeLog()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default ./infirmary.yaml or ~/.infirmary/infirmary.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print logs to stderr")
	flags.String("server", "", "server URL")
	flags.String("db", "", "path to local database")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "write JSON logs to this file")
	bindFlags(v, root, map[string]string{
		"server_url": "server",
		"db_path":    "db",
		"log_level":  "log-level",
		"log_file":   "log-file",
	})

	cli := func() *Cli { return app }
	root.AddCommand(
		authCommands(cli)...,
	)
	root.AddCommand(
		newAddCommand(cli),
		newUpdateCommand(cli),
		newDeleteCommand(cli),
		newGetCommand(cli),
		newListCommand(cli),
		newSyncCommand(cli),
		newStatusCommand(cli),
		newConflictsCommand(cli),
		newQueueCommand(cli),
		newWatchCommand(cli, v),
	)
	return root
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func authCommands(cli func() *Cli) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "register",
			Short: "Register a new staff account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli().runRegister(cmd.Context())
			},
		},
		{
			Use:   "login",
			Short: "Log in and store the session locally",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli().runLogin(cmd.Context())
			},
		},
		{
			Use:   "logout",
			Short: "Remove the local session, pending changes are kept",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli().runLogout(cmd.Context())
			},
		},
	}
}

func payloadFlags(cmd *cobra.Command, in *PayloadInput) {
	cmd.Flags().StringVarP(&in.Data, "data", "d", "", "record fields as a JSON object")
	cmd.Flags().StringVarP(&in.File, "file", "f", "", "read record fields from a JSON file")
	cmd.Flags().StringArrayVarP(&in.Set, "set", "s", nil, "field assignment key=value or key:=json (repeatable)")
}

func newAddCommand(cli func() *Cli) *cobra.Command {
	var in PayloadInput
	cmd := &cobra.Command{
		Use:   "add <type>",
		Short: "Create a record locally and queue it for sync",
		Example: `  infirmary add patient -s first_name=Ann -s last_name=Lee -s gender=F
  infirmary add vaccination -s patient_id=<id> -s vaccine_name=BCG -s date=2024-05-01 -s dose_number:=1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runAdd(cmd.Context(), args[0], in)
		},
	}
	payloadFlags(cmd, &in)
	return cmd
}

func newUpdateCommand(cli func() *Cli) *cobra.Command {
	var in PayloadInput
	cmd := &cobra.Command{
		Use:     "update <type> <id>",
		Short:   "Change fields of a record locally",
		Example: `  infirmary update medication <id> -s quantity:=12`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runUpdate(cmd.Context(), args[0], args[1], in)
		},
	}
	payloadFlags(cmd, &in)
	return cmd
}

func newDeleteCommand(cli func() *Cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a record locally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runDelete(cmd.Context(), args[0], args[1], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newGetCommand(cli func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runGet(cmd.Context(), args[0], args[1])
		},
	}
}

func newListCommand(cli func() *Cli) *cobra.Command {
	var opts ListOptions
	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List records of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runList(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Patient, "patient", "", "only records of this patient")
	cmd.Flags().BoolVar(&opts.LowStock, "low-stock", false, "only medication at or below minimum stock")
	cmd.Flags().BoolVar(&opts.IncludeDeleted, "deleted", false, "include deleted records")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records")
	return cmd
}

func newSyncCommand(cli func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send local changes and fetch server updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runSync(cmd.Context())
		},
	}
}

func newStatusCommand(cli func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, connectivity and queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runStatus(cmd.Context())
		},
	}
}

func newConflictsCommand(cli func() *Cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Review and resolve sync conflicts",
	}

	var keep string
	resolve := &cobra.Command{
		Use:   "resolve <temp-id>",
		Short: "Resolve one conflict keeping the local or the server version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runConflictResolve(cmd.Context(), args[0], keep)
		},
	}
	resolve.Flags().StringVarP(&keep, "keep", "k", "", "local (alias client) or server")
	_ = resolve.MarkFlagRequired("keep")

	var keepAll string
	resolveAll := &cobra.Command{
		Use:   "resolve-all",
		Short: "Resolve every conflict the same way",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runConflictResolveAll(cmd.Context(), keepAll)
		},
	}
	resolveAll.Flags().StringVarP(&keepAll, "keep", "k", "", "local (alias client) or server")
	_ = resolveAll.MarkFlagRequired("keep")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List unresolved conflicts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli().runConflictsList(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "show <temp-id>",
			Short: "Show local and server versions side by side",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli().runConflictShow(cmd.Context(), args[0])
			},
		},
		resolve,
		resolveAll,
	)
	return cmd
}

func newQueueCommand(cli func() *Cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect pending operations",
	}

	var failedOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List queued operations in push order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runQueueList(cmd.Context(), failedOnly)
		},
	}
	list.Flags().BoolVar(&failedOnly, "failed", false, "only operations that ran out of retries")

	var yes bool
	discard := &cobra.Command{
		Use:   "discard <temp-id>",
		Short: "Drop a local change and reload the record from the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runQueueDiscard(cmd.Context(), args[0], yes)
		},
	}
	discard.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "retry <temp-id>",
			Short: "Put a failed operation back into the queue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli().runQueueRetry(cmd.Context(), args[0])
			},
		},
		discard,
	)
	return cmd
}

func newWatchCommand(cli func() *Cli, v *viper.Viper) *cobra.Command {
	var opts WatchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor connectivity and sync when the server comes back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli().runWatch(cmd.Context(), opts)
		},
	}
	cmd.Flags().DurationVar(&opts.ProbeInterval, "probe-interval", 0, "connectivity check period (default from config)")
	cmd.Flags().DurationVar(&opts.SyncEvery, "sync-every", 0, "also sync periodically while online")
	cmd.Flags().Bool("auto-sync", true, "sync on offline to online transition")
	if err := v.BindPFlag("auto_sync", cmd.Flags().Lookup("auto-sync")); err != nil {
		panic(fmt.Sprintf("bind flag auto-sync: %v", err))
	}
	return cmd
}
