package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/pkg/config"
	"github.com/noah-isme/sos-dispatch-api/pkg/logger"
)

// RootOptions holds state shared by every subcommand.
type RootOptions struct {
	Driver string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand creates the root command for the dispatch service.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sos-dispatch",
		Short: "SOS dispatch API",
		Long:  "Routes help requests from people in need to verified, available volunteers.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.Driver != "" {
				cfg.Store.Driver = opts.Driver
			}
			if !validDriver(cfg.Store.Driver) {
				return fmt.Errorf("invalid store driver %q: must be one of %v", cfg.Store.Driver, validDrivers)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.cfg = cfg
			opts.log = logr
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver override (memory|postgres|sqlite)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

var validDrivers = []string{config.StoreDriverMemory, config.StoreDriverPostgres, config.StoreDriverSQLite}

func validDriver(driver string) bool {
	for _, d := range validDrivers {
		if d == driver {
			return true
		}
	}
	return false
}
