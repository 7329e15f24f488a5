package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/pkg/config"
	"github.com/noah-isme/sos-dispatch-api/pkg/database"
)

// NewMigrateCommand applies the embedded schema to the configured database.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded SQL migrations to the configured PostgreSQL or SQLite database.

Example:
  STORE_DRIVER=postgres sos-dispatch migrate
  sos-dispatch migrate --driver sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runMigrate(ctx, rootOpts)
		},
	}
}

func runMigrate(ctx context.Context, opts *RootOptions) error {
	if opts.cfg.Store.Driver == config.StoreDriverMemory {
		return errors.New("migrate needs a database driver (postgres or sqlite)")
	}
	db, err := openDB(opts.cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return err
	}
	opts.log.Info("migrations applied", zap.String("driver", opts.cfg.Store.Driver), zap.Strings("files", applied))
	return nil
}
