package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/elchemista/FormRelay/internal/store"
)

var migrateTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL tables",
	Long: `Create the rate_limits and submissions tables in the database named by
storage.mysql_dsn or $MYSQL_DSN. Existing tables are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.MySQLDSN == "" {
			return errors.New("storage.mysql_dsn is not set")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
		defer cancel()

		db, err := store.Open(ctx, cfg.Storage.MySQLDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		start := time.Now()
		if err := store.Migrate(ctx, db); err != nil {
			return err
		}

		log.Info("Migration completed", "duration", time.Since(start).Round(time.Millisecond))
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Tables are up to date")
		return nil
	},
}

func init() {
	migrateCmd.Flags().DurationVar(&migrateTimeout, "timeout", 30*time.Second, "timeout for connecting and migrating")
}
