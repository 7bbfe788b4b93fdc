package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onestopradio/stationctl/internal/config"
	"github.com/onestopradio/stationctl/internal/migrate"
)

var migrateDatabaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up [project-dir]",
	Short: "Apply pending schema migrations",
	Long: `Brings the migration store up to date. A database that already carries the
schema but no migration history is stamped as the baseline instead of being
replayed. Re-running against an up-to-date store is a no-op.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status [project-dir]",
	Short: "Show the migration state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigrateStatus,
}

var migrateTablesCmd = &cobra.Command{
	Use:   "tables [project-dir]",
	Short: "List the schema tables in the store",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigrateTables,
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDatabaseURL, "database-url", "", "Migration store URL (overrides settings and DATABASE_URL)")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateTablesCmd)
}

func openStore(args []string) (*migrate.Store, error) {
	dir, err := projectDir(args)
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if migrateDatabaseURL != "" {
		settings.DatabaseURL = migrateDatabaseURL
	}
	return migrate.Open(settings.ResolvedDatabaseURL())
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	store, err := openStore(args)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := cmd.Context()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("migration store unreachable: %w", err)
	}

	applied, err := store.Upgrade(ctx)
	for _, a := range applied {
		if a.Stamped {
			fmt.Printf("  %4d  %-45s stamped\n", a.ID, a.Description)
		} else {
			fmt.Printf("  %4d  %-45s %s\n", a.ID, a.Description, roundDuration(a.Duration))
		}
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("No pending migrations. Schema is up-to-date.")
	} else {
		fmt.Printf("Applied %d step(s).\n", len(applied))
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore(args)
	if err != nil {
		return err
	}
	defer store.Close()

	state, err := store.Current(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(state)
	return nil
}

func runMigrateTables(cmd *cobra.Command, args []string) error {
	store, err := openStore(args)
	if err != nil {
		return err
	}
	defer store.Close()

	tables, err := store.Tables(cmd.Context())
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Println("No tables yet.")
		return nil
	}
	for _, t := range tables {
		fmt.Println(t)
	}
	return nil
}
