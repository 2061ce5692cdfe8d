package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/set-night/interviewcoach/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded Postgres migrations",
	Long: `Apply the embedded schema migrations to DATABASE_URL.

serve runs the same migrations on start when STORE_DRIVER=postgres;
this command is for running them ahead of a deploy.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	status, err := migrateUp(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), migrationSummary(status))
	return nil
}

func migrationSummary(s repository.MigrationStatus) string {
	if !s.Changed() {
		return fmt.Sprintf("schema is up to date at version %d", s.To)
	}
	if s.From == 0 {
		return fmt.Sprintf("schema created at version %d", s.To)
	}
	return fmt.Sprintf("schema migrated from version %d to %d", s.From, s.To)
}
