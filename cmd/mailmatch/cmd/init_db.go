package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gadievron/mailmatch/internal/store"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the outcome database",
	Long: `Initialize the mailmatch database with the required schema.

Safe to run multiple times - tables are only created if they don't
already exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := cfg.DatabasePath()
		logger.Info("initializing database", "path", dbPath)

		s, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		if err := s.InitSchema(); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}

		count, err := s.CountOutcomes(cmd.Context())
		if err != nil {
			return fmt.Errorf("count outcomes: %w", err)
		}

		fmt.Printf("Database: %s\n", dbPath)
		fmt.Printf("  Outcomes: %d\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
