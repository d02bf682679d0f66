/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/worktime/internal/db"
	"github.com/friendsincode/worktime/internal/legacyimport"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import data from other systems",
}

var importLegacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Import from the previous working-time application",
	Long: `Copy users, the active working hours and all holidays out of the previous
application's database. Postgres DSNs and SQLite file paths are accepted.

Examples:
  worktime import legacy --dsn "postgres://app:secret@db:5432/worktime?sslmode=disable"
  worktime import legacy --dsn ./legacy.db --dry-run
`,
	RunE: runImportLegacy,
}

var (
	legacyDSN       string
	legacyDriver    string
	legacyDryRun    bool
	legacySkipUsers bool
)

func init() {
	importLegacyCmd.Flags().StringVar(&legacyDSN, "dsn", "", "Legacy database DSN or SQLite path (required)")
	importLegacyCmd.Flags().StringVar(&legacyDriver, "driver", "", "postgres or sqlite3 (detected from the DSN by default)")
	importLegacyCmd.Flags().BoolVar(&legacyDryRun, "dry-run", false, "Analyze the legacy database without importing")
	importLegacyCmd.Flags().BoolVar(&legacySkipUsers, "skip-users", false, "Import only working hours and holidays")
	_ = importLegacyCmd.MarkFlagRequired("dsn")

	importCmd.AddCommand(importLegacyCmd)
	rootCmd.AddCommand(importCmd)
}

func runImportLegacy(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	c := initCache()
	if c != nil {
		defer c.Close()
	}

	importer := legacyimport.NewImporter(database, c, logger)
	stats, err := importer.Import(cmd.Context(), legacyimport.Options{
		DSN:       legacyDSN,
		Driver:    legacyDriver,
		DryRun:    legacyDryRun,
		SkipUsers: legacySkipUsers,
	})
	if err != nil {
		return fmt.Errorf("legacy import: %w", err)
	}

	out := cmd.OutOrStdout()
	if legacyDryRun {
		fmt.Fprintf(out, "\nImport Preview:\n")
	} else {
		fmt.Fprintf(out, "\nImport Summary:\n")
	}
	fmt.Fprintf(out, "  Users:              %d (skipped %d)\n", stats.UsersImported, stats.UsersSkipped)
	fmt.Fprintf(out, "  Working hours:      %t\n", stats.WorkingHoursImported)
	fmt.Fprintf(out, "  Recurring holidays: %d\n", stats.RecurringImported)
	fmt.Fprintf(out, "  One-time holidays:  %d\n", stats.OneTimeImported)
	fmt.Fprintf(out, "  Holidays skipped:   %d\n", stats.HolidaysSkipped)
	if stats.ErrorsEncountered > 0 {
		fmt.Fprintf(out, "  Errors:             %d\n", stats.ErrorsEncountered)
	}
	return nil
}
