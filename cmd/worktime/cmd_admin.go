/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/worktime/internal/accounts"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/db"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/settings"
	"github.com/friendsincode/worktime/internal/version"
)

// cliActor attributes CLI changes in the audit trail.
var cliActor = auth.Actor{Username: "cli", UserAgent: "worktime-cli/" + version.Version}

var holidaysCmd = &cobra.Command{
	Use:   "holidays",
	Short: "Manage the holiday calendar",
}

var holidaysImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import working hours and holidays from a YAML document",
	Long: `Import working hours and holidays from a YAML document:

  working_hours:
    start: "09:00"
    end: "17:00"
  recurring:
    - {month: 12, day: 25, description: Christmas}
  one_time:
    - {date: 2024-01-16, description: Office move}
  replace_one_time: false
`,
	Args: cobra.ExactArgs(1),
	RunE: runHolidaysImport,
}

var (
	userUsername string
	userPassword string
	userEmail    string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	RunE:  runUserCreate,
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintln(cmd.OutOrStdout(), info.String())
		return nil
	},
}

func init() {
	holidaysCmd.AddCommand(holidaysImportCmd)
	rootCmd.AddCommand(holidaysCmd)

	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "Username (required)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password, at least 6 characters (required)")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleEngineer), "PROJECT_MANAGER or ENGINEER")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)

	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build information as JSON")
	rootCmd.AddCommand(versionCmd)
}

func runHolidaysImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
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
	svc := settings.NewService(database, events.NewBus(), c, settings.Options{}, logger)

	res, err := svc.ImportHolidays(cmd.Context(), cliActor, data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nImport Summary:\n")
	fmt.Fprintf(out, "  Working hours updated: %t\n", res.WorkingHoursUpdated)
	fmt.Fprintf(out, "  Recurring holidays:    %d\n", res.Recurring)
	fmt.Fprintf(out, "  One-time holidays:     %d\n", res.OneTime)
	fmt.Fprintf(out, "  Removed:               %d\n", res.Removed)
	fmt.Fprintf(out, "  Skipped (duplicates):  %d\n", res.Skipped)
	return nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	user, err := createUser(cmd.Context(), accounts.NewService(database, events.NewBus(), initCache(), []byte(cfg.JWTSigningKey), cfg.JWTTTL, logger))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

func createUser(ctx context.Context, svc *accounts.Service) (*models.User, error) {
	return svc.CreateUser(ctx, cliActor, accounts.NewUser{
		Username: userUsername,
		Password: userPassword,
		Email:    userEmail,
		Role:     models.RoleName(strings.ToUpper(userRole)),
	})
}
