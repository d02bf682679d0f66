/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/worktime/internal/db"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/settings"
	"github.com/friendsincode/worktime/internal/tasks"
	"github.com/friendsincode/worktime/internal/worktime"
)

var (
	computeStart     string
	computeEstimate  float64
	computeWorkStart string
	computeWorkEnd   string
	computeHolidays  []string
	computeRecurring []string
	computePreset    string
	computeFromDB    bool
	computeJSON      bool
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute the end instant of a working-time estimate",
	Long: `Move a start instant forward (or backward, for negative estimates) by a
number of working days.

Examples:
  # Offline, 09:00-17:00, skipping one holiday
  worktime compute --start 2024-01-15T10:00:00Z --estimate 1.5 \
    --work-start 09:00 --work-end 17:00 --holiday 2024-01-16

  # Against the working hours and holidays stored in the database
  worktime compute --start "2024-01-15 10:00" --estimate 2 --from-db

With --from-db, --work-start/--work-end and --public-holidays override the
stored configuration only when given explicitly.
`,
	RunE: runCompute,
}

func init() {
	computeCmd.Flags().StringVar(&computeStart, "start", "", "Start instant (RFC3339 or YYYY-MM-DD HH:MM[:SS], local time) (required)")
	computeCmd.Flags().Float64Var(&computeEstimate, "estimate", 0, "Estimate in working days; negative walks backward")
	computeCmd.Flags().StringVar(&computeWorkStart, "work-start", "08:00", "Working day start (HH:MM)")
	computeCmd.Flags().StringVar(&computeWorkEnd, "work-end", "16:00", "Working day end (HH:MM)")
	computeCmd.Flags().StringSliceVar(&computeHolidays, "holiday", nil, "One-time holiday (YYYY-MM-DD); repeatable")
	computeCmd.Flags().StringSliceVar(&computeRecurring, "recurring", nil, "Recurring holiday (MM-DD); repeatable")
	computeCmd.Flags().StringVar(&computePreset, "public-holidays", "", "Public holiday preset, e.g. us")
	computeCmd.Flags().BoolVar(&computeFromDB, "from-db", false, "Use the stored working hours and holidays")
	computeCmd.Flags().BoolVar(&computeJSON, "json", false, "Print the result as JSON")
	_ = computeCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(computeCmd)
}

func runCompute(cmd *cobra.Command, args []string) error {
	start, err := worktime.ParseInstant(computeStart)
	if err != nil {
		return err
	}

	var res *tasks.ComputeResult
	if computeFromDB {
		res, err = computeFromDatabase(cmd, start)
	} else {
		res, err = computeOffline(start)
	}
	if err != nil {
		return err
	}
	return printCompute(cmd.OutOrStdout(), res, computeJSON)
}

func computeOffline(start time.Time) (*tasks.ComputeResult, error) {
	window, err := worktime.NewWindow(computeWorkStart, computeWorkEnd)
	if err != nil {
		return nil, err
	}
	preset, err := worktime.PublicHolidays(computePreset)
	if err != nil {
		return nil, err
	}

	oneTime := make([]worktime.Date, 0, len(computeHolidays))
	for _, raw := range computeHolidays {
		d, err := worktime.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", raw, err)
		}
		oneTime = append(oneTime, d)
	}
	recurring := make([]worktime.MonthDay, 0, len(computeRecurring))
	for _, raw := range computeRecurring {
		md, err := worktime.ParseMonthDay(raw)
		if err != nil {
			return nil, fmt.Errorf("recurring holiday %q: %w", raw, err)
		}
		recurring = append(recurring, md)
	}
	cal := worktime.NewCalendar(oneTime, recurring, preset)

	result, err := worktime.Compute(start, computeEstimate, window, cal.IsHoliday)
	if err != nil {
		return nil, err
	}
	return &tasks.ComputeResult{
		Start:        result.Start,
		End:          result.End,
		EstimateDays: computeEstimate,
		Window:       window.String(),
		Hours:        result.Hours,
		DaysSkipped:  result.DaysSkipped,
	}, nil
}

func computeFromDatabase(cmd *cobra.Command, start time.Time) (*tasks.ComputeResult, error) {
	if err := loadConfig(); err != nil {
		return nil, err
	}
	database, err := initDatabase()
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	preset, err := worktime.PublicHolidays(databasePreset(cmd, cfg.PublicHolidays))
	if err != nil {
		return nil, err
	}
	bus := events.NewBus()
	quiet := zerolog.Nop()
	settingsSvc := settings.NewService(database, bus, nil, settings.Options{PublicHolidays: preset}, quiet)
	taskSvc := tasks.NewService(database, bus, settingsSvc, quiet)

	return taskSvc.Compute(cmd.Context(), databaseRequest(cmd, start))
}

// databaseRequest layers the explicitly set window flags over the stored
// working hours. Unset window flags leave the stored hours in effect.
func databaseRequest(cmd *cobra.Command, start time.Time) tasks.ComputeRequest {
	req := tasks.ComputeRequest{
		Start:        start,
		EstimateDays: computeEstimate,
		Holidays:     computeHolidays,
		Recurring:    computeRecurring,
	}
	if cmd.Flags().Changed("work-start") || cmd.Flags().Changed("work-end") {
		req.WorkStart, req.WorkEnd = computeWorkStart, computeWorkEnd
	}
	return req
}

// databasePreset prefers --public-holidays over the configured preset.
func databasePreset(cmd *cobra.Command, configured string) string {
	if cmd.Flags().Changed("public-holidays") {
		return computePreset
	}
	return configured
}

func printCompute(w io.Writer, res *tasks.ComputeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "Start:        %s\n", res.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:          %s\n", res.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Estimate:     %g days (%g working hours)\n", res.EstimateDays, res.Hours)
	fmt.Fprintf(w, "Window:       %s\n", res.Window)
	fmt.Fprintf(w, "Days skipped: %d\n", res.DaysSkipped)
	return nil
}
