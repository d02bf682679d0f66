/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package legacyimport copies users, working hours and holidays out of the
// previous working-time application's relational schema.
package legacyimport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/cache"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/worktime"
)

// Options control a single import run.
type Options struct {
	DSN    string
	Driver string // "postgres" or "sqlite3"; detected from DSN when empty
	DryRun bool

	// SkipUsers leaves accounts alone and imports only the calendar.
	SkipUsers bool
}

// Stats summarises what an import did (or would do on a dry run).
type Stats struct {
	UsersImported        int  `json:"users_imported"`
	UsersSkipped         int  `json:"users_skipped"`
	WorkingHoursImported bool `json:"working_hours_imported"`
	RecurringImported    int  `json:"recurring_imported"`
	OneTimeImported      int  `json:"one_time_imported"`
	HolidaysSkipped      int  `json:"holidays_skipped"`
	ErrorsEncountered    int  `json:"errors_encountered"`
}

// Importer reads a legacy database and writes into the service database.
type Importer struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewImporter creates an importer. c may be nil.
func NewImporter(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *Importer {
	if c == nil {
		c = cache.Disabled(logger)
	}
	return &Importer{
		db:     db,
		cache:  c,
		logger: logger.With().Str("component", "legacy_importer").Logger(),
	}
}

type legacyUser struct {
	Username string
	Password string
	Email    string
	Role     string
}

type legacyData struct {
	users     []legacyUser
	window    *worktime.Window
	recurring []models.RecurringHoliday
	oneTime   []models.OneTimeHoliday
}

// Import runs the import described by opts.
func (i *Importer) Import(ctx context.Context, opts Options) (*Stats, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DetectDriver(opts.DSN)
	}
	i.logger.Info().
		Str("driver", driver).
		Str("dsn", maskDSN(opts.DSN)).
		Bool("dry_run", opts.DryRun).
		Msg("starting legacy import")

	src, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to legacy db: %w", err)
	}
	defer src.Close()

	if err := src.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping legacy db: %w", err)
	}

	stats := &Stats{}
	data := &legacyData{}

	if !opts.SkipUsers {
		i.reportProgress(1, 5, "reading users")
		if data.users, err = i.readUsers(ctx, src, stats); err != nil {
			return nil, err
		}
	}
	i.reportProgress(2, 5, "reading working hours")
	if data.window, err = i.readWorkingHours(ctx, src); err != nil {
		return nil, err
	}
	i.reportProgress(3, 5, "reading holidays")
	if data.recurring, err = i.readRecurring(ctx, src, stats); err != nil {
		return nil, err
	}
	if data.oneTime, err = i.readOneTime(ctx, src, stats); err != nil {
		return nil, err
	}

	i.reportProgress(4, 5, "writing")
	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := i.writeUsers(tx, data.users, stats); err != nil {
			return err
		}
		if err := i.writeWorkingHours(tx, data.window, stats); err != nil {
			return err
		}
		if err := i.writeHolidays(tx, data, stats); err != nil {
			return err
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}

	if !opts.DryRun {
		_ = i.cache.InvalidateCalendar(ctx)
		_ = i.cache.InvalidateEngineers(ctx)
	}

	i.reportProgress(5, 5, "import completed")
	i.logger.Info().Interface("stats", stats).Msg("legacy import completed")
	return stats, nil
}

// errDryRun rolls back the write transaction after counting.
var errDryRun = errors.New("dry run")

func (i *Importer) readUsers(ctx context.Context, src *sql.DB, stats *Stats) ([]legacyUser, error) {
	rows, err := src.QueryContext(ctx, `SELECT username, password, email, role FROM "user" ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []legacyUser
	for rows.Next() {
		var u legacyUser
		var email, role sql.NullString
		if err := rows.Scan(&u.Username, &u.Password, &email, &role); err != nil {
			i.logger.Error().Err(err).Msg("scan user")
			stats.ErrorsEncountered++
			continue
		}
		u.Email = email.String
		u.Role = role.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// readWorkingHours returns the active window, or nil when none is set.
func (i *Importer) readWorkingHours(ctx context.Context, src *sql.DB) (*worktime.Window, error) {
	var start, end string
	err := src.QueryRowContext(ctx, `
		SELECT CAST(start_time AS TEXT), CAST(end_time AS TEXT)
		FROM working_hours
		WHERE is_active = TRUE
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query working hours: %w", err)
	}
	window, err := worktime.NewWindow(trimSeconds(start), trimSeconds(end))
	if err != nil {
		return nil, fmt.Errorf("legacy working hours %s-%s: %w", start, end, err)
	}
	return window, nil
}

func (i *Importer) readRecurring(ctx context.Context, src *sql.DB, stats *Stats) ([]models.RecurringHoliday, error) {
	rows, err := src.QueryContext(ctx, `SELECT month, day, description FROM recurring_holiday ORDER BY month, day`)
	if err != nil {
		return nil, fmt.Errorf("query recurring holidays: %w", err)
	}
	defer rows.Close()

	var out []models.RecurringHoliday
	for rows.Next() {
		var month, day int
		var desc sql.NullString
		if err := rows.Scan(&month, &day, &desc); err != nil {
			i.logger.Error().Err(err).Msg("scan recurring holiday")
			stats.ErrorsEncountered++
			continue
		}
		if !worktime.ValidMonthDay(month, day) {
			i.logger.Warn().Int("month", month).Int("day", day).Msg("skipping invalid recurring holiday")
			stats.HolidaysSkipped++
			continue
		}
		out = append(out, models.RecurringHoliday{Month: month, Day: day, Description: desc.String})
	}
	return out, rows.Err()
}

func (i *Importer) readOneTime(ctx context.Context, src *sql.DB, stats *Stats) ([]models.OneTimeHoliday, error) {
	rows, err := src.QueryContext(ctx, `SELECT CAST(date AS TEXT), description FROM one_time_holiday ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("query one-time holidays: %w", err)
	}
	defer rows.Close()

	var out []models.OneTimeHoliday
	for rows.Next() {
		var raw string
		var desc sql.NullString
		if err := rows.Scan(&raw, &desc); err != nil {
			i.logger.Error().Err(err).Msg("scan one-time holiday")
			stats.ErrorsEncountered++
			continue
		}
		if len(raw) > 10 {
			raw = raw[:10]
		}
		d, err := worktime.ParseDate(raw)
		if err != nil {
			i.logger.Warn().Str("date", raw).Msg("skipping invalid one-time holiday")
			stats.HolidaysSkipped++
			continue
		}
		out = append(out, models.OneTimeHoliday{Date: d.String(), Description: desc.String})
	}
	return out, rows.Err()
}

func (i *Importer) writeUsers(tx *gorm.DB, users []legacyUser, stats *Stats) error {
	for _, u := range users {
		role := models.RoleName(strings.ToUpper(u.Role))
		if !role.Valid() {
			role = models.RoleEngineer
		}

		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
			return fmt.Errorf("check user %s: %w", u.Username, err)
		}
		if count > 0 {
			stats.UsersSkipped++
			continue
		}

		// Legacy hashes are bcrypt and are kept as-is.
		user := &models.User{
			ID:       uuid.NewString(),
			Username: u.Username,
			Password: u.Password,
			Email:    u.Email,
			Role:     role,
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user %s: %w", u.Username, err)
		}
		stats.UsersImported++
	}
	return nil
}

func (i *Importer) writeWorkingHours(tx *gorm.DB, window *worktime.Window, stats *Stats) error {
	if window == nil {
		return nil
	}
	start, end := window.Start.String(), window.End.String()

	var active models.WorkingHours
	err := tx.Where("active = ?", true).Order("created_at DESC").First(&active).Error
	switch {
	case err == nil && active.StartTime == start && active.EndTime == end:
		return nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("load active working hours: %w", err)
	}

	if err := tx.Model(&models.WorkingHours{}).Where("active = ?", true).Update("active", false).Error; err != nil {
		return fmt.Errorf("deactivate working hours: %w", err)
	}
	row := &models.WorkingHours{ID: uuid.NewString(), StartTime: start, EndTime: end, Active: true}
	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("create working hours: %w", err)
	}
	stats.WorkingHoursImported = true
	return nil
}

func (i *Importer) writeHolidays(tx *gorm.DB, data *legacyData, stats *Stats) error {
	for _, h := range data.recurring {
		var count int64
		if err := tx.Model(&models.RecurringHoliday{}).Where("month = ? AND day = ?", h.Month, h.Day).Count(&count).Error; err != nil {
			return fmt.Errorf("check recurring holiday: %w", err)
		}
		if count > 0 {
			stats.HolidaysSkipped++
			continue
		}
		h.ID = uuid.NewString()
		if err := tx.Create(&h).Error; err != nil {
			return fmt.Errorf("create recurring holiday: %w", err)
		}
		stats.RecurringImported++
	}

	for _, h := range data.oneTime {
		var count int64
		if err := tx.Model(&models.OneTimeHoliday{}).Where("date = ?", h.Date).Count(&count).Error; err != nil {
			return fmt.Errorf("check one-time holiday: %w", err)
		}
		if count > 0 {
			stats.HolidaysSkipped++
			continue
		}
		h.ID = uuid.NewString()
		if err := tx.Create(&h).Error; err != nil {
			return fmt.Errorf("create one-time holiday: %w", err)
		}
		stats.OneTimeImported++
	}
	return nil
}

func (i *Importer) reportProgress(step, total int, message string) {
	i.logger.Info().
		Int("step", step).
		Int("total", total).
		Str("message", message).
		Msg("import progress")
}

// DetectDriver picks the database/sql driver for a DSN.
func DetectDriver(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") || strings.Contains(lower, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// trimSeconds turns "09:00:00" into "09:00".
func trimSeconds(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 5 && s[5] == ':' {
		return s[:5]
	}
	return s
}

func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		parts := strings.SplitN(dsn, "@", 2)
		if len(parts) == 2 {
			userParts := strings.SplitN(parts[0], ":", 3)
			if len(userParts) >= 2 {
				return userParts[0] + ":" + userParts[1] + ":***@" + parts[1]
			}
		}
	}
	return dsn
}
