package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

const venueColumns = `id, name, address, city, state, zip_code, manager_id, approved,
	opening_time, closing_time, increment_minutes, min_duration_minutes,
	max_duration_minutes, max_advance_days, same_day_cutoff_hours, created_at, updated_at`

func (db *DB) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	row := db.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = ?`, id)

	var v models.Venue
	var manager sql.NullString
	err := row.Scan(
		&v.ID, &v.Name, &v.Address, &v.City, &v.State, &v.ZipCode, &manager, &v.Approved,
		&v.OpeningTime, &v.ClosingTime, &v.Policy.IncrementMinutes, &v.Policy.MinDurationMinutes,
		&v.Policy.MaxDurationMinutes, &v.Policy.MaxAdvanceDays, &v.Policy.SameDayCutoffHours,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("venue %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	if manager.Valid {
		v.ManagerID = &manager.String
	}
	return &v, nil
}

func (db *DB) GetCourt(ctx context.Context, id int64) (*models.Court, error) {
	var c models.Court
	err := db.QueryRowContext(ctx,
		`SELECT id, venue_id, court_type, number, active, created_at FROM courts WHERE id = ?`, id,
	).Scan(&c.ID, &c.VenueID, &c.Type, &c.Number, &c.Active, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("court %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get court: %w", err)
	}
	return &c, nil
}

// ListCourts returns the venue's courts ordered by number. An empty
// courtType matches every type.
func (db *DB) ListCourts(ctx context.Context, venueID int64, courtType string) ([]*models.Court, error) {
	query := `SELECT id, venue_id, court_type, number, active, created_at FROM courts WHERE venue_id = ?`
	args := []any{venueID}
	if courtType != "" {
		query += ` AND court_type = ?`
		args = append(args, courtType)
	}
	query += ` ORDER BY number`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courts: %w", err)
	}
	defer rows.Close()

	var courts []*models.Court
	for rows.Next() {
		var c models.Court
		if err := rows.Scan(&c.ID, &c.VenueID, &c.Type, &c.Number, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan court: %w", err)
		}
		courts = append(courts, &c)
	}
	return courts, rows.Err()
}

// GetSpecialHours returns nil without error when the date has no override.
func (db *DB) GetSpecialHours(ctx context.Context, venueID int64, date time.Time) (*models.SpecialHours, error) {
	var sh models.SpecialHours
	var dateStr string
	var open, closing sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, venue_id, date, closed, opening_time, closing_time FROM special_hours WHERE venue_id = ? AND date = ?`,
		venueID, models.FormatDate(date),
	).Scan(&sh.ID, &sh.VenueID, &dateStr, &sh.Closed, &open, &closing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get special hours: %w", err)
	}

	if sh.Date, err = models.ParseDate(dateStr); err != nil {
		return nil, err
	}
	if sh.OpeningTime, err = nullableTime(open); err != nil {
		return nil, err
	}
	if sh.ClosingTime, err = nullableTime(closing); err != nil {
		return nil, err
	}
	return &sh, nil
}

func (db *DB) ListRestrictions(ctx context.Context, courtID int64) ([]*models.RecurringRestriction, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, court_id, weekday, start_time, end_time, reason FROM court_restrictions
		 WHERE court_id = ? ORDER BY weekday, start_time`, courtID)
	if err != nil {
		return nil, fmt.Errorf("failed to list restrictions: %w", err)
	}
	defer rows.Close()

	var out []*models.RecurringRestriction
	for rows.Next() {
		var r models.RecurringRestriction
		if err := rows.Scan(&r.ID, &r.CourtID, &r.Weekday, &r.StartTime, &r.EndTime, &r.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan restriction: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// UpsertVenue inserts the venue, or updates it in place when v.ID exists.
func (db *DB) UpsertVenue(ctx context.Context, v *models.Venue) error {
	var id any
	if v.ID != 0 {
		id = v.ID
	}
	now := time.Now()

	err := db.QueryRowContext(ctx, `
		INSERT INTO venues (id, name, address, city, state, zip_code, manager_id, approved,
			opening_time, closing_time, increment_minutes, min_duration_minutes,
			max_duration_minutes, max_advance_days, same_day_cutoff_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, address = excluded.address, city = excluded.city,
			state = excluded.state, zip_code = excluded.zip_code, manager_id = excluded.manager_id,
			approved = excluded.approved, opening_time = excluded.opening_time,
			closing_time = excluded.closing_time, increment_minutes = excluded.increment_minutes,
			min_duration_minutes = excluded.min_duration_minutes,
			max_duration_minutes = excluded.max_duration_minutes,
			max_advance_days = excluded.max_advance_days,
			same_day_cutoff_hours = excluded.same_day_cutoff_hours,
			updated_at = excluded.updated_at
		RETURNING id`,
		id, v.Name, v.Address, v.City, v.State, v.ZipCode, v.ManagerID, v.Approved,
		v.OpeningTime, v.ClosingTime, v.Policy.IncrementMinutes, v.Policy.MinDurationMinutes,
		v.Policy.MaxDurationMinutes, v.Policy.MaxAdvanceDays, v.Policy.SameDayCutoffHours, now, now,
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert venue %q: %w", v.Name, err)
	}
	v.UpdatedAt = now
	return nil
}

// UpsertCourt keys courts by (venue, number).
func (db *DB) UpsertCourt(ctx context.Context, c *models.Court) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO courts (venue_id, court_type, number, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(venue_id, number) DO UPDATE SET
			court_type = excluded.court_type, active = excluded.active
		RETURNING id`,
		c.VenueID, c.Type, c.Number, c.Active, time.Now(),
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert court %d: %w", c.Number, err)
	}
	return nil
}

func (db *DB) UpsertSpecialHours(ctx context.Context, sh *models.SpecialHours) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO special_hours (venue_id, date, closed, opening_time, closing_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(venue_id, date) DO UPDATE SET
			closed = excluded.closed, opening_time = excluded.opening_time,
			closing_time = excluded.closing_time
		RETURNING id`,
		sh.VenueID, models.FormatDate(sh.Date), sh.Closed, sh.OpeningTime, sh.ClosingTime,
	).Scan(&sh.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert special hours: %w", err)
	}
	return nil
}

// ReplaceRestrictions swaps the court's restriction set atomically.
func (db *DB) ReplaceRestrictions(ctx context.Context, courtID int64, restrictions []*models.RecurringRestriction) error {
	return db.RunInTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM court_restrictions WHERE court_id = ?`, courtID); err != nil {
			return fmt.Errorf("failed to clear restrictions: %w", err)
		}
		for _, r := range restrictions {
			r.CourtID = courtID
			res, err := tx.ExecContext(ctx,
				`INSERT INTO court_restrictions (court_id, weekday, start_time, end_time, reason) VALUES (?, ?, ?, ?, ?)`,
				courtID, int(r.Weekday), r.StartTime, r.EndTime, r.Reason)
			if err != nil {
				return fmt.Errorf("failed to insert restriction: %w", err)
			}
			if r.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get restriction id: %w", err)
			}
		}
		return nil
	})
}

func nullableTime(ns sql.NullString) (*models.TimeOfDay, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := models.ParseTimeOfDay(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
