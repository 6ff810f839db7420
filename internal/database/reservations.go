package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/availability"
	"courtbook/internal/domain"
	"courtbook/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var reservationColumns = []string{
	"r.id", "r.court_id", "r.requester_id", "r.date", "r.start_time", "r.end_time",
	"r.status", "r.notes", "r.created_at", "r.updated_at", "r.version",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var date string
	if err := row.Scan(
		&r.ID, &r.CourtID, &r.RequesterID, &date, &r.StartTime, &r.EndTime,
		&r.Status, &r.Notes, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	); err != nil {
		return nil, err
	}
	d, err := models.ParseDate(date)
	if err != nil {
		return nil, err
	}
	r.Date = d
	return &r, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryReservations(ctx context.Context, q queryer, b sq.SelectBuilder) ([]*models.Reservation, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reservation query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(err, "query reservations")
	}
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func activeOn(courtID int64, date time.Time) sq.SelectBuilder {
	return sq.Select(reservationColumns...).
		From("reservations r").
		Where(sq.Eq{
			"r.court_id": courtID,
			"r.date":     models.FormatDate(date),
			"r.status":   models.ActiveStatuses,
		}).
		OrderBy("r.start_time")
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query, args, err := sq.Select(reservationColumns...).From("reservations r").Where(sq.Eq{"r.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reservation query: %w", err)
	}

	r, err := scanReservation(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// ActiveReservations returns the pending and confirmed rows of one court/date.
func (db *DB) ActiveReservations(ctx context.Context, courtID int64, date time.Time) ([]*models.Reservation, error) {
	return queryReservations(ctx, db, activeOn(courtID, date))
}

func (db *DB) ListReservations(ctx context.Context, f domain.ReservationFilter) ([]*models.Reservation, error) {
	b := sq.Select(reservationColumns...).From("reservations r")

	if f.VenueID != 0 {
		b = b.Join("courts c ON c.id = r.court_id").Where(sq.Eq{"c.venue_id": f.VenueID})
	}
	if f.CourtID != 0 {
		b = b.Where(sq.Eq{"r.court_id": f.CourtID})
	}
	if f.RequesterID != "" {
		b = b.Where(sq.Eq{"r.requester_id": f.RequesterID})
	}
	if !f.From.IsZero() {
		b = b.Where(sq.GtOrEq{"r.date": models.FormatDate(f.From)})
	}
	if !f.To.IsZero() {
		b = b.Where(sq.LtOrEq{"r.date": models.FormatDate(f.To)})
	}
	if len(f.Statuses) > 0 {
		b = b.Where(sq.Eq{"r.status": f.Statuses})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}

	return queryReservations(ctx, db, b.OrderBy("r.date", "r.start_time", "r.court_id", "r.id"))
}

// AdmitReservation runs the conflict re-check and the write in a single
// IMMEDIATE transaction, so the check cannot go stale before commit.
// A zero r.ID inserts a new row; otherwise the existing active row is moved
// to r's date and window under optimistic versioning.
func (db *DB) AdmitReservation(ctx context.Context, r *models.Reservation) error {
	return db.RunInTx(ctx, func(tx *sql.Tx) error {
		live, err := queryReservations(ctx, tx, activeOn(r.CourtID, r.Date))
		if err != nil {
			return err
		}
		if conflict := availability.FindConflict(live, r.Window(), r.ID); conflict != nil {
			return conflict
		}

		now := time.Now()
		if r.ID == 0 {
			err = insertReservation(ctx, tx, r, now)
		} else {
			err = moveReservation(ctx, tx, r, now)
		}
		if err != nil && isUniqueViolation(err) {
			return uniqueConflict(ctx, tx, r)
		}
		return err
	})
}

func insertReservation(ctx context.Context, tx *sql.Tx, r *models.Reservation, now time.Time) error {
	query, args, err := sq.Insert("reservations").
		Columns("court_id", "requester_id", "date", "start_time", "end_time", "status", "notes", "created_at", "updated_at", "version").
		Values(r.CourtID, r.RequesterID, models.FormatDate(r.Date), r.StartTime, r.EndTime, r.Status, r.Notes, now, now, 1).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return classifyError(err, "insert reservation")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return nil
}

func moveReservation(ctx context.Context, tx *sql.Tx, r *models.Reservation, now time.Time) error {
	query, args, err := sq.Update("reservations").
		Set("date", models.FormatDate(r.Date)).
		Set("start_time", r.StartTime).
		Set("end_time", r.EndTime).
		Set("notes", r.Notes).
		Set("updated_at", now).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": r.ID, "version": r.Version, "status": models.ActiveStatuses}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return classifyError(err, "move reservation")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}
	r.UpdatedAt = now
	r.Version++
	return nil
}

// uniqueConflict reports the row that owns the start slot after the partial
// unique index rejected a write.
func uniqueConflict(ctx context.Context, tx *sql.Tx, r *models.Reservation) error {
	b := activeOn(r.CourtID, r.Date).Where(sq.Eq{"r.start_time": r.StartTime})
	existing, err := queryReservations(ctx, tx, b)
	if err != nil || len(existing) == 0 {
		return fmt.Errorf("%w: %s already taken", domain.ErrSlotConflict, r.Window())
	}
	return domain.NewReservationConflict(existing[0])
}

// TransitionReservation moves a reservation from any status in from to to.
// A row whose status changed underneath reports ErrConcurrentModification.
func (db *DB) TransitionReservation(ctx context.Context, id int64, from []string, to string) (*models.Reservation, error) {
	query, args, err := sq.Update("reservations").
		Set("status", to).
		Set("updated_at", time.Now()).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transition: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(err, "transition reservation")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}

	current, err := db.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return current, fmt.Errorf("reservation %d is %s: %w", id, current.Status, domain.ErrConcurrentModification)
	}
	return current, nil
}

// CompleteElapsed stores the completed status for active reservations whose
// end lies before now (venue wall clock).
func (db *DB) CompleteElapsed(ctx context.Context, now time.Time) (int64, error) {
	today := models.FormatDate(now)
	query, args, err := sq.Update("reservations").
		Set("status", models.StatusCompleted).
		Set("updated_at", time.Now()).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"status": models.ActiveStatuses}).
		Where(sq.Or{
			sq.Lt{"date": today},
			sq.And{sq.Eq{"date": today}, sq.LtOrEq{"end_time": models.TimeOfDayOf(now)}},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build sweep: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classifyError(err, "complete elapsed reservations")
	}
	return result.RowsAffected()
}
