package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitReservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, court := seedCourt(t, db)

	first := newReservation(court.ID, "10:00", "11:00")
	first.Status = models.StatusConfirmed
	require.NoError(t, db.AdmitReservation(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, int64(1), first.Version)

	t.Run("Overlap", func(t *testing.T) {
		err := db.AdmitReservation(ctx, newReservation(court.ID, "10:30", "11:30"))
		require.ErrorIs(t, err, domain.ErrSlotConflict)

		var ce *domain.ConflictError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, first.ID, ce.ReservationID)
		assert.Equal(t, "10:00-11:00", ce.Window.String())
	})

	t.Run("Adjacent", func(t *testing.T) {
		require.NoError(t, db.AdmitReservation(ctx, newReservation(court.ID, "11:00", "12:00")))
		require.NoError(t, db.AdmitReservation(ctx, newReservation(court.ID, "09:00", "10:00")))
	})

	t.Run("OtherDate", func(t *testing.T) {
		r := newReservation(court.ID, "10:00", "11:00")
		r.Date = testDate.AddDate(0, 0, 1)
		require.NoError(t, db.AdmitReservation(ctx, r))
	})

	active, err := db.ActiveReservations(ctx, court.ID, testDate)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "09:00-10:00", active[0].Window().String())
	assert.Equal(t, "11:00-12:00", active[2].Window().String())
}

func TestAdmitAfterCancelFreesSlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, court := seedCourt(t, db)

	r := newReservation(court.ID, "10:00", "11:00")
	require.NoError(t, db.AdmitReservation(ctx, r))

	cancelled, err := db.TransitionReservation(ctx, r.ID, models.ActiveStatuses, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, int64(2), cancelled.Version)

	// The partial unique index ignores cancelled rows.
	require.NoError(t, db.AdmitReservation(ctx, newReservation(court.ID, "10:00", "11:00")))
}

func TestUniqueIndexBackstop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, court := seedCourt(t, db)

	existing := newReservation(court.ID, "10:00", "11:00")
	require.NoError(t, db.AdmitReservation(ctx, existing))

	// Bypass the in-transaction overlap check to hit the index directly.
	err := db.RunInTx(ctx, func(tx *sql.Tx) error {
		dup := newReservation(court.ID, "10:00", "10:30")
		if err := insertReservation(ctx, tx, dup, time.Now()); err != nil {
			if isUniqueViolation(err) {
				return uniqueConflict(ctx, tx, dup)
			}
			return err
		}
		return nil
	})

	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, existing.ID, ce.ReservationID)
}

func TestConcurrentAdmission(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, court := seedCourt(t, db)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			results <- db.AdmitReservation(ctx, newReservation(court.ID, "10:00", "11:00"))
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrSlotConflict) || errors.Is(err, domain.ErrRetryable), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successCount)

	active, err := db.ActiveReservations(ctx, court.ID, testDate)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestMoveReservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, court := seedCourt(t, db)

	r := newReservation(court.ID, "10:00", "11:00")
	require.NoError(t, db.AdmitReservation(ctx, r))
	blocker := newReservation(court.ID, "13:00", "14:00")
	require.NoError(t, db.AdmitReservation(ctx, blocker))

	// Overlapping its own old window is fine.
	moved := *r
	moved.StartTime, moved.EndTime = models.MustTimeOfDay("10:30"), models.MustTimeOfDay("11:30")
	require.NoError(t, db.AdmitReservation(ctx, &moved))
	assert.Equal(t, int64(2), moved.Version)

	clash := moved
	clash.StartTime, clash.EndTime = models.MustTimeOfDay("12:30"), models.MustTimeOfDay("13:30")
	assert.ErrorIs(t, db.AdmitReservation(ctx, &clash), domain.ErrSlotConflict)

	stale := *r
	stale.StartTime, stale.EndTime = models.MustTimeOfDay("15:00"), models.MustTimeOfDay("16:00")
	assert.ErrorIs(t, db.AdmitReservation(ctx, &stale), domain.ErrConcurrentModification)

	got, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:30-11:30", got.Window().String())
}

func TestTransitionReservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, court := seedCourt(t, db)

	r := newReservation(court.ID, "10:00", "11:00")
	require.NoError(t, db.AdmitReservation(ctx, r))

	confirmed, err := db.TransitionReservation(ctx, r.ID, []string{models.StatusPending}, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	again, err := db.TransitionReservation(ctx, r.ID, []string{models.StatusPending}, models.StatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, models.StatusConfirmed, again.Status)

	_, err = db.TransitionReservation(ctx, 999, models.ActiveStatuses, models.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListReservations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	venue, court := seedCourt(t, db)

	other := &models.Court{VenueID: venue.ID, Type: models.CourtTypeClay, Number: 2, Active: true}
	require.NoError(t, db.UpsertCourt(ctx, other))

	a := newReservation(court.ID, "10:00", "11:00")
	b := newReservation(other.ID, "10:00", "11:00")
	b.RequesterID = "user-2"
	c := newReservation(court.ID, "09:00", "10:00")
	c.Date = testDate.AddDate(0, 0, 2)
	for _, r := range []*models.Reservation{a, b, c} {
		require.NoError(t, db.AdmitReservation(ctx, r))
	}
	_, err := db.TransitionReservation(ctx, c.ID, models.ActiveStatuses, models.StatusCancelled)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter domain.ReservationFilter
		want   []int64
	}{
		{name: "venue", filter: domain.ReservationFilter{VenueID: venue.ID}, want: []int64{a.ID, b.ID, c.ID}},
		{name: "court", filter: domain.ReservationFilter{CourtID: court.ID}, want: []int64{a.ID, c.ID}},
		{name: "requester", filter: domain.ReservationFilter{RequesterID: "user-2"}, want: []int64{b.ID}},
		{name: "date range", filter: domain.ReservationFilter{From: testDate, To: testDate}, want: []int64{a.ID, b.ID}},
		{name: "status", filter: domain.ReservationFilter{Statuses: []string{models.StatusCancelled}}, want: []int64{c.ID}},
		{name: "limit", filter: domain.ReservationFilter{VenueID: venue.ID, Limit: 1}, want: []int64{a.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListReservations(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]int64, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCompleteElapsed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, court := seedCourt(t, db)

	morning := newReservation(court.ID, "09:00", "10:00")
	evening := newReservation(court.ID, "18:00", "19:00")
	tomorrow := newReservation(court.ID, "09:00", "10:00")
	tomorrow.Date = testDate.AddDate(0, 0, 1)
	for _, r := range []*models.Reservation{morning, evening, tomorrow} {
		require.NoError(t, db.AdmitReservation(ctx, r))
	}

	n, err := db.CompleteElapsed(ctx, testDate.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := db.GetReservation(ctx, morning.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)

	got, err = db.GetReservation(ctx, evening.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestDB_ErrorPaths(t *testing.T) {
	db := setupTestDB(t)
	db.Close()
	ctx := context.Background()

	_, err := db.GetVenue(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, db.AdmitReservation(ctx, newReservation(1, "10:00", "11:00")))
	_, err = db.ListReservations(ctx, domain.ReservationFilter{})
	assert.Error(t, err)
	_, err = db.CompleteElapsed(ctx, time.Now())
	assert.Error(t, err)
}
