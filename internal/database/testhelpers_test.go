package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "courts.db"), Options{BusyTimeoutMS: 2000}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCourt(t *testing.T, db *DB) (*models.Venue, *models.Court) {
	t.Helper()
	ctx := context.Background()

	venue := &models.Venue{
		Name:        "Riverside",
		City:        "Austin",
		Approved:    true,
		OpeningTime: models.MustTimeOfDay("08:00"),
		ClosingTime: models.MustTimeOfDay("20:00"),
		Policy: models.Policy{
			IncrementMinutes:   60,
			MinDurationMinutes: 60,
			MaxDurationMinutes: 120,
			MaxAdvanceDays:     14,
		},
	}
	require.NoError(t, db.UpsertVenue(ctx, venue))

	court := &models.Court{VenueID: venue.ID, Type: models.CourtTypeHard, Number: 1, Active: true}
	require.NoError(t, db.UpsertCourt(ctx, court))
	return venue, court
}

func newReservation(courtID int64, start, end string) *models.Reservation {
	return &models.Reservation{
		CourtID:     courtID,
		RequesterID: "user-1",
		Date:        testDate,
		StartTime:   models.MustTimeOfDay(start),
		EndTime:     models.MustTimeOfDay(end),
		Status:      models.StatusPending,
	}
}
