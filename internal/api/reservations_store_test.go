package api

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/events"
	"courtbook/internal/models"
	"courtbook/internal/repository"
	"courtbook/internal/service"
	"courtbook/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStoreServer serves the real booking engine over a temp sqlite file.
func newStoreServer(t *testing.T) (*service.BookingService, *models.Court, http.Handler) {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "courts.db"), database.Options{BusyTimeoutMS: 5000}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

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

	retry := worker.RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	booking := service.NewBookingService(db, repository.NewMemoryLocker(2*time.Second), events.NewEventBus(), retry, &logger)
	now := testDate.AddDate(0, 0, -2).Add(9 * time.Hour)
	booking.SetClock(func() time.Time { return now })

	srv := NewHTTPServer(authConfig(), booking, nil, db, &logger)
	return booking, court, srv.Handler()
}

func TestListReservationsLimitAgainstStore(t *testing.T) {
	booking, court, h := newStoreServer(t)
	ctx := context.Background()

	book := func(date time.Time, start, end string) *models.Reservation {
		r, err := booking.ProposeReservation(ctx, service.Proposal{
			CourtID:     court.ID,
			Date:        date,
			Start:       models.MustTimeOfDay(start),
			End:         models.MustTimeOfDay(end),
			RequesterID: "alice",
		})
		require.NoError(t, err)
		return r
	}
	book(testDate.AddDate(0, 0, 1), "09:00", "10:00")
	book(testDate, "14:00", "15:00")
	earliest := book(testDate, "10:00", "11:00")

	rec := do(h, http.MethodGet, "/api/v1/reservations?limit=1", "", as("partner", "secret", "alice", false))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list, ok := decodeBody(t, rec)["reservations"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)

	row, ok := list[0].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, earliest.ID, row["id"])
	assert.Equal(t, "2030-06-03", row["date"])
	assert.Equal(t, "10:00:00", row["start"])

	rec = do(h, http.MethodGet, "/api/v1/reservations?limit=2", "", as("partner", "secret", "alice", false))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list, ok = decodeBody(t, rec)["reservations"].([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "14:00:00", list[1].(map[string]any)["start"])

	for _, raw := range []string{"0", "-1", "abc"} {
		rec = do(h, http.MethodGet, "/api/v1/reservations?limit="+raw, "", as("partner", "secret", "alice", false))
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
}
