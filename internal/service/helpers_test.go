package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/models"
	"courtbook/internal/repository"
	"courtbook/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testDate is a Monday.
var testDate = time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *BookingService
	db    *database.DB
	bus   *events.EventBus
	venue *models.Venue
	court *models.Court

	mu  sync.Mutex
	now time.Time

	published []string
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func at(date time.Time, hhmm string) time.Time {
	return date.Add(time.Duration(models.MustTimeOfDay(hhmm)) * time.Second)
}

func defaultPolicy() models.Policy {
	return models.Policy{
		IncrementMinutes:   60,
		MinDurationMinutes: 60,
		MaxDurationMinutes: 120,
		MaxAdvanceDays:     14,
	}
}

func newFixture(t *testing.T, policy models.Policy) *fixture {
	return newFixtureWithLocker(t, policy, repository.NewMemoryLocker(2*time.Second))
}

func newFixtureWithLocker(t *testing.T, policy models.Policy, locker domain.Locker) *fixture {
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
		Policy:      policy,
	}
	require.NoError(t, db.UpsertVenue(ctx, venue))
	court := &models.Court{VenueID: venue.ID, Type: models.CourtTypeHard, Number: 1, Active: true}
	require.NoError(t, db.UpsertCourt(ctx, court))

	f := &fixture{db: db, bus: events.NewEventBus(), venue: venue, court: court}
	f.now = at(testDate.AddDate(0, 0, -2), "09:00")
	for _, eventType := range []string{
		events.EventReservationCreated,
		events.EventReservationConfirmed,
		events.EventReservationCancelled,
		events.EventReservationRescheduled,
		events.EventReservationsCompleted,
	} {
		f.bus.Subscribe(eventType, func(e *events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.published = append(f.published, e.Type)
			return nil
		})
	}

	retry := worker.RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	f.svc = NewBookingService(db, locker, f.bus, retry, &logger)
	f.svc.SetClock(f.clock)
	return f
}

func (f *fixture) proposal(start, end string) Proposal {
	return Proposal{
		CourtID:     f.court.ID,
		Date:        testDate,
		Start:       models.MustTimeOfDay(start),
		End:         models.MustTimeOfDay(end),
		RequesterID: "user-1",
	}
}

func (f *fixture) book(t *testing.T, start, end string) *models.Reservation {
	t.Helper()
	r, err := f.svc.ProposeReservation(context.Background(), f.proposal(start, end))
	require.NoError(t, err)
	return r
}

func (f *fixture) addCourt(t *testing.T, number int, courtType string, active bool) *models.Court {
	t.Helper()
	court := &models.Court{VenueID: f.venue.ID, Type: courtType, Number: number, Active: active}
	require.NoError(t, f.db.UpsertCourt(context.Background(), court))
	return court
}

func (f *fixture) restrict(t *testing.T, weekday time.Weekday, start, end, reason string) {
	t.Helper()
	require.NoError(t, f.db.ReplaceRestrictions(context.Background(), f.court.ID, []*models.RecurringRestriction{{
		Weekday:   weekday,
		StartTime: models.MustTimeOfDay(start),
		EndTime:   models.MustTimeOfDay(end),
		Reason:    reason,
	}}))
}

func windowStrings(ws []models.Window) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.String())
	}
	return out
}
