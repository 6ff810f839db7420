package availability

import (
	"errors"
	"testing"
	"time"

	"courtbook/internal/calendar"
	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/slots"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func win(start, end string) models.Window {
	return models.Window{Start: models.MustTimeOfDay(start), End: models.MustTimeOfDay(end)}
}

func reservation(id int64, start, end, status string) *models.Reservation {
	return &models.Reservation{
		ID:        id,
		CourtID:   1,
		Date:      day,
		StartTime: models.MustTimeOfDay(start),
		EndTime:   models.MustTimeOfDay(end),
		Status:    status,
	}
}

func TestAvailableEmptyDay(t *testing.T) {
	e := &Evaluator{Date: day, Now: day.AddDate(0, 0, -1)}

	got := e.Available(slots.Windows(models.MustTimeOfDay("08:00"), models.MustTimeOfDay("20:00"), time.Hour))

	require.Len(t, got, 12)
	assert.Equal(t, "08:00-09:00", got[0].String())
	assert.Equal(t, "19:00-20:00", got[11].String())
}

func TestClassifyReservations(t *testing.T) {
	e := &Evaluator{
		Date: day,
		Now:  day.AddDate(0, 0, -1),
		Reservations: []*models.Reservation{
			reservation(7, "10:00", "11:00", models.StatusConfirmed),
			reservation(8, "12:00", "13:00", models.StatusCancelled),
		},
	}

	v := e.Classify(win("10:30", "11:30"))
	assert.False(t, v.Available)
	assert.Equal(t, ReasonReserved, v.Reason)
	require.NotNil(t, v.Conflict)
	assert.Equal(t, int64(7), v.Conflict.ReservationID)
	assert.Equal(t, "already booked 10:00-11:00", v.Conflict.Error())

	assert.True(t, e.Classify(win("11:00", "12:00")).Available, "adjacent to end is free")
	assert.True(t, e.Classify(win("09:00", "10:00")).Available, "adjacent to start is free")
	assert.True(t, e.Classify(win("12:00", "13:00")).Available, "cancelled rows do not block")
}

func TestClassifyBlackout(t *testing.T) {
	e := &Evaluator{
		Date: day,
		Now:  day.AddDate(0, 0, -1),
		Blackouts: []calendar.Blackout{
			{Window: win("15:00", "16:00"), RestrictionID: 3, Reason: "maintenance"},
		},
	}

	v := e.Classify(win("15:30", "16:30"))
	assert.Equal(t, ReasonBlackout, v.Reason)
	require.NotNil(t, v.Conflict)
	assert.Equal(t, domain.ConflictBlackout, v.Conflict.Kind)
	assert.True(t, errors.Is(v.Conflict, domain.ErrSlotConflict))

	assert.True(t, e.Classify(win("16:00", "17:00")).Available)
}

func TestSameDayCutoff(t *testing.T) {
	e := &Evaluator{Date: day, Now: day.Add(9 * time.Hour), Cutoff: 2 * time.Hour}

	assert.Equal(t, ReasonCutoff, e.Classify(win("10:30", "11:30")).Reason)
	assert.True(t, e.Classify(win("11:30", "12:30")).Available)
	assert.True(t, e.Classify(win("11:00", "12:00")).Available, "exactly at the cutoff is allowed")

	err := e.CheckTiming(win("10:30", "11:30"))
	assert.ErrorIs(t, err, domain.ErrCutoffExceeded)
	assert.NoError(t, e.CheckTiming(win("11:30", "12:30")))
}

func TestCutoffOnlyAppliesToday(t *testing.T) {
	e := &Evaluator{Date: day.AddDate(0, 0, 1), Now: day.Add(23 * time.Hour), Cutoff: 2 * time.Hour}

	assert.True(t, e.Classify(win("00:00", "01:00")).Available)
}

func TestElapsedWindows(t *testing.T) {
	e := &Evaluator{Date: day, Now: day.Add(12*time.Hour + 15*time.Minute)}

	assert.Equal(t, ReasonElapsed, e.Classify(win("12:00", "13:00")).Reason)
	assert.True(t, e.Classify(win("13:00", "14:00")).Available)

	past := &Evaluator{Date: day.AddDate(0, 0, -1), Now: day}
	assert.Equal(t, ReasonElapsed, past.Classify(win("12:00", "13:00")).Reason)
	assert.ErrorIs(t, past.CheckTiming(win("12:00", "13:00")), domain.ErrCutoffExceeded)
}

func TestAvailableNeverOverlapsBusyTime(t *testing.T) {
	e := &Evaluator{
		Date: day,
		Now:  day.AddDate(0, 0, -1),
		Reservations: []*models.Reservation{
			reservation(1, "09:00", "10:30", models.StatusPending),
			reservation(2, "14:00", "15:00", models.StatusConfirmed),
		},
		Blackouts: []calendar.Blackout{{Window: win("17:00", "18:00")}},
	}
	hours := win("08:00", "20:00")

	got := e.Available(slots.Windows(hours.Start, hours.End, 30*time.Minute))

	require.NotEmpty(t, got)
	for _, w := range got {
		assert.True(t, hours.Contains(w))
		for _, r := range e.Reservations {
			assert.False(t, r.Window().Overlaps(w), "%s overlaps reservation %s", w, r.Window())
		}
		for _, b := range e.Blackouts {
			assert.False(t, b.Window.Overlaps(w))
		}
	}
}

func TestFindConflictExclude(t *testing.T) {
	rs := []*models.Reservation{reservation(5, "10:00", "11:00", models.StatusPending)}

	assert.NotNil(t, FindConflict(rs, win("10:00", "11:00"), 0))
	assert.Nil(t, FindConflict(rs, win("10:00", "11:00"), 5))
}
