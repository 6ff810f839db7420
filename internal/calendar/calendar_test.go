package calendar

import (
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVenue() *models.Venue {
	return &models.Venue{
		ID:          1,
		Name:        "Riverside",
		OpeningTime: models.MustTimeOfDay("08:00"),
		ClosingTime: models.MustTimeOfDay("20:00"),
	}
}

func tod(s string) *models.TimeOfDay {
	t := models.MustTimeOfDay(s)
	return &t
}

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func TestResolveDefaults(t *testing.T) {
	w := Resolve(testVenue(), nil, nil, monday)

	assert.False(t, w.Closed)
	assert.False(t, w.Override)
	assert.Equal(t, "08:00-20:00", w.Hours().String())
	assert.Empty(t, w.Blackouts)
}

func TestResolveSpecialHoursOverride(t *testing.T) {
	special := &models.SpecialHours{Date: monday, OpeningTime: tod("10:00"), ClosingTime: tod("14:00")}

	w := Resolve(testVenue(), special, nil, monday)

	assert.True(t, w.Override)
	assert.Equal(t, "10:00-14:00", w.Hours().String())
}

func TestResolveClosedShortCircuits(t *testing.T) {
	restrictions := []*models.RecurringRestriction{
		{ID: 1, Weekday: time.Monday, StartTime: models.MustTimeOfDay("12:00"), EndTime: models.MustTimeOfDay("13:00")},
	}

	w := Resolve(testVenue(), &models.SpecialHours{Date: monday, Closed: true}, restrictions, monday)

	assert.True(t, w.Closed)
	assert.Empty(t, w.Blackouts)
}

func TestResolveBlackoutsForWeekdayOnly(t *testing.T) {
	restrictions := []*models.RecurringRestriction{
		{ID: 1, Weekday: time.Monday, StartTime: models.MustTimeOfDay("15:00"), EndTime: models.MustTimeOfDay("16:00"), Reason: "coaching"},
		{ID: 2, Weekday: time.Tuesday, StartTime: models.MustTimeOfDay("09:00"), EndTime: models.MustTimeOfDay("10:00")},
		{ID: 3, Weekday: time.Monday, StartTime: models.MustTimeOfDay("07:00"), EndTime: models.MustTimeOfDay("09:00"), Reason: "maintenance"},
	}

	w := Resolve(testVenue(), nil, restrictions, monday)

	require.Len(t, w.Blackouts, 2)
	assert.Equal(t, int64(3), w.Blackouts[0].RestrictionID)
	assert.Equal(t, int64(1), w.Blackouts[1].RestrictionID)
	assert.Equal(t, "coaching", w.Blackouts[1].Reason)
}

func TestResolveBlackoutsSurviveOverride(t *testing.T) {
	restrictions := []*models.RecurringRestriction{
		{ID: 1, Weekday: time.Monday, StartTime: models.MustTimeOfDay("11:00"), EndTime: models.MustTimeOfDay("12:00")},
	}
	special := &models.SpecialHours{Date: monday, OpeningTime: tod("10:00"), ClosingTime: tod("14:00")}

	w := Resolve(testVenue(), special, restrictions, monday)

	assert.True(t, w.Override)
	require.Len(t, w.Blackouts, 1)
	assert.Equal(t, "11:00-12:00", w.Blackouts[0].Window.String())
}

func TestResolveNormalizesDate(t *testing.T) {
	w := Resolve(testVenue(), nil, nil, monday.Add(15*time.Hour))
	assert.Equal(t, monday, w.Date)
}
