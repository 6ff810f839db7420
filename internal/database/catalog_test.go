package database

import (
	"context"
	"testing"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenueRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	venue, court := seedCourt(t, db)

	got, err := db.GetVenue(ctx, venue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riverside", got.Name)
	assert.Equal(t, "08:00-20:00", got.Hours().String())
	assert.Equal(t, venue.Policy, got.Policy)
	assert.Nil(t, got.ManagerID)

	manager := "mgr-7"
	venue.ManagerID = &manager
	venue.Policy.SameDayCutoffHours = 2
	require.NoError(t, db.UpsertVenue(ctx, venue))

	got, err = db.GetVenue(ctx, venue.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ManagerID)
	assert.Equal(t, "mgr-7", *got.ManagerID)
	assert.Equal(t, 2, got.Policy.SameDayCutoffHours)

	gotCourt, err := db.GetCourt(ctx, court.ID)
	require.NoError(t, err)
	assert.Equal(t, venue.ID, gotCourt.VenueID)
	assert.True(t, gotCourt.Active)

	_, err = db.GetVenue(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = db.GetCourt(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVenueCheckConstraint(t *testing.T) {
	db := setupTestDB(t)

	venue := &models.Venue{
		Name:        "Broken",
		OpeningTime: models.MustTimeOfDay("20:00"),
		ClosingTime: models.MustTimeOfDay("08:00"),
		Policy:      models.Policy{IncrementMinutes: 60, MinDurationMinutes: 60, MaxDurationMinutes: 60},
	}
	assert.Error(t, db.UpsertVenue(context.Background(), venue))
}

func TestListCourts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	venue, _ := seedCourt(t, db)

	require.NoError(t, db.UpsertCourt(ctx, &models.Court{VenueID: venue.ID, Type: models.CourtTypeClay, Number: 3, Active: true}))
	require.NoError(t, db.UpsertCourt(ctx, &models.Court{VenueID: venue.ID, Type: models.CourtTypeHard, Number: 2, Active: false}))

	all, err := db.ListCourts(ctx, venue.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{all[0].Number, all[1].Number, all[2].Number})

	hard, err := db.ListCourts(ctx, venue.ID, models.CourtTypeHard)
	require.NoError(t, err)
	assert.Len(t, hard, 2)

	// Same number updates in place.
	require.NoError(t, db.UpsertCourt(ctx, &models.Court{VenueID: venue.ID, Type: models.CourtTypeClay, Number: 2, Active: true}))
	all, err = db.ListCourts(ctx, venue.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, models.CourtTypeClay, all[1].Type)
}

func TestSpecialHours(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	venue, _ := seedCourt(t, db)

	sh, err := db.GetSpecialHours(ctx, venue.ID, testDate)
	require.NoError(t, err)
	assert.Nil(t, sh)

	open, closing := models.MustTimeOfDay("10:00"), models.MustTimeOfDay("14:00")
	require.NoError(t, db.UpsertSpecialHours(ctx, &models.SpecialHours{
		VenueID: venue.ID, Date: testDate, OpeningTime: &open, ClosingTime: &closing,
	}))

	sh, err = db.GetSpecialHours(ctx, venue.ID, testDate)
	require.NoError(t, err)
	require.NotNil(t, sh)
	assert.False(t, sh.Closed)
	assert.Equal(t, open, *sh.OpeningTime)
	assert.Equal(t, testDate, sh.Date)

	require.NoError(t, db.UpsertSpecialHours(ctx, &models.SpecialHours{VenueID: venue.ID, Date: testDate, Closed: true}))
	sh, err = db.GetSpecialHours(ctx, venue.ID, testDate)
	require.NoError(t, err)
	assert.True(t, sh.Closed)
	assert.Nil(t, sh.OpeningTime)
}

func TestReplaceRestrictions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, court := seedCourt(t, db)

	first := []*models.RecurringRestriction{
		{Weekday: time.Monday, StartTime: models.MustTimeOfDay("12:00"), EndTime: models.MustTimeOfDay("13:00"), Reason: "lunch"},
		{Weekday: time.Sunday, StartTime: models.MustTimeOfDay("07:00"), EndTime: models.MustTimeOfDay("09:00")},
	}
	require.NoError(t, db.ReplaceRestrictions(ctx, court.ID, first))

	got, err := db.ListRestrictions(ctx, court.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Sunday, got[0].Weekday)
	assert.Equal(t, "lunch", got[1].Reason)

	require.NoError(t, db.ReplaceRestrictions(ctx, court.ID, first[:1]))
	got, err = db.ListRestrictions(ctx, court.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
