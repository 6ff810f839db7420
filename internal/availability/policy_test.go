package availability

import (
	"testing"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCheckHorizon(t *testing.T) {
	now := day.Add(18 * time.Hour)

	assert.NoError(t, CheckHorizon(day, now, 0))
	assert.ErrorIs(t, CheckHorizon(day.AddDate(0, 0, 1), now, 0), domain.ErrTooFarInAdvance)
	assert.NoError(t, CheckHorizon(day.AddDate(0, 0, 14), now, 14))
	assert.ErrorIs(t, CheckHorizon(day.AddDate(0, 0, 15), now, 14), domain.ErrTooFarInAdvance)
}

func TestCheckDuration(t *testing.T) {
	p := models.Policy{IncrementMinutes: 30, MinDurationMinutes: 60, MaxDurationMinutes: 120}

	tests := []struct {
		name    string
		window  models.Window
		wantErr bool
	}{
		{name: "min", window: win("10:00", "11:00")},
		{name: "max", window: win("10:00", "12:00")},
		{name: "too short", window: win("10:00", "10:30"), wantErr: true},
		{name: "too long", window: win("10:00", "12:30"), wantErr: true},
		{name: "zero", window: win("10:00", "10:00"), wantErr: true},
		{name: "negative", window: win("11:00", "10:00"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDuration(tt.window, p)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidWindow)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckHours(t *testing.T) {
	hours := win("08:00", "20:00")

	assert.NoError(t, CheckHours(win("19:00", "20:00"), hours), "ending at closing time is inside")
	assert.NoError(t, CheckHours(win("08:00", "09:00"), hours))
	assert.ErrorIs(t, CheckHours(win("19:30", "20:30"), hours), domain.ErrOutsideOperatingHours)
	assert.ErrorIs(t, CheckHours(win("07:30", "08:30"), hours), domain.ErrOutsideOperatingHours)
}
