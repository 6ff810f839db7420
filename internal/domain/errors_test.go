package domain

import (
	"errors"
	"fmt"
	"testing"

	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictError(t *testing.T) {
	r := &models.Reservation{ID: 9, StartTime: models.MustTimeOfDay("10:00"), EndTime: models.MustTimeOfDay("11:00")}
	err := fmt.Errorf("admit: %w", NewReservationConflict(r))

	assert.True(t, errors.Is(err, ErrSlotConflict))
	assert.Contains(t, err.Error(), "already booked 10:00-11:00")

	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(9), ce.ReservationID)
	assert.Equal(t, ConflictReservation, ce.Kind)

	blackout := &ConflictError{Kind: ConflictBlackout, Window: r.Window(), Reason: "resurfacing"}
	assert.Equal(t, "court unavailable 10:00-11:00 (resurfacing)", blackout.Error())
}
