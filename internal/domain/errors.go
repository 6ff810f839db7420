package domain

import (
	"errors"
	"fmt"

	"courtbook/internal/models"
)

var (
	ErrInvalidWindow          = errors.New("invalid window")
	ErrVenueClosed            = errors.New("venue closed")
	ErrOutsideOperatingHours  = errors.New("outside operating hours")
	ErrCutoffExceeded         = errors.New("same-day cutoff exceeded")
	ErrTooFarInAdvance        = errors.New("too far in advance")
	ErrSlotConflict           = errors.New("slot conflict")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrRetryable              = errors.New("transient storage contention, retry")
	ErrAlreadyTerminal        = errors.New("reservation already terminal")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ConflictKind tells what a proposed window collided with.
type ConflictKind string

const (
	ConflictReservation ConflictKind = "reservation"
	ConflictBlackout    ConflictKind = "blackout"
)

// ConflictError carries the window that blocked an admission.
type ConflictError struct {
	Kind          ConflictKind
	Window        models.Window
	ReservationID int64
	Reason        string
}

func (e *ConflictError) Error() string {
	if e.Kind == ConflictBlackout {
		if e.Reason != "" {
			return fmt.Sprintf("court unavailable %s (%s)", e.Window, e.Reason)
		}
		return fmt.Sprintf("court unavailable %s", e.Window)
	}
	return fmt.Sprintf("already booked %s", e.Window)
}

func (e *ConflictError) Unwrap() error {
	return ErrSlotConflict
}

// NewReservationConflict builds a conflict against an existing booking.
func NewReservationConflict(r *models.Reservation) *ConflictError {
	return &ConflictError{Kind: ConflictReservation, Window: r.Window(), ReservationID: r.ID}
}
