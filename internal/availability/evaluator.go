// Package availability classifies candidate windows against live court state.
package availability

import (
	"fmt"
	"iter"
	"time"

	"courtbook/internal/calendar"
	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// Reason explains why a window is not bookable.
type Reason string

const (
	ReasonReserved Reason = "reserved"
	ReasonBlackout Reason = "blackout"
	ReasonCutoff   Reason = "cutoff"
	ReasonElapsed  Reason = "elapsed"
)

// Verdict is the classification of a single window.
type Verdict struct {
	Window    models.Window
	Available bool
	Reason    Reason
	// Conflict is set for ReasonReserved and ReasonBlackout.
	Conflict *domain.ConflictError
}

// Evaluator holds the state a court's windows are judged against on one date.
// It is read-only once built and safe for concurrent use.
type Evaluator struct {
	Date         time.Time
	Now          time.Time
	Cutoff       time.Duration
	Reservations []*models.Reservation
	Blackouts    []calendar.Blackout
}

// Classify applies the overlap, blackout and timing rules to w.
func (e *Evaluator) Classify(w models.Window) Verdict {
	if c := FindConflict(e.Reservations, w, 0); c != nil {
		return Verdict{Window: w, Reason: ReasonReserved, Conflict: c}
	}
	if c := FindBlackout(e.Blackouts, w); c != nil {
		return Verdict{Window: w, Reason: ReasonBlackout, Conflict: c}
	}
	if reason, ok := e.timing(w); !ok {
		return Verdict{Window: w, Reason: reason}
	}
	return Verdict{Window: w, Available: true}
}

// Available filters seq down to the bookable windows, keeping its order.
func (e *Evaluator) Available(seq iter.Seq[models.Window]) []models.Window {
	out := make([]models.Window, 0)
	for w := range seq {
		if e.Classify(w).Available {
			out = append(out, w)
		}
	}
	return out
}

// CheckTiming rejects a single proposed window that starts inside the
// same-day cutoff or has already started.
func (e *Evaluator) CheckTiming(w models.Window) error {
	reason, ok := e.timing(w)
	if ok {
		return nil
	}
	if reason == ReasonElapsed {
		return fmt.Errorf("%w: %s on %s has already started", domain.ErrCutoffExceeded, w, models.FormatDate(e.Date))
	}
	return fmt.Errorf("%w: %s starts within %s of now", domain.ErrCutoffExceeded, w, e.Cutoff)
}

func (e *Evaluator) timing(w models.Window) (Reason, bool) {
	today := models.DateOf(e.Now)
	date := models.DateOf(e.Date)
	if date.Before(today) {
		return ReasonElapsed, false
	}
	if !date.Equal(today) {
		return "", true
	}

	now := models.TimeOfDayOf(e.Now)
	if e.Cutoff > 0 && now.Add(e.Cutoff) > w.Start {
		return ReasonCutoff, false
	}
	if w.Start < now {
		return ReasonElapsed, false
	}
	return "", true
}

// FindConflict returns the first active reservation overlapping w, skipping
// the reservation with id exclude.
func FindConflict(reservations []*models.Reservation, w models.Window, exclude int64) *domain.ConflictError {
	for _, r := range reservations {
		if exclude != 0 && r.ID == exclude {
			continue
		}
		if !r.IsActive() {
			continue
		}
		if r.Window().Overlaps(w) {
			return domain.NewReservationConflict(r)
		}
	}
	return nil
}

// FindBlackout returns the first blackout overlapping w.
func FindBlackout(blackouts []calendar.Blackout, w models.Window) *domain.ConflictError {
	for _, b := range blackouts {
		if b.Window.Overlaps(w) {
			return &domain.ConflictError{Kind: domain.ConflictBlackout, Window: b.Window, Reason: b.Reason}
		}
	}
	return nil
}
