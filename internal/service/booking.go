package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"courtbook/internal/availability"
	"courtbook/internal/calendar"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/repository"
	"courtbook/internal/worker"

	"github.com/rs/zerolog"
)

// Proposal is a request to hold one window on one court.
type Proposal struct {
	CourtID     int64
	Date        time.Time
	Start       models.TimeOfDay
	End         models.TimeOfDay
	RequesterID string
	Privileged  bool
	Notes       string
}

func (p Proposal) Window() models.Window {
	return models.Window{Start: p.Start, End: p.End}
}

// Change moves an active reservation to a new date and window on its court.
type Change struct {
	ReservationID int64
	Date          time.Time
	Start         models.TimeOfDay
	End           models.TimeOfDay
	RequesterID   string
	Privileged    bool
	// Notes replaces the stored notes when non-nil.
	Notes *string
}

type BookingService struct {
	store  domain.Store
	locker domain.Locker
	events domain.EventPublisher
	retry  worker.RetryPolicy
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBookingService(store domain.Store, locker domain.Locker, eventBus domain.EventPublisher, retry worker.RetryPolicy, logger *zerolog.Logger) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		store:  store,
		locker: locker,
		events: eventBus,
		retry:  retry,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the wall clock. The returned time is read as venue-local.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// admission is a validated proposal, ready for the serialized write.
type admission struct {
	court  *models.Court
	venue  *models.Venue
	date   time.Time
	window models.Window
}

// ProposeReservation validates p and admits it under the (court, date) lock.
// All validation runs before the lock is taken so nothing is written for a
// rejected proposal.
func (s *BookingService) ProposeReservation(ctx context.Context, p Proposal) (*models.Reservation, error) {
	plan, err := s.validate(ctx, p.CourtID, p.Date, p.Window(), p.Privileged)
	if err != nil {
		metrics.ObserveAdmission(outcomeOf(err))
		return nil, err
	}

	status := models.StatusPending
	if p.Privileged {
		status = models.StatusConfirmed
	}
	proposed := models.Reservation{
		CourtID:     plan.court.ID,
		RequesterID: p.RequesterID,
		Date:        plan.date,
		StartTime:   plan.window.Start,
		EndTime:     plan.window.End,
		Status:      status,
		Notes:       p.Notes,
	}

	var admitted *models.Reservation
	err = s.withLocks(ctx, []string{repository.LockKey(plan.court.ID, plan.date)}, func() error {
		candidate := proposed
		if err := s.store.AdmitReservation(ctx, &candidate); err != nil {
			return err
		}
		admitted = &candidate
		return nil
	})
	metrics.ObserveAdmission(outcomeOf(err))
	if err != nil {
		s.logger.Debug().Err(err).
			Int64("court_id", p.CourtID).
			Str("date", models.FormatDate(plan.date)).
			Str("window", plan.window.String()).
			Msg("reservation rejected")
		return nil, err
	}

	s.logger.Info().
		Int64("reservation_id", admitted.ID).
		Int64("court_id", admitted.CourtID).
		Str("date", models.FormatDate(admitted.Date)).
		Str("window", admitted.Window().String()).
		Str("status", admitted.Status).
		Msg("reservation admitted")
	s.publish(events.EventReservationCreated, events.NewReservationPayload(admitted, p.RequesterID, p.Privileged))
	return admitted, nil
}

// CancelReservation withdraws a pending or confirmed reservation. Only the
// requester who holds it, or a privileged actor, may cancel.
func (s *BookingService) CancelReservation(ctx context.Context, id int64, requesterID string, privileged bool) (*models.Reservation, error) {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	var cancelled *models.Reservation
	err = s.withLocks(ctx, []string{repository.LockKey(current.CourtID, current.Date)}, func() error {
		fresh, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if !privileged && fresh.RequesterID != requesterID {
			return fmt.Errorf("reservation %d: %w", id, domain.ErrForbidden)
		}
		cancelled, err = s.transition(ctx, fresh, models.StatusCancelled)
		return err
	})
	metrics.ObserveTransition(models.StatusCancelled, outcomeOf(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("reservation_id", id).Str("by", requesterID).Bool("privileged", privileged).Msg("reservation cancelled")
	s.publish(events.EventReservationCancelled, events.NewReservationPayload(cancelled, requesterID, privileged))
	return cancelled, nil
}

// ConfirmReservation moves a pending reservation to confirmed. Confirming an
// already confirmed reservation returns it unchanged.
func (s *BookingService) ConfirmReservation(ctx context.Context, id int64, actorID string, privileged bool) (*models.Reservation, error) {
	if !privileged {
		metrics.ObserveTransition(models.StatusConfirmed, "forbidden")
		return nil, fmt.Errorf("confirm reservation %d: %w", id, domain.ErrForbidden)
	}
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	var confirmed *models.Reservation
	changed := false
	err = s.withLocks(ctx, []string{repository.LockKey(current.CourtID, current.Date)}, func() error {
		fresh, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if fresh.Status == models.StatusConfirmed && fresh.EffectiveStatus(s.now()) == models.StatusConfirmed {
			confirmed = fresh
			return nil
		}
		confirmed, err = s.transition(ctx, fresh, models.StatusConfirmed)
		changed = err == nil
		return err
	})
	metrics.ObserveTransition(models.StatusConfirmed, outcomeOf(err))
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info().Int64("reservation_id", id).Str("by", actorID).Msg("reservation confirmed")
		s.publish(events.EventReservationConfirmed, events.NewReservationPayload(confirmed, actorID, privileged))
	}
	return confirmed, nil
}

// transition applies the pending|confirmed -> to edge to fresh, a row read
// under the reservation's lock.
func (s *BookingService) transition(ctx context.Context, fresh *models.Reservation, to string) (*models.Reservation, error) {
	id := fresh.ID
	if status := fresh.EffectiveStatus(s.now()); models.IsTerminalStatus(status) {
		return nil, fmt.Errorf("reservation %d is %s: %w", id, status, domain.ErrAlreadyTerminal)
	}

	from := models.ActiveStatuses
	if to == models.StatusConfirmed {
		from = []string{models.StatusPending}
	}
	updated, err := s.store.TransitionReservation(ctx, id, from, to)
	if errors.Is(err, domain.ErrConcurrentModification) && updated != nil && models.IsTerminalStatus(updated.Status) {
		return nil, fmt.Errorf("reservation %d is %s: %w", id, updated.Status, domain.ErrAlreadyTerminal)
	}
	return updated, err
}

// RescheduleReservation moves an active reservation to a new date and
// window on the same court. The new window is validated like a fresh
// proposal and the reservation does not conflict with itself.
func (s *BookingService) RescheduleReservation(ctx context.Context, c Change) (*models.Reservation, error) {
	current, err := s.store.GetReservation(ctx, c.ReservationID)
	if err != nil {
		return nil, err
	}
	if !c.Privileged && current.RequesterID != c.RequesterID {
		return nil, fmt.Errorf("reservation %d: %w", c.ReservationID, domain.ErrForbidden)
	}
	if status := current.EffectiveStatus(s.now()); models.IsTerminalStatus(status) {
		return nil, fmt.Errorf("reservation %d is %s: %w", current.ID, status, domain.ErrAlreadyTerminal)
	}

	window := models.Window{Start: c.Start, End: c.End}
	plan, err := s.validate(ctx, current.CourtID, c.Date, window, c.Privileged)
	if err != nil {
		return nil, err
	}

	keys := []string{
		repository.LockKey(current.CourtID, current.Date),
		repository.LockKey(current.CourtID, plan.date),
	}
	previous := *current
	var moved *models.Reservation
	err = s.withLocks(ctx, keys, func() error {
		fresh, err := s.store.GetReservation(ctx, c.ReservationID)
		if err != nil {
			return err
		}
		if !c.Privileged && fresh.RequesterID != c.RequesterID {
			return fmt.Errorf("reservation %d: %w", fresh.ID, domain.ErrForbidden)
		}
		if status := fresh.EffectiveStatus(s.now()); models.IsTerminalStatus(status) {
			return fmt.Errorf("reservation %d is %s: %w", fresh.ID, status, domain.ErrAlreadyTerminal)
		}
		previous = *fresh

		candidate := *fresh
		candidate.Date = plan.date
		candidate.StartTime = plan.window.Start
		candidate.EndTime = plan.window.End
		if c.Notes != nil {
			candidate.Notes = *c.Notes
		}
		if err := s.store.AdmitReservation(ctx, &candidate); err != nil {
			return err
		}
		moved = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("reservation_id", moved.ID).
		Str("from", models.FormatDate(previous.Date)+" "+previous.Window().String()).
		Str("to", models.FormatDate(moved.Date)+" "+moved.Window().String()).
		Msg("reservation rescheduled")

	payload := events.NewReservationPayload(moved, c.RequesterID, c.Privileged)
	payload.PreviousDate = models.FormatDate(previous.Date)
	payload.PreviousStart = previous.StartTime.String()
	payload.PreviousEnd = previous.EndTime.String()
	s.publish(events.EventReservationRescheduled, payload)
	return moved, nil
}

func (s *BookingService) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Status = r.EffectiveStatus(s.now())
	return r, nil
}

// ListReservations reports effective statuses, so an elapsed reservation is
// listed as completed before the sweep has stored it.
func (s *BookingService) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error) {
	list, err := s.store.ListReservations(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, r := range list {
		r.Status = r.EffectiveStatus(now)
	}
	return list, nil
}

// CompleteElapsed stores the completed status of every elapsed reservation.
func (s *BookingService) CompleteElapsed(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.store.CompleteElapsed(ctx, now)
	if err != nil {
		return 0, err
	}
	metrics.AddCompleted(n)
	if n > 0 {
		s.logger.Info().Int64("completed", n).Msg("elapsed reservations completed")
		s.publish(events.EventReservationsCompleted, events.SweepPayload{Completed: n, At: now})
	}
	return n, nil
}

// validate runs every check that does not need the admission lock, in order:
// duration, calendar, horizon and cutoff, then recurring blackouts.
func (s *BookingService) validate(ctx context.Context, courtID int64, date time.Time, w models.Window, privileged bool) (*admission, error) {
	court, venue, err := s.courtAndVenue(ctx, courtID, privileged)
	if err != nil {
		return nil, err
	}
	date = models.DateOf(date)

	if err := availability.CheckDuration(w, venue.Policy); err != nil {
		return nil, err
	}

	cal, err := s.resolve(ctx, venue, court, date)
	if err != nil {
		return nil, err
	}
	if cal.Closed {
		return nil, fmt.Errorf("%w: venue %d on %s", domain.ErrVenueClosed, venue.ID, models.FormatDate(date))
	}
	if err := availability.CheckHours(w, cal.Hours()); err != nil {
		return nil, err
	}

	now := s.now()
	if err := availability.CheckHorizon(date, now, venue.Policy.MaxAdvanceDays); err != nil {
		return nil, err
	}
	ev := availability.Evaluator{Date: date, Now: now, Cutoff: venue.Policy.Cutoff()}
	if err := ev.CheckTiming(w); err != nil {
		return nil, err
	}
	if conflict := availability.FindBlackout(cal.Blackouts, w); conflict != nil {
		return nil, conflict
	}

	return &admission{court: court, venue: venue, date: date, window: w}, nil
}

// courtAndVenue hides inactive courts and, from regular users, unapproved venues.
func (s *BookingService) courtAndVenue(ctx context.Context, courtID int64, privileged bool) (*models.Court, *models.Venue, error) {
	court, err := s.store.GetCourt(ctx, courtID)
	if err != nil {
		return nil, nil, err
	}
	if !court.Active {
		return nil, nil, fmt.Errorf("court %d is inactive: %w", courtID, domain.ErrNotFound)
	}
	venue, err := s.venue(ctx, court.VenueID, privileged)
	if err != nil {
		return nil, nil, err
	}
	return court, venue, nil
}

func (s *BookingService) venue(ctx context.Context, venueID int64, privileged bool) (*models.Venue, error) {
	venue, err := s.store.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !venue.Approved && !privileged {
		return nil, fmt.Errorf("venue %d: %w", venueID, domain.ErrNotFound)
	}
	return venue, nil
}

// withLocks takes keys in sorted order, runs fn and releases them, retrying
// the whole unit while it fails with ErrRetryable.
func (s *BookingService) withLocks(ctx context.Context, keys []string, fn func() error) error {
	keys = uniqueSorted(keys)
	return s.retry.Do(ctx, isRetryable, func(attempt int) error {
		if attempt > 1 {
			metrics.IncAdmissionRetry()
			s.logger.Debug().Int("attempt", attempt).Strs("keys", keys).Msg("retrying after contention")
		}

		releases := make([]func(), 0, len(keys))
		defer func() {
			for i := len(releases) - 1; i >= 0; i-- {
				releases[i]()
			}
		}()
		for _, key := range keys {
			release, err := s.locker.Acquire(ctx, key)
			if err != nil {
				return fmt.Errorf("acquire %s: %w", key, err)
			}
			releases = append(releases, release)
		}
		return fn()
	})
}

func (s *BookingService) publish(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrRetryable)
}

func uniqueSorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}

// outcomeOf maps an operation result to a metrics label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrSlotConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, domain.ErrVenueClosed):
		return "venue_closed"
	case errors.Is(err, domain.ErrOutsideOperatingHours):
		return "outside_hours"
	case errors.Is(err, domain.ErrCutoffExceeded):
		return "cutoff"
	case errors.Is(err, domain.ErrTooFarInAdvance):
		return "too_far"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrAlreadyTerminal):
		return "already_terminal"
	case errors.Is(err, domain.ErrRetryable):
		return "retryable"
	default:
		return "error"
	}
}

// resolve loads the special hours and restrictions of court and resolves
// its calendar on date.
func (s *BookingService) resolve(ctx context.Context, venue *models.Venue, court *models.Court, date time.Time) (calendar.Window, error) {
	special, err := s.store.GetSpecialHours(ctx, venue.ID, date)
	if err != nil {
		return calendar.Window{}, err
	}
	restrictions, err := s.store.ListRestrictions(ctx, court.ID)
	if err != nil {
		return calendar.Window{}, err
	}
	return calendar.Resolve(venue, special, restrictions, date), nil
}
