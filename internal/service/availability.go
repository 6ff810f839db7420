package service

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/availability"
	"courtbook/internal/calendar"
	"courtbook/internal/domain"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/slots"
)

// AvailabilityQuery selects the courts of one venue on one date.
type AvailabilityQuery struct {
	VenueID   int64
	CourtType string
	Date      time.Time
	// DurationMinutes overrides the window length. Zero means one increment.
	DurationMinutes int
	Privileged      bool
}

// CourtAvailability is the report for one court.
type CourtAvailability struct {
	Court     *models.Court       `json:"court"`
	Date      string              `json:"date"`
	Closed    bool                `json:"closed"`
	Hours     *models.Window      `json:"hours,omitempty"`
	Override  bool                `json:"override"`
	Policy    models.Policy       `json:"policy"`
	Windows   []models.Window     `json:"windows"`
	Booked    []models.Window     `json:"booked"`
	Blackouts []calendar.Blackout `json:"blackouts"`
}

// ResolveCalendar returns the effective hours and blackouts of a court.
func (s *BookingService) ResolveCalendar(ctx context.Context, courtID int64, date time.Time, privileged bool) (*calendar.Window, error) {
	court, venue, err := s.courtAndVenue(ctx, courtID, privileged)
	if err != nil {
		return nil, err
	}
	cal, err := s.resolve(ctx, venue, court, models.DateOf(date))
	if err != nil {
		return nil, err
	}
	return &cal, nil
}

// ListAvailability reports the bookable windows of every active court of a
// venue on a date. It never writes.
func (s *BookingService) ListAvailability(ctx context.Context, q AvailabilityQuery) ([]CourtAvailability, error) {
	started := time.Now()
	defer func() { metrics.ObserveAvailability(time.Since(started)) }()

	venue, err := s.venue(ctx, q.VenueID, q.Privileged)
	if err != nil {
		return nil, err
	}

	date := models.DateOf(q.Date)
	now := s.now()
	if err := availability.CheckHorizon(date, now, venue.Policy.MaxAdvanceDays); err != nil {
		return nil, err
	}

	length := venue.Policy.Increment()
	if q.DurationMinutes > 0 {
		length = time.Duration(q.DurationMinutes) * time.Minute
		if length < venue.Policy.MinDuration() || length > venue.Policy.MaxDuration() {
			return nil, fmt.Errorf("%w: duration %s outside %s..%s", domain.ErrInvalidWindow,
				length, venue.Policy.MinDuration(), venue.Policy.MaxDuration())
		}
	}

	courts, err := s.store.ListCourts(ctx, venue.ID, q.CourtType)
	if err != nil {
		return nil, err
	}
	special, err := s.store.GetSpecialHours(ctx, venue.ID, date)
	if err != nil {
		return nil, err
	}

	out := make([]CourtAvailability, 0, len(courts))
	for _, court := range courts {
		if !court.Active {
			continue
		}
		report, err := s.courtAvailability(ctx, venue, court, special, date, now, length)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, nil
}

func (s *BookingService) courtAvailability(ctx context.Context, venue *models.Venue, court *models.Court, special *models.SpecialHours, date, now time.Time, length time.Duration) (CourtAvailability, error) {
	report := CourtAvailability{
		Court:     court,
		Date:      models.FormatDate(date),
		Policy:    venue.Policy,
		Windows:   []models.Window{},
		Booked:    []models.Window{},
		Blackouts: []calendar.Blackout{},
	}

	restrictions, err := s.store.ListRestrictions(ctx, court.ID)
	if err != nil {
		return report, err
	}
	cal := calendar.Resolve(venue, special, restrictions, date)
	if cal.Closed {
		report.Closed = true
		return report, nil
	}
	hours := cal.Hours()
	report.Hours = &hours
	report.Override = cal.Override
	if cal.Blackouts != nil {
		report.Blackouts = cal.Blackouts
	}

	reservations, err := s.store.ActiveReservations(ctx, court.ID, date)
	if err != nil {
		return report, err
	}
	for _, r := range reservations {
		report.Booked = append(report.Booked, r.Window())
	}

	ev := availability.Evaluator{
		Date:         date,
		Now:          now,
		Cutoff:       venue.Policy.Cutoff(),
		Reservations: reservations,
		Blackouts:    cal.Blackouts,
	}
	report.Windows = ev.Available(slots.Spans(cal.Open, cal.Close, venue.Policy.Increment(), length))
	return report, nil
}
