package domain

import (
	"context"
	"time"

	"courtbook/internal/models"
)

// ReservationFilter narrows reservation listings. Zero values are ignored.
type ReservationFilter struct {
	VenueID     int64
	CourtID     int64
	RequesterID string
	From        time.Time
	To          time.Time
	Statuses    []string
	Limit       uint64
}

// CatalogReader reads the venue records owned by external management.
type CatalogReader interface {
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	GetCourt(ctx context.Context, id int64) (*models.Court, error)
	ListCourts(ctx context.Context, venueID int64, courtType string) ([]*models.Court, error)
	GetSpecialHours(ctx context.Context, venueID int64, date time.Time) (*models.SpecialHours, error)
	ListRestrictions(ctx context.Context, courtID int64) ([]*models.RecurringRestriction, error)
}

// CatalogWriter seeds the catalog.
type CatalogWriter interface {
	UpsertVenue(ctx context.Context, venue *models.Venue) error
	UpsertCourt(ctx context.Context, court *models.Court) error
	UpsertSpecialHours(ctx context.Context, sh *models.SpecialHours) error
	ReplaceRestrictions(ctx context.Context, courtID int64, restrictions []*models.RecurringRestriction) error
}

// ReservationStore is the persistence side of admission.
type ReservationStore interface {
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]*models.Reservation, error)
	ActiveReservations(ctx context.Context, courtID int64, date time.Time) ([]*models.Reservation, error)
	// AdmitReservation re-checks overlap and writes r in one transaction.
	// When r.ID is non-zero the row is moved instead of inserted and is
	// excluded from the overlap check.
	// Conflicts are reported as *ConflictError.
	AdmitReservation(ctx context.Context, r *models.Reservation) error
	TransitionReservation(ctx context.Context, id int64, from []string, to string) (*models.Reservation, error)
	CompleteElapsed(ctx context.Context, now time.Time) (int64, error)
}

// Store is everything the booking service needs from storage.
type Store interface {
	CatalogReader
	ReservationStore
}

// Locker serializes writers on a key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// EventPublisher is satisfied by events.EventBus.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
