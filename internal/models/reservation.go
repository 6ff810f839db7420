package models

import "time"

type Reservation struct {
	ID          int64     `json:"id"`
	CourtID     int64     `json:"court_id"`
	RequesterID string    `json:"requester_id"`
	Date        time.Time `json:"date"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	Status      string    `json:"status"` // pending, confirmed, cancelled, completed
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

func (r *Reservation) Window() Window {
	return Window{Start: r.StartTime, End: r.EndTime}
}

// IsActive reports whether the stored status still occupies the court.
func (r *Reservation) IsActive() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// Elapsed reports whether date+end lies in the past relative to now.
// now is read as venue-local wall-clock time.
func (r *Reservation) Elapsed(now time.Time) bool {
	today := DateOf(now)
	if r.Date.Before(today) {
		return true
	}
	return r.Date.Equal(today) && r.EndTime <= TimeOfDayOf(now)
}

// EffectiveStatus applies the lazy completion rule on top of the stored status.
func (r *Reservation) EffectiveStatus(now time.Time) string {
	if r.IsActive() && r.Elapsed(now) {
		return StatusCompleted
	}
	return r.Status
}
