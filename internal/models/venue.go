package models

import (
	"errors"
	"fmt"
	"time"
)

// Policy holds the per-venue booking rules.
type Policy struct {
	IncrementMinutes   int `json:"increment_minutes" yaml:"increment_minutes"`
	MinDurationMinutes int `json:"min_duration_minutes" yaml:"min_duration_minutes"`
	MaxDurationMinutes int `json:"max_duration_minutes" yaml:"max_duration_minutes"`
	MaxAdvanceDays     int `json:"max_advance_days" yaml:"max_advance_days"`
	SameDayCutoffHours int `json:"same_day_cutoff_hours" yaml:"same_day_cutoff_hours"`
}

func (p Policy) Increment() time.Duration   { return time.Duration(p.IncrementMinutes) * time.Minute }
func (p Policy) MinDuration() time.Duration { return time.Duration(p.MinDurationMinutes) * time.Minute }
func (p Policy) MaxDuration() time.Duration { return time.Duration(p.MaxDurationMinutes) * time.Minute }
func (p Policy) Cutoff() time.Duration      { return time.Duration(p.SameDayCutoffHours) * time.Hour }

// Validate checks max >= min >= increment > 0 and non-negative horizons.
func (p Policy) Validate() error {
	if p.IncrementMinutes <= 0 {
		return errors.New("increment_minutes must be positive")
	}
	if p.MinDurationMinutes < p.IncrementMinutes {
		return fmt.Errorf("min_duration_minutes (%d) must be >= increment_minutes (%d)", p.MinDurationMinutes, p.IncrementMinutes)
	}
	if p.MaxDurationMinutes < p.MinDurationMinutes {
		return fmt.Errorf("max_duration_minutes (%d) must be >= min_duration_minutes (%d)", p.MaxDurationMinutes, p.MinDurationMinutes)
	}
	if p.MaxAdvanceDays < 0 {
		return errors.New("max_advance_days must not be negative")
	}
	if p.SameDayCutoffHours < 0 {
		return errors.New("same_day_cutoff_hours must not be negative")
	}
	return nil
}

type Venue struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Address     string    `json:"address" yaml:"address"`
	City        string    `json:"city" yaml:"city"`
	State       string    `json:"state" yaml:"state"`
	ZipCode     string    `json:"zip_code" yaml:"zip_code"`
	ManagerID   *string   `json:"manager_id,omitempty" yaml:"manager_id"`
	Approved    bool      `json:"approved" yaml:"approved"`
	OpeningTime TimeOfDay `json:"opening_time" yaml:"opening_time"`
	ClosingTime TimeOfDay `json:"closing_time" yaml:"closing_time"`
	Policy      Policy    `json:"policy" yaml:"policy"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Hours returns the default operating window.
func (v *Venue) Hours() Window {
	return Window{Start: v.OpeningTime, End: v.ClosingTime}
}

func (v *Venue) Validate() error {
	if v.Name == "" {
		return errors.New("venue name is required")
	}
	if v.ClosingTime <= v.OpeningTime {
		return fmt.Errorf("venue %q: closing_time must be after opening_time", v.Name)
	}
	if err := v.Policy.Validate(); err != nil {
		return fmt.Errorf("venue %q: %w", v.Name, err)
	}
	return nil
}

type Court struct {
	ID        int64     `json:"id" yaml:"id"`
	VenueID   int64     `json:"venue_id" yaml:"venue_id"`
	Type      string    `json:"type" yaml:"type"`
	Number    int       `json:"number" yaml:"number"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

func (c *Court) Validate() error {
	if !ValidCourtType(c.Type) {
		return fmt.Errorf("court %d: unknown court type %q", c.Number, c.Type)
	}
	if c.Number <= 0 {
		return fmt.Errorf("court number must be positive, got %d", c.Number)
	}
	return nil
}

// SpecialHours overrides or closes a venue for a single date.
type SpecialHours struct {
	ID          int64      `json:"id" yaml:"id"`
	VenueID     int64      `json:"venue_id" yaml:"venue_id"`
	Date        time.Time  `json:"date" yaml:"date"`
	Closed      bool       `json:"closed" yaml:"closed"`
	OpeningTime *TimeOfDay `json:"opening_time,omitempty" yaml:"opening_time"`
	ClosingTime *TimeOfDay `json:"closing_time,omitempty" yaml:"closing_time"`
}

func (s *SpecialHours) Validate() error {
	if s.Date.IsZero() {
		return errors.New("special hours date is required")
	}
	if s.Closed {
		return nil
	}
	if s.OpeningTime == nil || s.ClosingTime == nil {
		return fmt.Errorf("special hours on %s: opening and closing time are required unless closed", FormatDate(s.Date))
	}
	if *s.ClosingTime <= *s.OpeningTime {
		return fmt.Errorf("special hours on %s: closing_time must be after opening_time", FormatDate(s.Date))
	}
	return nil
}

// RecurringRestriction blocks a court every week on the given weekday.
type RecurringRestriction struct {
	ID        int64        `json:"id" yaml:"id"`
	CourtID   int64        `json:"court_id" yaml:"court_id"`
	Weekday   time.Weekday `json:"weekday" yaml:"weekday"`
	StartTime TimeOfDay    `json:"start_time" yaml:"start_time"`
	EndTime   TimeOfDay    `json:"end_time" yaml:"end_time"`
	Reason    string       `json:"reason,omitempty" yaml:"reason"`
}

func (r *RecurringRestriction) Window() Window {
	return Window{Start: r.StartTime, End: r.EndTime}
}

func (r *RecurringRestriction) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("weekday must be in 0..6, got %d", r.Weekday)
	}
	if r.EndTime <= r.StartTime {
		return errors.New("restriction end_time must be after start_time")
	}
	return nil
}
