// Package calendar resolves the effective operating window of a court on a date.
package calendar

import (
	"sort"
	"time"

	"courtbook/internal/models"
)

// Window is the resolved calendar of one court on one date.
type Window struct {
	Date      time.Time        `json:"-"`
	Open      models.TimeOfDay `json:"open"`
	Close     models.TimeOfDay `json:"close"`
	Closed    bool             `json:"closed"`
	Override  bool             `json:"override"`
	Blackouts []Blackout       `json:"blackouts"`
}

// Blackout is a recurring restriction materialized for a date.
type Blackout struct {
	models.Window
	RestrictionID int64  `json:"restriction_id"`
	Reason        string `json:"reason,omitempty"`
}

// Hours returns [Open, Close). It is meaningless when Closed is set.
func (w *Window) Hours() models.Window {
	return models.Window{Start: w.Open, End: w.Close}
}

// Resolve applies special hours and weekday restrictions to the venue defaults.
// special may be nil. Restrictions for other weekdays are ignored, so callers
// may pass the court's full list.
func Resolve(venue *models.Venue, special *models.SpecialHours, restrictions []*models.RecurringRestriction, date time.Time) Window {
	date = models.DateOf(date)
	out := Window{Date: date}

	if special != nil && special.Closed {
		out.Closed = true
		return out
	}

	out.Open, out.Close = venue.OpeningTime, venue.ClosingTime
	if special != nil && special.OpeningTime != nil && special.ClosingTime != nil {
		out.Open, out.Close = *special.OpeningTime, *special.ClosingTime
		out.Override = true
	}

	weekday := date.Weekday()
	for _, r := range restrictions {
		if r.Weekday != weekday {
			continue
		}
		out.Blackouts = append(out.Blackouts, Blackout{
			Window:        r.Window(),
			RestrictionID: r.ID,
			Reason:        r.Reason,
		})
	}
	sort.SliceStable(out.Blackouts, func(i, j int) bool {
		if out.Blackouts[i].Start == out.Blackouts[j].Start {
			return out.Blackouts[i].End < out.Blackouts[j].End
		}
		return out.Blackouts[i].Start < out.Blackouts[j].Start
	})

	return out
}
