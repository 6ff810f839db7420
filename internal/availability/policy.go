package availability

import (
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// CheckHorizon rejects dates later than today+maxAdvanceDays. It is a
// whole-request check, run once before any slot is generated.
func CheckHorizon(date, now time.Time, maxAdvanceDays int) error {
	limit := models.DateOf(now).AddDate(0, 0, maxAdvanceDays)
	if models.DateOf(date).After(limit) {
		return fmt.Errorf("%w: %s is after %s", domain.ErrTooFarInAdvance, models.FormatDate(date), models.FormatDate(limit))
	}
	return nil
}

// CheckDuration validates end > start and the min/max duration bounds.
func CheckDuration(w models.Window, p models.Policy) error {
	if !w.Valid() {
		return fmt.Errorf("%w: end %s must be after start %s", domain.ErrInvalidWindow, w.End, w.Start)
	}
	if w.End > models.EndOfDay {
		return fmt.Errorf("%w: %s runs past midnight", domain.ErrInvalidWindow, w)
	}
	d := w.Duration()
	if d < p.MinDuration() || d > p.MaxDuration() {
		return fmt.Errorf("%w: duration %s outside %s..%s", domain.ErrInvalidWindow, d, p.MinDuration(), p.MaxDuration())
	}
	return nil
}

// CheckHours validates that w lies within the resolved operating window.
func CheckHours(w models.Window, hours models.Window) error {
	if !hours.Contains(w) {
		return fmt.Errorf("%w: %s is outside %s", domain.ErrOutsideOperatingHours, w, hours)
	}
	return nil
}
