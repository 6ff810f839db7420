package models

import (
	"fmt"
	"time"
)

// Window is a half-open time-of-day interval [Start, End).
type Window struct {
	Start TimeOfDay `json:"start" yaml:"start"`
	End   TimeOfDay `json:"end" yaml:"end"`
}

// Valid reports whether the window has positive length.
func (w Window) Valid() bool {
	return w.End > w.Start
}

// Duration returns End-Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps uses strict interval overlap, so adjacent windows do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && w.End > o.Start
}

// Contains reports whether o lies fully inside w.
func (w Window) Contains(o Window) bool {
	return o.Start >= w.Start && o.End <= w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", w.Start.Short(), w.End.Short())
}
