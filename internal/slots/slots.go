// Package slots enumerates candidate booking windows inside an operating window.
package slots

import (
	"iter"
	"time"

	"courtbook/internal/models"
)

// Windows yields [t, t+increment) from open, stepping by increment, and stops
// before the first slot that would end after closing. The sequence is
// recomputed on every range, so it can be iterated any number of times.
func Windows(open, closing models.TimeOfDay, increment time.Duration) iter.Seq[models.Window] {
	return Spans(open, closing, increment, increment)
}

// Spans is Windows with a window length that differs from the step, used for
// "every 90-minute booking starting on the hour" style queries.
func Spans(open, closing models.TimeOfDay, step, length time.Duration) iter.Seq[models.Window] {
	return func(yield func(models.Window) bool) {
		if step <= 0 || length <= 0 || closing <= open {
			return
		}
		for t := open; t.Add(length) <= closing; t = t.Add(step) {
			if !yield(models.Window{Start: t, End: t.Add(length)}) {
				return
			}
		}
	}
}
