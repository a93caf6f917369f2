// Package schedule decides whether a channel is due on a given date.
package schedule

import (
	"time"

	"github.com/blockedby/stockwatch-os/internal/models"
)

// IsDueToday reports whether a channel with the given frequency fires on the
// given date. Pure function: callers supply the date so runs are replayable
// and tests are deterministic.
//
// daily   -> every day
// weekly  -> Mondays
// monthly -> the 1st of the month
func IsDueToday(freq models.Frequency, today time.Time) bool {
	switch freq {
	case models.FrequencyDaily:
		return true
	case models.FrequencyWeekly:
		return today.Weekday() == time.Monday
	case models.FrequencyMonthly:
		return today.Day() == 1
	default:
		// unknown frequency never fires
		return false
	}
}
