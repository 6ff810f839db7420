package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	CourtTypeHard      = "hard"
	CourtTypeClay      = "clay"
	CourtTypeGrass     = "grass"
	CourtTypeIndoor    = "indoor"
	CourtTypeOutdoor   = "outdoor"
	CourtTypeSynthetic = "synthetic"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

const (
	// DefaultIncrementMinutes is the default slot grid step.
	DefaultIncrementMinutes = 60

	// DefaultMinDurationMinutes is the shortest reservation allowed.
	DefaultMinDurationMinutes = 60

	// DefaultMaxDurationMinutes is the longest reservation allowed.
	DefaultMaxDurationMinutes = 180

	// DefaultMaxAdvanceDays is the booking horizon in days.
	DefaultMaxAdvanceDays = 14

	// DefaultOpeningTime and DefaultClosingTime are the default venue hours.
	DefaultOpeningTime = "08:00:00"
	DefaultClosingTime = "20:00:00"
)

var courtTypes = map[string]bool{
	CourtTypeHard:      true,
	CourtTypeClay:      true,
	CourtTypeGrass:     true,
	CourtTypeIndoor:    true,
	CourtTypeOutdoor:   true,
	CourtTypeSynthetic: true,
}

// ValidCourtType reports whether t is one of the known surface categories.
func ValidCourtType(t string) bool {
	return courtTypes[t]
}

// ActiveStatuses are the statuses that occupy a court window.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

// IsTerminalStatus reports whether no further transition is possible.
func IsTerminalStatus(status string) bool {
	return status == StatusCancelled || status == StatusCompleted
}
