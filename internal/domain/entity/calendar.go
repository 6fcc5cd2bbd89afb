package entity

// CalendarDay is one entry of the selectable date grid
type CalendarDay struct {
	Date       CalendarDate
	Weekday    string
	DayOfMonth int
	Selectable bool
	Today      bool
}

// TimeSlots is the fixed, ordered slot table offered on every selectable day
var TimeSlots = []string{
	"09:00 AM",
	"09:30 AM",
	"10:00 AM",
	"11:00 AM",
	"02:00 PM",
	"02:30 PM",
	"03:00 PM",
	"04:00 PM",
}

// IsKnownSlot checks if slot is one of TimeSlots
func IsKnownSlot(slot string) bool {
	for _, s := range TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}
