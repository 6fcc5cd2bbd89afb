package service

import (
	"time"

	"portfolio-booking/internal/domain/entity"
)

const (
	// DefaultWindowDays is the number of days offered, today included
	DefaultWindowDays = 20

	monthHeadingLayout = "January 2006"
	shortDateLayout    = "Mon, Jan 2"
	longDateLayout     = "Monday, January 2, 2006"
)

// CalendarService produces the selectable date grid and time slot table.
// It holds no state; every call regenerates from "today".
type CalendarService struct {
	windowDays int
	excluded   time.Weekday
	now        func() time.Time
}

func NewCalendarService(windowDays int) *CalendarService {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &CalendarService{
		windowDays: windowDays,
		excluded:   time.Sunday,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for "today"
func (s *CalendarService) WithClock(now func() time.Time) *CalendarService {
	s.now = now
	return s
}

// Today returns the current date in loc
func (s *CalendarService) Today(loc *time.Location) entity.CalendarDate {
	return entity.DateOf(s.now().In(loc))
}

// Days returns the window of calendar days starting at today (inclusive)
func (s *CalendarService) Days(today entity.CalendarDate) []entity.CalendarDay {
	days := make([]entity.CalendarDay, 0, s.windowDays)
	start := today.In(time.UTC)

	for i := 0; i < s.windowDays; i++ {
		// AddDate on a UTC midnight never drifts across DST boundaries
		d := start.AddDate(0, 0, i)
		days = append(days, entity.CalendarDay{
			Date:       entity.DateOf(d),
			Weekday:    d.Format("Mon"),
			DayOfMonth: d.Day(),
			Selectable: d.Weekday() != s.excluded,
			Today:      i == 0,
		})
	}

	return days
}

// IsSelectable checks if date is inside the window and not an excluded weekday
func (s *CalendarService) IsSelectable(today, date entity.CalendarDate) bool {
	for _, day := range s.Days(today) {
		if day.Date == date {
			return day.Selectable
		}
	}
	return false
}

// Slots returns a fresh copy of the fixed slot table
func (s *CalendarService) Slots() []string {
	slots := make([]string, len(entity.TimeSlots))
	copy(slots, entity.TimeSlots)
	return slots
}

// MonthHeading formats the heading shown above the date grid, e.g. "October 2026"
func MonthHeading(d entity.CalendarDate) string {
	return d.In(time.UTC).Format(monthHeadingLayout)
}

// ShortDate formats the heading of the time screen, e.g. "Tue, Oct 20"
func ShortDate(d entity.CalendarDate) string {
	return d.In(time.UTC).Format(shortDateLayout)
}

// LongDate formats the review and message date, e.g. "Tuesday, October 20, 2026"
func LongDate(d entity.CalendarDate) string {
	return d.In(time.UTC).Format(longDateLayout)
}
