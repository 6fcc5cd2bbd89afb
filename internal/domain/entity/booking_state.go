package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Step is the wizard position of a booking session
type Step int

const (
	StepDateSelect  Step = 1
	StepTimeSelect  Step = 2
	StepContactForm Step = 3
	StepReview      Step = 4
	StepSuccess     Step = 5
)

// TotalSteps is the denominator of the progress indicator
const TotalSteps = 5

func (s Step) String() string {
	switch s {
	case StepDateSelect:
		return "date_select"
	case StepTimeSelect:
		return "time_select"
	case StepContactForm:
		return "contact_form"
	case StepReview:
		return "review"
	case StepSuccess:
		return "success"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Progress returns the fill fraction of the progress indicator
func (s Step) Progress() float64 {
	return float64(s) / TotalSteps
}

// CalendarDate is a day without a time component
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

const calendarDateLayout = "2006-01-02"

func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(calendarDateLayout, s)
	if err != nil {
		return CalendarDate{}, err
	}
	return DateOf(t), nil
}

// In returns midnight of the date in loc
func (d CalendarDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CalendarDate) Weekday() time.Weekday {
	return d.In(time.UTC).Weekday()
}

func (d CalendarDate) String() string {
	return d.In(time.UTC).Format(calendarDateLayout)
}

func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *CalendarDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCalendarDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// BookingState is the accumulated selection of one modal session.
// Details is only set once the contact form passed validation; FormValues
// holds whatever was last typed into the form.
// Selection markers shown by the client are derived from Date and Time and
// never stored.
type BookingState struct {
	SessionID   uuid.UUID             `json:"session_id"`
	Step        Step                  `json:"step"`
	Date        *CalendarDate         `json:"date,omitempty"`
	Time        *string               `json:"time,omitempty"`
	Details     ContactDetails        `json:"details"`
	FormValues  ContactDetails        `json:"form_values"`
	Timezone    string                `json:"timezone"`
	FieldErrors map[string]FieldError `json:"field_errors,omitempty"`
	Submitting  bool                  `json:"submitting"`
	Generation  int                   `json:"generation"`
	Attempt     int                   `json:"attempt"`
	Open        bool                  `json:"open"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// NewBookingState returns an empty state positioned at date selection
func NewBookingState(sessionID uuid.UUID, timezone string) *BookingState {
	return &BookingState{
		SessionID: sessionID,
		Step:      StepDateSelect,
		Timezone:  timezone,
	}
}

// Reset clears the selection and returns to the first step. The generation
// counter moves forward so late results from a previous session are ignored.
func (s *BookingState) Reset() {
	s.Step = StepDateSelect
	s.Date = nil
	s.Time = nil
	s.Details = ContactDetails{}
	s.FormValues = ContactDetails{}
	s.FieldErrors = nil
	s.Submitting = false
	s.Generation++
}

// IsEmpty reports whether no selection has been made yet
func (s *BookingState) IsEmpty() bool {
	return s.Date == nil && s.Time == nil && s.Details == (ContactDetails{}) && s.FormValues == (ContactDetails{})
}

// IsCompleted checks if the booking reached the terminal step
func (s *BookingState) IsCompleted() bool {
	return s.Step == StepSuccess
}

func (s *BookingState) SetFieldError(fe FieldError) {
	if s.FieldErrors == nil {
		s.FieldErrors = make(map[string]FieldError)
	}
	s.FieldErrors[fe.Field] = fe
}

func (s *BookingState) ClearFieldError(field string) {
	delete(s.FieldErrors, field)
	if len(s.FieldErrors) == 0 {
		s.FieldErrors = nil
	}
}
