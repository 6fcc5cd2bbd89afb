package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type OpenSessionRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Timezone  string     `json:"timezone" validate:"max=64"`
}

type SelectDateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type SelectTimeRequest struct {
	Time string `json:"time" validate:"required"`
}

type FieldValueRequest struct {
	Value string `json:"value"`
}

type ContactDetailsRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

// Response DTOs

// BookingView is the projection of a session's state. Only the active
// screen is populated.
type BookingView struct {
	SessionID uuid.UUID     `json:"session_id"`
	Step      int           `json:"step"`
	StepName  string        `json:"step_name"`
	Progress  float64       `json:"progress"`
	Open      bool          `json:"open"`
	Timezone  string        `json:"timezone"`
	Date      *DateScreen   `json:"date_screen,omitempty"`
	Time      *TimeScreen   `json:"time_screen,omitempty"`
	Form      *FormScreen   `json:"form_screen,omitempty"`
	Review    *ReviewScreen `json:"review_screen,omitempty"`
	Success   *ReviewScreen `json:"success_screen,omitempty"`
}

type DateScreen struct {
	MonthHeading string                `json:"month_heading"`
	Days         []CalendarDayResponse `json:"days"`
	CanContinue  bool                  `json:"can_continue"`
}

type CalendarDayResponse struct {
	Date       string `json:"date"`
	Weekday    string `json:"weekday"`
	DayOfMonth int    `json:"day_of_month"`
	Selectable bool   `json:"selectable"`
	Today      bool   `json:"today"`
	Selected   bool   `json:"selected"`
}

type TimeScreen struct {
	DateHeading string             `json:"date_heading"`
	Slots       []TimeSlotResponse `json:"slots"`
	CanContinue bool               `json:"can_continue"`
}

type TimeSlotResponse struct {
	Time     string `json:"time"`
	Selected bool   `json:"selected"`
}

type FormScreen struct {
	Values      ContactDetailsRequest `json:"values"`
	FieldErrors []FieldErrorResponse  `json:"field_errors"`
	Shake       bool                  `json:"shake"`
	FocusField  string                `json:"focus_field,omitempty"`
}

type FieldErrorResponse struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ReviewScreen struct {
	Date           string `json:"date"`
	Time           string `json:"time"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Company        string `json:"company"`
	ConfirmEnabled bool   `json:"confirm_enabled"`
	ConfirmLabel   string `json:"confirm_label"`
	InviteURL      string `json:"invite_url,omitempty"`
}

type SubmissionResponse struct {
	ID            uuid.UUID `json:"id"`
	Attempt       int       `json:"attempt"`
	Status        string    `json:"status"`
	RequestedDate string    `json:"requested_date"`
	RequestedTime string    `json:"requested_time"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SubmissionListResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Total       int                  `json:"total"`
}
