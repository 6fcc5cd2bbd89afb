package converter

import (
	"fmt"

	"portfolio-booking/internal/delivery/dto"
	"portfolio-booking/internal/domain/entity"
	"portfolio-booking/internal/service"
)

const (
	ConfirmLabel         = "Confirm Booking"
	ConfirmLabelInFlight = "Confirming..."
)

// ViewInput carries everything the projection needs besides the state itself.
// Days and Slots are regenerated by the caller on every render.
type ViewInput struct {
	Days  []entity.CalendarDay
	Slots []string
	Shake bool
}

// BookingStateToView projects state onto the active screen. Selection
// markers are derived from state.Date and state.Time only.
func BookingStateToView(state *entity.BookingState, in ViewInput) *dto.BookingView {
	if state == nil {
		return nil
	}

	view := &dto.BookingView{
		SessionID: state.SessionID,
		Step:      int(state.Step),
		StepName:  state.Step.String(),
		Progress:  state.Step.Progress(),
		Open:      state.Open,
		Timezone:  state.Timezone,
	}

	switch state.Step {
	case entity.StepDateSelect:
		view.Date = dateScreen(state, in.Days)
	case entity.StepTimeSelect:
		view.Time = timeScreen(state, in.Slots)
	case entity.StepContactForm:
		view.Form = formScreen(state, in.Shake)
	case entity.StepReview:
		view.Review = reviewScreen(state)
	case entity.StepSuccess:
		success := reviewScreen(state)
		success.ConfirmEnabled = false
		success.InviteURL = fmt.Sprintf("/api/v1/booking/sessions/%s/invite.ics", state.SessionID)
		view.Success = success
	}

	return view
}

func dateScreen(state *entity.BookingState, days []entity.CalendarDay) *dto.DateScreen {
	screen := &dto.DateScreen{
		Days:        make([]dto.CalendarDayResponse, len(days)),
		CanContinue: state.Date != nil,
	}
	if len(days) > 0 {
		screen.MonthHeading = service.MonthHeading(days[0].Date)
	}

	for i, day := range days {
		screen.Days[i] = dto.CalendarDayResponse{
			Date:       day.Date.String(),
			Weekday:    day.Weekday,
			DayOfMonth: day.DayOfMonth,
			Selectable: day.Selectable,
			Today:      day.Today,
			Selected:   state.Date != nil && *state.Date == day.Date,
		}
	}
	return screen
}

func timeScreen(state *entity.BookingState, slots []string) *dto.TimeScreen {
	screen := &dto.TimeScreen{
		Slots: make([]dto.TimeSlotResponse, len(slots)),
	}
	if state.Date != nil {
		screen.DateHeading = service.ShortDate(*state.Date)
	}

	for i, slot := range slots {
		selected := state.Time != nil && *state.Time == slot
		screen.Slots[i] = dto.TimeSlotResponse{Time: slot, Selected: selected}
		if selected {
			screen.CanContinue = true
		}
	}
	return screen
}

func formScreen(state *entity.BookingState, shake bool) *dto.FormScreen {
	screen := &dto.FormScreen{
		Values: dto.ContactDetailsRequest{
			Name:    state.FormValues.Name,
			Email:   state.FormValues.Email,
			Phone:   state.FormValues.Phone,
			Company: state.FormValues.Company,
		},
		FieldErrors: []dto.FieldErrorResponse{},
		Shake:       shake,
	}

	for _, field := range entity.ContactFields {
		fe, ok := state.FieldErrors[field]
		if !ok {
			continue
		}
		if screen.FocusField == "" && shake {
			screen.FocusField = field
		}
		screen.FieldErrors = append(screen.FieldErrors, dto.FieldErrorResponse{
			Field:   fe.Field,
			Kind:    string(fe.Kind),
			Message: fe.Message,
		})
	}
	return screen
}

func reviewScreen(state *entity.BookingState) *dto.ReviewScreen {
	screen := &dto.ReviewScreen{
		Name:           state.Details.Name,
		Email:          state.Details.Email,
		Phone:          state.Details.PhoneOrNA(),
		Company:        state.Details.CompanyOrNA(),
		ConfirmEnabled: !state.Submitting,
		ConfirmLabel:   ConfirmLabel,
	}
	if state.Submitting {
		screen.ConfirmLabel = ConfirmLabelInFlight
	}
	if state.Date != nil {
		screen.Date = service.LongDate(*state.Date)
	}
	if state.Time != nil {
		screen.Time = *state.Time
	}
	return screen
}

// SubmissionsToResponse converts ledger records to the list DTO
func SubmissionsToResponse(records []entity.SubmissionRecord) *dto.SubmissionListResponse {
	responses := make([]dto.SubmissionResponse, len(records))
	for i, r := range records {
		responses[i] = dto.SubmissionResponse{
			ID:            r.ID,
			Attempt:       r.Attempt,
			Status:        string(r.Status),
			RequestedDate: r.RequestedDate,
			RequestedTime: r.RequestedTime,
			FailureReason: r.FailureReason,
			CreatedAt:     r.CreatedAt,
		}
	}
	return &dto.SubmissionListResponse{
		Submissions: responses,
		Total:       len(records),
	}
}
