package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-booking/internal/converter"
	"portfolio-booking/internal/delivery/dto"
	"portfolio-booking/internal/domain/entity"
	"portfolio-booking/internal/domain/repository"
	"portfolio-booking/internal/service"
	"portfolio-booking/pkg/validator"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound     = errors.New("booking session not found")
	ErrSessionClosed       = errors.New("booking session is closed")
	ErrInvalidTransition   = errors.New("transition not allowed from the current step")
	ErrSelectionRequired   = errors.New("a selection is required before continuing")
	ErrDateNotSelectable   = errors.New("date is not selectable")
	ErrUnknownSlot         = errors.New("unknown time slot")
	ErrUnknownField        = errors.New("unknown contact field")
	ErrValidationFailed    = errors.New("contact details are invalid")
	ErrSubmissionInFlight  = errors.New("a submission is already in flight")
	ErrBookingNotCompleted = errors.New("booking is not completed")
)

// fieldRules are the validator tags applied to each contact field
var fieldRules = map[string]string{
	entity.FieldName:  "required",
	entity.FieldEmail: "required,booking_email",
}

type BookingFlowUsecase interface {
	Open(ctx context.Context, req *dto.OpenSessionRequest) (*dto.BookingView, error)
	Close(ctx context.Context, sessionID uuid.UUID) error
	GetState(ctx context.Context, sessionID uuid.UUID) (*dto.BookingView, error)
	SelectDate(ctx context.Context, sessionID uuid.UUID, req *dto.SelectDateRequest) (*dto.BookingView, error)
	SelectTime(ctx context.Context, sessionID uuid.UUID, req *dto.SelectTimeRequest) (*dto.BookingView, error)
	Continue(ctx context.Context, sessionID uuid.UUID) (*dto.BookingView, error)
	Back(ctx context.Context, sessionID uuid.UUID) (*dto.BookingView, error)
	ValidateField(ctx context.Context, sessionID uuid.UUID, field string, req *dto.FieldValueRequest) (*dto.BookingView, error)
	EditField(ctx context.Context, sessionID uuid.UUID, field string) (*dto.BookingView, error)
	SubmitDetails(ctx context.Context, sessionID uuid.UUID, req *dto.ContactDetailsRequest) (*dto.BookingView, error)
	Confirm(ctx context.Context, sessionID uuid.UUID) (*dto.BookingView, error)
	ExportInvite(ctx context.Context, sessionID uuid.UUID) (*service.Invite, error)
	SubmissionHistory(ctx context.Context, sessionID uuid.UUID) (*dto.SubmissionListResponse, error)
}

type bookingFlowUsecase struct {
	log         *logrus.Logger
	sessionRepo repository.SessionRepository
	calendar    *service.CalendarService
	validator   *validator.CustomValidator
	submitter   service.Submitter
	invites     *service.InviteService
	ledger      service.LedgerService
	locks       *service.SessionLockService
	resets      *service.ResetScheduler
	metrics     *service.BookingMetrics
	defaultTZ   string
}

func NewBookingFlowUsecase(
	log *logrus.Logger,
	sessionRepo repository.SessionRepository,
	calendar *service.CalendarService,
	validator *validator.CustomValidator,
	submitter service.Submitter,
	invites *service.InviteService,
	ledger service.LedgerService,
	locks *service.SessionLockService,
	resets *service.ResetScheduler,
	metrics *service.BookingMetrics,
	defaultTZ string,
) BookingFlowUsecase {
	if _, err := time.LoadLocation(defaultTZ); err != nil || defaultTZ == "" {
		defaultTZ = "UTC"
	}
	return &bookingFlowUsecase{
		log:         log,
		sessionRepo: sessionRepo,
		calendar:    calendar,
		validator:   validator,
		submitter:   submitter,
		invites:     invites,
		ledger:      ledger,
		locks:       locks,
		resets:      resets,
		metrics:     metrics,
		defaultTZ:   defaultTZ,
	}
}

// Open starts a session at date selection. An existing session is reset
// regardless of where it was left, and any pending close-reset is cancelled.
func (u *bookingFlowUsecase) Open(ctx context.Context, req *dto.OpenSessionRequest) (*dto.BookingView, error) {
	timezone := u.resolveTimezone(req.Timezone)

	var state *entity.BookingState
	if req.SessionID != nil {
		unlock := u.locks.Lock(*req.SessionID)
		defer unlock()

		u.resets.Cancel(*req.SessionID)

		existing, err := u.sessionRepo.FindByID(ctx, *req.SessionID)
		if err != nil {
			u.log.Warnf("Failed to load session %s: %+v", *req.SessionID, err)
			return nil, err
		}
		if existing != nil {
			existing.Reset()
			state = existing
		}
	}

	if state == nil {
		state = entity.NewBookingState(uuid.New(), timezone)
	}
	from := "closed"
	if state.Open {
		from = "reopen"
	}
	state.Open = true
	state.Timezone = timezone

	if err := u.sessionRepo.Save(ctx, state); err != nil {
		u.log.Errorf("Failed to save session %s: %+v", state.SessionID, err)
		return nil, err
	}

	u.metrics.ObserveTransition(from, state.Step.String())
	u.log.Infof("Booking session opened: id=%s, timezone=%s", state.SessionID, timezone)
	return u.view(state, false), nil
}

// Close hides the session and schedules its reset after the settle delay
func (u *bookingFlowUsecase) Close(ctx context.Context, sessionID uuid.UUID) error {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	state, err := u.load(ctx, sessionID)
	if err != nil {
		return err
	}

	state.Open = false
	if err := u.sessionRepo.Save(ctx, state); err != nil {
		u.log.Errorf("Failed to save session %s: %+v", sessionID, err)
		return err
	}

	u.resets.Schedule(sessionID, func() { u.resetClosed(sessionID) })
	u.metrics.ObserveTransition(state.Step.String(), "closed")
	u.log.Infof("Booking session closed: id=%s, step=%s", sessionID, state.Step)
	return nil
}

// resetClosed runs from the reset scheduler. A session reopened in the
// meantime is left alone.
func (u *bookingFlowUsecase) resetClosed(sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	unlock := u.locks.Lock(sessionID)
	defer unlock()

	state, err := u.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		u.log.Warnf("Failed to load session %s for reset: %+v", sessionID, err)
		return
	}
	if state == nil || state.Open {
		return
	}

	state.Reset()
	if err := u.sessionRepo.Save(ctx, state); err != nil {
		u.log.Warnf("Failed to reset session %s: %+v", sessionID, err)
		return
	}
	u.log.Debugf("Booking session reset: id=%s", sessionID)
}

func (u *bookingFlowUsecase) GetState(ctx context.Context, sessionID uuid.UUID) (*dto.BookingView, error) {
	state, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return u.view(state, false), nil
}

func (u *bookingFlowUsecase) SelectDate(ctx context.Context, sessionID uuid.UUID, req *dto.SelectDateRequest) (*dto.BookingView, error) {
	return u.mutate(ctx, sessionID, func(state *entity.BookingState) error {
		if state.Step != entity.StepDateSelect {
			return ErrInvalidTransition
		}

		date, err := entity.ParseCalendarDate(req.Date)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDateNotSelectable, err)
		}
		today := u.calendar.Today(u.location(state))
		if !u.calendar.IsSelectable(today, date) {
			return ErrDateNotSelectable
		}

		state.Date = &date
		return nil
	})
}

func (u *bookingFlowUsecase) SelectTime(ctx context.Context, sessionID uuid.UUID, req *dto.SelectTimeRequest) (*dto.BookingView, error) {
	return u.mutate(ctx, sessionID, func(state *entity.BookingState) error {
		if state.Step != entity.StepTimeSelect {
			return ErrInvalidTransition
		}
		if !entity.IsKnownSlot(req.Time) {
			return ErrUnknownSlot
		}

		slot := req.Time
		state.Time = &slot
		return nil
	})
}

// Continue advances from date or time selection once the step's choice is made
func (u *bookingFlowUsecase) Continue(ctx context.Context, sessionID uuid.UUID) (*dto.BookingView, error) {
	return u.mutate(ctx, sessionID, func(state *entity.BookingState) error {
		switch state.Step {
		case entity.StepDateSelect:
			if state.Date == nil {
				return ErrSelectionRequired
			}
			// The window may have moved on since the date was picked
			today := u.calendar.Today(u.location(state))
			if !u.calendar.IsSelectable(today, *state.Date) {
				state.Date = nil
				return ErrDateNotSelectable
			}
			u.advance(state, entity.StepTimeSelect)
		case entity.StepTimeSelect:
			if state.Time == nil || !entity.IsKnownSlot(*state.Time) {
				return ErrSelectionRequired
			}
			u.advance(state, entity.StepContactForm)
		default:
			return ErrInvalidTransition
		}
		return nil
	})
}

func (u *bookingFlowUsecase) Back(ctx context.Context, sessionID uuid.UUID) (*dto.BookingView, error) {
	return u.mutate(ctx, sessionID, func(state *entity.BookingState) error {
		switch state.Step {
		case entity.StepTimeSelect, entity.StepContactForm, entity.StepReview:
			if state.Submitting {
				return ErrSubmissionInFlight
			}
			u.advance(state, state.Step-1)
			return nil
		default:
			return ErrInvalidTransition
		}
	})
}

// ValidateField is the blur check. Empty values are not validated.
func (u *bookingFlowUsecase) ValidateField(ctx context.Context, sessionID uuid.UUID, field string, req *dto.FieldValueRequest) (*dto.BookingView, error) {
	if !entity.IsContactField(field) {
		return nil, ErrUnknownField
	}

	return u.mutate(ctx, sessionID, func(state *entity.BookingState) error {
		if state.Step != entity.StepContactForm {
			return ErrInvalidTransition
		}

		value := strings.TrimSpace(req.Value)
		if value == "" {
			return nil
		}

		rules, ok := fieldRules[field]
		if !ok {
			state.ClearFieldError(field)
			return nil
		}

		if err := u.validator.ValidateValue(value, rules); err != nil {
			for _, fe := range u.validator.FieldErrors(err, field) {
				state.SetFieldError(toEntityFieldError(fe))
				u.metrics.ObserveValidationFailure(fe.Field, string(fe.Kind))
			}
			return nil
		}
		state.ClearFieldError(field)
		return nil
	})
}

// EditField clears the field's annotation without re-validating
func (u *bookingFlowUsecase) EditField(ctx context.Context, sessionID uuid.UUID, field string) (*dto.BookingView, error) {
	if !entity.IsContactField(field) {
		return nil, ErrUnknownField
	}

	return u.mutate(ctx, sessionID, func(state *entity.BookingState) error {
		if state.Step != entity.StepContactForm {
			return ErrInvalidTransition
		}
		state.ClearFieldError(field)
		return nil
	})
}

// SubmitDetails validates the whole form and advances to review. On failure
// the returned view carries every field error and the shake cue together
// with ErrValidationFailed.
func (u *bookingFlowUsecase) SubmitDetails(ctx context.Context, sessionID uuid.UUID, req *dto.ContactDetailsRequest) (*dto.BookingView, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	state, err := u.loadOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step != entity.StepContactForm {
		return nil, ErrInvalidTransition
	}

	details := entity.ContactDetails{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
	}.Trimmed()

	state.FieldErrors = nil
	if err := u.validator.Validate(&details); err != nil {
		for _, fe := range u.validator.FieldErrors(err, "") {
			state.SetFieldError(toEntityFieldError(fe))
			u.metrics.ObserveValidationFailure(fe.Field, string(fe.Kind))
		}
		// Keep the typed values so the form re-renders them
		state.FormValues = details
		if err := u.sessionRepo.Save(ctx, state); err != nil {
			u.log.Errorf("Failed to save session %s: %+v", sessionID, err)
			return nil, err
		}
		return u.view(state, true), ErrValidationFailed
	}

	state.Details = details
	state.FormValues = details
	u.advance(state, entity.StepReview)
	if err := u.sessionRepo.Save(ctx, state); err != nil {
		u.log.Errorf("Failed to save session %s: %+v", sessionID, err)
		return nil, err
	}
	return u.view(state, false), nil
}

// Confirm submits the reviewed booking through the relay.
//
// Flow:
// 1. Under the session lock: require Review, refuse if already in flight,
// mark in flight and persist
// 2. Outside the lock: one relay attempt
// 3. Deferred, under the lock: clear the in-flight flag, advance on success,
// discard the result if the session was reset meanwhile
func (u *bookingFlowUsecase) Confirm(ctx context.Context, sessionID uuid.UUID) (view *dto.BookingView, err error) {
	snapshot, err := u.beginSubmission(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	submitErr := fmt.Errorf("%w: submission aborted", service.ErrSubmissionFailed)
	defer func() {
		view, err = u.finishSubmission(ctx, snapshot, submitErr, time.Since(start))
	}()

	// The relay call is not cancelled if the caller goes away
	submitErr = u.submitter.Submit(context.WithoutCancel(ctx), snapshot)
	return nil, nil
}

func (u *bookingFlowUsecase) beginSubmission(ctx context.Context, sessionID uuid.UUID) (*entity.BookingState, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	state, err := u.loadOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step != entity.StepReview {
		return nil, ErrInvalidTransition
	}
	if state.Submitting {
		return nil, ErrSubmissionInFlight
	}

	state.Submitting = true
	state.Attempt++
	if err := u.sessionRepo.Save(ctx, state); err != nil {
		u.log.Errorf("Failed to save session %s: %+v", sessionID, err)
		return nil, err
	}

	snapshot := *state
	return &snapshot, nil
}

func (u *bookingFlowUsecase) finishSubmission(ctx context.Context, snapshot *entity.BookingState, submitErr error, elapsed time.Duration) (*dto.BookingView, error) {
	ctx = context.WithoutCancel(ctx)
	sessionID := snapshot.SessionID

	unlock := u.locks.Lock(sessionID)
	defer unlock()

	status := entity.SubmissionStatusSent
	reason := ""
	if submitErr != nil {
		status = entity.SubmissionStatusFailed
		reason = submitErr.Error()
	}
	u.metrics.ObserveSubmission(string(status), elapsed.Seconds())

	state, err := u.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		u.log.Errorf("Failed to reload session %s after submission: %+v", sessionID, err)
		return nil, err
	}

	if state == nil || state.Generation != snapshot.Generation {
		u.log.Warnf("Discarding submission result for session %s: session was reset while in flight (status=%s)", sessionID, status)
		u.record(ctx, snapshot, entity.SubmissionStatusDiscarded, fmt.Sprintf("session reset before result was applied; relay status %s %s", status, reason))
		return nil, ErrSessionClosed
	}

	state.Submitting = false
	if submitErr == nil {
		u.advance(state, entity.StepSuccess)
	}
	if err := u.sessionRepo.Save(ctx, state); err != nil {
		u.log.Errorf("Failed to save session %s: %+v", sessionID, err)
		return nil, err
	}
	u.record(ctx, state, status, reason)

	if submitErr != nil {
		u.log.Warnf("Booking submission failed for session %s: %+v", sessionID, submitErr)
		if !errors.Is(submitErr, service.ErrSubmissionFailed) {
			submitErr = fmt.Errorf("%w: %v", service.ErrSubmissionFailed, submitErr)
		}
		return u.view(state, false), submitErr
	}

	u.log.Infof("Booking confirmed: session=%s, date=%s, time=%s", sessionID, state.Date, *state.Time)
	return u.view(state, false), nil
}

// ExportInvite renders the calendar file of a completed booking
func (u *bookingFlowUsecase) ExportInvite(ctx context.Context, sessionID uuid.UUID) (*service.Invite, error) {
	state, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !state.IsCompleted() {
		return nil, ErrBookingNotCompleted
	}

	invite, err := u.invites.Build(state, u.location(state))
	if err != nil {
		u.log.Warnf("Failed to build invite for session %s: %+v", sessionID, err)
		return nil, err
	}

	u.metrics.ObserveInvite()
	return invite, nil
}

func (u *bookingFlowUsecase) SubmissionHistory(ctx context.Context, sessionID uuid.UUID) (*dto.SubmissionListResponse, error) {
	if _, err := u.load(ctx, sessionID); err != nil {
		return nil, err
	}

	records, err := u.ledger.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return converter.SubmissionsToResponse(records), nil
}

// mutate runs fn on an open session under its lock and saves the result.
// Nothing is saved when fn fails.
func (u *bookingFlowUsecase) mutate(ctx context.Context, sessionID uuid.UUID, fn func(state *entity.BookingState) error) (*dto.BookingView, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	state, err := u.loadOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := fn(state); err != nil {
		if errors.Is(err, ErrDateNotSelectable) && state.Date == nil {
			// Continue clears a date that fell out of the window
			if saveErr := u.sessionRepo.Save(ctx, state); saveErr != nil {
				u.log.Warnf("Failed to save session %s: %+v", sessionID, saveErr)
			}
		}
		return nil, err
	}

	if err := u.sessionRepo.Save(ctx, state); err != nil {
		u.log.Errorf("Failed to save session %s: %+v", sessionID, err)
		return nil, err
	}
	return u.view(state, false), nil
}

func (u *bookingFlowUsecase) load(ctx context.Context, sessionID uuid.UUID) (*entity.BookingState, error) {
	state, err := u.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		u.log.Warnf("Failed to load session %s: %+v", sessionID, err)
		return nil, err
	}
	if state == nil {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

func (u *bookingFlowUsecase) loadOpen(ctx context.Context, sessionID uuid.UUID) (*entity.BookingState, error) {
	state, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !state.Open {
		return nil, ErrSessionClosed
	}
	return state, nil
}

func (u *bookingFlowUsecase) advance(state *entity.BookingState, to entity.Step) {
	u.metrics.ObserveTransition(state.Step.String(), to.String())
	state.Step = to
}

func (u *bookingFlowUsecase) record(ctx context.Context, state *entity.BookingState, status entity.SubmissionStatus, reason string) {
	if err := u.ledger.Record(ctx, state, status, reason); err != nil {
		u.log.Warnf("Failed to record submission for session %s (non-fatal): %+v", state.SessionID, err)
	}
}

func (u *bookingFlowUsecase) view(state *entity.BookingState, shake bool) *dto.BookingView {
	in := converter.ViewInput{Shake: shake}
	switch state.Step {
	case entity.StepDateSelect:
		in.Days = u.calendar.Days(u.calendar.Today(u.location(state)))
	case entity.StepTimeSelect:
		in.Slots = u.calendar.Slots()
	}
	return converter.BookingStateToView(state, in)
}

func (u *bookingFlowUsecase) resolveTimezone(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return u.defaultTZ
	}
	if _, err := time.LoadLocation(name); err != nil {
		u.log.Debugf("Unknown timezone %q, using %s", name, u.defaultTZ)
		return u.defaultTZ
	}
	return name
}

func (u *bookingFlowUsecase) location(state *entity.BookingState) *time.Location {
	loc, err := time.LoadLocation(state.Timezone)
	if err != nil {
		loc, _ = time.LoadLocation(u.defaultTZ)
	}
	if loc == nil {
		return time.UTC
	}
	return loc
}

func toEntityFieldError(fe validator.FieldError) entity.FieldError {
	return entity.FieldError{
		Field:   fe.Field,
		Kind:    entity.ValidationKind(fe.Kind),
		Message: fe.Message,
	}
}
