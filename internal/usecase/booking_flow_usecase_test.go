package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"portfolio-booking/config"
	"portfolio-booking/internal/delivery/dto"
	"portfolio-booking/internal/domain/entity"
	domainRepo "portfolio-booking/internal/domain/repository"
	"portfolio-booking/internal/repository"
	"portfolio-booking/internal/service"
	"portfolio-booking/pkg/validator"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedNow is a Thursday; the following Sunday is 2026-10-18
var fixedNow = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

type submitterFunc func(ctx context.Context, state *entity.BookingState) error

func (f submitterFunc) Submit(ctx context.Context, state *entity.BookingState) error {
	return f(ctx, state)
}

type recordedSubmission struct {
	status  entity.SubmissionStatus
	reason  string
	attempt int
}

type recordingLedger struct {
	mu      sync.Mutex
	records []recordedSubmission
}

func (l *recordingLedger) Record(_ context.Context, state *entity.BookingState, status entity.SubmissionStatus, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, recordedSubmission{status: status, reason: reason, attempt: state.Attempt})
	return nil
}

func (l *recordingLedger) History(context.Context, uuid.UUID) ([]entity.SubmissionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entity.SubmissionRecord, len(l.records))
	for i, r := range l.records {
		out[i] = entity.SubmissionRecord{Status: r.status, FailureReason: r.reason, Attempt: r.attempt}
	}
	return out, nil
}

func (l *recordingLedger) statuses() []entity.SubmissionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []entity.SubmissionStatus
	for _, r := range l.records {
		out = append(out, r.status)
	}
	return out
}

type flowFixture struct {
	uc        BookingFlowUsecase
	sessions  domainRepo.SessionRepository
	ledger    *recordingLedger
	resets    *service.ResetScheduler
	submitter service.Submitter
}

func newFlowFixture(t *testing.T, submitter service.Submitter, resetDelay time.Duration) *flowFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	locks := service.NewSessionLockService(log)
	resets := service.NewResetScheduler(resetDelay)
	t.Cleanup(func() {
		resets.Stop()
		locks.Stop()
	})

	ledger := &recordingLedger{}
	sessions := repository.NewSessionRepository(client, time.Hour)
	uc := NewBookingFlowUsecase(
		log,
		sessions,
		service.NewCalendarService(20).WithClock(func() time.Time { return fixedNow }),
		validator.NewValidator(),
		submitter,
		service.NewInviteService(config.CalendarConfig{
			ProductID:  "Portfolio",
			HostDomain: "portfolio.local",
			Summary:    "Consultation Call",
			Location:   "Online Meeting",
			FileName:   "booking.ics",
		}),
		ledger,
		locks,
		resets,
		nil,
		"UTC",
	)

	return &flowFixture{uc: uc, sessions: sessions, ledger: ledger, resets: resets, submitter: submitter}
}

func succeedingSubmitter() service.Submitter {
	return submitterFunc(func(context.Context, *entity.BookingState) error { return nil })
}

// toReview drives a fresh session to the review step
func toReview(t *testing.T, uc BookingFlowUsecase) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	view, err := uc.Open(ctx, &dto.OpenSessionRequest{Timezone: "Europe/Berlin"})
	require.NoError(t, err)
	id := view.SessionID

	_, err = uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: "2026-10-20"})
	require.NoError(t, err)
	_, err = uc.Continue(ctx, id)
	require.NoError(t, err)
	_, err = uc.SelectTime(ctx, id, &dto.SelectTimeRequest{Time: "02:00 PM"})
	require.NoError(t, err)
	_, err = uc.Continue(ctx, id)
	require.NoError(t, err)
	view, err = uc.SubmitDetails(ctx, id, &dto.ContactDetailsRequest{Name: "Ada Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	require.Equal(t, int(entity.StepReview), view.Step)

	return id
}

func TestBookingFlow_OpenStartsAtDateSelect(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)

	view, err := f.uc.Open(context.Background(), &dto.OpenSessionRequest{Timezone: "Mars/Olympus"})
	require.NoError(t, err)

	assert.Equal(t, int(entity.StepDateSelect), view.Step)
	assert.True(t, view.Open)
	assert.Equal(t, "UTC", view.Timezone)
	require.NotNil(t, view.Date)
	require.Len(t, view.Date.Days, 20)
	assert.Equal(t, "2026-10-15", view.Date.Days[0].Date)
	assert.True(t, view.Date.Days[0].Today)
	assert.False(t, view.Date.Days[3].Selectable)
	assert.False(t, view.Date.CanContinue)
}

func TestBookingFlow_SelectDateRejectsSundayAndOutOfWindow(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
	ctx := context.Background()

	view, err := f.uc.Open(ctx, &dto.OpenSessionRequest{})
	require.NoError(t, err)
	id := view.SessionID

	_, err = f.uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: "2026-10-18"})
	assert.ErrorIs(t, err, ErrDateNotSelectable)
	_, err = f.uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: "2026-11-04"})
	assert.ErrorIs(t, err, ErrDateNotSelectable)
	_, err = f.uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: "2026-10-14"})
	assert.ErrorIs(t, err, ErrDateNotSelectable)

	view, err = f.uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: "2026-11-03"})
	require.NoError(t, err)
	assert.True(t, view.Date.CanContinue)
}

func TestBookingFlow_ReselectKeepsSingleSelection(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
	ctx := context.Background()

	view, err := f.uc.Open(ctx, &dto.OpenSessionRequest{})
	require.NoError(t, err)
	id := view.SessionID

	for _, d := range []string{"2026-10-16", "2026-10-20", "2026-10-19"} {
		view, err = f.uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: d})
		require.NoError(t, err)

		var selected []string
		for _, day := range view.Date.Days {
			if day.Selected {
				selected = append(selected, day.Date)
			}
		}
		assert.Equal(t, []string{d}, selected)
	}

	_, err = f.uc.Continue(ctx, id)
	require.NoError(t, err)
	for _, slot := range []string{"09:00 AM", "03:30 PM"} {
		view, err = f.uc.SelectTime(ctx, id, &dto.SelectTimeRequest{Time: slot})
		require.NoError(t, err)

		var selected []string
		for _, s := range view.Time.Slots {
			if s.Selected {
				selected = append(selected, s.Time)
			}
		}
		assert.Equal(t, []string{slot}, selected)
	}
}

func TestBookingFlow_ContinueRequiresSelection(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
	ctx := context.Background()

	view, err := f.uc.Open(ctx, &dto.OpenSessionRequest{})
	require.NoError(t, err)
	id := view.SessionID

	_, err = f.uc.Continue(ctx, id)
	assert.ErrorIs(t, err, ErrSelectionRequired)
	_, err = f.uc.Back(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: "2026-10-20"})
	require.NoError(t, err)
	view, err = f.uc.Continue(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int(entity.StepTimeSelect), view.Step)
	assert.Equal(t, "Tue, Oct 20", view.Time.DateHeading)

	_, err = f.uc.Continue(ctx, id)
	assert.ErrorIs(t, err, ErrSelectionRequired)
	_, err = f.uc.SelectTime(ctx, id, &dto.SelectTimeRequest{Time: "05:00 PM"})
	assert.ErrorIs(t, err, ErrUnknownSlot)
	_, err = f.uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: "2026-10-21"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	view, err = f.uc.Back(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int(entity.StepDateSelect), view.Step)
	assert.True(t, view.Date.CanContinue, "date survives going back")
}

func TestBookingFlow_SubmitDetailsValidation(t *testing.T) {
	tests := []struct {
		name       string
		req        dto.ContactDetailsRequest
		wantErrors map[string]string
	}{
		{
			name:       "missing name",
			req:        dto.ContactDetailsRequest{Name: "", Email: "a@b.com"},
			wantErrors: map[string]string{entity.FieldName: "MissingField"},
		},
		{
			name:       "malformed email",
			req:        dto.ContactDetailsRequest{Name: "A", Email: "not-an-email"},
			wantErrors: map[string]string{entity.FieldEmail: "InvalidFormat"},
		},
		{
			name:       "whitespace only",
			req:        dto.ContactDetailsRequest{Name: "   ", Email: "  "},
			wantErrors: map[string]string{entity.FieldName: "MissingField", entity.FieldEmail: "MissingField"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
			ctx := context.Background()
			id := toContactForm(t, f.uc)

			view, err := f.uc.SubmitDetails(ctx, id, &tt.req)
			require.ErrorIs(t, err, ErrValidationFailed)
			require.NotNil(t, view)
			assert.Equal(t, int(entity.StepContactForm), view.Step)
			assert.True(t, view.Form.Shake)

			got := map[string]string{}
			for _, fe := range view.Form.FieldErrors {
				got[fe.Field] = fe.Kind
			}
			assert.Equal(t, tt.wantErrors, got)
			assert.Equal(t, view.Form.FieldErrors[0].Field, view.Form.FocusField)

			// rejected input is kept for the form only
			state, err := f.sessions.FindByID(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, state)
			assert.Equal(t, entity.ContactDetails{}, state.Details)
			assert.Equal(t, entity.ContactDetails{Name: tt.req.Name, Email: tt.req.Email}.Trimmed(), state.FormValues)

			view, err = f.uc.GetState(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, int(entity.StepContactForm), view.Step)
			assert.False(t, view.Form.Shake)
			assert.Equal(t, state.FormValues.Email, view.Form.Values.Email)
		})
	}
}

func TestBookingFlow_SubmitDetailsTrimsAndAdvances(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
	ctx := context.Background()
	id := toContactForm(t, f.uc)

	view, err := f.uc.SubmitDetails(ctx, id, &dto.ContactDetailsRequest{
		Name:  "  Ada Lovelace ",
		Email: " ada@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, view.Review)
	assert.Equal(t, "Ada Lovelace", view.Review.Name)
	assert.Equal(t, "ada@example.com", view.Review.Email)
	assert.Equal(t, "N/A", view.Review.Phone)
	assert.Equal(t, "N/A", view.Review.Company)
	assert.Equal(t, "Tuesday, October 20, 2026", view.Review.Date)
	assert.True(t, view.Review.ConfirmEnabled)

	view, err = f.uc.Back(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", view.Form.Values.Name, "details survive going back")
}

func TestBookingFlow_BlurValidationAndEdit(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
	ctx := context.Background()
	id := toContactForm(t, f.uc)

	view, err := f.uc.ValidateField(ctx, id, entity.FieldEmail, &dto.FieldValueRequest{Value: "nope"})
	require.NoError(t, err)
	require.Len(t, view.Form.FieldErrors, 1)
	assert.Equal(t, "InvalidFormat", view.Form.FieldErrors[0].Kind)

	// empty values are left alone on blur
	view, err = f.uc.ValidateField(ctx, id, entity.FieldName, &dto.FieldValueRequest{Value: "  "})
	require.NoError(t, err)
	assert.Len(t, view.Form.FieldErrors, 1)

	view, err = f.uc.EditField(ctx, id, entity.FieldEmail)
	require.NoError(t, err)
	assert.Empty(t, view.Form.FieldErrors)

	view, err = f.uc.ValidateField(ctx, id, entity.FieldEmail, &dto.FieldValueRequest{Value: "nope"})
	require.NoError(t, err)
	require.Len(t, view.Form.FieldErrors, 1)
	view, err = f.uc.ValidateField(ctx, id, entity.FieldEmail, &dto.FieldValueRequest{Value: "a@b.co"})
	require.NoError(t, err)
	assert.Empty(t, view.Form.FieldErrors)

	_, err = f.uc.ValidateField(ctx, id, "fax", &dto.FieldValueRequest{Value: "x"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestBookingFlow_ConfirmSuccess(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
	ctx := context.Background()
	id := toReview(t, f.uc)

	_, err := f.uc.ExportInvite(ctx, id)
	assert.ErrorIs(t, err, ErrBookingNotCompleted)

	view, err := f.uc.Confirm(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int(entity.StepSuccess), view.Step)
	require.NotNil(t, view.Success)
	assert.InDelta(t, 1.0, view.Progress, 1e-9)
	assert.Equal(t, []entity.SubmissionStatus{entity.SubmissionStatusSent}, f.ledger.statuses())

	_, err = f.uc.Back(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.uc.Confirm(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	invite, err := f.uc.ExportInvite(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, invite.Body, "DTSTART:20261020T120000Z\r\n")
	assert.Contains(t, invite.Body, "DTEND:20261020T123000Z\r\n")
	assert.Equal(t, "booking.ics", invite.FileName)

	again, err := f.uc.ExportInvite(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, invite.UID, again.UID)

	history, err := f.uc.SubmissionHistory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, history.Total)
}

func TestBookingFlow_ConfirmFailureStaysOnReview(t *testing.T) {
	calls := 0
	failing := submitterFunc(func(context.Context, *entity.BookingState) error {
		calls++
		return errors.New("relay reported failure")
	})
	f := newFlowFixture(t, failing, time.Millisecond)
	ctx := context.Background()
	id := toReview(t, f.uc)

	view, err := f.uc.Confirm(ctx, id)
	require.ErrorIs(t, err, service.ErrSubmissionFailed)
	require.NotNil(t, view)
	assert.Equal(t, int(entity.StepReview), view.Step)
	assert.True(t, view.Review.ConfirmEnabled)
	assert.Equal(t, "Confirm Booking", view.Review.ConfirmLabel)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []entity.SubmissionStatus{entity.SubmissionStatusFailed}, f.ledger.statuses())

	// retry is allowed once the previous attempt finished
	_, err = f.uc.Confirm(ctx, id)
	require.ErrorIs(t, err, service.ErrSubmissionFailed)
	assert.Equal(t, 2, calls)

	// each try is its own ledger attempt
	history, err := f.uc.SubmissionHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history.Submissions, 2)
	assert.Equal(t, 1, history.Submissions[0].Attempt)
	assert.Equal(t, 2, history.Submissions[1].Attempt)
}

func TestBookingFlow_ConfirmRejectedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blocking := submitterFunc(func(context.Context, *entity.BookingState) error {
		entered <- struct{}{}
		<-release
		return nil
	})
	f := newFlowFixture(t, blocking, time.Millisecond)
	ctx := context.Background()
	id := toReview(t, f.uc)

	done := make(chan error, 1)
	go func() {
		_, err := f.uc.Confirm(ctx, id)
		done <- err
	}()
	<-entered

	view, err := f.uc.GetState(ctx, id)
	require.NoError(t, err)
	assert.False(t, view.Review.ConfirmEnabled)
	assert.Equal(t, "Confirming...", view.Review.ConfirmLabel)

	_, err = f.uc.Confirm(ctx, id)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = f.uc.Back(ctx, id)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-done)

	view, err = f.uc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int(entity.StepSuccess), view.Step)
}

func TestBookingFlow_CloseAndReopenAlwaysStartsEmpty(t *testing.T) {
	ctx := context.Background()

	// reopened before the reset fires, and after it fired
	for _, delay := range []time.Duration{time.Hour, time.Millisecond} {
		f := newFlowFixture(t, succeedingSubmitter(), delay)
		id := toReview(t, f.uc)

		require.NoError(t, f.uc.Close(ctx, id))
		assert.True(t, f.resets.Pending(id) || delay == time.Millisecond)

		_, err := f.uc.Continue(ctx, id)
		assert.ErrorIs(t, err, ErrSessionClosed)

		if delay == time.Millisecond {
			require.Eventually(t, func() bool { return !f.resets.Pending(id) }, time.Second, 5*time.Millisecond)
		}

		view, err := f.uc.Open(ctx, &dto.OpenSessionRequest{SessionID: &id})
		require.NoError(t, err)
		assert.Equal(t, id, view.SessionID)
		assert.Equal(t, int(entity.StepDateSelect), view.Step)
		assert.False(t, view.Date.CanContinue)
		assert.False(t, f.resets.Pending(id))

		_, err = f.uc.Continue(ctx, id)
		assert.ErrorIs(t, err, ErrSelectionRequired)
	}
}

func TestBookingFlow_ResetAfterCloseClearsState(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
	ctx := context.Background()
	id := toReview(t, f.uc)

	require.NoError(t, f.uc.Close(ctx, id))
	require.Eventually(t, func() bool {
		view, err := f.uc.GetState(ctx, id)
		return err == nil && view.Step == int(entity.StepDateSelect)
	}, time.Second, 5*time.Millisecond)

	view, err := f.uc.GetState(ctx, id)
	require.NoError(t, err)
	assert.False(t, view.Open)
	assert.False(t, view.Date.CanContinue)
}

func TestBookingFlow_LateResultAfterCloseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blocking := submitterFunc(func(context.Context, *entity.BookingState) error {
		entered <- struct{}{}
		<-release
		return nil
	})
	f := newFlowFixture(t, blocking, time.Millisecond)
	ctx := context.Background()
	id := toReview(t, f.uc)

	done := make(chan error, 1)
	go func() {
		_, err := f.uc.Confirm(ctx, id)
		done <- err
	}()
	<-entered

	require.NoError(t, f.uc.Close(ctx, id))
	_, err := f.uc.Open(ctx, &dto.OpenSessionRequest{SessionID: &id})
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-done, ErrSessionClosed)

	view, err := f.uc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int(entity.StepDateSelect), view.Step)
	assert.True(t, view.Open)
	assert.Equal(t, []entity.SubmissionStatus{entity.SubmissionStatusDiscarded}, f.ledger.statuses())
}

func TestBookingFlow_UnknownSession(t *testing.T) {
	f := newFlowFixture(t, succeedingSubmitter(), time.Millisecond)
	ctx := context.Background()

	_, err := f.uc.GetState(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.uc.Close(ctx, uuid.New()), ErrSessionNotFound)

	// an unknown id on open starts a fresh session
	id := uuid.New()
	view, err := f.uc.Open(ctx, &dto.OpenSessionRequest{SessionID: &id})
	require.NoError(t, err)
	assert.NotEqual(t, id, view.SessionID)
}

func toContactForm(t *testing.T, uc BookingFlowUsecase) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	view, err := uc.Open(ctx, &dto.OpenSessionRequest{})
	require.NoError(t, err)
	id := view.SessionID

	_, err = uc.SelectDate(ctx, id, &dto.SelectDateRequest{Date: "2026-10-20"})
	require.NoError(t, err)
	_, err = uc.Continue(ctx, id)
	require.NoError(t, err)
	_, err = uc.SelectTime(ctx, id, &dto.SelectTimeRequest{Time: "02:00 PM"})
	require.NoError(t, err)
	view, err = uc.Continue(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int(entity.StepContactForm), view.Step)
	return id
}
