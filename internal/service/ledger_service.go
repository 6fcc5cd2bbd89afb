package service

import (
	"context"
	"errors"
	"strings"

	"portfolio-booking/internal/domain/entity"
	"portfolio-booking/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// attemptKeyConstraint is the unique index over (session_id, generation, attempt)
const attemptKeyConstraint = "submission_records_attempt_key"

// LedgerService keeps a record of every relay submission attempt
type LedgerService interface {
	Record(ctx context.Context, state *entity.BookingState, status entity.SubmissionStatus, reason string) error
	History(ctx context.Context, sessionID uuid.UUID) ([]entity.SubmissionRecord, error)
}

type ledgerService struct {
	db             *gorm.DB
	log            *logrus.Logger
	submissionRepo repository.SubmissionRepository
}

func NewLedgerService(db *gorm.DB, log *logrus.Logger, submissionRepo repository.SubmissionRepository) LedgerService {
	return &ledgerService{
		db:             db,
		log:            log,
		submissionRepo: submissionRepo,
	}
}

// Record stores one attempt. An attempt that was already stored is logged
// and ignored.
func (s *ledgerService) Record(ctx context.Context, state *entity.BookingState, status entity.SubmissionStatus, reason string) error {
	record := &entity.SubmissionRecord{
		SessionID:     state.SessionID,
		Generation:    state.Generation,
		Attempt:       state.Attempt,
		Name:          state.Details.Name,
		Email:         state.Details.Email,
		Timezone:      state.Timezone,
		Status:        status,
		FailureReason: reason,
	}
	if state.Date != nil {
		record.RequestedDate = state.Date.String()
	}
	if state.Time != nil {
		record.RequestedTime = *state.Time
	}

	if err := s.submissionRepo.Create(s.db.WithContext(ctx), record); err != nil {
		if isDuplicateKeyError(err, attemptKeyConstraint) {
			s.log.Warnf("Submission attempt already stored: session=%s, generation=%d, attempt=%d", record.SessionID, record.Generation, record.Attempt)
			return nil
		}
		s.log.Warnf("Failed to create submission record: %+v", err)
		return err
	}

	return nil
}

func (s *ledgerService) History(ctx context.Context, sessionID uuid.UUID) ([]entity.SubmissionRecord, error) {
	records, err := s.submissionRepo.FindBySessionID(s.db.WithContext(ctx), sessionID)
	if err != nil {
		s.log.Warnf("Failed to find submission records for session %s: %+v", sessionID, err)
		return nil, err
	}
	return records, nil
}

// noopLedger is used when no database is configured
type noopLedger struct{}

func NewNoopLedger() LedgerService {
	return noopLedger{}
}

func (noopLedger) Record(context.Context, *entity.BookingState, entity.SubmissionStatus, string) error {
	return nil
}

func (noopLedger) History(context.Context, uuid.UUID) ([]entity.SubmissionRecord, error) {
	return []entity.SubmissionRecord{}, nil
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique constraint violation
// containing the specified constraint name
func isDuplicateKeyError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// PostgreSQL error code 23505 = unique_violation
		if pgErr.Code == "23505" && strings.Contains(strings.ToLower(pgErr.ConstraintName), strings.ToLower(constraintName)) {
			return true
		}
	}
	return false
}
