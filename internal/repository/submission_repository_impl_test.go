package repository

import (
	"regexp"
	"testing"

	"portfolio-booking/internal/domain/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestSubmissionRepository_CreateAssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubmissionRepository()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "submission_records"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &entity.SubmissionRecord{
		SessionID:     uuid.New(),
		Name:          "Ada",
		Email:         "ada@example.com",
		RequestedDate: "2026-10-20",
		RequestedTime: "02:00 PM",
		Timezone:      "UTC",
		Status:        entity.SubmissionStatusSent,
	}
	require.NoError(t, repo.Create(db, record))

	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.True(t, record.IsSent())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_FindBySessionID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubmissionRepository()
	sessionID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "session_id", "name", "email", "requested_date", "requested_time", "timezone", "status", "failure_reason"}).
		AddRow(uuid.New().String(), sessionID.String(), "Ada", "ada@example.com", "2026-10-20", "02:00 PM", "UTC", "failed", "relay reported failure").
		AddRow(uuid.New().String(), sessionID.String(), "Ada", "ada@example.com", "2026-10-20", "02:00 PM", "UTC", "sent", "")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "submission_records" WHERE session_id = $1 ORDER BY created_at DESC`)).
		WithArgs(sessionID.String()).
		WillReturnRows(rows)

	records, err := repo.FindBySessionID(db, sessionID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entity.SubmissionStatusFailed, records[0].Status)
	assert.Equal(t, "relay reported failure", records[0].FailureReason)
	assert.True(t, records[1].IsSent())
	assert.NoError(t, mock.ExpectationsWereMet())
}
