package entity

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the outcome of a relay submission attempt
type SubmissionStatus string

const (
	SubmissionStatusSent      SubmissionStatus = "sent"
	SubmissionStatusFailed    SubmissionStatus = "failed"
	SubmissionStatusDiscarded SubmissionStatus = "discarded"
)

// SubmissionRecord is a ledger row for one relay submission attempt.
// SessionID, Generation and Attempt identify the attempt.
type SubmissionRecord struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID     uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:submission_records_attempt_key,priority:1" json:"session_id"`
	Generation    int              `gorm:"not null;uniqueIndex:submission_records_attempt_key,priority:2" json:"generation"`
	Attempt       int              `gorm:"not null;uniqueIndex:submission_records_attempt_key,priority:3" json:"attempt"`
	Name          string           `gorm:"type:varchar(200);not null" json:"name"`
	Email         string           `gorm:"type:varchar(320);not null" json:"email"`
	RequestedDate string           `gorm:"type:varchar(10);not null" json:"requested_date"`
	RequestedTime string           `gorm:"type:varchar(16);not null" json:"requested_time"`
	Timezone      string           `gorm:"type:varchar(64);not null" json:"timezone"`
	Status        SubmissionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	FailureReason string           `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (SubmissionRecord) TableName() string {
	return "submission_records"
}

// IsSent checks if the relay accepted the submission
func (r *SubmissionRecord) IsSent() bool {
	return r.Status == SubmissionStatusSent
}
