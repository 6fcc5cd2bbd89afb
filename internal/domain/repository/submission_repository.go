package repository

import (
	"portfolio-booking/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionRepository interface {
	Create(db *gorm.DB, record *entity.SubmissionRecord) error
	FindBySessionID(db *gorm.DB, sessionID uuid.UUID) ([]entity.SubmissionRecord, error)
}
