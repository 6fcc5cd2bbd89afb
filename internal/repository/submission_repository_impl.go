package repository

import (
	"portfolio-booking/internal/domain/entity"
	domainRepo "portfolio-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type submissionRepository struct{}

func NewSubmissionRepository() domainRepo.SubmissionRepository {
	return &submissionRepository{}
}

func (r *submissionRepository) Create(db *gorm.DB, record *entity.SubmissionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return db.Create(record).Error
}

func (r *submissionRepository) FindBySessionID(db *gorm.DB, sessionID uuid.UUID) ([]entity.SubmissionRecord, error) {
	var records []entity.SubmissionRecord
	err := db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
