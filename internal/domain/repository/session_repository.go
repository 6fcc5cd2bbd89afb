package repository

import (
	"context"

	"portfolio-booking/internal/domain/entity"

	"github.com/google/uuid"
)

// SessionRepository stores the BookingState of open modal sessions.
// FindByID returns nil, nil when the session does not exist or expired.
type SessionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.BookingState, error)
	Save(ctx context.Context, state *entity.BookingState) error
}
