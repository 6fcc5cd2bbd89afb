package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"portfolio-booking/internal/domain/entity"
	domainRepo "portfolio-booking/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessionKeyPrefix namespaces booking sessions in Redis
const RedisSessionKeyPrefix = "booking:session:"

type sessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository stores each session as a JSON blob whose TTL slides
// forward on every save.
func NewSessionRepository(client *redis.Client, ttl time.Duration) domainRepo.SessionRepository {
	return &sessionRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.BookingState, error) {
	val, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var state entity.BookingState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &state, nil
}

func (r *sessionRepository) Save(ctx context.Context, state *entity.BookingState) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.SessionID, err)
	}
	if err := r.client.Set(ctx, sessionKey(state.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", state.SessionID, err)
	}
	return nil
}

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", RedisSessionKeyPrefix, id)
}
