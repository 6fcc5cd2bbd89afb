package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ResetScheduler runs one delayed task per session and keeps its handle so
// the task can be cancelled when the session is reopened or the process
// shuts down.
type ResetScheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[uuid.UUID]*time.Timer
	stopped bool
}

func NewResetScheduler(delay time.Duration) *ResetScheduler {
	return &ResetScheduler{
		delay:   delay,
		pending: make(map[uuid.UUID]*time.Timer),
	}
}

// Schedule arranges for fn to run after the configured delay, replacing any
// task already pending for the session.
func (s *ResetScheduler) Schedule(sessionID uuid.UUID, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if t, ok := s.pending[sessionID]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		current, ok := s.pending[sessionID]
		if !ok || current != timer {
			s.mu.Unlock()
			return
		}
		delete(s.pending, sessionID)
		s.mu.Unlock()

		fn()
	})
	s.pending[sessionID] = timer
}

// Cancel stops the session's pending task. It reports whether one was pending.
func (s *ResetScheduler) Cancel(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.pending[sessionID]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.pending, sessionID)
	return true
}

// Pending reports whether a task is waiting for the session
func (s *ResetScheduler) Pending(sessionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[sessionID]
	return ok
}

// Stop cancels every pending task and rejects new ones
func (s *ResetScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}
