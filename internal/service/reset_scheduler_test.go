package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResetScheduler_RunsAfterDelay(t *testing.T) {
	s := NewResetScheduler(10 * time.Millisecond)
	id := uuid.New()
	var ran atomic.Bool

	s.Schedule(id, func() { ran.Store(true) })
	assert.True(t, s.Pending(id))

	assert.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)
	assert.False(t, s.Pending(id))
}

func TestResetScheduler_CancelPreventsRun(t *testing.T) {
	s := NewResetScheduler(20 * time.Millisecond)
	id := uuid.New()
	var ran atomic.Bool

	s.Schedule(id, func() { ran.Store(true) })
	assert.True(t, s.Cancel(id))
	assert.False(t, s.Cancel(id))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestResetScheduler_RescheduleReplacesPending(t *testing.T) {
	s := NewResetScheduler(10 * time.Millisecond)
	id := uuid.New()
	var count atomic.Int32

	s.Schedule(id, func() { count.Add(1) })
	s.Schedule(id, func() { count.Add(10) })

	assert.Eventually(t, func() bool { return count.Load() == 10 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(10), count.Load())
}

func TestResetScheduler_StopCancelsEverything(t *testing.T) {
	s := NewResetScheduler(20 * time.Millisecond)
	var ran atomic.Bool

	s.Schedule(uuid.New(), func() { ran.Store(true) })
	s.Stop()
	s.Schedule(uuid.New(), func() { ran.Store(true) })

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}
