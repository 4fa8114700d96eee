package scheduler

import (
	"sync"
	"time"
)

// ContinuationScheduler is the delayed re-invocation primitive: run a
// job once after a delay, or drop every pending continuation. Batches
// resume through it instead of blocking in-process.
type ContinuationScheduler interface {
	ScheduleAfter(d time.Duration, job func())
	CancelAll()
}

// TimerScheduler backs continuations with in-process timers. Any
// cron-like facility satisfying the interface works in its place.
type TimerScheduler struct {
	mu     sync.Mutex
	timers []*time.Timer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

func (s *TimerScheduler) ScheduleAfter(d time.Duration, job func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append(s.timers, time.AfterFunc(d, job))
}

func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}
