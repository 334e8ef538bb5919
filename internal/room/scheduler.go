package room

import (
	"sync"
	"time"
)

// Scheduler runs delayed tasks. Tasks cannot be cancelled individually; Shutdown drops every
// pending task and waits for the running ones.
type Scheduler struct {
	mu     sync.Mutex
	timers map[uint64]*time.Timer
	next   uint64
	closed bool
	wg     sync.WaitGroup
}

// NewScheduler returns an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[uint64]*time.Timer)}
}

// After runs fn once d has elapsed. It reports false if the scheduler is shut down.
func (s *Scheduler) After(d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	id := s.next
	s.next++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, pending := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if !pending {
			return
		}
		defer s.wg.Done()
		fn()
	})
	return true
}

// Pending returns the number of tasks that have not started yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown stops accepting tasks, drops the pending ones and waits for those already running.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		// A timer that already fired is about to run; leave it to remove itself.
		if t.Stop() {
			delete(s.timers, id)
			s.wg.Done()
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}
