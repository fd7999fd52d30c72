package observability

import (
	"sync"
	"time"
)

// Status tracks what a session is doing for front ends that poll it.
type Status struct {
	mu        sync.RWMutex
	state     string
	task      string
	updatedAt time.Time
}

func NewStatus() *Status {
	return &Status{state: "Idle", updatedAt: time.Now()}
}

// Set updates the current state and task.
func (s *Status) Set(state, task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.task = task
	s.updatedAt = time.Now()
}

// Get retrieves a copy of the current status.
func (s *Status) Get() (string, string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.task, s.updatedAt
}
