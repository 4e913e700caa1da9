package testsupport

import (
	"sync"
	"time"

	"mcpanel/internal/reconciler"
)

// ManualScheduler records scheduled tasks and runs them only when a test
// fires them.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*ManualTask
}

// ManualTask is one task recorded by ManualScheduler.
type ManualTask struct {
	Delay time.Duration

	mu       sync.Mutex
	fn       func()
	fired    bool
	canceled bool
}

// Schedule implements reconciler.Scheduler.
func (s *ManualScheduler) Schedule(d time.Duration, fn func()) reconciler.Task {
	task := &ManualTask{Delay: d, fn: fn}
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	return task
}

// Cancel implements reconciler.Task.
func (t *ManualTask) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.canceled {
		return false
	}
	t.canceled = true
	return true
}

// Fire runs the task synchronously unless it was cancelled or already fired.
func (t *ManualTask) Fire() bool {
	t.mu.Lock()
	if t.fired || t.canceled {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	t.mu.Unlock()
	t.fn()
	return true
}

// Live reports whether the task can still fire.
func (t *ManualTask) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.fired && !t.canceled
}

// Scheduled returns every task ever scheduled, in order.
func (s *ManualScheduler) Scheduled() []*ManualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ManualTask(nil), s.tasks...)
}

// Armed returns the tasks that can still fire.
func (s *ManualScheduler) Armed() []*ManualTask {
	var armed []*ManualTask
	for _, task := range s.Scheduled() {
		if task.Live() {
			armed = append(armed, task)
		}
	}
	return armed
}

// Last returns the most recently scheduled task, or nil.
func (s *ManualScheduler) Last() *ManualTask {
	tasks := s.Scheduled()
	if len(tasks) == 0 {
		return nil
	}
	return tasks[len(tasks)-1]
}

// FireNext fires the oldest armed task. It reports false when none is armed.
func (s *ManualScheduler) FireNext() bool {
	armed := s.Armed()
	if len(armed) == 0 {
		return false
	}
	return armed[0].Fire()
}
