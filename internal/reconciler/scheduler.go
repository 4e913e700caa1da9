package reconciler

import "time"

// Task is a handle to one scheduled status check.
type Task interface {
	// Cancel stops the task. It reports false when the task already ran or
	// was already cancelled.
	Cancel() bool
}

// Scheduler arms one-shot tasks.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Task
}

// SystemScheduler schedules tasks on the runtime timer.
type SystemScheduler struct{}

func (SystemScheduler) Schedule(d time.Duration, fn func()) Task {
	return timerTask{timer: time.AfterFunc(d, fn)}
}

type timerTask struct {
	timer *time.Timer
}

func (t timerTask) Cancel() bool {
	return t.timer.Stop()
}
