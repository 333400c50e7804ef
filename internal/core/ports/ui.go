package ports

import "time"

// Notifier surfaces outcomes to the operator.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Scheduler runs f once after d. Scheduled work cannot be cancelled.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}
