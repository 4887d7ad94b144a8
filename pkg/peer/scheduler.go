package peer

import "time"

type Timer interface {
	Stop() bool
}

// Scheduler runs deferred calls, e.g. reconnect attempts.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clock struct{}

// Clock is the wall-clock scheduler.
var Clock Scheduler = clock{}

func (clock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
