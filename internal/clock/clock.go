// Package clock provides the process-lifetime monotonic time base used for
// every timestamp hermit puts on the wire.
//
// Timestamps are nanoseconds elapsed since the Clock's epoch. They carry no
// absolute meaning and are only ever subtracted from each other, either by
// the server (processing time) or by a client comparing two values stamped
// by the same process.
package clock

import "time"

// Clock is an epoch-anchored monotonic nanosecond source.
//
// A Clock is created once at startup and shared by pointer with every
// component that stamps time. The zero value is not usable; call New.
type Clock struct {
	epoch time.Time
}

// New captures the epoch. The returned Clock is safe for concurrent use.
func New() *Clock {
	return &Clock{epoch: time.Now()}
}

// NowNs returns the nanoseconds elapsed since the epoch.
//
// The value is read from the monotonic clock reading carried by the epoch,
// so wall-clock steps never move it backwards. An int64 of nanoseconds
// covers roughly 292 years of uptime.
func (c *Clock) NowNs() int64 {
	return int64(time.Since(c.epoch))
}

// Epoch returns the instant all timestamps are relative to.
func (c *Clock) Epoch() time.Time {
	return c.epoch
}
