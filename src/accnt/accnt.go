// Package accnt accumulates per-process CPU-time accounting, charged
// by the trap pipeline's UserTrap and read back through Snapshot.
package accnt

import "sync"
import "sync/atomic"
import "time"

// Accnt_t accumulates per-process accounting information.
//
// Both Userns and Sysns store runtime in nanoseconds. The embedded
// mutex allows callers to take a consistent snapshot of the fields
// when exporting usage statistics.
type Accnt_t struct {
	// Nanoseconds of user time consumed.
	Userns int64
	// Nanoseconds of system time consumed.
	Sysns int64
	// Protects concurrent access when reporting usage data.
	sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int) {
	a.Lock()
	defer a.Unlock()
	atomic.AddInt64(&a.Userns, int64(delta))
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int) {
	a.Lock()
	defer a.Unlock()
	atomic.AddInt64(&a.Sysns, int64(delta))
}

// Now returns the current time in nanoseconds.
func (a *Accnt_t) Now() int {
	return int(time.Now().UnixNano())
}

// Io_time removes time spent waiting for I/O from system time.
func (a *Accnt_t) Io_time(since int) {
	d := a.Now() - since
	a.Systadd(-d)
}

// Sleep_time removes time spent sleeping from system time.
func (a *Accnt_t) Sleep_time(since int) {
	d := a.Now() - since
	a.Systadd(-d)
}

// Snapshot returns a consistent (Userns, Sysns) pair.
func (a *Accnt_t) Snapshot() (int64, int64) {
	a.Lock()
	defer a.Unlock()
	return atomic.LoadInt64(&a.Userns), atomic.LoadInt64(&a.Sysns)
}
