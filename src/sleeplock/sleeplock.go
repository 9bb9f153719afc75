// Package sleeplock implements the long-held lock (spec.md C4): unlike
// a SpinLock, acquiring a contended SleepLock parks the caller instead
// of busy-waiting, so it may be held across operations that block (disk
// I/O, page faults). It is built directly on spinlock (C2) for the
// short critical section that guards its own state, and on a
// sched.Scheduler for the actual park/wake.
package sleeplock

import (
	"fmt"
	"unsafe"

	"hart"
	"sched"
	"spinlock"
)

// SleepLock is xv6's sleeplock: an inner SpinLock protects a boolean
// "locked" flag and the holder's identity; a waiter parks on the
// SleepLock's own address and is re-woken on every release, re-checking
// the flag each time (spurious wakeups are expected and harmless).
type SleepLock struct {
	name   string
	inner  *spinlock.SpinLock
	locked bool
	holder sched.ProcRef
}

// New constructs a named, initially-unlocked SleepLock.
func New(name string) *SleepLock {
	return &SleepLock{name: name, inner: spinlock.New(name + ".inner")}
}

// Name returns the lock's diagnostic name.
func (l *SleepLock) Name() string { return l.name }

// chan_ returns the wait-channel token for this lock: its own address,
// stable for the lock's lifetime and distinct from every other lock's.
func (l *SleepLock) chan_() sched.WaitChan {
	return (*byte)(unsafe.Pointer(l))
}

// Acquire blocks until the lock is free, then takes it on behalf of
// proc p (an opaque handle supplied by the scheduler). h is the calling
// hart, needed only to drive the inner SpinLock.
func (l *SleepLock) Acquire(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	l.inner.Acquire(h)
	for l.locked {
		// Sleep atomically releases l.inner and reacquires it before
		// returning, so no wakeup fired between this check and the park
		// is ever lost.
		sc.Sleep(l.chan_(), spinlockLocker{l.inner, h})
	}
	l.locked = true
	l.holder = p
	l.inner.Release(h)
}

// Release releases the lock, waking every parked waiter. It aborts
// fatally if p is not the current holder.
func (l *SleepLock) Release(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	l.inner.Acquire(h)
	if !l.locked || l.holder != p {
		l.inner.Release(h)
		panic(fmt.Sprintf("sleeplock: release of %q by non-holder", l.name))
	}
	l.locked = false
	l.holder = nil
	l.inner.Release(h)
	sc.Wakeup(l.chan_())
}

// Holding reports whether p currently holds l.
func (l *SleepLock) Holding(h *hart.CPU, p sched.ProcRef) bool {
	l.inner.Acquire(h)
	defer l.inner.Release(h)
	return l.locked && l.holder == p
}

// spinlockLocker adapts a (spinlock.SpinLock, hart.CPU) pair to
// sync.Locker so it can be handed to sched.Scheduler.Sleep, which knows
// nothing about harts.
type spinlockLocker struct {
	l *spinlock.SpinLock
	h *hart.CPU
}

func (s spinlockLocker) Lock()   { s.l.Acquire(s.h) }
func (s spinlockLocker) Unlock() { s.l.Release(s.h) }
