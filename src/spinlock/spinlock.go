// Package spinlock implements the disable-interrupt spin primitive
// (spec.md C2) layered on hart.CPU's per-CPU state (C3).
package spinlock

import (
	"fmt"
	"sync/atomic"

	"caller"
	"hart"
)

// DebugCallerTrace gates the optional "last acquirer" breadcrumb
// (spec.md §9's supplemented "lastpcs" debug trail, grounded in
// biscuit's caller package). Off by default so a held lock costs
// nothing beyond the atomic word.
var DebugCallerTrace = false

// SpinLock is a busy-wait mutex that disables interrupts on its CPU
// while held, so that an interrupt handler trying to acquire the same
// lock cannot self-deadlock the hart.
type SpinLock struct {
	name   string
	locked int32 // 0 = free, 1 = held; CAS target
	owner  int32 // hart id of holder, -1 when free

	lastAcquirePCs []uintptr // only populated when DebugCallerTrace is set
}

// New constructs a named, initially-unlocked SpinLock. The name is
// diagnostic only, printed in fatal messages.
func New(name string) *SpinLock {
	return &SpinLock{name: name, owner: -1}
}

// Name returns the lock's diagnostic name.
func (l *SpinLock) Name() string { return l.name }

// Holding reports whether hart h currently holds l.
func (l *SpinLock) Holding(h *hart.CPU) bool {
	return atomic.LoadInt32(&l.locked) == 1 && atomic.LoadInt32(&l.owner) == int32(h.ID)
}

// Acquire takes the lock on behalf of hart h. It disables interrupts
// first (push_off), aborts fatally on self re-entrance, then spins on
// an atomic test-and-set.
func (l *SpinLock) Acquire(h *hart.CPU) {
	PushOff(h)
	if l.Holding(h) {
		fatalf("acquire: hart %d already holds lock %q", h.ID, l.name)
	}
	for !atomic.CompareAndSwapInt32(&l.locked, 0, 1) {
		// busy-wait; a real hart would also execute a pause/wfi hint here.
	}
	atomic.StoreInt32(&l.owner, int32(h.ID))
	if DebugCallerTrace {
		l.lastAcquirePCs = caller.Trace(1, 10)
	}
}

// Release releases the lock held by hart h. It aborts fatally if h is
// not the holder.
func (l *SpinLock) Release(h *hart.CPU) {
	if !l.Holding(h) {
		fatalf("release: hart %d does not hold lock %q", h.ID, l.name)
	}
	atomic.StoreInt32(&l.owner, -1)
	atomic.StoreInt32(&l.locked, 0)
	PopOff(h)
}

// LastAcquireTrace formats the debug caller trail captured at the most
// recent Acquire, when DebugCallerTrace is enabled.
func (l *SpinLock) LastAcquireTrace() string {
	return caller.Format(l.lastAcquirePCs)
}

// PushOff disables interrupts on h, nesting safely: only the outermost
// call remembers whether interrupts were previously enabled, so an
// inner PopOff never re-enables them early.
func PushOff(h *hart.CPU) {
	wasEnabled := h.Intr.Enabled()
	h.Intr.SetEnabled(false)
	if h.Noff == 0 {
		h.Intena = wasEnabled
	}
	h.Noff++
}

// PopOff reverses one PushOff. It aborts fatally if interrupts are
// somehow already enabled (a push_off/pop_off mismatch) or if there is
// no matching PushOff outstanding.
func PopOff(h *hart.CPU) {
	if h.Intr.Enabled() {
		fatalf("pop_off: interrupts enabled on hart %d", h.ID)
	}
	if h.Noff < 1 {
		fatalf("pop_off: no matching push_off on hart %d", h.ID)
	}
	h.Noff--
	if h.Noff == 0 && h.Intena {
		h.Intr.SetEnabled(true)
	}
}

func fatalf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
