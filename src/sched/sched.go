// Package sched declares the scheduler collaborator interfaces
// spec.md §6 lists as consumed from outside the hard core: sleep/
// wakeup/yield, process identity and the killed flag, and process
// termination. The hard core packages (sleeplock, trap, wal, pipe)
// depend only on these interfaces; package schedref provides one
// reference implementation so the core is testable standalone.
package sched

import "sync"

// WaitChan is the sleep/wakeup channel discriminator: any stable
// in-kernel address works, so callers typically pass the address of
// the object being waited on (spec.md §9 recommends a dedicated
// opaque token over a raw pointer to avoid accidental aliasing).
type WaitChan = *byte

// ProcRef is an opaque handle to "the calling process". The hard core
// never dereferences it — only compares it, forwards it to Scheduler
// methods, or stores it (e.g. as a sleep lock's holder).
type ProcRef any

// Scheduler is the set of operations the hard core needs from the
// (out-of-scope) process scheduler.
type Scheduler interface {
	// Sleep atomically releases l and parks the calling process on wc,
	// re-acquiring l before returning. No wakeup between the caller's
	// last re-check and the park is ever lost.
	Sleep(wc WaitChan, l sync.Locker)
	// Wakeup marks every process parked on wc runnable.
	Wakeup(wc WaitChan)
	// Yield voluntarily reschedules the calling process.
	Yield()
	// Myproc returns a handle to the calling process.
	Myproc() ProcRef
	// Killed reports whether p has been marked for termination.
	Killed(p ProcRef) bool
	// SetKilled marks p for termination at its next opportunity.
	SetKilled(p ProcRef)
	// Exit terminates the calling process with the given status and
	// does not return.
	Exit(status int)
}
