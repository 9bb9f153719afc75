// Package schedref is a reference implementation of sched.Scheduler
// good enough to drive the hard core's tests off real hardware and off
// a real process scheduler. It is not part of the hard core itself —
// spec.md §6 lists sleep/wakeup/yield/killed/exit as collaborators the
// core only ever consumes through the sched.Scheduler interface.
//
// Sleep/Wakeup follow xv6's sleep()/wakeup() directly: a waiter
// registers itself on a channel token before releasing its caller-held
// lock, so a concurrent Wakeup can never race ahead of the park and be
// lost.
package schedref

import (
	"runtime"
	"sync"

	"sched"
)

// Proc is schedref's minimal process handle, implementing sched.ProcRef.
type Proc struct {
	mu     sync.Mutex
	pid    int
	killed bool
}

// NewProc constructs an unkilled process handle with the given pid.
func NewProc(pid int) *Proc { return &Proc{pid: pid} }

// Pid returns the process's id.
func (p *Proc) Pid() int { return p.pid }

// Scheduler is a goroutine-based stand-in for the out-of-scope process
// scheduler: Sleep/Wakeup use per-channel waiter lists instead of a
// run queue, and Yield is a no-op scheduling hint (runtime.Gosched).
type Scheduler struct {
	mu      sync.Mutex
	waiters map[sched.WaitChan][]chan struct{}

	curMu sync.Mutex
	cur   map[uint64]*Proc
}

// New constructs an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		waiters: make(map[sched.WaitChan][]chan struct{}),
		cur:     make(map[uint64]*Proc),
	}
}

// Sleep implements sched.Scheduler. It registers a wake channel for wc
// while still holding l's caller-visible lock (via the mutex guarding
// s.waiters), then releases l, parks, and reacquires l before
// returning — matching xv6's "no lost wakeup" contract.
func (s *Scheduler) Sleep(wc sched.WaitChan, l sync.Locker) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.waiters[wc] = append(s.waiters[wc], ch)
	s.mu.Unlock()

	l.Unlock()
	<-ch
	l.Lock()
}

// Wakeup implements sched.Scheduler: every process currently parked on
// wc is made runnable. Wakeups that race a not-yet-registered sleeper
// are fine to miss — that sleeper hasn't committed to sleeping yet.
func (s *Scheduler) Wakeup(wc sched.WaitChan) {
	s.mu.Lock()
	chans := s.waiters[wc]
	delete(s.waiters, wc)
	s.mu.Unlock()

	for _, ch := range chans {
		close(ch)
	}
}

// Yield implements sched.Scheduler as a cooperative scheduling point.
func (s *Scheduler) Yield() { runtime.Gosched() }

// SetCurrent associates p with the calling goroutine, so a later
// Myproc call from the same goroutine recovers it. Reference/test-only:
// the hard core itself never calls Myproc — every entry point takes
// its caller's process handle explicitly (spec.md's redesign away from
// the teacher's TLS-based mycpu()/myproc(), which relied on a patched
// runtime unavailable here).
func (s *Scheduler) SetCurrent(p *Proc) {
	s.curMu.Lock()
	s.cur[goroutineID()] = p
	s.curMu.Unlock()
}

// ClearCurrent removes the calling goroutine's association set by
// SetCurrent.
func (s *Scheduler) ClearCurrent() {
	s.curMu.Lock()
	delete(s.cur, goroutineID())
	s.curMu.Unlock()
}

// Myproc implements sched.Scheduler by looking up the calling
// goroutine's association. Panics if none was set with SetCurrent.
func (s *Scheduler) Myproc() sched.ProcRef {
	s.curMu.Lock()
	defer s.curMu.Unlock()
	p, ok := s.cur[goroutineID()]
	if !ok {
		panic("schedref: Myproc called without a prior SetCurrent on this goroutine")
	}
	return p
}

// Killed implements sched.Scheduler.
func (s *Scheduler) Killed(pr sched.ProcRef) bool {
	p := pr.(*Proc)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// SetKilled implements sched.Scheduler.
func (s *Scheduler) SetKilled(pr sched.ProcRef) {
	p := pr.(*Proc)
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
}

// Exit implements sched.Scheduler by panicking with a sentinel the test
// harness recognizes; a real scheduler never returns from exit either.
func (s *Scheduler) Exit(status int) {
	panic(exitSignal{status: status})
}

// exitSignal is what Exit panics with, letting callers that run Exit on
// a disposable goroutine recover it and observe the status.
type exitSignal struct{ status int }

// Status returns the exit status carried by a recovered exitSignal, and
// whether v was one.
func Status(v any) (int, bool) {
	es, ok := v.(exitSignal)
	if !ok {
		return 0, false
	}
	return es.status, true
}
