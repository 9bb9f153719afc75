// Package pipe implements the in-kernel bounded byte channel (spec.md
// C9), grounded directly on original_source/kernel/pipe.c: a 512-byte
// ring with monotonically increasing nread/nwrite counters (indices
// taken modulo PIPESIZE), blocking producer/consumer semantics, and
// half-close. The byte-at-a-time copy loop (rather than circbuf's bulk
// transfer) is intentional: pipewrite/piperead must recheck "reader
// closed"/"killed" on every byte per spec.md §4.8, which a bulk copy
// can't express.
package pipe

import (
	"fdops"
	"hart"
	"kalloc"
	"sched"
	"spinlock"
	"stats"
)

// PIPESIZE is the ring's fixed capacity in bytes, per pipe.c.
const PIPESIZE = 512

// Pipe is one pipe's shared, lock-protected state, allocated as a
// single kalloc frame (pipe.c's `(struct pipe*)kalloc()`) even though
// PIPESIZE is far smaller than PGSIZE — the frame allocator is the
// only memory source this core's pipe has.
type Pipe struct {
	lock *spinlock.SpinLock

	arena *kalloc.Arena
	frame []byte // the backing kalloc frame; data aliases its first PIPESIZE bytes
	data  []byte // frame[:PIPESIZE]

	nread  uint
	nwrite uint

	readOpen  bool
	writeOpen bool

	// readToken/writeToken are the stable addresses sleep/wakeup agree
	// on, standing in for &pi.nread/&pi.nwrite in the original.
	readToken  byte
	writeToken byte

	Nfull stats.Counter_t // times a writer found the ring full and parked
}

// Alloc allocates a new pipe backed by one frame from arena, with both
// ends open, mirroring pipealloc's pipe-object half (the two open-file
// objects pipealloc also creates belong to the out-of-scope FD layer).
func Alloc(h *hart.CPU, arena *kalloc.Arena) *Pipe {
	frame := arena.Kalloc(h)
	if frame == nil {
		return nil
	}
	return &Pipe{
		lock:      spinlock.New("pipe"),
		arena:     arena,
		frame:     frame,
		data:      frame[:PIPESIZE],
		readOpen:  true,
		writeOpen: true,
	}
}

func (pi *Pipe) readChan() sched.WaitChan  { return &pi.readToken }
func (pi *Pipe) writeChan() sched.WaitChan { return &pi.writeToken }

// Close half-closes pi: writable selects which end the caller held.
// When both ends are closed the backing frame is returned to the
// arena, mirroring pipeclose's final kfree.
func (pi *Pipe) Close(h *hart.CPU, sc sched.Scheduler, writable bool) {
	pi.lock.Acquire(h)
	if writable {
		pi.writeOpen = false
		sc.Wakeup(pi.readChan())
	} else {
		pi.readOpen = false
		sc.Wakeup(pi.writeChan())
	}
	done := !pi.readOpen && !pi.writeOpen
	pi.lock.Release(h)

	if done {
		pi.arena.Kfree(h, pi.frame)
	}
}

// spinlockLocker adapts (SpinLock, CPU) to sync.Locker for sc.Sleep.
type spinlockLocker struct {
	l *spinlock.SpinLock
	h *hart.CPU
}

func (a spinlockLocker) Lock()   { a.l.Acquire(a.h) }
func (a spinlockLocker) Unlock() { a.l.Release(a.h) }

// Write copies up to n bytes from src into the ring one byte at a
// time, blocking while the ring is full, and failing if the reader end
// closes or the caller is killed. Returns the number of bytes written,
// or −1 (with a nil error) if the reader end is closed or the caller is
// killed; a failed or short copy from src ends the transfer early with
// the partial count and a nil error, matching pipewrite's "i" return on
// a failed copyin mid-loop.
func (pi *Pipe) Write(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef, src fdops.Userio_i) (int, error) {
	pi.lock.Acquire(h)

	i := 0
	for i < src.Totalsz() {
		if !pi.readOpen || sc.Killed(p) {
			pi.lock.Release(h)
			return -1, nil
		}
		if pi.nwrite == pi.nread+PIPESIZE {
			pi.Nfull.Inc()
			sc.Wakeup(pi.readChan())
			sc.Sleep(pi.writeChan(), spinlockLocker{pi.lock, h})
			continue
		}
		var ch [1]byte
		n, err := src.Uioread(ch[:])
		if err != nil || n != 1 {
			break
		}
		pi.data[pi.nwrite%PIPESIZE] = ch[0]
		pi.nwrite++
		i++
	}

	sc.Wakeup(pi.readChan())
	pi.lock.Release(h)
	return i, nil
}

// Read copies up to n bytes from the ring into dst, blocking while the
// ring is empty and the write end is still open. Returns the number of
// bytes read, or (-1, nil) if the caller is killed while waiting,
// mirroring piperead's −1 return.
func (pi *Pipe) Read(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef, dst fdops.Userio_i) (int, error) {
	pi.lock.Acquire(h)

	for pi.nread == pi.nwrite && pi.writeOpen {
		if sc.Killed(p) {
			pi.lock.Release(h)
			return -1, nil
		}
		sc.Sleep(pi.readChan(), spinlockLocker{pi.lock, h})
	}

	n := dst.Totalsz()
	i := 0
	for ; i < n; i++ {
		if pi.nread == pi.nwrite {
			break
		}
		ch := pi.data[pi.nread%PIPESIZE]
		pi.nread++
		wrote, err := dst.Uiowrite([]byte{ch})
		if err != nil || wrote != 1 {
			break
		}
	}

	sc.Wakeup(pi.writeChan())
	pi.lock.Release(h)
	return i, nil
}
