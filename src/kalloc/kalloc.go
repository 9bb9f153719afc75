// Package kalloc is the page-granular physical frame allocator
// (spec.md C1). It owns a simulated physical arena — an in-process
// byte slice standing in for the RAM between the kernel image's end
// and PHYSTOP — and hands out/reclaims 4 KiB frames from it with a
// pointer-encoded intrusive freelist, the same trick biscuit's
// mem.Physmem_t uses for its per-CPU freelists (mem/mem.go) but here
// threaded through the frames themselves rather than a separate
// index array, since the core has no page-table-backed Page_i to
// index into.
package kalloc

import (
	"fmt"
	"unsafe"

	"spinlock"

	"hart"
	"stats"
)

// PGSIZE is the frame size in bytes.
const PGSIZE = 4096

// freeFillByte is stamped across a frame by Kfree to catch
// use-after-free reads in tests; allocFillByte is stamped across a
// frame by Kalloc before handing it out, so a freed frame and a
// freshly-Kalloc'd one are recognizably distinct (spec.md §4.1's
// "recognizable byte pattern"), as original_source/kernel/kalloc.c's
// kfree and kalloc memset 1 and 5 respectively.
const (
	freeFillByte  = 0x1
	allocFillByte = 0x5
)

// run is the freelist node biscuit calls `struct run` in kalloc.c: the
// first bytes of a free frame double as the pointer to the next free
// frame. It only has meaning while the frame is on the freelist.
type run struct {
	next *run
}

// Arena is a frame allocator over a single contiguous byte slice. The
// zero value is not usable; construct with NewArena.
type Arena struct {
	lock *spinlock.SpinLock

	base  uintptr
	limit uintptr // exclusive
	mem   []byte  // keeps the backing array alive and out of the GC's way for unsafe aliasing

	freelist *run

	// Nalloc and Nfree count frame handouts and returns; Stats2String
	// prints them when stats.Stats is enabled, same as biscuit's
	// per-subsystem counter structs.
	Nalloc stats.Counter_t
	Nfree  stats.Counter_t
}

// NewArena simulates the frame-allocator-owned region of physical
// memory as an nframes*PGSIZE byte slice and returns an allocator with
// an empty freelist; call Kinit to seed it, exactly as the real kernel
// calls kinit() once at boot before any Kalloc.
func NewArena(nframes int) *Arena {
	if nframes <= 0 {
		panic("kalloc: NewArena needs at least one frame")
	}
	mem := make([]byte, nframes*PGSIZE)
	base := uintptr(unsafe.Pointer(&mem[0]))
	return &Arena{
		lock:  spinlock.New("kalloc"),
		base:  base,
		limit: base + uintptr(len(mem)),
		mem:   mem,
	}
}

// Kinit seeds the freelist by calling Kfree on every frame in the
// arena, page by page, mirroring kinit()'s "freerange" walk from the
// end of the static kernel image through PHYSTOP.
func (a *Arena) Kinit(h *hart.CPU) {
	for p := a.base; p+PGSIZE <= a.limit; p += PGSIZE {
		a.kfreeAddr(h, p)
	}
}

// Stats renders Nalloc/Nfree via stats.Stats2String, same as biscuit's
// subsystems each expose a *_stats() dump for the kernel's "pr" debug
// command.
func (a *Arena) Stats() string {
	return stats.Stats2String(struct {
		Nalloc stats.Counter_t
		Nfree  stats.Counter_t
	}{a.Nalloc, a.Nfree})
}

func (a *Arena) inRange(p uintptr) bool {
	return p >= a.base && p+PGSIZE <= a.limit
}

// framePtr returns an unsafe byte-slice view of the PGSIZE frame
// starting at physical address p, for fill-byte stamping.
func (a *Arena) framePtr(p uintptr) *[PGSIZE]byte {
	return (*[PGSIZE]byte)(unsafe.Pointer(p))
}

// Kfree returns the frame at physical address p (as a slice aliasing
// arena memory — see Kalloc) to the freelist. p must be PGSIZE-aligned
// and within the arena; anything else is a fatal invariant violation,
// per spec.md §4.1 ("the allocator is an invariant boundary").
func (a *Arena) Kfree(h *hart.CPU, p []byte) {
	if len(p) != PGSIZE {
		panic(fmt.Sprintf("kalloc: kfree: frame slice has wrong length %d", len(p)))
	}
	addr := uintptr(unsafe.Pointer(&p[0]))
	a.kfreeAddr(h, addr)
}

func (a *Arena) kfreeAddr(h *hart.CPU, addr uintptr) {
	if addr%PGSIZE != 0 {
		panic(fmt.Sprintf("kalloc: kfree: address %#x not page-aligned", addr))
	}
	if !a.inRange(addr) {
		panic(fmt.Sprintf("kalloc: kfree: address %#x outside arena [%#x, %#x)", addr, a.base, a.limit))
	}

	frame := a.framePtr(addr)
	for i := range frame {
		frame[i] = freeFillByte
	}

	r := (*run)(unsafe.Pointer(addr))

	a.lock.Acquire(h)
	r.next = a.freelist
	a.freelist = r
	a.lock.Release(h)
	a.Nfree.Inc()
}

// Kalloc pops one frame off the freelist and returns it as a PGSIZE
// byte slice aliasing the arena, or nil if the freelist is empty. The
// returned frame is stamped with allocFillByte; it is not zeroed.
func (a *Arena) Kalloc(h *hart.CPU) []byte {
	a.lock.Acquire(h)
	r := a.freelist
	if r != nil {
		a.freelist = r.next
	}
	a.lock.Release(h)

	if r == nil {
		return nil
	}
	a.Nalloc.Inc()
	addr := uintptr(unsafe.Pointer(r))
	frame := a.framePtr(addr)
	for i := range frame {
		frame[i] = allocFillByte
	}
	return frame[:]
}

// Nframes reports the arena's total frame count, for tests asserting
// alignment/range/distinctness/LIFO-ordering properties (spec.md's E1).
func (a *Arena) Nframes() int {
	return len(a.mem) / PGSIZE
}

// Base and Limit expose the arena's physical address bounds, for tests
// checking that every Kalloc'd frame lies within [base, limit).
func (a *Arena) Base() uintptr  { return a.base }
func (a *Arena) Limit() uintptr { return a.limit }

// addrOf recovers the physical address backing a frame slice returned
// by Kalloc, for tests.
func addrOf(frame []byte) uintptr {
	return uintptr(unsafe.Pointer(&frame[0]))
}
