// Package stress fans concurrent goroutines at the hard core's shared
// state — kalloc.Arena, bio.Cache, pipe.Pipe — to exercise the same
// invariants spec.md's single-threaded E1/E3/E8 scenarios check
// (distinct page-aligned frames, correct (dev, blockno) identity,
// exact byte-for-byte transfer) under real contention instead of one
// goroutine at a time. Each worker gets its own hart.CPU, standing in
// for a separate RISC-V hart the way the rest of the test suite does;
// golang.org/x/sync/errgroup fans the workers out and collects the
// first error or panic-turned-error, the idiomatic Go replacement for
// hand-rolled sync.WaitGroup-plus-error-channel plumbing.
package stress

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sync/errgroup"

	"bio"
	"hart"
	"kalloc"
	"pipe"
	"riscv"
	"sched"
	"schedref"
	"uio"
)

func newHart(id int) *hart.CPU {
	return hart.New(id, riscv.NewSoftIntrCtl())
}

// recoverPanic turns a panic in fn into an error, so one worker's
// invariant violation fails the errgroup instead of crashing the whole
// stress run and hiding every other worker's outcome.
func recoverPanic(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stress: panic: %v", r)
		}
	}()
	return fn()
}

// Kalloc concurrently allocates and frees frames from arena across
// workers goroutines, itersPerWorker times each. It fails if Kalloc
// ever hands out a frame outside the arena's bounds, misaligned, or
// aliasing a frame another worker currently holds live — the
// concurrent analogue of E1's "two kallocs return two distinct
// 4 KiB-aligned pointers".
func Kalloc(arena *kalloc.Arena, workers, itersPerWorker int) error {
	var mu sync.Mutex
	live := make(map[uintptr]int) // address -> owning worker, while held

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			return recoverPanic(func() error {
				h := newHart(w)
				for i := 0; i < itersPerWorker; i++ {
					frame := arena.Kalloc(h)
					if frame == nil {
						continue // arena momentarily exhausted; not an invariant violation
					}
					addr := addrOf(frame)
					if addr%kalloc.PGSIZE != 0 {
						return fmt.Errorf("worker %d: frame %#x not page-aligned", w, addr)
					}
					if addr < arena.Base() || addr >= arena.Limit() {
						return fmt.Errorf("worker %d: frame %#x outside arena", w, addr)
					}

					mu.Lock()
					if owner, held := live[addr]; held {
						mu.Unlock()
						return fmt.Errorf("worker %d: frame %#x double-allocated (also held by worker %d)", w, addr, owner)
					}
					live[addr] = w
					mu.Unlock()

					mu.Lock()
					delete(live, addr)
					mu.Unlock()
					arena.Kfree(h, frame)
				}
				return nil
			})
		})
	}
	return g.Wait()
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// BufferCache drives concurrent Bread/Brelse against a shared cache
// over a small, overlapping set of block numbers, so workers
// repeatedly race each other for cache hits, misses, and eviction.
// cache must have at least workers slots, or a worker's Bget could
// observe every slot pinned by a concurrent peer and panic (bio.c's
// own "no reclaimable buffers" condition) — a real resource limit, not
// a race, so callers size the cache accordingly rather than stress
// tripping over it.
func BufferCache(cache *bio.Cache, sc sched.Scheduler, workers, itersPerWorker int, nblocks int) error {
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			return recoverPanic(func() error {
				h := newHart(w)
				p := schedref.NewProc(w + 1)
				for i := 0; i < itersPerWorker; i++ {
					blockno := uint64((w+i)%nblocks + 1)
					b, err := cache.Bread(h, sc, p, 1, blockno)
					if err != nil {
						return fmt.Errorf("worker %d: bread(%d): %w", w, blockno, err)
					}
					if b.Blockno != blockno {
						return fmt.Errorf("worker %d: bread(%d) returned buffer for block %d", w, blockno, b.Blockno)
					}
					cache.Brelse(h, sc, p, b)
				}
				return nil
			})
		})
	}
	return g.Wait()
}

// Pipe runs one writer and one reader goroutine against a shared pipe
// concurrently: the writer pushes n bytes in small chunks while the
// reader drains it in small chunks, verifying the reader observes
// exactly the bytes the writer sent, in order — the concurrent
// analogue of E8, run with the producer and consumer actually
// overlapping instead of the writer finishing before the reader
// starts.
func Pipe(pi *pipe.Pipe, sc sched.Scheduler, payload []byte, chunk int) error {
	writer := schedref.NewProc(1)
	reader := schedref.NewProc(2)
	hw := newHart(0)
	hr := newHart(1)

	got := make([]byte, 0, len(payload))
	var gotMu sync.Mutex

	var g errgroup.Group
	g.Go(func() error {
		return recoverPanic(func() error {
			for off := 0; off < len(payload); off += chunk {
				end := off + chunk
				if end > len(payload) {
					end = len(payload)
				}
				n, err := pi.Write(hw, sc, writer, uio.NewFakeBuf(payload[off:end]))
				if err != nil {
					return fmt.Errorf("writer: %w", err)
				}
				if n != end-off {
					return fmt.Errorf("writer: short write %d of %d", n, end-off)
				}
			}
			pi.Close(hw, sc, true)
			return nil
		})
	})
	g.Go(func() error {
		return recoverPanic(func() error {
			for {
				buf := make([]byte, chunk)
				n, err := pi.Read(hr, sc, reader, uio.NewFakeBuf(buf))
				if err != nil {
					return fmt.Errorf("reader: %w", err)
				}
				if n <= 0 {
					return nil
				}
				gotMu.Lock()
				got = append(got, buf[:n]...)
				gotMu.Unlock()
			}
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if string(got) != string(payload) {
		return fmt.Errorf("pipe: reader got %q, want %q", got, payload)
	}
	return nil
}
