// Package circbuf implements a circular byte buffer over a single
// page, adapted from biscuit's circbuf.Circbuf_t. The original backs
// its buffer with a page allocated through mem.Page_i (biscuit's
// virtual-memory-aware page allocator, out of scope here); this
// version draws its single backing frame from kalloc.Arena instead.
// Its user in this core is plic.RefUART's RX/TX rings; pipe keeps its
// own byte-at-a-time ring and does not use this package.
package circbuf

import (
	"defs"
	"fdops"
	"hart"
	"kalloc"
)

// Circbuf is a single-writer, single-reader circular buffer over one
// physical frame. Not safe for concurrent use without an external lock
// supplied by the caller.
type Circbuf struct {
	arena *kalloc.Arena
	h     *hart.CPU

	buf   []byte
	bufsz int
	head  int
	tail  int
}

// New constructs a Circbuf of sz bytes (<= kalloc.PGSIZE), lazily
// backed: no frame is allocated until the first Copyin, mirroring the
// original's "handle allocation failure at read/write time" rationale.
func New(sz int, arena *kalloc.Arena, h *hart.CPU) *Circbuf {
	if sz <= 0 || sz > kalloc.PGSIZE {
		panic("circbuf: bad size")
	}
	return &Circbuf{arena: arena, h: h, bufsz: sz}
}

// Bufsz returns the configured buffer size.
func (cb *Circbuf) Bufsz() int { return cb.bufsz }

// ensure lazily allocates the backing frame, returning ENOMEM if the
// arena is exhausted.
func (cb *Circbuf) ensure() error {
	if cb.buf != nil {
		return nil
	}
	frame := cb.arena.Kalloc(cb.h)
	if frame == nil {
		return defs.ENOMEM
	}
	cb.buf = frame[:cb.bufsz]
	cb.head, cb.tail = 0, 0
	return nil
}

// Release returns the backing frame to the arena.
func (cb *Circbuf) Release() {
	if cb.buf == nil {
		return
	}
	cb.arena.Kfree(cb.h, cb.buf[:cap(cb.buf)])
	cb.buf = nil
	cb.head, cb.tail = 0, 0
}

// Full reports whether the buffer cannot accept more data.
func (cb *Circbuf) Full() bool { return cb.head-cb.tail == cb.bufsz }

// Empty reports whether the buffer holds any data.
func (cb *Circbuf) Empty() bool { return cb.head == cb.tail }

// Left returns the remaining writable capacity in bytes.
func (cb *Circbuf) Left() int { return cb.bufsz - (cb.head - cb.tail) }

// Used returns the number of unread bytes currently buffered.
func (cb *Circbuf) Used() int { return cb.head - cb.tail }

// Copyin reads from src into the circular buffer, wrapping at bufsz.
// It writes as much as fits without blocking; the caller handles
// waiting for room.
func (cb *Circbuf) Copyin(src fdops.Userio_i) (int, error) {
	if err := cb.ensure(); err != nil {
		return 0, err
	}
	if cb.Full() {
		return 0, nil
	}
	hi := cb.head % cb.bufsz
	ti := cb.tail % cb.bufsz
	c := 0
	if ti <= hi {
		dst := cb.buf[hi:]
		wrote, err := src.Uioread(dst)
		if err != nil {
			return 0, err
		}
		if wrote != len(dst) {
			cb.head += wrote
			return wrote, nil
		}
		c += wrote
		hi = (cb.head + wrote) % cb.bufsz
	}
	if hi > ti {
		panic("circbuf: copyin: inconsistent head/tail")
	}
	dst := cb.buf[hi:ti]
	wrote, err := src.Uioread(dst)
	c += wrote
	if err != nil {
		return c, err
	}
	cb.head += c
	return c, nil
}

// Copyout writes the entire buffered contents to dst.
func (cb *Circbuf) Copyout(dst fdops.Userio_i) (int, error) {
	return cb.CopyoutN(dst, 0)
}

// CopyoutN writes up to max bytes of the buffer to dst (max == 0 means
// unbounded).
func (cb *Circbuf) CopyoutN(dst fdops.Userio_i, max int) (int, error) {
	if err := cb.ensure(); err != nil {
		return 0, err
	}
	if cb.Empty() {
		return 0, nil
	}
	hi := cb.head % cb.bufsz
	ti := cb.tail % cb.bufsz
	c := 0
	if hi <= ti {
		src := cb.buf[ti:]
		if max != 0 && max < len(src) {
			src = src[:max]
		}
		wrote, err := dst.Uiowrite(src)
		if err != nil {
			return 0, err
		}
		if wrote != len(src) || wrote == max {
			cb.tail += wrote
			return wrote, nil
		}
		c += wrote
		if max != 0 {
			max -= c
		}
		ti = (cb.tail + wrote) % cb.bufsz
	}
	if ti > hi {
		panic("circbuf: copyout: inconsistent head/tail")
	}
	src := cb.buf[ti:hi]
	if max != 0 && max < len(src) {
		src = src[:max]
	}
	wrote, err := dst.Uiowrite(src)
	if err != nil {
		return 0, err
	}
	c += wrote
	cb.tail += c
	return c, nil
}
