// Package uio adapts biscuit's vm.Userbuf_t/vm.Fakeubuf_t (vm/userbuf.go)
// to fdops.Userio_i over the mmu.VM interface, dropping the teacher's
// bounds/res resource-accounting calls (out of this core's scope —
// admission control belongs to the full kernel, not the hard core) and
// its iovec variant (pipe and circbuf only ever need single-range
// transfers).
package uio

import (
	"fmt"

	"fdops"
	"mmu"
)

// UserBuf is a transfer window into one process's address space,
// backed by an mmu.VM. Each Uioread/Uiowrite call copies through
// WalkAddr one mapped page at a time, so a single call may span
// several frames.
type UserBuf struct {
	vm     mmu.VM
	pt     mmu.PageTable
	userva uint64
	len    int
	off    int
}

var _ fdops.Userio_i = (*UserBuf)(nil)

// NewUserBuf constructs a transfer window of len bytes starting at
// uva in pt's address space.
func NewUserBuf(vm mmu.VM, pt mmu.PageTable, uva uint64, length int) *UserBuf {
	if length < 0 {
		panic("uio: negative length")
	}
	return &UserBuf{vm: vm, pt: pt, userva: uva, len: length}
}

// Remain implements fdops.Userio_i.
func (ub *UserBuf) Remain() int { return ub.len - ub.off }

// Totalsz implements fdops.Userio_i.
func (ub *UserBuf) Totalsz() int { return ub.len }

// Uioread implements fdops.Userio_i: copies from the user range into dst.
func (ub *UserBuf) Uioread(dst []uint8) (int, error) {
	return ub.tx(dst, false)
}

// Uiowrite implements fdops.Userio_i: copies src into the user range.
func (ub *UserBuf) Uiowrite(src []uint8) (int, error) {
	return ub.tx(src, true)
}

func (ub *UserBuf) tx(buf []uint8, write bool) (int, error) {
	n := len(buf)
	if rem := ub.Remain(); n > rem {
		n = rem
	}
	if n == 0 {
		return 0, nil
	}
	va := ub.userva + uint64(ub.off)
	var err error
	if write {
		err = ub.vm.CopyOut(ub.pt, va, buf[:n])
	} else {
		err = ub.vm.CopyIn(ub.pt, va, buf[:n])
	}
	if err != nil {
		return 0, fmt.Errorf("uio: %w", err)
	}
	ub.off += n
	return n, nil
}

// FakeBuf implements fdops.Userio_i over a plain kernel byte slice, for
// callers (e.g. plic.RefUART, the stress harness, or tests) that want to reuse the Userio_i
// plumbing without a real address space.
type FakeBuf struct {
	buf []uint8
	len int
}

var _ fdops.Userio_i = (*FakeBuf)(nil)

// NewFakeBuf wraps buf as a Userio_i; each transfer consumes a prefix
// of buf.
func NewFakeBuf(buf []uint8) *FakeBuf {
	return &FakeBuf{buf: buf, len: len(buf)}
}

// Remain implements fdops.Userio_i.
func (fb *FakeBuf) Remain() int { return len(fb.buf) }

// Totalsz implements fdops.Userio_i.
func (fb *FakeBuf) Totalsz() int { return fb.len }

// Uioread implements fdops.Userio_i.
func (fb *FakeBuf) Uioread(dst []uint8) (int, error) {
	return fb.tx(dst, false), nil
}

// Uiowrite implements fdops.Userio_i.
func (fb *FakeBuf) Uiowrite(src []uint8) (int, error) {
	return fb.tx(src, true), nil
}

func (fb *FakeBuf) tx(buf []uint8, tofbuf bool) int {
	var c int
	if tofbuf {
		c = copy(fb.buf, buf)
	} else {
		c = copy(buf, fb.buf)
	}
	fb.buf = fb.buf[c:]
	return c
}
