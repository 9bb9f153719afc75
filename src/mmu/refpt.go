package mmu

import (
	"defs"
	"hart"
	"kalloc"
	"riscv"
)

// page is one mapped frame: its permission bits and the backing bytes,
// allocated from the shared kalloc arena so exec's "copy filesz bytes,
// the memsz-filesz tail is implicitly zero" relies on the same
// zero-on-first-touch convention real frames give (here: mmu zeroes on
// map, since kalloc's fill byte is a debug trap pattern, not zero).
type page struct {
	perm Perm
	data []byte
}

// RefPageTable is a Go-map-backed stand-in for a real Sv39 three-level
// page table: maps page-aligned virtual addresses to frames. Good
// enough to test exec/uio/pipe's address-space semantics without a
// walker.
type RefPageTable struct {
	id    uint64 // stand-in "PFN" for MakeSatp, since this page table has no real physical root frame
	pages map[uint64]*page
	size  uint64
}

// Size implements PageTable.
func (pt *RefPageTable) Size() uint64 { return pt.size }

// RefVM is the reference VM implementation backing RefPageTable, using
// a kalloc.Arena as its frame source — so exhausting physical memory
// during UvmAlloc is an observable, testable failure mode rather than
// an unbounded Go map.
type RefVM struct {
	arena *kalloc.Arena
	h     *hart.CPU
	nextID uint64
}

// NewRefVM constructs a RefVM drawing frames from arena on behalf of
// hart h.
func NewRefVM(arena *kalloc.Arena, h *hart.CPU) *RefVM {
	return &RefVM{arena: arena, h: h}
}

// ProcPagetable implements VM.
func (vm *RefVM) ProcPagetable() (PageTable, error) {
	vm.nextID++
	return &RefPageTable{id: vm.nextID, pages: make(map[uint64]*page)}, nil
}

// ProcFreePagetable implements VM.
func (vm *RefVM) ProcFreePagetable(pt0 PageTable, sz uint64) {
	pt := pt0.(*RefPageTable)
	for va, pg := range pt.pages {
		vm.arena.Kfree(vm.h, pg.data)
		delete(pt.pages, va)
	}
}

// UvmAlloc implements VM. On a mid-way allocation failure it frees
// every frame it added during this call (but nothing from before it),
// matching exec's atomicity contract: failure leaves pt exactly as if
// the failing UvmAlloc had never been called.
func (vm *RefVM) UvmAlloc(h *hart.CPU, pt0 PageTable, oldsz, newsz uint64, perm Perm) (uint64, error) {
	pt := pt0.(*RefPageTable)
	if newsz < oldsz {
		return oldsz, nil
	}
	start := roundup(oldsz)
	var added []uint64
	for va := start; va < newsz; va += PGSIZE {
		frame := vm.arena.Kalloc(h)
		if frame == nil {
			for _, a := range added {
				pg := pt.pages[a]
				vm.arena.Kfree(h, pg.data)
				delete(pt.pages, a)
			}
			return oldsz, defs.ENOMEM
		}
		for i := range frame {
			frame[i] = 0
		}
		pt.pages[va] = &page{perm: perm, data: frame}
		added = append(added, va)
	}
	pt.size = newsz
	return newsz, nil
}

// UvmClear implements VM.
func (vm *RefVM) UvmClear(pt0 PageTable, va uint64) {
	pt := pt0.(*RefPageTable)
	key := rounddown(va)
	if pg, ok := pt.pages[key]; ok {
		pg.perm &^= PermU
	}
}

// WalkAddr implements VM.
func (vm *RefVM) WalkAddr(pt0 PageTable, va uint64) ([]byte, error) {
	pt := pt0.(*RefPageTable)
	key := rounddown(va)
	pg, ok := pt.pages[key]
	if !ok || pg.perm&PermU == 0 {
		return nil, defs.EFAULT
	}
	off := va - key
	return pg.data[off:], nil
}

// CopyOut implements VM.
func (vm *RefVM) CopyOut(pt0 PageTable, uva uint64, src []byte) error {
	remaining := src
	va := uva
	for len(remaining) > 0 {
		dst, err := vm.WalkAddr(pt0, va)
		if err != nil {
			return err
		}
		n := len(dst)
		pageRem := int(PGSIZE - (va % PGSIZE))
		if n > pageRem {
			n = pageRem
		}
		if n > len(remaining) {
			n = len(remaining)
		}
		copy(dst[:n], remaining[:n])
		remaining = remaining[n:]
		va += uint64(n)
	}
	return nil
}

// CopyIn implements VM.
func (vm *RefVM) CopyIn(pt0 PageTable, uva uint64, dst []byte) error {
	remaining := dst
	va := uva
	for len(remaining) > 0 {
		src, err := vm.WalkAddr(pt0, va)
		if err != nil {
			return err
		}
		n := len(src)
		pageRem := int(PGSIZE - (va % PGSIZE))
		if n > pageRem {
			n = pageRem
		}
		if n > len(remaining) {
			n = len(remaining)
		}
		copy(remaining[:n], src[:n])
		remaining = remaining[n:]
		va += uint64(n)
	}
	return nil
}

// MakeSatp implements VM. The reference page table has no physical
// root frame of its own (it's a Go map), so its "PFN" is just its
// allocation-order id — enough to make distinct page tables produce
// distinct satp values, which is all exec's tests need.
func (vm *RefVM) MakeSatp(pt0 PageTable) uint64 {
	pt := pt0.(*RefPageTable)
	return riscv.MakeSatp(pt.id)
}

func roundup(v uint64) uint64 {
	if v%PGSIZE == 0 {
		return v
	}
	return (v/PGSIZE + 1) * PGSIZE
}

func rounddown(v uint64) uint64 {
	return (v / PGSIZE) * PGSIZE
}
