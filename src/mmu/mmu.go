// Package mmu declares the MMU-helper collaborator interfaces spec.md
// §6 lists as consumed from outside the hard core (uvmalloc, uvmclear,
// proc_pagetable, proc_freepagetable, walkaddr, copyin, copyout,
// MAKE_SATP), and provides one reference implementation — a Go-map-
// backed page table — so uexec and pipe/uio are testable without a
// real Sv39 walker. The teacher's page-table type (vm.Pagetable_t,
// vm.as.go) is the production analogue this interface stands in for;
// the reference implementation below plays the same role
// ufs/driver.go's in-memory disk plays for diskio.
package mmu

import (
	"kalloc"

	"hart"
)

// Perm is a page permission/flag set, mirroring the teacher's PTE_P/
// PTE_W/PTE_U bits (mem/mem.go) trimmed to what a user mapping needs.
type Perm uint8

const (
	PermR Perm = 1 << 0
	PermW Perm = 1 << 1
	PermX Perm = 1 << 2
	PermU Perm = 1 << 3
)

// PGSIZE mirrors kalloc.PGSIZE; mmu has its own constant so callers
// that only need page geometry don't have to import kalloc.
const PGSIZE = kalloc.PGSIZE

// PageTable is an opaque per-process address space handle. The core
// never reaches inside it — only passes it to the operations below.
type PageTable interface {
	// Size reports the address space's current top, in bytes.
	Size() uint64
}

// VM is the MMU-helper collaborator set exec and the user-copy paths
// depend on.
type VM interface {
	// ProcPagetable allocates a fresh, empty user page table for a new
	// process image (the trampoline page is mapped in by the
	// implementation, out of scope for the core).
	ProcPagetable() (PageTable, error)

	// ProcFreePagetable frees every user mapping below sz and the page
	// table itself.
	ProcFreePagetable(pt PageTable, sz uint64)

	// UvmAlloc grows pt from oldsz to newsz, allocating and mapping
	// zero-filled frames with the given permission, returning the new
	// size or an error if an allocation fails partway (in which case pt
	// is left exactly as an equivalent sequence of UvmDealloc calls
	// would leave it — no frames are leaked).
	UvmAlloc(h *hart.CPU, pt PageTable, oldsz, newsz uint64, perm Perm) (uint64, error)

	// UvmClear removes the user-accessible bit from the page mapping
	// va, used to carve out exec's inaccessible stack guard page.
	UvmClear(pt PageTable, va uint64)

	// WalkAddr translates a user virtual address to its backing kernel
	// byte slice, or returns an error if unmapped.
	WalkAddr(pt PageTable, va uint64) ([]byte, error)

	// CopyOut copies src into pt's address space starting at uva.
	CopyOut(pt PageTable, uva uint64, src []byte) error

	// CopyIn copies n bytes from pt's address space starting at uva
	// into dst.
	CopyIn(pt PageTable, uva uint64, dst []byte) error

	// MakeSatp computes the satp CSR value that activates pt.
	MakeSatp(pt PageTable) uint64
}
