// Package hart holds per-CPU state (spec.md's C3): which process is
// current, the nested interrupt-disable depth, and whether interrupts
// were enabled when the outermost disable started. Each hart owns one
// riscv.IntrCtl, the collaborator that actually flips the hardware
// enable bit.
package hart

import "riscv"

// CPU is per-hart state. The zero value is not useful; construct with
// New. Fields are only ever touched by the owning hart's own
// goroutine(s) while that hart's identity is held by the caller —
// mirroring the real kernel's assumption that PerCPU state is only
// touched locally, never remotely.
type CPU struct {
	ID int

	// Intr is this hart's interrupt-enable collaborator (spec.md §6's
	// "global interrupt enable/disable").
	Intr riscv.IntrCtl

	// Noff is the nesting depth of push_off requests. Invariant:
	// Noff >= 0.
	Noff int

	// Intena records whether interrupts were enabled when the
	// outermost push_off call was made. Only meaningful when Noff > 0.
	Intena bool

	// Proc is an opaque handle to the process currently running on
	// this hart, or nil if none. The concrete process type belongs to
	// the (out-of-scope) scheduler; the core only ever compares or
	// forwards this handle, never dereferences it.
	Proc any
}

// New constructs a CPU with the given id and interrupt controller.
func New(id int, intr riscv.IntrCtl) *CPU {
	return &CPU{ID: id, Intr: intr}
}

// Registry is a fixed-size table of harts, mirroring the teacher's
// runtime.MAXCPUS-sized per-CPU array (mem.Physmem_t.percpu in the
// biscuit frame allocator).
type Registry struct {
	cpus []*CPU
}

// NewRegistry builds a registry with n harts, each given its own
// SoftIntrCtl. Real boot code would instead wire each hart's actual
// CSR-backed IntrCtl.
func NewRegistry(n int) *Registry {
	r := &Registry{cpus: make([]*CPU, n)}
	for i := range r.cpus {
		r.cpus[i] = New(i, riscv.NewSoftIntrCtl())
	}
	return r
}

// CPU returns the hart with the given id. Panics on an out-of-range
// id: an invalid hart id is a boot-configuration bug, not a runtime
// condition to recover from.
func (r *Registry) CPU(id int) *CPU {
	if id < 0 || id >= len(r.cpus) {
		panic("hart: bad cpu id")
	}
	return r.cpus[id]
}

// Len reports the number of harts in the registry.
func (r *Registry) Len() int { return len(r.cpus) }
