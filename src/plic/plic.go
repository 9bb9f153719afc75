// Package plic declares the PLIC (platform-level interrupt controller)
// collaborator spec.md §6 lists as an out-of-scope external interface
// (plic_claim/plic_complete/plicinit/plicinithart), and provides one
// reference, in-memory implementation so trap.DeviceIntrClassifier has
// something concrete to dispatch through in tests. The reference
// implementation's pending-IRQ bookkeeping is grounded in the teacher's
// msi.Msivecs_t vector allocator (msi/msi.go): a mutex-guarded set,
// added to by Raise and removed from on Claim, the same
// allocate/free-by-membership shape msi uses for MSI vectors. Complete
// does not put the IRQ back; it only checks that it is not pending.
package plic

import (
	"fmt"
	"sync"

	"hart"
)

// IRQ identifies one interrupt source, e.g. the UART or a virtio disk
// queue, numbered the way a real PLIC numbers its interrupt lines.
type IRQ uint32

// Controller is the PLIC collaborator: claim the highest-priority
// pending interrupt for this hart and later acknowledge it as
// serviced.
type Controller interface {
	// Init performs global PLIC setup once at boot (plicinit).
	Init()
	// InitHart enables this hart's PLIC context (plicinithart).
	InitHart(h *hart.CPU)
	// Claim returns the next pending IRQ for h, or ok=false if none is
	// pending (plic_claim).
	Claim(h *hart.CPU) (irq IRQ, ok bool)
	// Complete acknowledges irq as serviced, letting the PLIC raise it
	// again on its next occurrence (plic_complete).
	Complete(h *hart.CPU, irq IRQ)
}

// RefPLIC is a reference Controller backed by an in-memory pending-set,
// good enough to drive trap.DeviceIntrClassifier tests without real
// PLIC MMIO registers.
type RefPLIC struct {
	mu      sync.Mutex
	pending map[IRQ]bool
	inited  bool
}

// New constructs an empty RefPLIC with no IRQs registered or pending.
func New() *RefPLIC {
	return &RefPLIC{pending: make(map[IRQ]bool)}
}

// Init implements Controller.
func (r *RefPLIC) Init() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inited = true
}

// InitHart implements Controller. The reference PLIC has no per-hart
// context to enable; it only asserts global Init ran first, mirroring
// plicinithart's real-hardware dependency on plicinit.
func (r *RefPLIC) InitHart(h *hart.CPU) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inited {
		panic("plic: InitHart called before Init")
	}
}

// Raise marks irq pending, for tests simulating a device interrupt
// arriving. Not part of the Controller interface: a real PLIC's device
// itself raises the line; this is the reference implementation's way
// of injecting that event.
func (r *RefPLIC) Raise(irq IRQ) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[irq] = true
}

// Claim implements Controller: returns and claims (removes) one
// pending IRQ, or ok=false if none is pending. Claim order among
// multiple pending IRQs is unspecified, same as real PLIC priority
// resolution is opaque to software beyond "highest priority first".
func (r *RefPLIC) Claim(h *hart.CPU) (IRQ, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for irq, p := range r.pending {
		if p {
			delete(r.pending, irq)
			return irq, true
		}
	}
	return 0, false
}

// Complete implements Controller. Completing an IRQ that is still
// pending (raised but not yet claimed) is a programmer error and
// panics; completing an IRQ that is not pending is a no-op, as a real
// PLIC ignores a spurious complete write.
func (r *RefPLIC) Complete(h *hart.CPU, irq IRQ) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[irq] {
		panic(fmt.Sprintf("plic: complete: irq %d was never claimed", irq))
	}
}
