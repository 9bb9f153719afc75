// Package riscv names the RISC-V supervisor-mode register fields the
// trap pipeline and spin primitive reason about, and defines the
// small collaborator interface ("primitive register operations on
// status/epc/stvec/cause/sip/satp/tp and global interrupt enable/
// disable", spec.md §6) that lets the rest of the kernel core be
// tested without real CSR access.
package riscv

// Scause cause-register values the trap dispatcher classifies on.
const (
	ScauseEcallU      uint64 = 8          // environment call from U-mode
	ScauseIntrBit     uint64 = 1 << 63    // set when cause is an interrupt, not an exception
	ScauseSTimer      uint64 = ScauseIntrBit | 5
	ScauseSExternal   uint64 = ScauseIntrBit | 9
	ScauseSSoft       uint64 = ScauseIntrBit | 1
)

// Sstatus bits relevant to user/supervisor transitions.
const (
	SstatusSPP  uint64 = 1 << 8 // previous privilege: 0=user, 1=supervisor
	SstatusSPIE uint64 = 1 << 5 // previous interrupt-enable
	SstatusSIE  uint64 = 1 << 1 // current interrupt-enable
)

// MakeSatp builds the value destined for the satp CSR from a root page
// table physical frame number, using Sv39 paging mode (mode 8).
func MakeSatp(pageTablePFN uint64) uint64 {
	const satpModeSv39 = uint64(8) << 60
	return satpModeSv39 | pageTablePFN
}

// IntrCtl abstracts the hart-local global interrupt enable/disable bit
// (sstatus.SIE); it does not model stvec, sepc, scause or any other
// CSR. A real implementation executes `csrrci`/`csrrsi` on sstatus;
// the reference implementation below simulates the same bit in a
// plain Go struct so the core is testable off target hardware.
type IntrCtl interface {
	// Enabled reports whether interrupts are currently enabled on this
	// hart (sstatus.SIE).
	Enabled() bool
	// SetEnabled sets sstatus.SIE to on/off and returns the previous
	// value, mirroring the atomic read-modify-write CSR instructions.
	SetEnabled(on bool) (prev bool)
}

// SoftIntrCtl is a reference IntrCtl good enough to drive the spin
// primitive and trap pipeline tests; it is not a real CSR backend.
type SoftIntrCtl struct {
	enabled bool
}

// NewSoftIntrCtl returns an IntrCtl starting with interrupts enabled,
// matching the state a hart is in after boot-time setup completes.
func NewSoftIntrCtl() *SoftIntrCtl {
	return &SoftIntrCtl{enabled: true}
}

// Enabled implements IntrCtl.
func (s *SoftIntrCtl) Enabled() bool { return s.enabled }

// SetEnabled implements IntrCtl.
func (s *SoftIntrCtl) SetEnabled(on bool) bool {
	prev := s.enabled
	s.enabled = on
	return prev
}
