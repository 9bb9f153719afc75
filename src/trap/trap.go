// Package trap implements the trap entry/exit pipeline (spec.md C5):
// the TrapFrame/Context data shapes and the usertrap/usertrapret/
// kerneltrap/clockintr contracts, grounded directly on
// original_source/kernel/trap.c and proc.h's struct trapframe/context.
// The trampoline itself (the assembly stub that actually saves user
// registers and switches page tables) and the device drivers behind
// DevIntr are out of scope — named external interfaces only.
package trap

import (
	"fmt"

	"accnt"
	"riscv"
	"sched"
	"spinlock"

	"hart"
)

// TrapFrame is the byte-precise per-process save area uservec/userret
// in the (out-of-scope) trampoline read and write, laid out exactly as
// proc.h's struct trapframe so a real trampoline stub could be wired
// against it unmodified.
type TrapFrame struct {
	KernelSatp   uint64 // 0: kernel page table
	KernelSp     uint64 // 8: top of process's kernel stack
	KernelTrap   uint64 // 16: address of usertrap()
	Epc          uint64 // 24: saved user program counter
	KernelHartid uint64 // 32: saved kernel tp

	Ra uint64 // 40
	Sp uint64 // 48
	Gp uint64 // 56
	Tp uint64 // 64

	T0 uint64 // 72
	T1 uint64 // 80
	T2 uint64 // 88

	S0 uint64 // 96
	S1 uint64 // 104

	A0 uint64 // 112
	A1 uint64 // 120
	A2 uint64 // 128
	A3 uint64 // 136
	A4 uint64 // 144
	A5 uint64 // 152
	A6 uint64 // 160
	A7 uint64 // 168

	S2  uint64 // 176
	S3  uint64 // 184
	S4  uint64 // 192
	S5  uint64 // 200
	S6  uint64 // 208
	S7  uint64 // 216
	S8  uint64 // 224
	S9  uint64 // 232
	S10 uint64 // 240
	S11 uint64 // 248

	T3 uint64 // 256
	T4 uint64 // 264
	T5 uint64 // 272
	T6 uint64 // 280
}

// Context is a kernel-to-kernel switch frame: only the registers a
// goroutine-free cooperative swtch() would need to save, since the
// kernel page table stays mapped across the switch (unlike TrapFrame,
// which must survive a page-table change).
type Context struct {
	Ra uint64
	Sp uint64

	S0, S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint64
}

// Proc is the trap pipeline's view of "the process that trapped": just
// enough to dispatch on, threaded explicitly through every entry point
// rather than recovered via an implicit myproc() (spec.md's §6 external
// interface), since this core has no patched-runtime TLS to recover it
// with.
type Proc struct {
	TF  *TrapFrame
	PT  Satp          // current page table's satp-encoding collaborator
	Ref sched.ProcRef // the scheduler's own opaque handle for this process

	// Acct is this process's CPU-time accounting, or nil if the caller
	// doesn't want trap-time accounting (biscuit's accnt package,
	// supplemented here since spec.md's C5 has no accounting
	// requirement of its own but every real trap handler keeps one).
	Acct *accnt.Accnt_t

	// userResumeAt is the Acct.Now() reading taken the last time
	// UserTrapRet sent this process back to user mode, 0 before the
	// first trap. UserTrap charges the elapsed span to Acct.Utadd on
	// the next entry, the same "charge it to whichever mode just ran"
	// split original_source/kernel/trap.c's caller (proc.go's
	// scheduler, out of this core's scope) performs around usertrap/
	// usertrapret.
	userResumeAt int
}

// Satp is anything that can compute its own satp CSR value — normally
// an mmu.PageTable via mmu.VM.MakeSatp, injected here as a closure so
// trap doesn't need to import mmu.
type Satp func() uint64

// DeviceIntrClassifier is devintr() from trap.c: classifies and
// services the interrupt the trap was for, returning which kind it
// was. Backed in a real kernel by the PLIC and virtio/uart drivers
// (spec.md §6); the core only consumes this interface.
type DeviceIntrClassifier interface {
	// DevIntr services one interrupt and reports what kind it was:
	// 2 for a timer tick this hart should handle, 1 for any other
	// recognized device interrupt, 0 if the cause was not recognized.
	DevIntr(h *hart.CPU) int
}

// Clock is the tickslock-protected tick counter (spec.md §4.4's "timer
// tick handler").
type Clock struct {
	lock  *spinlock.SpinLock
	ticks uint64
}

// NewClock constructs a Clock with its tickslock.
func NewClock() *Clock {
	return &Clock{lock: spinlock.New("time")}
}

// Ticks returns the current tick count.
func (c *Clock) Ticks(h *hart.CPU) uint64 {
	c.lock.Acquire(h)
	defer c.lock.Release(h)
	return c.ticks
}

// waitChanToken is the stable address clockintr's wakeup(&ticks) and
// anyone sleeping on the clock must agree on.
var waitChanToken byte

// ClockIntr implements trap.c's clockintr(): under tickslock, increment
// ticks and wake anyone sleeping on its address.
func (c *Clock) ClockIntr(h *hart.CPU, sc sched.Scheduler) {
	c.lock.Acquire(h)
	c.ticks++
	c.lock.Release(h)
	sc.Wakeup(&waitChanToken)
}

// Pipeline bundles the collaborators usertrap/usertrapret/kerneltrap
// need: the hart's register interface, the scheduler, and the device
// classifier.
type Pipeline struct {
	Intr  riscv.IntrCtl
	Sched sched.Scheduler
	Dev   DeviceIntrClassifier
	Clock *Clock
}

// UserTrap implements usertrap()'s contract. sepc is the saved user
// program counter and cause the scause CSR value, both read by the
// trampoline before any kernel code runs; sysEcall is the syscall
// dispatcher (out of scope: "named external interface" per spec.md
// §6).
func (pl *Pipeline) UserTrap(h *hart.CPU, p *Proc, sepc, cause uint64, sysEcall func()) {
	// (1) "assert trap was from user mode" and (2) "reinstall the
	// supervisor vector" both require reading/writing CSRs this core's
	// riscv.IntrCtl does not model (SPP, stvec) — a real implementation
	// does both before any other kernel code runs; see DESIGN.md.

	var acctStart int
	if p.Acct != nil {
		acctStart = p.Acct.Now()
		if p.userResumeAt != 0 {
			p.Acct.Utadd(acctStart - p.userResumeAt)
		}
	}
	defer func() {
		if p.Acct != nil {
			p.Acct.Systadd(p.Acct.Now() - acctStart)
		}
	}()

	// (3) cache sepc into the trap frame.
	p.TF.Epc = sepc

	whichDev := 0
	switch {
	case cause == riscv.ScauseEcallU:
		if pl.Sched.Killed(p.Ref) {
			pl.Sched.Exit(-1)
			return
		}
		p.TF.Epc += 4
		h.Intr.SetEnabled(true)
		sysEcall()
	case pl.Dev != nil && isDeviceCause(cause):
		whichDev = pl.Dev.DevIntr(h)
	default:
		fmt.Printf("usertrap(): unexpected scause %#x\n", cause)
		pl.Sched.SetKilled(p.Ref)
	}

	if pl.Sched.Killed(p.Ref) {
		pl.Sched.Exit(-1)
		return
	}
	if whichDev == 2 {
		pl.Sched.Yield()
	}
	pl.UserTrapRet(h, p)
}

// isDeviceCause reports whether cause is an interrupt (as opposed to
// an exception): the top bit of scause is set.
func isDeviceCause(cause uint64) bool {
	return cause&riscv.ScauseIntrBit != 0
}

// UserTrapRet implements usertrapret()'s contract: everything up to
// the final jump into the (out-of-scope) trampoline return stub, which
// this core models as returning the satp value the caller must hand
// the trampoline.
func (pl *Pipeline) UserTrapRet(h *hart.CPU, p *Proc) (satp uint64) {
	h.Intr.SetEnabled(false)

	// install the user trap vector: no-op here, see UserTrap's (2).

	p.TF.KernelSatp = 0 // caller's kernel satp, filled in by full integration
	p.TF.KernelTrap = 0 // address of UserTrap, meaningless in this Go model
	p.TF.KernelHartid = uint64(h.ID)

	h.Intr.SetEnabled(true) // SPIE equivalent: user mode resumes with interrupts on

	if p.Acct != nil {
		p.userResumeAt = p.Acct.Now()
	}
	return p.PT()
}

// KernelTrap implements kerneltrap()'s contract. running reports
// whether the hart's current process is in the running state (needed
// to decide whether a timer tick should yield).
func (pl *Pipeline) KernelTrap(h *hart.CPU, cause uint64, running bool) {
	if h.Intr.Enabled() {
		panic("kerneltrap: interrupts enabled")
	}
	whichDev := 0
	if pl.Dev != nil {
		whichDev = pl.Dev.DevIntr(h)
	}
	if whichDev == 0 {
		panic(fmt.Sprintf("kerneltrap: unrecognized scause %#x", cause))
	}
	if whichDev == 2 && running {
		pl.Sched.Yield()
	}
	// restoring sepc/sstatus after yield is the trampoline/runtime's
	// job in a real kernel; there is nothing left to do here since this
	// model has no kernel-stack-resident sepc/sstatus shadow outside
	// TrapFrame/Context.
}
