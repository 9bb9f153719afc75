package plic

import (
	"fmt"

	"hart"
	"sched"
	"trap"
)

// UART0_IRQ and VIRTIO0_IRQ are the PLIC interrupt-line numbers
// original_source/kernel/trap.c's devintr() dispatches on. The
// retrieval pack's original_source doesn't carry memlayout.h (the
// header that #defines them), so these are the well-known xv6-riscv /
// QEMU "virt" machine convention values rather than ones read directly
// out of the pack; see DESIGN.md.
const (
	UART0_IRQ   IRQ = 10
	VIRTIO0_IRQ IRQ = 1
)

// UARTDriver and VirtioDriver are the out-of-scope console and disk
// drivers devintr() calls into (spec.md §6 names uartintr() and
// virtio_disk_intr() as external interfaces only). Classifier accepts
// them as optional collaborators so a caller wiring in a real driver
// can plug it in without Classifier depending on any concrete driver
// package.
type UARTDriver interface{ Intr() }
type VirtioDriver interface{ Intr() }

// Classifier implements trap.DeviceIntrClassifier against a real
// Controller, reproducing devintr()'s dispatch: claim the pending PLIC
// IRQ, route it to the matching driver, complete it, and report 1; or,
// if RequestTimerTick marked a tick pending, clear it and report 2
// (running Clock's tick only on hart 0 and only when Clock is set); or
// report 0 if nothing was pending.
//
// devintr() itself decides which branch to take by reading scause; the
// CSR layer this core models (riscv.IntrCtl) only exposes the
// interrupt-enable bit, not scause's cause code, so Classifier instead
// infers "which kind of trap was this" from what is actually pending:
// a claimable PLIC IRQ, or an injected timer tick. See DESIGN.md.
type Classifier struct {
	PLIC   Controller
	Clock  *trap.Clock
	Sched  sched.Scheduler
	UART   UARTDriver
	Virtio VirtioDriver

	// timerPending is set by RequestTimerTick, standing in for the
	// CLINT/SSI mechanism real xv6 uses to redirect the machine-mode
	// timer interrupt into a supervisor software interrupt on hart 0.
	timerPending bool
}

// RequestTimerTick marks a timer tick pending for the next DevIntr
// call, mirroring the external CLINT/SSI event devintr()'s
// scause==SSI branch reacts to.
func (c *Classifier) RequestTimerTick() { c.timerPending = true }

// DevIntr implements trap.DeviceIntrClassifier.
func (c *Classifier) DevIntr(h *hart.CPU) int {
	if irq, ok := c.PLIC.Claim(h); ok {
		switch irq {
		case UART0_IRQ:
			if c.UART != nil {
				c.UART.Intr()
			}
		case VIRTIO0_IRQ:
			if c.Virtio != nil {
				c.Virtio.Intr()
			}
		default:
			fmt.Printf("unexpected interrupt irq=%d\n", irq)
		}
		c.PLIC.Complete(h, irq)
		return 1
	}

	if c.timerPending {
		c.timerPending = false
		if h.ID == 0 && c.Clock != nil {
			c.Clock.ClockIntr(h, c.Sched)
		}
		return 2
	}

	return 0
}
