package plic

import (
	"sync"

	"circbuf"
	"defs"
	"hart"
	"kalloc"
	"uio"
)

// RefUART is a reference UARTDriver: an interrupt-driven RX/TX path
// backed by a circbuf ring per direction, good enough to exercise
// Classifier.DevIntr's UART0_IRQ branch without real NS16550 MMIO
// registers. Mirrors the shape of original_source/kernel/console.c's
// consoleintr/consputc split (interrupt handler drains hardware into a
// software buffer; callers drain the software buffer separately) with
// the hardware FIFO itself replaced by an injected byte sequence, the
// same substitution RefPLIC makes for plic_claim/plic_complete.
type RefUART struct {
	mu  sync.Mutex
	rx  *circbuf.Circbuf
	tx  *circbuf.Circbuf
	dev uint

	pending []byte // bytes a real UART would have queued in its RX FIFO
}

// NewRefUART constructs a RefUART with empty RX/TX rings, each backed
// by a frame from arena, identifying itself as the console device
// (defs.D_CONSOLE) the way biscuit's console driver registers at that
// major number.
func NewRefUART(arena *kalloc.Arena, h *hart.CPU) *RefUART {
	return &RefUART{
		rx:  circbuf.New(512, arena, h),
		tx:  circbuf.New(512, arena, h),
		dev: defs.Mkdev(defs.D_CONSOLE, 0),
	}
}

// Dev returns the console device identifier this RefUART answers to.
func (u *RefUART) Dev() uint {
	return u.dev
}

// Arrive queues bytes as if they had just landed in the UART's
// hardware receive FIFO, to be drained into rx on the next Intr. Not
// part of UARTDriver: the test/caller's way of injecting a receive
// event, the same role RefPLIC.Raise plays for interrupt delivery
// itself.
func (u *RefUART) Arrive(b []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = append(u.pending, b...)
}

// Intr implements UARTDriver: drains whatever arrived since the last
// interrupt into the RX ring, mirroring consoleintr's "copy FIFO into
// software buffer" loop.
func (u *RefUART) Intr() {
	u.mu.Lock()
	b := u.pending
	u.pending = nil
	u.mu.Unlock()

	if len(b) == 0 {
		return
	}
	u.rx.Copyin(uio.NewFakeBuf(b))
}

// Read drains up to len(dst) bytes queued in the RX ring, returning
// the number of bytes copied.
func (u *RefUART) Read(dst []byte) int {
	out := make([]byte, len(dst))
	n, _ := u.rx.CopyoutN(uio.NewFakeBuf(out), len(dst))
	copy(dst, out[:n])
	return n
}

// Write queues b on the TX ring for later transmission, mirroring
// uartputc's software-buffered write path.
func (u *RefUART) Write(b []byte) int {
	n, _ := u.tx.Copyin(uio.NewFakeBuf(b))
	return n
}
