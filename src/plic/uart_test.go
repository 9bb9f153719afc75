package plic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
	"hart"
	"kalloc"
	"riscv"
)

func newUARTArena(t *testing.T) (*kalloc.Arena, *hart.CPU) {
	h := hart.New(0, riscv.NewSoftIntrCtl())
	a := kalloc.NewArena(4)
	a.Kinit(h)
	return a, h
}

func TestRefUARTIntrDrainsArrivedBytesIntoRX(t *testing.T) {
	a, h := newUARTArena(t)
	u := NewRefUART(a, h)
	require.Equal(t, defs.Mkdev(defs.D_CONSOLE, 0), u.Dev())

	u.Arrive([]byte("hi"))
	u.Intr()

	got := make([]byte, 2)
	n := u.Read(got)
	require.Equal(t, 2, n)
	require.Equal(t, "hi", string(got))
}

func TestRefUARTIntrWithNothingPendingIsNoop(t *testing.T) {
	a, h := newUARTArena(t)
	u := NewRefUART(a, h)

	u.Intr()

	got := make([]byte, 4)
	n := u.Read(got)
	require.Equal(t, 0, n)
}

func TestRefUARTWriteQueuesOnTX(t *testing.T) {
	a, h := newUARTArena(t)
	u := NewRefUART(a, h)

	n := u.Write([]byte("out"))
	require.Equal(t, 3, n)
	require.Equal(t, 3, u.tx.Used())
}

func TestClassifierDispatchesToRefUART(t *testing.T) {
	h := hart.New(0, riscv.NewSoftIntrCtl())
	a := kalloc.NewArena(4)
	a.Kinit(h)

	r := New()
	r.Init()
	r.InitHart(h)

	uart := NewRefUART(a, h)
	cl := &Classifier{PLIC: r, UART: uart}

	uart.Arrive([]byte("ok"))
	r.Raise(UART0_IRQ)
	kind := cl.DevIntr(h)
	require.Equal(t, 1, kind)

	got := make([]byte, 2)
	n := uart.Read(got)
	require.Equal(t, 2, n)
	require.Equal(t, "ok", string(got))
}
