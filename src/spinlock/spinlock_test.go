package spinlock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hart"
	"riscv"
)

func newHart() *hart.CPU {
	return hart.New(0, riscv.NewSoftIntrCtl())
}

// E2 Spin nesting: acquire(A); acquire(B); release(B) -> interrupts
// still disabled; release(A) -> interrupts re-enabled.
func TestNestedAcquireRelease(t *testing.T) {
	h := newHart()
	require.True(t, h.Intr.Enabled())

	a := New("A")
	b := New("B")

	a.Acquire(h)
	require.False(t, h.Intr.Enabled())
	b.Acquire(h)
	require.False(t, h.Intr.Enabled())

	b.Release(h)
	require.False(t, h.Intr.Enabled(), "inner release must not re-enable interrupts")

	a.Release(h)
	require.True(t, h.Intr.Enabled(), "outermost release restores interrupts")
}

func TestHoldingAndOwnership(t *testing.T) {
	h := newHart()
	l := New("L")
	require.False(t, l.Holding(h))
	l.Acquire(h)
	require.True(t, l.Holding(h))
	l.Release(h)
	require.False(t, l.Holding(h))
}

func TestReacquireSameLockFatal(t *testing.T) {
	h := newHart()
	l := New("L")
	l.Acquire(h)
	require.Panics(t, func() { l.Acquire(h) })
}

func TestReleaseNotHeldFatal(t *testing.T) {
	h := newHart()
	l := New("L")
	require.Panics(t, func() { l.Release(h) })
}

func TestPopOffWithoutPushOffFatal(t *testing.T) {
	h := newHart()
	require.Panics(t, func() { PopOff(h) })
}

func TestConcurrentAcquireIsMutuallyExclusive(t *testing.T) {
	h1 := hart.New(0, riscv.NewSoftIntrCtl())
	h2 := hart.New(1, riscv.NewSoftIntrCtl())
	l := New("shared")
	counter := 0
	done := make(chan struct{})
	iters := 2000

	work := func(h *hart.CPU) {
		for i := 0; i < iters; i++ {
			l.Acquire(h)
			counter++
			l.Release(h)
		}
		done <- struct{}{}
	}
	go work(h1)
	go work(h2)
	<-done
	<-done
	require.Equal(t, 2*iters, counter)
}
