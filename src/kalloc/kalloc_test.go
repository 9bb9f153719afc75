package kalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hart"
	"riscv"
)

func newHart() *hart.CPU {
	return hart.New(0, riscv.NewSoftIntrCtl())
}

// E1: kalloc/kfree alignment, range, distinctness, and LIFO ordering.
func TestKallocAlignmentRangeDistinctnessLIFO(t *testing.T) {
	h := newHart()
	a := NewArena(4)
	a.Kinit(h)

	var frames [][]byte
	for i := 0; i < 4; i++ {
		f := a.Kalloc(h)
		require.NotNil(t, f)
		addr := addrOf(f)
		require.Zero(t, addr%PGSIZE, "frame must be page-aligned")
		require.GreaterOrEqual(t, addr, a.Base())
		require.Less(t, addr, a.Limit())
		frames = append(frames, f)
	}
	require.Nil(t, a.Kalloc(h), "freelist must be empty after draining all frames")

	seen := map[uintptr]bool{}
	for _, f := range frames {
		addr := addrOf(f)
		require.False(t, seen[addr], "frames must be distinct")
		seen[addr] = true
	}

	// kinit pushes frames low-to-high; kfree pushes onto the head, so
	// the freelist is LIFO and the first four kallocs pop in reverse of
	// the freerange walk order: highest address first.
	for i := 1; i < len(frames); i++ {
		require.Greater(t, addrOf(frames[i-1]), addrOf(frames[i]))
	}
}

func TestKallocStampsAllocFill(t *testing.T) {
	h := newHart()
	a := NewArena(1)
	a.Kinit(h)

	f := a.Kalloc(h)
	require.NotNil(t, f)
	for _, b := range f {
		require.Equal(t, byte(allocFillByte), b)
	}
}

func TestKfreeMisalignedFatal(t *testing.T) {
	h := newHart()
	a := NewArena(1)
	a.Kinit(h)
	f := a.Kalloc(h)
	require.NotNil(t, f)

	require.Panics(t, func() { a.Kfree(h, f[1:]) })
}

func TestKfreeOutOfRangeFatal(t *testing.T) {
	h := newHart()
	a := NewArena(1)
	a.Kinit(h)

	other := make([]byte, PGSIZE)
	require.Panics(t, func() { a.Kfree(h, other) })
}

func TestKallocKfreeRoundTrip(t *testing.T) {
	h := newHart()
	a := NewArena(2)
	a.Kinit(h)

	f1 := a.Kalloc(h)
	f2 := a.Kalloc(h)
	require.Nil(t, a.Kalloc(h))

	a.Kfree(h, f1)
	f3 := a.Kalloc(h)
	require.NotNil(t, f3)
	require.Equal(t, addrOf(f1), addrOf(f3))

	a.Kfree(h, f2)
	a.Kfree(h, f3)
}

func TestStatsEmptyWhenDisabled(t *testing.T) {
	h := newHart()
	a := NewArena(1)
	a.Kinit(h)

	f := a.Kalloc(h)
	a.Kfree(h, f)

	require.Equal(t, "", a.Stats())
}
