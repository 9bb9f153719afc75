package circbuf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hart"
	"kalloc"
	"riscv"
	"uio"
)

func newArena(t *testing.T) (*kalloc.Arena, *hart.CPU) {
	h := hart.New(0, riscv.NewSoftIntrCtl())
	a := kalloc.NewArena(4)
	a.Kinit(h)
	return a, h
}

func TestCopyinCopyoutRoundTrip(t *testing.T) {
	a, h := newArena(t)
	cb := New(16, a, h)

	n, err := cb.Copyin(uio.NewFakeBuf([]byte("hello world")))
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, 11, cb.Used())

	dst := make([]byte, 11)
	n, err = cb.Copyout(uio.NewFakeBuf(dst))
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, "hello world", string(dst))
	require.True(t, cb.Empty())
}

func TestCopyinStopsWhenFull(t *testing.T) {
	a, h := newArena(t)
	cb := New(4, a, h)

	n, err := cb.Copyin(uio.NewFakeBuf([]byte("abcdefgh")))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.True(t, cb.Full())
}

func TestWraparound(t *testing.T) {
	a, h := newArena(t)
	cb := New(4, a, h)

	_, err := cb.Copyin(uio.NewFakeBuf([]byte("ab")))
	require.NoError(t, err)
	dst := make([]byte, 2)
	_, err = cb.Copyout(uio.NewFakeBuf(dst))
	require.NoError(t, err)
	require.Equal(t, "ab", string(dst))

	// head/tail have each advanced by 2; next write wraps around the
	// backing slice's physical end.
	n, err := cb.Copyin(uio.NewFakeBuf([]byte("cdef")))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	dst2 := make([]byte, 4)
	n, err = cb.Copyout(uio.NewFakeBuf(dst2))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "cdef", string(dst2))
}

func TestReleaseReturnsFrameToArena(t *testing.T) {
	a, h := newArena(t)
	cb := New(16, a, h)
	_, err := cb.Copyin(uio.NewFakeBuf([]byte("x")))
	require.NoError(t, err)

	before := a.Nframes()
	cb.Release()
	_ = before

	// The frame is back on the freelist: allocating Nframes() fresh
	// Circbufs should not exhaust the arena.
	for i := 0; i < a.Nframes(); i++ {
		other := New(16, a, h)
		_, err := other.Copyin(uio.NewFakeBuf([]byte("y")))
		require.NoError(t, err)
	}
}
