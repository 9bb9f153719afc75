package bio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"diskio"
	"hart"
	"riscv"
	"schedref"
)

func newHart() *hart.CPU {
	return hart.New(0, riscv.NewSoftIntrCtl())
}

// E3 Buffer LRU: with NBUF=3, bread(1,10); brelse; bread(1,11); brelse;
// bread(1,12); brelse; bread(1,13) — the fourth call evicts block 10
// (LRU), not 11 or 12.
func TestBufferLRUEvictsLeastRecentlyUsed(t *testing.T) {
	h := newHart()
	sc := schedref.New()
	p := schedref.NewProc(1)
	disk := diskio.NewMemDisk()
	c := NewCache(3, disk)

	var b10, b12 *Buffer
	for _, bno := range []uint64{10, 11, 12} {
		b, err := c.Bread(h, sc, p, 1, bno)
		require.NoError(t, err)
		if bno == 10 {
			b10 = b
		}
		if bno == 12 {
			b12 = b
		}
		c.Brelse(h, sc, p, b)
	}

	b13, err := c.Bread(h, sc, p, 1, 13)
	require.NoError(t, err)
	require.EqualValues(t, 13, b13.Blockno)
	// Block 13 took over block 10's slot, the least recently used one.
	require.Same(t, b10, b13)
	c.Brelse(h, sc, p, b13)

	// Block 12, the most recently used before 13, must still be
	// cache-resident: fetching it again returns the same Buffer slot,
	// not a fresh one read off disk.
	b12again, err := c.Bread(h, sc, p, 1, 12)
	require.NoError(t, err)
	require.Same(t, b12, b12again)
	c.Brelse(h, sc, p, b12again)
}

// Identity uniqueness under concurrent bget (invariant 1): two racing
// Bgets for the same (dev, blockno) must return the same buffer.
func TestBgetIdentityUniqueness(t *testing.T) {
	h1 := newHart()
	h2 := hart.New(1, riscv.NewSoftIntrCtl())
	sc := schedref.New()
	p1 := schedref.NewProc(1)
	p2 := schedref.NewProc(2)
	disk := diskio.NewMemDisk()
	c := NewCache(4, disk)

	b1, err := c.Bread(h1, sc, p1, 1, 5)
	require.NoError(t, err)
	c.Brelse(h1, sc, p1, b1)

	// Sequential re-fetch (this reference cache's Bget is fully
	// serialized by its own spinlock, so a true data race isn't
	// exercisable without real concurrency; this checks the
	// single-identity invariant the spinlock enforces).
	b2, err := c.Bread(h2, sc, p2, 1, 5)
	require.NoError(t, err)
	require.Same(t, b1, b2)
	c.Brelse(h2, sc, p2, b2)
}

func TestBgetAllBusyFatal(t *testing.T) {
	h := newHart()
	sc := schedref.New()
	p := schedref.NewProc(1)
	disk := diskio.NewMemDisk()
	c := NewCache(2, disk)

	b1, err := c.Bread(h, sc, p, 1, 1)
	require.NoError(t, err)
	b2, err := c.Bread(h, sc, p, 1, 2)
	require.NoError(t, err)
	_ = b1
	_ = b2

	require.Panics(t, func() { c.Bget(h, sc, p, 1, 3) })
}

func TestBwriteRoundTrip(t *testing.T) {
	h := newHart()
	sc := schedref.New()
	p := schedref.NewProc(1)
	disk := diskio.NewMemDisk()
	c := NewCache(2, disk)

	b, err := c.Bread(h, sc, p, 1, 1)
	require.NoError(t, err)
	b.Data[0] = 0x42
	require.NoError(t, c.Bwrite(b))
	c.Brelse(h, sc, p, b)

	b2, err := c.Bread(h, sc, p, 1, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), b2.Data[0])
	c.Brelse(h, sc, p, b2)
}
