package sleeplock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hart"
	"riscv"
	"schedref"
)

func newHart(id int) *hart.CPU {
	return hart.New(id, riscv.NewSoftIntrCtl())
}

func TestAcquireReleaseUncontended(t *testing.T) {
	h := newHart(0)
	sc := schedref.New()
	p := schedref.NewProc(1)
	l := New("L")

	require.False(t, l.Holding(h, p))
	l.Acquire(h, sc, p)
	require.True(t, l.Holding(h, p))
	l.Release(h, sc, p)
	require.False(t, l.Holding(h, p))
}

func TestReleaseByNonHolderFatal(t *testing.T) {
	h := newHart(0)
	sc := schedref.New()
	p1 := schedref.NewProc(1)
	p2 := schedref.NewProc(2)
	l := New("L")

	l.Acquire(h, sc, p1)
	require.Panics(t, func() { l.Release(h, sc, p2) })
}

// A contended sleeplock parks the second acquirer until the first
// releases; no wakeup fired between the waiter's recheck and its park
// is lost, and only one of the two ever observes itself as holder at a
// time.
func TestContendedAcquireSerializes(t *testing.T) {
	sc := schedref.New()
	holder1 := schedref.NewProc(1)
	holder2 := schedref.NewProc(2)
	l := New("L")

	h1 := newHart(0)
	l.Acquire(h1, sc, holder1)

	var mu sync.Mutex
	order := []int{}

	h2 := newHart(1)
	done := make(chan struct{})
	go func() {
		l.Acquire(h2, sc, holder2)
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		l.Release(h2, sc, holder2)
		close(done)
	}()

	// Give the second acquirer time to park on the contended lock.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	l.Release(h1, sc, holder1)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquirer never woke")
	}

	require.Equal(t, []int{1, 2}, order)
}
