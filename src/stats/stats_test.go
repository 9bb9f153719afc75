package stats

import "testing"

type sample struct {
	Nhit  Counter_t
	Nmiss Counter_t
	Cycle Cycles_t
}

func TestCounterIncNoopWhenStatsDisabled(t *testing.T) {
	var c Counter_t
	c.Inc()
	c.Inc()
	if c != 0 {
		t.Fatalf("Counter_t.Inc with Stats=false: got %d, want 0", c)
	}
}

func TestCyclesAddNoopWhenTimingDisabled(t *testing.T) {
	var c Cycles_t
	c.Add(Rdtsc())
	if c != 0 {
		t.Fatalf("Cycles_t.Add with Timing=false: got %d, want 0", c)
	}
}

func TestRdtscZeroWhenStatsDisabled(t *testing.T) {
	if got := Rdtsc(); got != 0 {
		t.Fatalf("Rdtsc with Stats=false: got %d, want 0", got)
	}
}

func TestStats2StringEmptyWhenStatsDisabled(t *testing.T) {
	s := sample{Nhit: 3, Nmiss: 1}
	if got := Stats2String(s); got != "" {
		t.Fatalf("Stats2String with Stats=false: got %q, want \"\"", got)
	}
}
