// Package stats provides the lightweight, compile-time-gated counters
// the kernel's hot paths (bio, wal, pipe, kalloc) increment, grounded
// on the teacher's stats.go: Counter_t/Cycles_t wrap an int64 behind
// atomic.AddInt64 and a Stats/Timing flag so an unstatted build pays
// nothing, plus Stats2String for dumping a struct of counters.
//
// Rdtsc diverges from the teacher on purpose: biscuit's runtime.Rdtsc
// reads a patched Go runtime's exported RDTSC wrapper, which this core
// does not have and must not fork. time.Now() is the stdlib's
// monotonic clock and the idiomatic replacement when no cycle counter
// is available; see DESIGN.md.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"
)

// Stats and Timing gate counter/cycle accounting off in normal builds,
// same as the teacher's compile-time constants.
const Stats = false
const Timing = false

// Rdtsc returns a monotonically increasing tick count when Stats is
// enabled, 0 otherwise.
func Rdtsc() uint64 {
	if Stats {
		return uint64(time.Now().UnixNano())
	}
	return 0
}

// Counter_t is a statistical counter, e.g. "cache hits".
type Counter_t int64

// Cycles_t accumulates elapsed Rdtsc ticks, e.g. "time spent holding a
// lock".
type Cycles_t int64

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	if Stats {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, 1)
	}
}

// Add adds the ticks elapsed since start (an earlier Rdtsc() reading)
// to the counter.
func (c *Cycles_t) Add(start uint64) {
	if Timing {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, int64(Rdtsc()-start))
	}
}

// Stats2String renders every Counter_t/Cycles_t field of st (normally
// a caller-defined struct of named counters) as a printable string, or
// "" when Stats is disabled.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
		if strings.HasSuffix(t, "Cycles_t") {
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
