// Package caller provides call-stack diagnostics used by the spin
// primitive's optional debug trail (spec.md's "lastpcs" supplemented
// feature) and by fatal-condition panics that want a call chain in the
// crash dump.
package caller

import (
	"fmt"
	"runtime"
)

// Callerdump prints the call stack starting at the given depth.
func Callerdump(start int) {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	fmt.Printf("%s", s)
}

// Trace captures up to n program counters starting at the given depth,
// for use as a lightweight "who last acquired this lock" breadcrumb.
// depth 0 refers to Trace's own caller.
func Trace(depth, n int) []uintptr {
	pcs := make([]uintptr, n)
	got := runtime.Callers(depth+2, pcs)
	return pcs[:got]
}

// Format renders a set of program counters captured by Trace into
// human-readable "file:line" frames, most-recent first.
func Format(pcs []uintptr) string {
	if len(pcs) == 0 {
		return "<no trace>"
	}
	frames := runtime.CallersFrames(pcs)
	s := ""
	for {
		fr, more := frames.Next()
		s += fmt.Sprintf("%s:%d\n", fr.File, fr.Line)
		if !more {
			break
		}
	}
	return s
}
