package schedref

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id by parsing the
// "goroutine N [...]" header off a runtime.Stack dump. It is a
// well-worn hack (the runtime deliberately exposes no public API for
// this) good enough for a test/reference scheduler's SetCurrent/Myproc
// pairing; production code has no business depending on it.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	b = b[len(prefix):]
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
