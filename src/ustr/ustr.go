// Package ustr implements an immutable byte-slice path/string type used
// by the reference filesystem-above-the-log collaborator (fsiface) and
// the ELF loader's path argument.
package ustr

// Ustr represents an immutable path or string used by the kernel.
type Ustr []uint8

// Isdot reports whether the string equals '.'.
func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

// Isdotdot reports whether the string equals '..'.
func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

// Eq compares two Ustr values for equality.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

// MkUstr creates an empty Ustr value.
func MkUstr() Ustr {
	return Ustr{}
}

// MkUstrRoot returns a Ustr for the root directory '/'.
func MkUstrRoot() Ustr {
	return Ustr("/")
}

// FromString converts a Go string to a Ustr, e.g. for a path literal
// that didn't come from user memory (MkUstrSlice handles the
// NUL-terminated-buffer case).
func FromString(s string) Ustr {
	return Ustr(s)
}

// MkUstrSlice converts a NUL-terminated byte slice to a Ustr, truncating
// at the first NUL byte. Used when building a Ustr from a C-style argv
// string copied out of user memory.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[:i]
		}
	}
	return buf
}

// Extend appends '/' and p to the current Ustr and returns the result.
func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	r := append(tmp, '/')
	return append(r, p...)
}

// IsAbsolute reports whether the path begins with '/'.
func (us Ustr) IsAbsolute() bool {
	if len(us) == 0 {
		return false
	}
	return us[0] == '/'
}

// IndexByte returns the index of b in the string or -1 if not present.
func (us Ustr) IndexByte(b uint8) int {
	for i, v := range us {
		if v == b {
			return i
		}
	}
	return -1
}

// String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}

// Parts splits an absolute or relative path into its non-empty, non-dot
// path components, the way namei walks a path one component at a time.
// "." components are dropped; ".." is kept so the caller can decide how
// to handle upward traversal.
func Parts(us Ustr) []Ustr {
	var parts []Ustr
	start := 0
	flush := func(end int) {
		if end > start {
			c := us[start:end]
			if !c.Isdot() {
				parts = append(parts, c)
			}
		}
	}
	for i, b := range us {
		if b == '/' {
			flush(i)
			start = i + 1
		}
	}
	flush(len(us))
	return parts
}
