package hashtable

import (
	"testing"

	"ustr"
)

func TestSetGetRoundTrip(t *testing.T) {
	ht := MkHash[int](8)
	k := ustr.FromString("/a/b")

	if _, ok := ht.Get(k); ok {
		t.Fatal("Get on empty table returned ok")
	}

	if _, inserted := ht.Set(k, 42); !inserted {
		t.Fatal("first Set reported not-inserted")
	}
	v, ok := ht.Get(k)
	if !ok || v != 42 {
		t.Fatalf("Get after Set = (%d, %v), want (42, true)", v, ok)
	}
}

func TestSetExistingKeyLeavesTableUnchanged(t *testing.T) {
	ht := MkHash[int](8)
	k := ustr.FromString("/x")
	ht.Set(k, 1)

	old, inserted := ht.Set(k, 2)
	if inserted {
		t.Fatal("Set on existing key reported inserted")
	}
	if old != 1 {
		t.Fatalf("Set on existing key returned %d, want the old value 1", old)
	}
	v, _ := ht.Get(k)
	if v != 1 {
		t.Fatalf("table value after no-op Set = %d, want 1", v)
	}
}

func TestDelRemovesKey(t *testing.T) {
	ht := MkHash[int](8)
	k := ustr.FromString("/y")
	ht.Set(k, 7)

	ht.Del(k)
	if _, ok := ht.Get(k); ok {
		t.Fatal("Get after Del still found the key")
	}
}

func TestDelOfMissingKeyPanics(t *testing.T) {
	ht := MkHash[int](8)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic deleting a missing key")
		}
	}()
	ht.Del(ustr.FromString("/missing"))
}

func TestSizeAndElems(t *testing.T) {
	ht := MkHash[int](4)
	paths := []string{"/a", "/b", "/c"}
	for i, p := range paths {
		ht.Set(ustr.FromString(p), i)
	}
	if got := ht.Size(); got != len(paths) {
		t.Fatalf("Size() = %d, want %d", got, len(paths))
	}
	if got := len(ht.Elems()); got != len(paths) {
		t.Fatalf("len(Elems()) = %d, want %d", got, len(paths))
	}
}

func TestIterStopsOnTrue(t *testing.T) {
	ht := MkHash[int](4)
	ht.Set(ustr.FromString("/a"), 1)
	ht.Set(ustr.FromString("/b"), 2)

	visited := 0
	ht.Iter(func(k ustr.Ustr, v int) bool {
		visited++
		return true
	})
	if visited != 1 {
		t.Fatalf("Iter visited %d elements after returning true, want 1", visited)
	}
}
