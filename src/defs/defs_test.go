package defs

import "testing"

func TestMkdevUnmkdevRoundTrip(t *testing.T) {
	cases := []struct {
		maj, min int
	}{
		{D_CONSOLE, 0},
		{D_RAWDISK, 3},
		{D_RAWDISK, 0xff},
	}
	for _, c := range cases {
		d := Mkdev(c.maj, c.min)
		gotMaj, gotMin := Unmkdev(d)
		if gotMaj != c.maj || gotMin != c.min {
			t.Fatalf("Mkdev(%d, %d) round-tripped to (%d, %d)", c.maj, c.min, gotMaj, gotMin)
		}
	}
}

func TestMkdevPanicsOnOversizedMinor(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on minor > 0xff")
		}
	}()
	Mkdev(D_RAWDISK, 0x100)
}

func TestErrTErrorKnownAndUnknown(t *testing.T) {
	if ENOENT.Error() != "no such file or directory" {
		t.Fatalf("unexpected message for ENOENT: %q", ENOENT.Error())
	}
	if Err_t(-999).Error() != "unknown error" {
		t.Fatalf("unexpected message for unmapped code: %q", Err_t(-999).Error())
	}
}
