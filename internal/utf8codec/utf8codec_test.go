package utf8codec

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []rune{0x00, 0x41, 0x7F, 0x80, 0x7FF, 0x800, 0xFFFF, 0x10000, 0x10FFFF}
	for _, cp := range cases {
		buf := Encode(nil, cp)
		got, size, ok := Decode(buf, Ignore)
		if !ok {
			t.Fatalf("Decode(Encode(%#x)) reported invalid", cp)
		}
		if size != len(buf) {
			t.Fatalf("Decode(Encode(%#x)) consumed %d of %d bytes", cp, size, len(buf))
		}
		if got != cp {
			t.Fatalf("round trip mismatch: got %#x want %#x", got, cp)
		}
	}
}

func TestDecodeInvalidRanges(t *testing.T) {
	// surrogate U+D800 encoded as if it were a valid 3-byte sequence
	surrogate := []byte{0xED, 0xA0, 0x80}
	if _, _, ok := Decode(surrogate, Ignore); ok {
		t.Fatal("expected surrogate code point to be rejected")
	}
	r, size, ok := Decode(surrogate, Replace)
	if ok {
		t.Fatal("expected surrogate code point to be rejected in Replace mode")
	}
	if r != ReplacementChar || size != 1 {
		t.Fatalf("Replace mode: got r=%#x size=%d, want ReplacementChar size=1", r, size)
	}

	// overlong encoding of U+0041 ('A') using 2 bytes
	overlong := []byte{0xC1, 0x81}
	if _, _, ok := Decode(overlong, Ignore); ok {
		t.Fatal("expected overlong encoding to be rejected")
	}

	// code point at/above U+110000 (one past the max) using a 4-byte lead
	tooHigh := []byte{0xF4, 0x90, 0x80, 0x80}
	if _, _, ok := Decode(tooHigh, Ignore); ok {
		t.Fatal("expected code point >= U+110000 to be rejected")
	}

	// truncated 3-byte sequence
	truncated := []byte{0xE2, 0x82}
	if _, _, ok := Decode(truncated, Ignore); ok {
		t.Fatal("expected truncated sequence to be rejected")
	}
}

func TestLenCountsFirstBytesOnly(t *testing.T) {
	// "café" = c,a,f,é where é is 2 bytes
	s := []byte("café")
	if n := Len(s); n != 4 {
		t.Fatalf("Len(%q) = %d, want 4", s, n)
	}
}

func TestIsContinuation(t *testing.T) {
	if IsContinuation(0x41) {
		t.Fatal("ASCII byte reported as continuation")
	}
	if !IsContinuation(0x80) {
		t.Fatal("0x80 should be a continuation byte")
	}
	if !IsContinuation(0xBF) {
		t.Fatal("0xBF should be a continuation byte")
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, _, ok := Decode(nil, Ignore); ok {
		t.Fatal("expected empty input to be invalid")
	}
}
