package turret

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeSigned28(t *testing.T) {
	for _, test := range []struct {
		name  string
		input []byte
		want  float64
	}{
		{"zero", []byte{0x00, 0x00, 0x00, 0x00}, 0},
		{"one", []byte{0x01, 0x00, 0x00, 0x00}, 0.001},
		{"second group", []byte{0x00, 0x01, 0x00, 0x00}, 0.128},
		{"all ones is minus one", []byte{0x7f, 0x7f, 0x7f, 0x7f}, -0.001},
		{"most positive", []byte{0x7f, 0x7f, 0x7f, 0x3f}, float64(1<<27-1) / 1000},
		{"most negative", []byte{0x00, 0x00, 0x00, 0x40}, float64(-1<<27) / 1000},
		{"top bit ignored", []byte{0x81, 0x80, 0x80, 0x80}, 0.001},
		{"5 degrees", []byte{0x08, 0x27, 0x00, 0x00}, 5},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := DecodeSigned28(test.input); got != test.want {
				t.Errorf("DecodeSigned28(%#v) = %v, want %v", test.input, got, test.want)
			}
		})
	}
}

func TestEncodeSigned28(t *testing.T) {
	for _, test := range []struct {
		input float64
		want  []byte
	}{
		{0, []byte{0, 0, 0, 0}},
		{5, []byte{0x08, 0x27, 0x00, 0x00}},
		{-0.001, []byte{0x7f, 0x7f, 0x7f, 0x7f}},
		{-2, []byte{0x30, 0x70, 0x7f, 0x7f}},
		// 5.025 is not exact in binary; it must not truncate to 5024.
		{5.025, []byte{0x21, 0x27, 0x00, 0x00}},
	} {
		if diff := cmp.Diff(test.want, EncodeSigned28(test.input)); diff != "" {
			t.Errorf("EncodeSigned28(%v): got(-)/want(+):\n%s", test.input, diff)
		}
	}
}

func TestSigned28RoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 999, -999, 1 << 26, -1 << 26, 1<<27 - 1, -1 << 27}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		values = append(values, r.Int63n(1<<28)-1<<27)
	}
	for _, v := range values {
		deg := float64(v) / 1000.0
		b := EncodeSigned28(deg)
		for _, c := range b {
			if c&0x80 != 0 {
				t.Fatalf("EncodeSigned28(%v) = %#v: high bit set", deg, b)
			}
		}
		if got := decodeRaw28(b); int64(got) != v {
			t.Fatalf("raw round trip of %d: got %d", v, got)
		}
		if got := DecodeSigned28(b); got != deg {
			t.Fatalf("round trip of %v: got %v", deg, got)
		}
	}
}

func TestDecodeAbsolute14(t *testing.T) {
	if got, want := DecodeAbsolute14(0, 0), -float64(0x3fff)/(0x7fff*360.0); got != want {
		t.Errorf("DecodeAbsolute14(0, 0) = %v, want %v", got, want)
	}
	if got := DecodeAbsolute14(0x7f, 0x7f); got != 0 {
		t.Errorf("DecodeAbsolute14(0x7f, 0x7f) = %v, want 0", got)
	}
	if lo, hi := DecodeAbsolute14(0, 0), DecodeAbsolute14(0x7f, 0x7f); lo >= hi {
		t.Errorf("extremes not ordered: %v >= %v", lo, hi)
	}
}

func TestAbsolute14RoundTrip(t *testing.T) {
	unit := 1 / (0x7fff * 360.0)
	for v := 0; v <= 0x3fff; v++ {
		b := Absolute14Bytes(uint16(v))
		deg := DecodeAbsolute14(b[0], b[1])
		got := EncodeAbsolute14(deg)
		if d := int(got) - v; d < -1 || d > 1 {
			t.Fatalf("EncodeAbsolute14(DecodeAbsolute14(%#x)) = %#x", v, got)
		}
		gb := Absolute14Bytes(got)
		if back := DecodeAbsolute14(gb[0], gb[1]); math.Abs(back-deg) > unit*1.5 {
			t.Fatalf("decode after encode of %v: got %v", deg, back)
		}
	}
}

func TestEncodeAbsolute14Clamps(t *testing.T) {
	if got := EncodeAbsolute14(-1e6); got != 0 {
		t.Errorf("EncodeAbsolute14(-1e6) = %#x, want 0", got)
	}
	if got := EncodeAbsolute14(1e6); got != 0x3fff {
		t.Errorf("EncodeAbsolute14(1e6) = %#x, want 0x3fff", got)
	}
}
