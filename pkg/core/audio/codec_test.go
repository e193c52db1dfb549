package audio

import (
	"testing"
	"time"
)

func TestMulawRoundTrip_AllBytes(t *testing.T) {
	for b := 0; b < 256; b++ {
		in := byte(b)
		out := EncodeMulawSample(DecodeMulawSample(in))

		// 0x7F is negative zero: it decodes to 0 and re-encodes as
		// positive zero 0xFF. Every other byte survives unchanged.
		want := in
		if in == 0x7F {
			want = 0xFF
		}
		if out != want {
			t.Errorf("byte 0x%02X: encode(decode()) = 0x%02X, want 0x%02X", in, out, want)
		}
	}
}

func TestMulawDecode_KnownValues(t *testing.T) {
	cases := []struct {
		in   byte
		want int16
	}{
		{0xFF, 0},      // positive zero
		{0x80, 32124},  // positive max
		{0x00, -32124}, // negative max
	}
	for _, tc := range cases {
		if got := DecodeMulawSample(tc.in); got != tc.want {
			t.Errorf("DecodeMulawSample(0x%02X) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMulawEncode_ClipsExtremes(t *testing.T) {
	if got := EncodeMulawSample(32767); got != 0x80 {
		t.Errorf("EncodeMulawSample(32767) = 0x%02X, want 0x80", got)
	}
	if got := EncodeMulawSample(-32768); got != 0x00 {
		t.Errorf("EncodeMulawSample(-32768) = 0x%02X, want 0x00", got)
	}
}

func TestEncodeDecodeMulaw_Slices(t *testing.T) {
	pcm := []int16{0, 100, -100, 8000, -8000, 32000, -32000}
	wire := EncodeMulaw(pcm)
	if len(wire) != len(pcm) {
		t.Fatalf("len(wire) = %d, want %d", len(wire), len(pcm))
	}
	back := DecodeMulaw(wire)
	if len(back) != len(pcm) {
		t.Fatalf("len(back) = %d, want %d", len(back), len(pcm))
	}
	// Re-encoding the quantized signal must be stable.
	wire2 := EncodeMulaw(back)
	for i := range wire {
		if wire[i] != wire2[i] {
			t.Errorf("byte %d: re-encode = 0x%02X, want 0x%02X", i, wire2[i], wire[i])
		}
	}
}

func TestResample_Upsample(t *testing.T) {
	in := []int16{1, 2, 3, 4}
	out := Resample(in, 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("len(out) = %d, want 8", len(out))
	}
	want := []int16{1, 1, 2, 2, 3, 3, 4, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	in := []int16{1, 2, 3, 4, 5, 6}
	out := Resample(in, 16000, 8000)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	want := []int16{1, 3, 5}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestResample_SameRateCopies(t *testing.T) {
	in := []int16{7, 8, 9}
	out := Resample(in, 8000, 8000)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	out[0] = 0
	if in[0] != 7 {
		t.Errorf("Resample aliased its input")
	}
}

func TestConfig_DurationMath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.SamplesForDuration(20 * time.Millisecond); got != FrameSamples {
		t.Errorf("SamplesForDuration(20ms) = %d, want %d", got, FrameSamples)
	}
	if got := cfg.Duration(FrameSamples); got != FrameDuration {
		t.Errorf("Duration(%d) = %v, want %v", FrameSamples, got, FrameDuration)
	}
}
