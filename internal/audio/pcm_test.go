package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		bytes, rate, channels int
		want                  time.Duration
	}{
		{44100, 22050, 1, time.Second},
		{88200, 22050, 2, time.Second},
		{3200, 16000, 1, 100 * time.Millisecond},
		{100, 0, 1, 0},
	}
	for _, tt := range tests {
		got := Duration(make([]byte, tt.bytes), tt.rate, tt.channels)
		if got != tt.want {
			t.Errorf("Duration(%d bytes, %d Hz, %d ch) = %v, want %v", tt.bytes, tt.rate, tt.channels, got, tt.want)
		}
	}
}

func samples(vals ...int16) []byte {
	b := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func TestResample(t *testing.T) {
	in := samples(0, 100, 200, 300)

	if got := Resample(in, 22050, 22050); len(got) != len(in) {
		t.Errorf("same rate should return the input, got %d bytes", len(got))
	}

	up := Resample(in, 1, 2)
	want := []int16{0, 50, 100, 150, 200, 250, 300, 300}
	if len(up) != len(want)*2 {
		t.Fatalf("expected %d samples, got %d", len(want), len(up)/2)
	}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(up[i*2:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}

	down := Resample(in, 2, 1)
	if len(down) != 4 {
		t.Fatalf("expected 2 samples, got %d bytes", len(down))
	}
	if got := int16(binary.LittleEndian.Uint16(down[2:])); got != 200 {
		t.Errorf("second downsampled sample = %d, want 200", got)
	}
}

func TestResampleNegativeSamples(t *testing.T) {
	out := Resample(samples(-1000, 1000), 1, 2)
	if got := int16(binary.LittleEndian.Uint16(out)); got != -1000 {
		t.Errorf("first sample = %d, want -1000", got)
	}
	if got := int16(binary.LittleEndian.Uint16(out[2:])); got != 0 {
		t.Errorf("midpoint = %d, want 0", got)
	}
}
