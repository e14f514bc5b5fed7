package wav

import (
	"bytes"
	"math/rand"
	"testing"

	gowav "github.com/go-audio/wav"

	"github.com/hammamikhairi/talkbox/internal/domain"
)

func TestPutHeaderFields(t *testing.T) {
	buf := make([]byte, domain.HeaderSize)
	if err := PutHeader(buf, 32000, Voice); err != nil {
		t.Fatalf("PutHeader: %v", err)
	}

	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.RIFFSize != 32036 || h.DataSize != 32000 {
		t.Fatalf("sizes = %d/%d", h.RIFFSize, h.DataSize)
	}
	if h.SampleRate != 16000 || h.Channels != 1 || h.BitsPerSample != 16 {
		t.Fatalf("format = %+v", h.Format)
	}
	if Voice.ByteRate() != 32000 || Voice.BlockAlign() != 2 {
		t.Fatalf("byte rate %d, block align %d", Voice.ByteRate(), Voice.BlockAlign())
	}
}

// Framed buffers must decode with an independent WAV reader, and the sizes
// must track the number of sample bytes for any n up to CAP-44.
func TestFramedBufferDecodes(t *testing.T) {
	capBytes := domain.BufferCap(domain.DefaultSampleRate, domain.DefaultMaxSeconds)
	sizes := []int{0, 2, 1000, 4096, 32000, capBytes - domain.HeaderSize}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		sizes = append(sizes, 2*rng.Intn((capBytes-domain.HeaderSize)/2))
	}

	for _, n := range sizes {
		buf := make([]byte, domain.HeaderSize+n)
		rng.Read(buf[domain.HeaderSize:])
		if err := PutHeader(buf, uint32(n), Voice); err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}

		h, err := ParseHeader(buf)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if h.RIFFSize != uint32(n)+36 || h.DataSize != uint32(n) {
			t.Fatalf("n=%d: riff=%d data=%d", n, h.RIFFSize, h.DataSize)
		}

		if n == 0 {
			continue
		}
		dec := gowav.NewDecoder(bytes.NewReader(buf))
		dec.ReadInfo()
		if err := dec.Err(); err != nil {
			t.Fatalf("n=%d: go-audio rejected the file: %v", n, err)
		}
		if err := dec.FwdToPCM(); err != nil {
			t.Fatalf("n=%d: FwdToPCM: %v", n, err)
		}
		if dec.PCMSize != n {
			t.Fatalf("n=%d: decoder PCM size %d", n, dec.PCMSize)
		}
		if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
			t.Fatalf("n=%d: decoder format %d/%d/%d", n, dec.SampleRate, dec.NumChans, dec.BitDepth)
		}
	}
}

func TestParseHeaderRejects(t *testing.T) {
	good := make([]byte, domain.HeaderSize)
	if err := PutHeader(good, 10, Voice); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:20] }},
		{"riff", func(b []byte) []byte { copy(b, "RIFX"); return b }},
		{"wave", func(b []byte) []byte { copy(b[8:], "AVI "); return b }},
		{"fmt", func(b []byte) []byte { copy(b[12:], "junk"); return b }},
		{"format", func(b []byte) []byte { b[20] = 3; return b }},
		{"size mismatch", func(b []byte) []byte { b[4]++; return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), good...)
			if _, err := ParseHeader(tt.mutate(b)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if err := PutHeader(make([]byte, 10), 0, Voice); err != ErrShortBuffer {
		t.Fatalf("PutHeader short = %v", err)
	}
}
