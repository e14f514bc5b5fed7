package capture

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hammamikhairi/talkbox/internal/button"
	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
	"github.com/hammamikhairi/talkbox/internal/sim"
)

func setup(t *testing.T, hold time.Duration, sample int16) (*Recorder, *sim.Mic, *sim.Clock) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	clock := sim.NewClock(0)
	mic := sim.NewMic(clock, domain.DefaultSampleRate, sample)
	btn := sim.NewButton(clock, &button.Latch{})
	btn.Press(hold)
	rec := NewRecorder(mic, btn, clock, log, WithGain(4), WithMaxDuration(30*time.Second))
	return rec, mic, clock
}

func TestSaturate(t *testing.T) {
	for x := math.MinInt16; x <= math.MaxInt16; x++ {
		want := int64(x) * 4
		if want > math.MaxInt16 {
			want = math.MaxInt16
		}
		if want < math.MinInt16 {
			want = math.MinInt16
		}
		if got := Saturate(int32(x) * 4); int64(got) != want {
			t.Fatalf("Saturate(%d*4) = %d, want %d", x, got, want)
		}
	}
}

func TestApplyGainInPlace(t *testing.T) {
	in := []int16{0, 1, -1, 8191, 8192, -8192, -8193, 32767, -32768}
	want := []int16{0, 4, -4, 32764, 32767, -32768, -32768, 32767, -32768}

	b := make([]byte, 2*len(in)+1)
	for i, s := range in {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	b[len(b)-1] = 0x7f // trailing odd byte

	ApplyGain(b, 4)
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(b[2*i:])); got != w {
			t.Fatalf("sample %d: got %d, want %d", i, got, w)
		}
	}
	if b[len(b)-1] != 0x7f {
		t.Fatal("odd trailing byte was modified")
	}
}

func TestCaptureStopsOnRelease(t *testing.T) {
	rec, mic, _ := setup(t, 2*time.Second, 100)
	buf := make([]byte, domain.BufferCap(16000, 30)-domain.HeaderSize)

	n := rec.Capture(buf)
	// 2 s of audio in 128 ms reads: 16 reads reach 2048 ms.
	if n != 16*domain.ReadChunk {
		t.Fatalf("captured %d bytes, want %d", n, 16*domain.ReadChunk)
	}
	if mic.Zeroed != 1 {
		t.Fatalf("input zeroed %d times, want 1", mic.Zeroed)
	}
	if got := int16(binary.LittleEndian.Uint16(buf)); got != 400 {
		t.Fatalf("gain not applied: first sample %d", got)
	}
}

func TestCaptureMaxDuration(t *testing.T) {
	rec, _, clock := setup(t, 40*time.Second, 1)
	buf := make([]byte, domain.BufferCap(16000, 30)-domain.HeaderSize)

	n := rec.Capture(buf)
	if n != len(buf) {
		t.Fatalf("captured %d bytes, want exactly %d", n, len(buf))
	}
	if clock.Millis() != 30000 {
		t.Fatalf("capture ended at %dms, want 30000", clock.Millis())
	}
}

func TestCaptureBoundedByBuffer(t *testing.T) {
	for _, size := range []int{0, 1, 999, 4096, 5000, 10001} {
		rec, _, _ := setup(t, 40*time.Second, 7)
		buf := make([]byte, size)
		n := rec.Capture(buf)
		if n < 0 || n > size {
			t.Fatalf("size %d: captured %d", size, n)
		}
	}
}

func TestCaptureOddTailWaitsOutReads(t *testing.T) {
	// One byte of room never fits a sample: every read comes back empty
	// and the loop ends on the duration limit, not on the empty read.
	rec, mic, clock := setup(t, 40*time.Second, 7)
	if n := rec.Capture(make([]byte, 1)); n != 0 {
		t.Fatalf("captured %d bytes into a 1-byte buffer", n)
	}
	if clock.Millis() != 30000 {
		t.Fatalf("capture ended at %dms, want 30000", clock.Millis())
	}
	if want := int(30 * time.Second / domain.ReadTimeout); mic.Reads != want {
		t.Fatalf("reads = %d, want %d", mic.Reads, want)
	}
}

func TestCaptureNotHeld(t *testing.T) {
	rec, mic, _ := setup(t, 0, 1)
	if n := rec.Capture(make([]byte, 8192)); n != 0 {
		t.Fatalf("captured %d bytes with the button released", n)
	}
	if mic.Reads != 0 {
		t.Fatalf("read %d times with the button released", mic.Reads)
	}
}

// stutterMic returns nothing on every other read and odd byte counts
// otherwise, to check that empty reads do not end the loop and that odd
// reads keep samples aligned.
type stutterMic struct {
	clock *sim.Clock
	calls int
}

func (s *stutterMic) Zero() error { return nil }

func (s *stutterMic) Read(p []byte, _ time.Duration) (int, error) {
	s.calls++
	s.clock.Advance(50)
	if s.calls%2 == 1 {
		return 0, errors.New("i2s timeout")
	}
	n := min(len(p), 3)
	for i := 0; i < n; i++ {
		p[i] = 0x01 // each complete sample reads 0x0101 = 257
	}
	return n, nil
}

func TestCaptureEmptyAndOddReads(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	clock := sim.NewClock(0)
	btn := sim.NewButton(clock, &button.Latch{})
	btn.Press(time.Second)
	in := &stutterMic{clock: clock}
	rec := NewRecorder(in, btn, clock, log, WithGain(2))

	buf := make([]byte, 64)
	n := rec.Capture(buf)
	if n == 0 {
		t.Fatal("empty reads terminated the capture")
	}
	for i := 0; i+1 < n&^1; i += 2 {
		if got := int16(binary.LittleEndian.Uint16(buf[i:])); got != 514 {
			t.Fatalf("sample at %d = %d, want 514", i, got)
		}
	}
}

func TestBuffer(t *testing.T) {
	b, err := NewBuffer(16000, 30, 8<<20)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if b.Cap() != 960044 || len(b.Samples()) != 960000 {
		t.Fatalf("cap %d, samples %d", b.Cap(), len(b.Samples()))
	}

	framed := b.Frame(1000)
	if len(framed) != 1044 || string(framed[:4]) != "RIFF" {
		t.Fatalf("framed len %d", len(framed))
	}
	if got := binary.LittleEndian.Uint32(framed[40:]); got != 1000 {
		t.Fatalf("data size = %d", got)
	}
	if len(b.Frame(2_000_000)) != b.Cap() {
		t.Fatal("Frame should clamp to the buffer")
	}

	if _, err := NewBuffer(16000, 30, 1<<19); !errors.Is(err, domain.ErrAllocation) {
		t.Fatalf("expected ErrAllocation, got %v", err)
	}
}
