package capture

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

// Option configures the Recorder.
type Option func(*Recorder)

// WithGain sets the integer microphone gain.
func WithGain(g int) Option {
	return func(r *Recorder) { r.gain = g }
}

// WithMaxDuration bounds a single capture.
func WithMaxDuration(d time.Duration) Option {
	return func(r *Recorder) { r.maxDur = d }
}

// WithTick installs a hook called once per loop pass (LED animation).
func WithTick(fn func()) Option {
	return func(r *Recorder) { r.tick = fn }
}

// WithLevelLogging prints the RMS of the latest chunk about once a second.
func WithLevelLogging(enabled bool) Option {
	return func(r *Recorder) { r.levels = enabled }
}

// Recorder runs the synchronous capture loop.
type Recorder struct {
	in     domain.AudioInput
	button domain.ButtonLine
	clock  domain.Clock
	log    *logger.Logger

	gain   int
	maxDur time.Duration
	tick   func()
	levels bool
}

// NewRecorder creates a recorder reading from in while button is held.
func NewRecorder(in domain.AudioInput, button domain.ButtonLine, clock domain.Clock, log *logger.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		in:     in,
		button: button,
		clock:  clock,
		log:    log,
		gain:   domain.DefaultMicGain,
		maxDur: domain.DefaultMaxSeconds * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capture fills buf while the button is held, the buffer has room and the
// maximum duration has not elapsed. Gain is applied in place. It returns
// the number of bytes written, never more than len(buf).
func (r *Recorder) Capture(buf []byte) int {
	if err := r.in.Zero(); err != nil {
		r.log.Warn("zeroing input failed: %v", err)
	}

	start := r.clock.Millis()
	lastLevel := start
	maxMs := r.maxDur.Milliseconds()
	written := 0
	gained := 0 // samples before this offset already have gain applied

	for r.button.Pressed() && written < len(buf) {
		if r.clock.Millis()-start >= maxMs {
			r.log.Info("max time reached")
			break
		}

		want := min(domain.ReadChunk, len(buf)-written)
		n, err := r.in.Read(buf[written:written+want], domain.ReadTimeout)
		if err != nil {
			r.log.Debug("read: %v", err)
		}
		n = max(0, min(n, want))
		if n > 0 {
			written += n
			end := written &^ 1
			ApplyGain(buf[gained:end], r.gain)

			if r.levels && r.clock.Millis()-lastLevel >= 1000 {
				lastLevel = r.clock.Millis()
				r.log.Debug("%d bytes, RMS: %.0f", written, RMS(buf[gained:end]))
			}
			gained = end
		}

		if r.tick != nil {
			r.tick()
		}
	}

	if written >= len(buf) {
		r.log.Info("buffer full")
	}
	return written
}

// ApplyGain multiplies every complete 16-bit little-endian sample in b by
// gain, saturating to the int16 range. A trailing odd byte is left as is.
func ApplyGain(b []byte, gain int) {
	for i := 0; i+1 < len(b); i += 2 {
		s := int16(binary.LittleEndian.Uint16(b[i:]))
		binary.LittleEndian.PutUint16(b[i:], uint16(Saturate(int32(s)*int32(gain))))
	}
}

// Saturate clamps v to [-32768, 32767].
func Saturate(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// RMS returns the root mean square of the 16-bit samples in b.
func RMS(b []byte) float64 {
	n := len(b) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(b[2*i:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
