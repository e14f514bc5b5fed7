package hw

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

// queueChunks bounds how much captured audio is buffered between the
// device callback and the capture loop (roughly the DMA ring).
const queueChunks = 64

var _ domain.AudioInput = (*Mic)(nil)

// Mic is the host microphone opened through miniaudio. The device callback
// plays the part of the I2S DMA: it pushes PCM into a bounded queue that
// Read drains.
type Mic struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	q      *pcmQueue
	log    *logger.Logger
}

// OpenMic starts capturing 16-bit mono PCM at sampleRate.
func OpenMic(sampleRate int, log *logger.Logger) (*Mic, error) {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(_ string) {})
	if err != nil {
		return nil, fmt.Errorf("mic: init context: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = uint32(sampleRate)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Alsa.NoMMap = 1

	q := newPCMQueue(queueChunks)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			q.push(raw)
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		_ = mCtx.Uninit()
		mCtx.Free()
		return nil, fmt.Errorf("mic: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mCtx.Uninit()
		mCtx.Free()
		return nil, fmt.Errorf("mic: start: %w", err)
	}

	log.Debug("mic: capture started (rate=%d, channels=1, 16-bit)", sampleRate)
	return &Mic{ctx: mCtx, device: device, q: q, log: log}, nil
}

// Zero drops everything captured so far.
func (m *Mic) Zero() error {
	if d := m.q.dropped.Swap(0); d > 0 {
		m.log.Debug("mic: %d chunks overflowed since last capture", d)
	}
	m.q.reset()
	return nil
}

// Read implements domain.AudioInput.
func (m *Mic) Read(p []byte, timeout time.Duration) (int, error) {
	return m.q.read(p, timeout), nil
}

// Close stops the device and releases miniaudio.
func (m *Mic) Close() error {
	_ = m.device.Stop()
	m.device.Uninit()
	_ = m.ctx.Uninit()
	m.ctx.Free()
	return nil
}

// ── Queue ────────────────────────────────────────────────────────

// pcmQueue hands callback buffers to the reader. Full queues drop the
// newest chunk, like an overrun DMA ring.
type pcmQueue struct {
	ch      chan []byte
	rem     []byte // reader side only
	dropped atomic.Int64
}

func newPCMQueue(chunks int) *pcmQueue {
	return &pcmQueue{ch: make(chan []byte, chunks)}
}

// push copies raw; the device reuses its buffer after the callback.
func (q *pcmQueue) push(raw []byte) {
	if len(raw) == 0 {
		return
	}
	b := make([]byte, len(raw))
	copy(b, raw)
	select {
	case q.ch <- b:
	default:
		q.dropped.Add(1)
	}
}

// read fills p with queued audio, waiting up to timeout for the first
// bytes. It never blocks once some data has been copied.
func (q *pcmQueue) read(p []byte, timeout time.Duration) int {
	if len(p) == 0 {
		return 0
	}
	if len(q.rem) == 0 {
		t := time.NewTimer(timeout)
		select {
		case q.rem = <-q.ch:
			t.Stop()
		case <-t.C:
			return 0
		}
	}

	n := copy(p, q.rem)
	q.rem = q.rem[n:]
	for n < len(p) && len(q.rem) == 0 {
		select {
		case q.rem = <-q.ch:
			k := copy(p[n:], q.rem)
			q.rem = q.rem[k:]
			n += k
		default:
			return n
		}
	}
	return n
}

func (q *pcmQueue) reset() {
	q.rem = nil
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
