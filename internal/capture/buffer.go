// Package capture records PCM from the microphone into the capture
// buffer while the push button is held.
package capture

import (
	"fmt"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/wav"
)

// Buffer is the capture region reserved once at boot and reused for every
// interaction. Bytes [0,44) hold the WAV header; samples start at 44.
type Buffer struct {
	data   []byte
	format wav.Format
}

// NewBuffer reserves CAP = rate·2·seconds + 44 bytes. It fails with
// domain.ErrAllocation when CAP exceeds budget (the external RAM size).
func NewBuffer(sampleRate, maxSeconds, budget int) (*Buffer, error) {
	capBytes := domain.BufferCap(sampleRate, maxSeconds)
	if sampleRate <= 0 || maxSeconds <= 0 || (budget > 0 && capBytes > budget) {
		return nil, fmt.Errorf("%w: need %d bytes, budget %d", domain.ErrAllocation, capBytes, budget)
	}
	return &Buffer{
		data: make([]byte, capBytes),
		format: wav.Format{
			SampleRate:    uint32(sampleRate),
			Channels:      domain.NumChannels,
			BitsPerSample: domain.BitDepth,
		},
	}, nil
}

// Cap returns the full capacity including the header.
func (b *Buffer) Cap() int { return len(b.data) }

// Samples returns the sample region [44, CAP).
func (b *Buffer) Samples() []byte { return b.data[domain.HeaderSize:] }

// Frame writes the header for n sample bytes and returns the framed
// WAV view [0, 44+n). n is clamped to the sample region.
func (b *Buffer) Frame(n int) []byte {
	n = max(0, min(n, len(b.data)-domain.HeaderSize))
	// The header region always fits, so PutHeader cannot fail here.
	_ = wav.PutHeader(b.data, uint32(n), b.format)
	return b.data[:domain.HeaderSize+n]
}
