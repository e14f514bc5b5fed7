// Package wav writes and checks the canonical 44-byte PCM WAV header that
// precedes the captured samples. It performs no I/O.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hammamikhairi/talkbox/internal/domain"
)

// Format describes a PCM stream.
type Format struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
}

// Voice is the capture format: 16 kHz, mono, 16-bit.
var Voice = Format{SampleRate: domain.DefaultSampleRate, Channels: domain.NumChannels, BitsPerSample: domain.BitDepth}

// BlockAlign returns channels · bits/8.
func (f Format) BlockAlign() uint16 { return f.Channels * f.BitsPerSample / 8 }

// ByteRate returns rate · channels · bits/8.
func (f Format) ByteRate() uint32 { return f.SampleRate * uint32(f.BlockAlign()) }

// ErrShortBuffer is returned when dst cannot hold a header.
var ErrShortBuffer = errors.New("wav: buffer shorter than header")

// PutHeader writes the header for dataSize sample bytes into dst[:44].
func PutHeader(dst []byte, dataSize uint32, f Format) error {
	if len(dst) < domain.HeaderSize {
		return ErrShortBuffer
	}
	le := binary.LittleEndian

	copy(dst[0:4], "RIFF")
	le.PutUint32(dst[4:8], dataSize+36)
	copy(dst[8:12], "WAVE")

	copy(dst[12:16], "fmt ")
	le.PutUint32(dst[16:20], 16) // PCM subchunk size
	le.PutUint16(dst[20:22], 1)  // PCM
	le.PutUint16(dst[22:24], f.Channels)
	le.PutUint32(dst[24:28], f.SampleRate)
	le.PutUint32(dst[28:32], f.ByteRate())
	le.PutUint16(dst[32:34], f.BlockAlign())
	le.PutUint16(dst[34:36], f.BitsPerSample)

	copy(dst[36:40], "data")
	le.PutUint32(dst[40:44], dataSize)
	return nil
}

// Header is the decoded content of a canonical header.
type Header struct {
	Format
	RIFFSize uint32
	DataSize uint32
}

// ParseHeader checks that b starts with a canonical PCM header and decodes
// it. It rejects the same inputs the voice service rejects.
func ParseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < domain.HeaderSize {
		return h, ErrShortBuffer
	}
	if string(b[0:4]) != "RIFF" {
		return h, errors.New("wav: missing RIFF marker")
	}
	if string(b[8:12]) != "WAVE" {
		return h, errors.New("wav: missing WAVE marker")
	}
	if string(b[12:16]) != "fmt " {
		return h, errors.New("wav: missing fmt chunk")
	}
	le := binary.LittleEndian
	if format := le.Uint16(b[20:22]); format != 1 {
		return h, fmt.Errorf("wav: unsupported audio format %d (want PCM)", format)
	}
	if string(b[36:40]) != "data" {
		return h, errors.New("wav: missing data chunk")
	}

	h.RIFFSize = le.Uint32(b[4:8])
	h.Channels = le.Uint16(b[22:24])
	h.SampleRate = le.Uint32(b[24:28])
	h.BitsPerSample = le.Uint16(b[34:36])
	h.DataSize = le.Uint32(b[40:44])
	if h.RIFFSize != h.DataSize+36 {
		return h, fmt.Errorf("wav: riff size %d does not match data size %d", h.RIFFSize, h.DataSize)
	}
	return h, nil
}
