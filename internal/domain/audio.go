package domain

import "time"

// Audio and timing constants shared by capture, framing and the controller.
const (
	HeaderSize  = 44   // canonical PCM WAV header
	ReadChunk   = 4096 // max bytes per I2S read, socket write or socket read
	BitDepth    = 16
	NumChannels = 1

	DefaultSampleRate = 16000
	DefaultMaxSeconds = 30
	DefaultMicGain    = 4
	MinCapture        = 1000 // bytes; shorter captures are discarded

	DebounceWindow  = 50 * time.Millisecond
	MinErrorDwell   = time.Second
	ReadTimeout     = 100 * time.Millisecond
	PollInterval    = 100 * time.Millisecond
	LoopInterval    = 10 * time.Millisecond
	ResponseTimeout = 60 * time.Second
	ProbeTimeout    = 5 * time.Second
)

// Session persistence.
const (
	SessionNamespace = "voice_asst"
	SessionKey       = "session_id"
	DeviceIDKey      = "device_id"
	MaxSessionID     = 64
)

// ResponseFile is the fixed name of the downloaded reply inside the data dir.
const ResponseFile = "response.mp3"

// BufferCap returns CAP = rate · 2 · seconds + 44.
func BufferCap(sampleRate, maxSeconds int) int {
	return sampleRate*2*maxSeconds + HeaderSize
}
