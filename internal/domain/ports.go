package domain

import "time"

// Clock is the monotonic time source. Millis counts from an arbitrary
// origin (boot); Sleep suspends the calling loop.
type Clock interface {
	Millis() int64
	Sleep(d time.Duration)
}

// ButtonLine reads the instantaneous level of the push button. It returns
// true while the button is held (pin pulled low).
type ButtonLine interface {
	Pressed() bool
}

// AudioInput is the microphone side of the I2S bus: signed 16-bit
// little-endian mono frames at the configured sample rate.
type AudioInput interface {
	// Zero discards whatever the DMA ring currently holds.
	Zero() error
	// Read fills p with up to len(p) bytes, waiting at most timeout.
	// A zero-byte read with a nil error is normal.
	Read(p []byte, timeout time.Duration) (int, error)
}

// PWM drives the status LED with an 8-bit duty value.
type PWM interface {
	SetDuty(duty uint8) error
}

// Link is the network association (Wi-Fi on the device).
type Link interface {
	Associated() bool
	// Join starts (re)joining the network and returns at once. Progress
	// is observed through Associated.
	Join() error
}

// KV is a small non-volatile key/value area grouped by namespace.
// Implementations return ErrNotFound for missing keys.
type KV interface {
	Get(namespace, key string) (string, error)
	Put(namespace, key, value string) error
	Close() error
}

// Player is the playback engine. It services itself only when Tick is
// called from the controller loop.
type Player interface {
	Start(path string) error
	Running() bool
	Tick()
	Stop()
}

// Observer is notified of state transitions and finished interactions.
// Implementations must return quickly; they run on the controller loop.
type Observer interface {
	OnState(from, to State)
	OnInteraction(in Interaction)
}
