// Package config loads endpoint settings from the environment (and an
// optional .env file) with the defaults the hardware was tuned for.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hammamikhairi/talkbox/internal/domain"
)

// Config holds every tunable of the endpoint.
type Config struct {
	// Server
	ServerHost      string
	ServerPort      int
	UseTLS          bool
	VoiceEndpoint   string
	StatusEndpoint  string
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration

	// Audio capture
	SampleRate int
	MaxSeconds int
	MicGain    int
	MinCapture int
	PSRAMBytes int

	// UI
	Debounce   time.Duration
	ErrorDwell time.Duration
	Volume     int // 0..21

	// Network link
	NetInterface string
	LinkTimeout  time.Duration
	LinkRetry    time.Duration

	// Hardware
	ButtonPin string
	LEDPin    string

	// Persistence
	DataDir string

	// Telemetry
	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string
	DeviceID     string

	// Diagnostics
	DebugAudioLevels bool
	DebugHTTP        bool
}

// Load reads .env (if present) and the TALKBOX_* environment variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerHost:      getEnv("TALKBOX_SERVER_HOST", "192.168.50.5"),
		ServerPort:      getEnvInt("TALKBOX_SERVER_PORT", 5000),
		UseTLS:          getEnvBool("TALKBOX_USE_TLS", true),
		VoiceEndpoint:   getEnv("TALKBOX_VOICE_ENDPOINT", "/voice/process"),
		StatusEndpoint:  getEnv("TALKBOX_STATUS_ENDPOINT", "/voice/status"),
		ConnectTimeout:  getEnvDuration("TALKBOX_CONNECT_TIMEOUT", 10*time.Second),
		ResponseTimeout: getEnvDuration("TALKBOX_RESPONSE_TIMEOUT", domain.ResponseTimeout),

		SampleRate: getEnvInt("TALKBOX_SAMPLE_RATE", domain.DefaultSampleRate),
		MaxSeconds: getEnvInt("TALKBOX_MAX_SECONDS", domain.DefaultMaxSeconds),
		MicGain:    getEnvInt("TALKBOX_MIC_GAIN", domain.DefaultMicGain),
		MinCapture: getEnvInt("TALKBOX_MIN_CAPTURE", domain.MinCapture),
		PSRAMBytes: getEnvInt("TALKBOX_PSRAM_BYTES", 8<<20),

		Debounce:   getEnvDuration("TALKBOX_DEBOUNCE", domain.DebounceWindow),
		ErrorDwell: getEnvDuration("TALKBOX_ERROR_DWELL", 2*time.Second),
		Volume:     getEnvInt("TALKBOX_VOLUME", 15),

		NetInterface: getEnv("TALKBOX_NET_IFACE", ""),
		LinkTimeout:  getEnvDuration("TALKBOX_LINK_TIMEOUT", 15*time.Second),
		LinkRetry:    getEnvDuration("TALKBOX_LINK_RETRY", 5*time.Second),

		ButtonPin: getEnv("TALKBOX_BUTTON_PIN", "GPIO4"),
		LEDPin:    getEnv("TALKBOX_LED_PIN", "GPIO21"),

		DataDir: getEnv("TALKBOX_DATA_DIR", ".talkbox"),

		MQTTBroker:   getEnv("TALKBOX_MQTT_BROKER", ""),
		MQTTUsername: getEnv("TALKBOX_MQTT_USERNAME", ""),
		MQTTPassword: getEnv("TALKBOX_MQTT_PASSWORD", ""),
		MQTTTopic:    getEnv("TALKBOX_MQTT_TOPIC", "talkbox"),
		DeviceID:     getEnv("TALKBOX_DEVICE_ID", ""),

		DebugAudioLevels: getEnvBool("TALKBOX_DEBUG_AUDIO_LEVELS", false),
		DebugHTTP:        getEnvBool("TALKBOX_DEBUG_HTTP", false),
	}
}

// Validate reports the first setting the endpoint cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerHost == "" {
		errs = append(errs, errors.New("server host is empty"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.ServerPort))
	}
	if !strings.HasPrefix(c.VoiceEndpoint, "/") || !strings.HasPrefix(c.StatusEndpoint, "/") {
		errs = append(errs, errors.New("endpoints must start with /"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate %d must be positive", c.SampleRate))
	}
	if c.MaxSeconds <= 0 {
		errs = append(errs, fmt.Errorf("max seconds %d must be positive", c.MaxSeconds))
	}
	if c.MicGain <= 0 {
		errs = append(errs, fmt.Errorf("mic gain %d must be positive", c.MicGain))
	}
	if c.Debounce < domain.DebounceWindow {
		errs = append(errs, fmt.Errorf("debounce %s below %s", c.Debounce, domain.DebounceWindow))
	}
	if c.ErrorDwell < domain.MinErrorDwell {
		errs = append(errs, fmt.Errorf("error dwell %s below %s", c.ErrorDwell, domain.MinErrorDwell))
	}
	if c.Volume < 0 || c.Volume > 21 {
		errs = append(errs, fmt.Errorf("volume %d outside 0..21", c.Volume))
	}
	if c.ResponseTimeout <= 0 || c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// BaseURL returns scheme://host:port for the configured server.
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.ServerHost, c.ServerPort)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s=%q is not an integer, using %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s=%q is not a bool, using %t\n", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s=%q is not a duration, using %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}
