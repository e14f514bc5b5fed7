// Package telemetry publishes controller state and interaction summaries
// to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

var _ domain.Observer = (*Publisher)(nil)

// Broker is the part of the paho client the publisher needs.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// Config holds the broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// StateEvent is the retained payload on <topic>/<device>/state.
type StateEvent struct {
	Device string `json:"device"`
	From   string `json:"from"`
	State  string `json:"state"`
	At     string `json:"at"`
}

// InteractionEvent is the payload on <topic>/<device>/interaction.
type InteractionEvent struct {
	Device        string `json:"device"`
	CapturedBytes int    `json:"captured_bytes"`
	Discarded     bool   `json:"discarded"`
	SessionID     string `json:"session_id,omitempty"`
	Transcription string `json:"transcription,omitempty"`
	AudioBytes    int64  `json:"audio_bytes"`
	Error         string `json:"error,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
}

// Publisher is a controller observer that mirrors events onto MQTT.
// Publishes are fire-and-forget; tokens are checked on a side goroutine
// so the controller loop never waits on the broker.
type Publisher struct {
	broker Broker
	device string
	root   string
	log    *logger.Logger
	now    func() time.Time
}

// New wraps an already connected broker.
func New(broker Broker, root, device string, log *logger.Logger) *Publisher {
	return &Publisher{
		broker: broker,
		device: device,
		root:   root,
		log:    log.With("mqtt"),
		now:    time.Now,
	}
}

// Connect dials the broker with auto-reconnect and returns the client.
func Connect(cfg Config, log *logger.Logger) (mqtt.Client, error) {
	log = log.With("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// Topic returns <root>/<device>/<leaf>.
func (p *Publisher) Topic(leaf string) string {
	return p.root + "/" + p.device + "/" + leaf
}

// OnState implements domain.Observer.
func (p *Publisher) OnState(from, to domain.State) {
	p.publish("state", true, StateEvent{
		Device: p.device,
		From:   from.String(),
		State:  to.String(),
		At:     p.now().UTC().Format(time.RFC3339),
	})
}

// OnInteraction implements domain.Observer.
func (p *Publisher) OnInteraction(in domain.Interaction) {
	ev := InteractionEvent{
		Device:        p.device,
		CapturedBytes: in.CapturedBytes,
		Discarded:     in.Discarded,
		SessionID:     in.SessionID,
		Transcription: in.Transcription,
		AudioBytes:    in.AudioBytes,
		DurationMs:    in.FinishedAt - in.StartedAt,
	}
	if in.Err != nil {
		ev.Error = in.Err.Error()
	}
	p.publish("interaction", false, ev)
}

func (p *Publisher) publish(leaf string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Error("marshal %s: %v", leaf, err)
		return
	}
	topic := p.Topic(leaf)
	token := p.broker.Publish(topic, 1, retained, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.log.Warn("publish %s: %v", topic, token.Error())
		}
	}()
}
