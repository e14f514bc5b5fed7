// Package hw binds the endpoint's ports to host hardware: GPIO lines via
// periph.io, the microphone via miniaudio, and the network link via the
// interface table.
package hw

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/hammamikhairi/talkbox/internal/button"
	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

// PWMFrequency is the LED carrier frequency.
const PWMFrequency = 5 * physic.KiloHertz

// InitGPIO loads the periph.io host drivers. Call once before opening pins.
func InitGPIO() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("gpio: host init: %w", err)
	}
	return nil
}

func lookup(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio: no pin named %q", name)
	}
	return p, nil
}

// ── Button ───────────────────────────────────────────────────────

var _ domain.ButtonLine = (*GPIOButton)(nil)

// GPIOButton is the push button: input with pull-up, falling-edge
// detection. A dedicated goroutine waits for edges and plays the part of
// the interrupt handler: it only triggers the latch.
type GPIOButton struct {
	pin  gpio.PinIO
	stop chan struct{}
	wg   sync.WaitGroup
}

// OpenButton configures the named pin and starts edge detection.
func OpenButton(name string, latch *button.Latch, clock domain.Clock, log *logger.Logger) (*GPIOButton, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("gpio: %s as input: %w", name, err)
	}

	b := &GPIOButton{pin: p, stop: make(chan struct{})}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.stop:
				return
			default:
			}
			if p.WaitForEdge(100 * time.Millisecond) {
				latch.Trigger(clock.Millis())
			}
		}
	}()

	log.Debug("gpio: button on %s (pull-up, falling edge)", name)
	return b, nil
}

// Pressed reads the line level; the button pulls it low.
func (b *GPIOButton) Pressed() bool { return b.pin.Read() == gpio.Low }

// Close stops edge detection.
func (b *GPIOButton) Close() error {
	close(b.stop)
	b.wg.Wait()
	return b.pin.In(gpio.PullUp, gpio.NoEdge)
}

// ── LED ──────────────────────────────────────────────────────────

var _ domain.PWM = (*GPIOPWM)(nil)

// GPIOPWM drives the status LED. Pins without hardware PWM fall back to
// on/off at half duty.
type GPIOPWM struct {
	pin     gpio.PinIO
	log     *logger.Logger
	digital bool
}

// OpenPWM prepares the named pin with the LED off.
func OpenPWM(name string, log *logger.Logger) (*GPIOPWM, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	l := &GPIOPWM{pin: p, log: log}
	if err := l.SetDuty(0); err != nil {
		return nil, err
	}
	log.Debug("gpio: LED on %s", name)
	return l, nil
}

// SetDuty implements domain.PWM.
func (l *GPIOPWM) SetDuty(duty uint8) error {
	if !l.digital {
		err := l.pin.PWM(DutyFor(duty), PWMFrequency)
		if err == nil {
			return nil
		}
		l.log.Warn("gpio: %s has no PWM (%v), falling back to on/off", l.pin.Name(), err)
		l.digital = true
	}
	return l.pin.Out(gpio.Level(duty >= 128))
}

// DutyFor maps an 8-bit duty to periph's fixed-point duty.
func DutyFor(duty uint8) gpio.Duty {
	return gpio.Duty(int64(gpio.DutyMax) * int64(duty) / 255)
}

// Close turns the LED off.
func (l *GPIOPWM) Close() error {
	return l.pin.Out(gpio.Low)
}
