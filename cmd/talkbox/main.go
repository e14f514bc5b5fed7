// Talkbox: a push-to-talk voice assistant endpoint.
//
// Usage:
//
//	talkbox [-verbose] [-quiet] [-console] [-ephemeral]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hammamikhairi/talkbox/internal/button"
	"github.com/hammamikhairi/talkbox/internal/capture"
	"github.com/hammamikhairi/talkbox/internal/config"
	"github.com/hammamikhairi/talkbox/internal/controller"
	"github.com/hammamikhairi/talkbox/internal/display"
	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/hw"
	"github.com/hammamikhairi/talkbox/internal/led"
	"github.com/hammamikhairi/talkbox/internal/logger"
	"github.com/hammamikhairi/talkbox/internal/playback"
	"github.com/hammamikhairi/talkbox/internal/storage"
	"github.com/hammamikhairi/talkbox/internal/telemetry"
	"github.com/hammamikhairi/talkbox/internal/voiceclient"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "stderr", "file to write logs to (\"stderr\" logs to the console)")
	console := flag.Bool("console", false, "simulate the button and LED in the terminal")
	ephemeral := flag.Bool("ephemeral", false, "keep session state in memory only")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	// Configure logger.
	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	clock := hw.NewClock()
	latch := &button.Latch{}

	var ui *display.Console
	if *console {
		ui = display.NewConsole(clock, latch, time.Duration(cfg.MaxSeconds)*time.Second)
		if *logFile == "stderr" {
			logOut = ui
		}
	}

	// paho and periph log through the standard logger.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	// The capture buffer is reserved before any other hardware is opened.
	buf, bufErr := capture.NewBuffer(cfg.SampleRate, cfg.MaxSeconds, cfg.PSRAMBytes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(cfg, buf, bufErr, *ephemeral, clock, latch, ui, log)
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
	defer app.close()

	if ui == nil {
		if err := app.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("%v", err)
		}
		return
	}

	fmt.Println(display.RenderBanner("space: press / release the button", "q: quit"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Run the controller in the background; Bubble Tea owns the terminal.
	go func() {
		ui.WaitReady()
		if err := app.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("%v", err)
		}
		ui.Quit()
	}()

	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
	select {
	case <-app.done:
	case <-time.After(2 * time.Second):
		log.Warn("controller did not stop in time")
	}
}

// app holds everything main has to shut down.
type app struct {
	ctrl    *controller.Controller
	log     *logger.Logger
	closers []func() error
	done    chan struct{}
}

func (a *app) run(ctx context.Context) error {
	defer close(a.done)
	if err := a.ctrl.Boot(ctx); err != nil {
		// ERROR for good: the loop keeps blinking the LED until stopped.
		a.log.Error("boot: %v", err)
		a.ctrl.Run(ctx)
		return err
	}
	return a.ctrl.Run(ctx)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("shutdown: %v", err)
		}
	}
}

// wire builds the endpoint. With ui set, the console stands in for the
// button and the LED.
func wire(cfg *config.Config, buf *capture.Buffer, bufErr error, ephemeral bool, clock *hw.Clock, latch *button.Latch, ui *display.Console, log *logger.Logger) (*app, error) {
	a := &app{log: log, done: make(chan struct{})}

	// Persistence.
	var kv domain.KV
	if ephemeral {
		kv = storage.NewMemoryKV(log.With("nvs"))
	} else {
		bolt, err := storage.OpenBoltKV(cfg.DataDir, log.With("nvs"))
		if err != nil {
			return nil, err
		}
		kv = bolt
	}
	a.closers = append(a.closers, kv.Close)

	sessions := storage.NewSessionStore(kv, log.With("session"))
	if err := sessions.Load(); err != nil {
		log.Warn("session: %v", err)
	}
	deviceID, err := storage.DeviceID(kv, cfg.DeviceID, log)
	if err != nil {
		log.Warn("device id: %v", err)
	}
	if ui != nil {
		ui.SetDevice(deviceID)
	}

	response := storage.NewResponseStore(cfg.DataDir, domain.ResponseFile, log.With("fs"))
	if err := response.Reset(); err != nil {
		return nil, fmt.Errorf("response store: %w", err)
	}

	// Button and LED.
	var (
		btn domain.ButtonLine
		pwm domain.PWM
	)
	if ui != nil {
		btn, pwm = ui, ui
	} else {
		if err := hw.InitGPIO(); err != nil {
			return nil, err
		}
		gb, err := hw.OpenButton(cfg.ButtonPin, latch, clock, log.With("gpio"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gb.Close)
		gp, err := hw.OpenPWM(cfg.LEDPin, log.With("gpio"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gp.Close)
		btn, pwm = gb, gp
	}
	anim := led.New(pwm)

	mic, err := hw.OpenMic(cfg.SampleRate, log.With("mic"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, mic.Close)

	voice := voiceclient.New(voiceclient.Settings{
		Host:            cfg.ServerHost,
		Port:            cfg.ServerPort,
		TLS:             cfg.UseTLS,
		VoiceEndpoint:   cfg.VoiceEndpoint,
		StatusEndpoint:  cfg.StatusEndpoint,
		ConnectTimeout:  cfg.ConnectTimeout,
		ResponseTimeout: cfg.ResponseTimeout,
	}, response, clock, log.With("http"),
		voiceclient.WithYield(func() { anim.Tick(clock.Millis()) }),
		voiceclient.WithHeaderDump(cfg.DebugHTTP),
	)

	player := playback.New(log.With("audio"), playback.WithVolume(cfg.Volume))

	opts := []controller.Option{controller.WithBuffer(buf, bufErr)}
	if ui != nil {
		opts = append(opts, controller.WithObserver(ui))
	}
	if cfg.MQTTBroker != "" {
		client, err := telemetry.Connect(telemetry.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: "talkbox-" + deviceID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, log)
		if err != nil {
			log.Warn("telemetry disabled: %v", err)
		} else {
			a.closers = append(a.closers, func() error { client.Disconnect(250); return nil })
			opts = append(opts, controller.WithObserver(telemetry.New(client, cfg.MQTTTopic, deviceID, log)))
		}
	}

	settings := controller.Settings{
		SampleRate:  cfg.SampleRate,
		MaxSeconds:  cfg.MaxSeconds,
		PSRAMBytes:  cfg.PSRAMBytes,
		MicGain:     cfg.MicGain,
		MinCapture:  cfg.MinCapture,
		Debounce:    cfg.Debounce,
		ErrorDwell:  cfg.ErrorDwell,
		LinkTimeout: cfg.LinkTimeout,
		LinkRetry:   cfg.LinkRetry,
		AudioLevels: cfg.DebugAudioLevels,
	}

	a.ctrl = controller.New(controller.Deps{
		Clock:    clock,
		Latch:    latch,
		Button:   btn,
		Mic:      mic,
		LED:      anim,
		Link:     hw.NewNetLink(cfg.NetInterface, log.With("link")),
		Player:   player,
		Voice:    voice,
		Sessions: sessions,
	}, settings, log.With("ctrl"), opts...)

	log.Info("talkbox %s → %s (session %q)", deviceID, cfg.BaseURL(), sessions.Current())
	return a, nil
}
