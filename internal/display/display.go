// Package display provides the console simulator using Bubble Tea.
//
// The [Console] stands in for the physical button and status LED when the
// endpoint runs on a desktop: space presses and releases the button, and
// the LED duty is drawn as a grayscale block next to the UI state. Log
// output is printed above the rendered area via Program.Println, so
// concurrent writes never garble the display.
package display

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/talkbox/internal/button"
	"github.com/hammamikhairi/talkbox/internal/domain"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	// muted slate for the startup banner
	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	urgentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	heldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a")).
			Bold(true)

	stateStyles = map[domain.State]lipgloss.Style{
		domain.StateConnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),
		domain.StateIdle:       lipgloss.NewStyle().Foreground(lipgloss.Color("#bbf7d0")),
		domain.StateRecording:  lipgloss.NewStyle().Foreground(lipgloss.Color("#fca5a5")).Bold(true),
		domain.StateProcessing: lipgloss.NewStyle().Foreground(lipgloss.Color("#fde68a")),
		domain.StatePlaying:    lipgloss.NewStyle().Foreground(lipgloss.Color("#bae6fd")),
		domain.StateError:      lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171")).Bold(true),
	}
)

// ── Console ──────────────────────────────────────────────────────

var (
	_ domain.ButtonLine = (*Console)(nil)
	_ domain.PWM        = (*Console)(nil)
	_ domain.Observer   = (*Console)(nil)
)

// Console is the simulated front panel. The controller sees it as the
// button line, the LED channel and an observer; Bubble Tea polls it to
// redraw.
type Console struct {
	clock    domain.Clock
	latch    *button.Latch
	maxMs    int64
	deviceID string

	held atomic.Bool
	duty atomic.Uint32

	mu   sync.Mutex
	snap snapshot

	program *tea.Program
	readyCh chan struct{}
	quitCh  chan struct{}
	done    atomic.Bool
}

// snapshot is what the controller last reported.
type snapshot struct {
	state   domain.State
	since   int64
	last    domain.Interaction
	hasLast bool
}

// NewConsole creates the simulator. Edges go to latch stamped with clock;
// maxCapture scales the recording progress bar.
func NewConsole(clock domain.Clock, latch *button.Latch, maxCapture time.Duration) *Console {
	return &Console{
		clock:   clock,
		latch:   latch,
		maxMs:   maxCapture.Milliseconds(),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// SetDevice sets the id shown on the panel. Call it before Run.
func (c *Console) SetDevice(id string) { c.deviceID = id }

// Toggle presses the button if it is up (firing a falling edge) and
// releases it otherwise. It reports whether the button is now held.
func (c *Console) Toggle() bool {
	if c.held.Load() {
		c.held.Store(false)
		return false
	}
	c.held.Store(true)
	c.latch.Trigger(c.clock.Millis())
	return true
}

// Pressed implements domain.ButtonLine.
func (c *Console) Pressed() bool { return c.held.Load() }

// SetDuty implements domain.PWM.
func (c *Console) SetDuty(d uint8) error {
	c.duty.Store(uint32(d))
	return nil
}

// OnState implements domain.Observer.
func (c *Console) OnState(_, to domain.State) {
	c.mu.Lock()
	c.snap.state = to
	c.snap.since = c.clock.Millis()
	c.mu.Unlock()
}

// OnInteraction implements domain.Observer.
func (c *Console) OnInteraction(in domain.Interaction) {
	c.mu.Lock()
	c.snap.last = in
	c.snap.hasLast = true
	c.mu.Unlock()
}

func (c *Console) view() panel {
	c.mu.Lock()
	s := c.snap
	c.mu.Unlock()

	p := panel{
		state:    s.state,
		duty:     uint8(c.duty.Load()),
		held:     c.held.Load(),
		deviceID: c.deviceID,
		last:     s.last,
		hasLast:  s.hasLast,
	}
	if s.state == domain.StateRecording && c.maxMs > 0 {
		p.fill = min(1, float64(c.clock.Millis()-s.since)/float64(c.maxMs))
	}
	return p
}

// Println prints a line above the panel. Thread-safe. Falls back to
// fmt.Println when the program is not running.
func (c *Console) Println(a ...any) {
	if c.program != nil && !c.done.Load() {
		c.program.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// Write lets the console serve as the log sink: each write becomes a line
// above the panel.
func (c *Console) Write(p []byte) (int, error) {
	c.Println(secondaryStyle.Render(strings.TrimRight(string(p), "\n")))
	return len(p), nil
}

// WaitReady blocks until the Bubble Tea event loop is running.
func (c *Console) WaitReady() { <-c.readyCh }

// QuitChan is closed when Run returns.
func (c *Console) QuitChan() <-chan struct{} { return c.quitCh }

// Quit tells Bubble Tea to exit.
func (c *Console) Quit() {
	if c.program != nil {
		c.program.Quit()
	}
}

// Run starts the Bubble Tea event loop. Blocks until quit.
func (c *Console) Run() error {
	m := model{
		console: c,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
		readyCh: c.readyCh,
	}
	c.program = tea.NewProgram(m)
	_, err := c.program.Run()
	c.done.Store(true)
	close(c.quitCh)
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type model struct {
	console *Console
	bar     progress.Model
	readyCh chan struct{}
	panel   panel
	width   int
}

type tickMsg time.Time

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), signalReady(m.readyCh))
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

// The fastest LED pattern changes every 20 ms; 50 ms is smooth enough.
func tickCmd() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ":
			m.console.Toggle()
			m.panel = m.console.view()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.panel = m.console.view()
		return m, tea.Batch(tickCmd(), tea.SetWindowTitle("talkbox · "+m.panel.state.String()))
	}
	return m, nil
}

func (m model) View() string {
	return m.panel.render(m.bar, m.width)
}

// ── Rendering ────────────────────────────────────────────────────

// panel is one frame of the front panel.
type panel struct {
	state    domain.State
	duty     uint8
	held     bool
	fill     float64
	deviceID string
	last     domain.Interaction
	hasLast  bool
}

func (p panel) render(bar progress.Model, width int) string {
	var b strings.Builder

	parts := []string{
		ledBlock(p.duty) + " " + stateStyle(p.state).Render(strings.ToUpper(p.state.String())),
	}
	if p.held {
		parts = append(parts, heldStyle.Render("● button held"))
	} else {
		parts = append(parts, labelStyle.Render("○ button up"))
	}
	if p.state == domain.StateRecording {
		parts = append(parts, bar.ViewAs(p.fill))
	}
	if p.deviceID != "" {
		parts = append(parts, labelStyle.Render(p.deviceID))
	}

	if width <= 0 {
		width = 80
	}
	b.WriteString(barBg.Width(width).Render(" " + strings.Join(parts, sepStyle.Render("  │  ")) + " "))
	b.WriteByte('\n')

	if p.hasLast {
		b.WriteString(p.lastLine())
		b.WriteByte('\n')
	}
	b.WriteString(secondaryStyle.Render("  space: press/release button   q: quit"))
	return b.String()
}

func (p panel) lastLine() string {
	in := p.last
	switch {
	case in.Discarded:
		return secondaryStyle.Render(fmt.Sprintf("  last: too short (%d bytes), discarded", in.CapturedBytes))
	case in.Err != nil:
		return urgentStyle.Render("  last: " + in.Err.Error())
	}
	line := chatStyle.Render(fmt.Sprintf("  \"%s\"", in.Transcription))
	if in.SessionID != "" {
		line += secondaryStyle.Render("  session " + in.SessionID)
	}
	return line
}

func stateStyle(s domain.State) lipgloss.Style {
	if st, ok := stateStyles[s]; ok {
		return st
	}
	return labelStyle
}

// ledBlock draws the LED as a block whose gray level is the duty.
func ledBlock(duty uint8) string {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(ledColor(duty))).
		Render("    ")
}

func ledColor(duty uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", duty, duty, duty)
}
