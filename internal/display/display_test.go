package display

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hammamikhairi/talkbox/internal/button"
	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/sim"
)

func TestToggleDrivesButton(t *testing.T) {
	clock := sim.NewClock(500)
	latch := &button.Latch{}
	c := NewConsole(clock, latch, 30*time.Second)

	if !c.Toggle() || !c.Pressed() {
		t.Fatal("first toggle should press")
	}
	ev, ok := latch.Take()
	if !ok || ev.At != 500 {
		t.Fatalf("latched %+v, %v", ev, ok)
	}

	if c.Toggle() || c.Pressed() {
		t.Fatal("second toggle should release")
	}
	if latch.Pending() {
		t.Fatal("release fired an edge")
	}
}

func TestRecordingFill(t *testing.T) {
	clock := sim.NewClock(0)
	c := NewConsole(clock, &button.Latch{}, 30*time.Second)

	c.OnState(domain.StateIdle, domain.StateRecording)
	clock.Advance(15000)
	if p := c.view(); p.fill != 0.5 {
		t.Fatalf("fill = %v", p.fill)
	}
	clock.Advance(60000)
	if p := c.view(); p.fill != 1 {
		t.Fatalf("fill not capped: %v", p.fill)
	}
	c.OnState(domain.StateRecording, domain.StateProcessing)
	if p := c.view(); p.fill != 0 {
		t.Fatalf("fill outside recording = %v", p.fill)
	}
}

func TestRender(t *testing.T) {
	bar := progress.New(progress.WithWidth(20))
	p := panel{
		state:   domain.StatePlaying,
		duty:    60,
		hasLast: true,
		last:    domain.Interaction{Transcription: "what time is it", SessionID: "abc"},
	}
	out := p.render(bar, 100)
	for _, want := range []string{"PLAYING", "what time is it", "session abc", "button up"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}

	p.last = domain.Interaction{Err: errors.New("unexpected http status 500")}
	if out := p.render(bar, 100); !strings.Contains(out, "500") {
		t.Fatalf("error not shown:\n%s", out)
	}
	p.last = domain.Interaction{Discarded: true, CapturedBytes: 640}
	if out := p.render(bar, 100); !strings.Contains(out, "too short") {
		t.Fatalf("discard not shown:\n%s", out)
	}
}

func TestLEDColor(t *testing.T) {
	tests := map[uint8]string{0: "#000000", 30: "#1e1e1e", 255: "#ffffff"}
	for duty, want := range tests {
		if got := ledColor(duty); got != want {
			t.Errorf("ledColor(%d) = %s, want %s", duty, got, want)
		}
	}
}

func TestModelKeys(t *testing.T) {
	latch := &button.Latch{}
	c := NewConsole(sim.NewClock(0), latch, time.Second)
	m := model{console: c, bar: progress.New()}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !c.Pressed() || !latch.Pending() {
		t.Fatal("space did not press the button")
	}
	if !next.(model).panel.held {
		t.Fatal("panel not refreshed after a key press")
	}

	_, cmd := next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not return tea.Quit")
	}
}

func TestCentre(t *testing.T) {
	got := centre([]string{"abcd", "ab"}, 10)
	if got[0] != "   abcd" || got[1] != "   ab" {
		t.Fatalf("centre = %q", got)
	}
	if got := centre([]string{"abcdef"}, 4); got[0] != "abcdef" {
		t.Fatalf("narrow terminal padded: %q", got)
	}
	if !strings.Contains(RenderBanner("q: quit"), "q: quit") {
		t.Fatal("hint missing from banner")
	}
}
