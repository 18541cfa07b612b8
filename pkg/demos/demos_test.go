package demos

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/retrocpc/pkg/cpcvm"
	"github.com/antibyte/retrocpc/pkg/driver"
	"github.com/antibyte/retrocpc/pkg/keyboard"
	"github.com/antibyte/retrocpc/pkg/sound"
	"github.com/antibyte/retrocpc/pkg/textcanvas"
)

type machine struct {
	vm     *cpcvm.VM
	canvas *textcanvas.Canvas
	sound  *sound.Queue
	clock  *cpcvm.ManualClock
}

func newMachine() *machine {
	m := &machine{
		canvas: textcanvas.New(),
		sound:  sound.NewQueue("test"),
		clock:  &cpcvm.ManualClock{},
	}
	m.vm = cpcvm.New(cpcvm.Options{
		Canvas: m.canvas,
		Sound:  m.sound,
		Input:  keyboard.NewBuffer(),
		Clock:  m.clock,
		Tag:    "test",
	})
	return m
}

func (m *machine) run(t *testing.T, name string, input driver.InputProvider) driver.Outcome {
	t.Helper()
	demo, ok := Get(name)
	if !ok {
		t.Fatalf("demo %q missing", name)
	}
	demo.Install(m.vm)
	d := driver.New(m.vm, demo.Program, driver.Options{
		Input: input,
		Sleep: func(ctx context.Context, d time.Duration) error {
			m.clock.Advance(d.Milliseconds())
			return ctx.Err()
		},
		Tag: "test",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := d.Start(ctx, demo.FirstLine())
	if err != nil {
		t.Fatalf("run %s: %v", name, err)
	}
	return out
}

func TestNames(t *testing.T) {
	got := strings.Join(Names(), ",")
	if got != "ask,hello,ticker,tune" {
		t.Errorf("Names() = %s", got)
	}
	if _, ok := Get("HELLO"); !ok {
		t.Error("Get is not case insensitive")
	}
}

func TestInstallAndFirstLine(t *testing.T) {
	demo, _ := Get("ticker")
	if demo.FirstLine() != "10" {
		t.Errorf("FirstLine() = %q", demo.FirstLine())
	}
	m := newMachine()
	demo.Install(m.vm)
	got := fmt.Sprint(m.vm.Labels().Lines())
	if got != "[10 20 30 100]" {
		t.Errorf("labels = %s", got)
	}
}

func TestHello(t *testing.T) {
	m := newMachine()
	out := m.run(t, "hello", nil)
	if out.Reason != cpcvm.StopEnd {
		t.Fatalf("reason = %s, want end", out.Reason)
	}
	if !strings.Contains(m.canvas.String(), "retrocpc ready") {
		t.Errorf("screen:\n%s", m.canvas.String())
	}
}

func TestAsk(t *testing.T) {
	m := newMachine()
	var prompt string
	input := driver.InputFunc(func(ctx context.Context, req cpcvm.InputPayload) (string, error) {
		prompt = req.Message
		return "Ada", nil
	})
	out := m.run(t, "ask", input)
	if out.Reason != cpcvm.StopEnd {
		t.Fatalf("reason = %s, want end", out.Reason)
	}
	if prompt != "Your name? " {
		t.Errorf("prompt = %q", prompt)
	}
	if !strings.Contains(m.canvas.String(), "Hello, Ada!") {
		t.Errorf("screen:\n%s", m.canvas.String())
	}
}

func TestTicker(t *testing.T) {
	m := newMachine()
	out := m.run(t, "ticker", nil)
	if out.Reason != cpcvm.StopEnd {
		t.Fatalf("reason = %s, want end", out.Reason)
	}
	if c := m.vm.Get("c").NumValue; c != 4 {
		t.Errorf("c = %v, want 4", c)
	}
	if !strings.Contains(m.canvas.String(), "done") {
		t.Errorf("screen:\n%s", m.canvas.String())
	}
	// four EVERY 25 intervals of 20ms frames
	if m.clock.Now < 4*25*20 {
		t.Errorf("clock = %dms, timers fired too early", m.clock.Now)
	}
}

func TestTune(t *testing.T) {
	m := newMachine()
	out := m.run(t, "tune", nil)
	if out.Reason != cpcvm.StopEnd {
		t.Fatalf("reason = %s, want end", out.Reason)
	}
	if !strings.Contains(m.canvas.String(), "queued") {
		t.Errorf("screen:\n%s", m.canvas.String())
	}
	events := m.sound.Events()
	if len(events) == 0 {
		t.Fatal("no sound events")
	}
	if events[0].Channel != 0 || events[0].Tone.Period != 120 {
		t.Errorf("first event = %+v", events[0])
	}
	// six tones, four fit in the queue: the program had to wait
	if m.clock.Now == 0 {
		t.Error("SOUND never waited for a free slot")
	}
}
