package driver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/retrocpc/pkg/cpcvm"
	"github.com/antibyte/retrocpc/pkg/keyboard"
	"github.com/antibyte/retrocpc/pkg/storage"
	"github.com/antibyte/retrocpc/pkg/textcanvas"
)

// program builds generated-code shaped programs from one step per label.
// Unknown labels end the program.
func program(steps map[string]func(vm *cpcvm.VM)) Program {
	return func(vm *cpcvm.VM) {
		for vm.LoopCondition() {
			step, ok := steps[vm.Line()]
			if !ok {
				vm.End()
				continue
			}
			step(vm)
		}
	}
}

type testRig struct {
	vm     *cpcvm.VM
	clock  *cpcvm.ManualClock
	canvas *textcanvas.Canvas
	keys   *keyboard.Buffer
	sleeps int
	// onSleep runs after the clock advanced
	onSleep func()
}

func newRig(labels ...string) *testRig {
	r := &testRig{
		clock:  &cpcvm.ManualClock{},
		canvas: textcanvas.New(),
		keys:   keyboard.NewBuffer(),
	}
	r.vm = cpcvm.New(cpcvm.Options{Canvas: r.canvas, Input: r.keys, Clock: r.clock, Tag: "test"})
	for _, l := range labels {
		r.vm.Labels().Add(l)
	}
	return r
}

func (r *testRig) sleep(ctx context.Context, d time.Duration) error {
	r.sleeps++
	r.clock.Advance(d.Milliseconds())
	if r.onSleep != nil {
		r.onSleep()
	}
	return ctx.Err()
}

func (r *testRig) driver(steps map[string]func(vm *cpcvm.VM), opts Options) *Driver {
	opts.Sleep = r.sleep
	return New(r.vm, program(steps), opts)
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "driver.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFrameWait(t *testing.T) {
	r := newRig()
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { _ = vm.Print(0, "A"); vm.Frame(); vm.Goto("20") },
		"20": func(vm *cpcvm.VM) { _ = vm.Print(0, "B"); vm.End() },
	}, Options{})

	out, err := d.Start(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	if out.Reason != cpcvm.StopEnd {
		t.Errorf("outcome = %s, want end", out.Reason)
	}
	if r.sleeps != 1 || r.clock.Now != 20 {
		t.Errorf("sleeps = %d, clock = %d", r.sleeps, r.clock.Now)
	}
	if got := r.canvas.Lines()[0]; got != "AB" {
		t.Errorf("screen = %q", got)
	}
}

func TestFallingOffTheEndIsEnd(t *testing.T) {
	r := newRig()
	d := r.driver(map[string]func(vm *cpcvm.VM){}, Options{})
	out, err := d.Start(context.Background(), "10")
	if err != nil || out.Reason != cpcvm.StopEnd {
		t.Errorf("outcome = %s, %v", out.Reason, err)
	}
}

func TestInputProvider(t *testing.T) {
	r := newRig()
	var got float64
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) {
			_ = vm.Input(cpcvm.InputRequest{Stream: 0, Message: "? ", Names: []string{"a"}, ResumeAt: "10r"})
		},
		"10r": func(vm *cpcvm.VM) {
			v, _ := vm.NextInput()
			got = v.NumValue
			vm.End()
		},
	}, Options{})

	var prompts []string
	answers := []string{"x", "42"}
	d.input = InputFunc(func(ctx context.Context, req cpcvm.InputPayload) (string, error) {
		prompts = append(prompts, req.Message)
		a := answers[0]
		answers = answers[1:]
		return a, nil
	})

	out, err := d.Start(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	if out.Reason != cpcvm.StopEnd || got != 42 {
		t.Errorf("outcome = %s, value = %v", out.Reason, got)
	}
	if len(prompts) != 2 {
		t.Errorf("provider called %d times, want 2 (redo)", len(prompts))
	}
	if !strings.Contains(r.canvas.String(), "?Redo from start") {
		t.Errorf("screen = %q", r.canvas.String())
	}
}

func TestInputWithoutProviderGoesToCaller(t *testing.T) {
	r := newRig()
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) {
			_ = vm.Input(cpcvm.InputRequest{Stream: 0, Names: []string{"a$"}, ResumeAt: "20"})
		},
	}, Options{})
	out, err := d.Start(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	p, ok := out.Payload.(cpcvm.InputPayload)
	if out.Reason != cpcvm.StopWaitInput || !ok || p.ResumeAt != "20" {
		t.Errorf("outcome = %s %+v", out.Reason, out.Payload)
	}
}

func TestInputEscapeBreaks(t *testing.T) {
	r := newRig()
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) {
			_ = vm.Input(cpcvm.InputRequest{Stream: 0, Names: []string{"a$"}, ResumeAt: "20"})
		},
	}, Options{Input: InputFunc(func(ctx context.Context, req cpcvm.InputPayload) (string, error) {
		return "", ErrEscape
	})})
	out, err := d.Start(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	if out.Reason != cpcvm.StopBreak || !r.vm.CanContinue() {
		t.Errorf("outcome = %s, can continue = %v", out.Reason, r.vm.CanContinue())
	}
}

func TestWaitKeyConsumesKey(t *testing.T) {
	r := newRig()
	r.onSleep = func() { r.keys.PutKey("k") }
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { _ = vm.Call(0xbb18); vm.Goto("20") },
		"20": func(vm *cpcvm.VM) { vm.End() },
	}, Options{})

	out, err := d.Start(context.Background(), "10")
	if err != nil || out.Reason != cpcvm.StopEnd {
		t.Fatalf("outcome = %s, %v", out.Reason, err)
	}
	if r.sleeps != 1 {
		t.Errorf("sleeps = %d", r.sleeps)
	}
	if r.keys.Pending() != 0 {
		t.Error("key not consumed")
	}
}

func TestEscapeBreaksRun(t *testing.T) {
	r := newRig()
	r.keys.PutKey("\x1b")
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { vm.Goto("10") },
	}, Options{})
	out, err := d.Start(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	if out.Reason != cpcvm.StopBreak {
		t.Fatalf("outcome = %s", out.Reason)
	}
	if p := out.Payload.(cpcvm.BreakPayload); p.Line != "10" {
		t.Errorf("break line = %s", p.Line)
	}
}

func TestEscapeDuringKeyWaitBreaks(t *testing.T) {
	r := newRig()
	r.onSleep = func() { r.keys.PutKey("\x1b") }
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { _ = vm.Call(0xbb18); vm.Goto("20") },
		"20": func(vm *cpcvm.VM) { vm.End() },
	}, Options{})
	out, err := d.Start(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	if out.Reason != cpcvm.StopBreak {
		t.Fatalf("outcome = %s, want break", out.Reason)
	}
	if _, ok := out.Payload.(cpcvm.BreakPayload); !ok {
		t.Errorf("payload = %T", out.Payload)
	}
	if !r.vm.CanContinue() {
		t.Error("break must be continuable")
	}
}

func TestEscapeIgnoredWithOnBreakCont(t *testing.T) {
	r := newRig()
	r.onSleep = func() { r.keys.PutKey("\x1b") }
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { vm.OnBreakCont(); vm.Frame(); vm.Goto("20") },
		"20": func(vm *cpcvm.VM) { vm.End() },
	}, Options{})
	out, err := d.Start(context.Background(), "10")
	if err != nil || out.Reason != cpcvm.StopEnd {
		t.Errorf("outcome = %s, %v", out.Reason, err)
	}
}

func TestOnErrorContinuesAtHandler(t *testing.T) {
	r := newRig("10", "20", "30", "100")
	errCode := -1
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { _ = vm.OnErrorGoto("100"); vm.Goto("20") },
		"20": func(vm *cpcvm.VM) {
			if _, err := vm.IntDiv(1, 0); err != nil {
				return
			}
			vm.Goto("30")
		},
		"30":  func(vm *cpcvm.VM) { vm.End() },
		"100": func(vm *cpcvm.VM) { errCode = vm.Err(); _ = vm.ResumeNext() },
	}, Options{})

	out, err := d.Start(context.Background(), "10")
	if err != nil || out.Reason != cpcvm.StopEnd {
		t.Fatalf("outcome = %s, %v", out.Reason, err)
	}
	if errCode != cpcvm.FaultDivisionByZero {
		t.Errorf("ERR = %d", errCode)
	}
}

func TestErrorOutcome(t *testing.T) {
	r := newRig("10")
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { _ = vm.Raise(cpcvm.FaultSyntax, "") },
	}, Options{})
	out, err := d.Start(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	if out.Reason != cpcvm.StopError || out.Fault == nil || out.Fault.Code != cpcvm.FaultSyntax {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Err().Error() != "Syntax Error in 10" {
		t.Errorf("message = %q", out.Err().Error())
	}
}

func TestContextCancel(t *testing.T) {
	r := newRig()
	d := r.driver(map[string]func(vm *cpcvm.VM){}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Start(ctx, "10"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestTextFileRoundTrip(t *testing.T) {
	r := newRig()
	store := newStore(t)
	var line string
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) {
			_ = vm.OpenOut("data.txt")
			_ = vm.Print(9, "HELLO", "\r\n")
			_ = vm.CloseOut("20")
		},
		"20": func(vm *cpcvm.VM) { _ = vm.OpenIn("data.txt", "30") },
		"30": func(vm *cpcvm.VM) {
			_ = vm.Input(cpcvm.InputRequest{Stream: 9, Line: true, Names: []string{"a$"}, ResumeAt: "40"})
		},
		"40": func(vm *cpcvm.VM) {
			v, _ := vm.NextInput()
			line = v.StrValue
			vm.CloseIn()
			vm.Era("*.txt", "50")
		},
		"50": func(vm *cpcvm.VM) { vm.End() },
	}, Options{Files: store})

	out, err := d.Start(context.Background(), "10")
	if err != nil || out.Reason != cpcvm.StopEnd {
		t.Fatalf("outcome = %s, %v", out.Reason, err)
	}
	if line != "HELLO" {
		t.Errorf("read back %q", line)
	}
	list, _ := store.Catalog(context.Background(), "")
	if len(list) != 0 {
		t.Errorf("files left after ERA: %+v", list)
	}
}

func TestMissingFileRaisesBroken(t *testing.T) {
	r := newRig("10", "20")
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { _ = vm.OpenIn("nothere", "20") },
	}, Options{Files: newStore(t)})
	out, err := d.Start(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	if out.Reason != cpcvm.StopError || out.Fault.Code != cpcvm.FaultBroken {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(r.canvas.String(), "NOTHERE not found") {
		t.Errorf("screen = %q", r.canvas.String())
	}
}

func TestFileOpWithoutStore(t *testing.T) {
	r := newRig()
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { vm.Cat("20") },
	}, Options{})
	if _, err := d.Start(context.Background(), "10"); !errors.Is(err, ErrNoLoader) {
		t.Errorf("err = %v", err)
	}
}

func TestBinarySaveAndLoad(t *testing.T) {
	r := newRig()
	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) {
			_ = vm.Poke(0x4000, 99)
			_ = vm.Save("blob.bin", "B", 0x4000, 1)
			vm.Goto("20")
		},
		"20": func(vm *cpcvm.VM) {
			_ = vm.Poke(0x4000, 0)
			_ = vm.Load("blob.bin")
			vm.Goto("30")
		},
		"30": func(vm *cpcvm.VM) { vm.End() },
	}, Options{Files: newStore(t)})

	out, err := d.Start(context.Background(), "10")
	if err != nil || out.Reason != cpcvm.StopEnd {
		t.Fatalf("outcome = %s, %v", out.Reason, err)
	}
	if b, _ := r.vm.Peek(0x4000); b != 99 {
		t.Errorf("PEEK after LOAD = %d", b)
	}
}

func TestProgramLoadGoesToCaller(t *testing.T) {
	r := newRig()
	store := newStore(t)
	ctx := context.Background()
	_ = store.Save(ctx, storage.File{Name: "game.bas", Content: []byte("10 PRINT \"HI\"")})

	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { vm.RunFile("game.bas") },
	}, Options{Files: store})
	out, err := d.Start(ctx, "10")
	if err != nil {
		t.Fatal(err)
	}
	op, ok := out.Payload.(cpcvm.PendingFileOp)
	if out.Reason != cpcvm.StopFileLoad || !ok || op.Kind != cpcvm.FileOpRun {
		t.Fatalf("outcome = %+v", out)
	}
	f, err := d.LoadFile(ctx, out)
	if err != nil || !strings.HasPrefix(string(f.Content), "10 PRINT") {
		t.Errorf("file = %+v, %v", f, err)
	}
}

func TestRenAndCat(t *testing.T) {
	r := newRig()
	store := newStore(t)
	ctx := context.Background()
	_ = store.Save(ctx, storage.File{Name: "one.bas", Content: []byte("x")})
	_ = store.Save(ctx, storage.File{Name: "two.bas", Content: []byte("y")})

	d := r.driver(map[string]func(vm *cpcvm.VM){
		"10": func(vm *cpcvm.VM) { vm.Ren("two.bas", "one.bas", "20") },
		"20": func(vm *cpcvm.VM) { vm.Ren("three.bas", "four.bas", "30") },
		"30": func(vm *cpcvm.VM) { vm.Cat("40") },
		"40": func(vm *cpcvm.VM) { vm.End() },
	}, Options{Files: store})
	if out, err := d.Start(ctx, "10"); err != nil || out.Reason != cpcvm.StopEnd {
		t.Fatalf("outcome = %s, %v", out.Reason, err)
	}
	screen := r.canvas.String()
	for _, want := range []string{"TWO.BAS already exists", "FOUR.BAS not found", "ONE.BAS", "Drive A"} {
		if !strings.Contains(screen, want) {
			t.Errorf("screen lacks %q:\n%s", want, screen)
		}
	}
}

func TestCatalogText(t *testing.T) {
	text := CatalogText([]storage.FileInfo{{Name: "A.BAS", Size: 10}, {Name: "B.BIN", Size: 2048}, {Name: "C", Size: 0}})
	lines := strings.Split(text, "\r\n")
	if lines[3] != "A.BAS          1K    B.BIN          2K" {
		t.Errorf("row 1 = %q", lines[3])
	}
	if lines[4] != "C              0K" {
		t.Errorf("row 2 = %q", lines[4])
	}
	if !strings.Contains(text, "175K free") {
		t.Errorf("free space line missing: %q", text)
	}
}
