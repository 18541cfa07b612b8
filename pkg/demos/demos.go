// Package demos contains a few BASIC programs in generated form. They serve
// the console and the websocket server until a compiler front end is wired
// in, and they exercise every stop the driver resolves.
package demos

import (
	"sort"
	"strings"

	"github.com/antibyte/retrocpc/pkg/cpcvm"
	"github.com/antibyte/retrocpc/pkg/driver"
)

// Demo is a compiled program with its source listing.
type Demo struct {
	Name    string
	Source  string
	Program driver.Program
}

// Install registers the line numbers of the listing with the VM so that
// RESUME NEXT and RESTORE find them.
func (d Demo) Install(vm *cpcvm.VM) {
	vm.Labels().Clear()
	for _, line := range strings.Split(strings.TrimSpace(d.Source), "\n") {
		if n, _, ok := strings.Cut(strings.TrimSpace(line), " "); ok {
			vm.Labels().Add(n)
		}
	}
}

// FirstLine returns the label of the first program line.
func (d Demo) FirstLine() string {
	n, _, _ := strings.Cut(strings.TrimSpace(d.Source), " ")
	return n
}

var registry = map[string]Demo{
	"hello": {
		Name: "hello",
		Source: `10 MODE 1:PRINT "retrocpc ready"
20 END`,
		Program: hello,
	},
	"ask": {
		Name: "ask",
		Source: `10 INPUT "Your name";n$
20 PRINT "Hello, ";n$;"!"
30 END`,
		Program: ask,
	},
	"ticker": {
		Name: "ticker",
		Source: `10 c=0:EVERY 25 GOSUB 100
20 IF c<4 THEN FRAME:GOTO 20
30 PRINT:PRINT "done":END
100 c=c+1:PRINT c;:RETURN`,
		Program: ticker,
	},
	"tune": {
		Name: "tune",
		Source: `10 FOR i=1 TO 6
20 SOUND 1,100+i*20,25,12
30 NEXT
40 PRINT "queued":END`,
		Program: tune,
	},
}

// Get returns a demo by name.
func Get(name string) (Demo, bool) {
	d, ok := registry[strings.ToLower(name)]
	return d, ok
}

// Names lists the demos alphabetically.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func hello(vm *cpcvm.VM) {
	for vm.LoopCondition() {
		switch vm.Line() {
		case "10":
			if vm.SetMode(1) != nil {
				continue
			}
			if vm.Print(0, "retrocpc ready", "\r\n") != nil {
				continue
			}
			vm.Goto("20")
		default:
			vm.End()
		}
	}
}

func ask(vm *cpcvm.VM) {
	for vm.LoopCondition() {
		switch vm.Line() {
		case "10":
			_ = vm.Input(cpcvm.InputRequest{Stream: 0, Message: "Your name? ", Names: []string{"n$"}, ResumeAt: "10r"})
		case "10r":
			v, _ := vm.NextInput()
			if vm.Let("n$", v) != nil {
				continue
			}
			vm.Goto("20")
		case "20":
			if vm.Print(0, "Hello, ", vm.Get("n$"), "!", "\r\n") != nil {
				continue
			}
			vm.Goto("30")
		default:
			vm.End()
		}
	}
}

func ticker(vm *cpcvm.VM) {
	for vm.LoopCondition() {
		switch vm.Line() {
		case "10":
			_ = vm.Let("c", 0)
			if vm.Every(25, 0, "100") != nil {
				continue
			}
			vm.Goto("20")
		case "20":
			if vm.Get("c").NumValue < 4 {
				vm.Frame()
				vm.Goto("20")
				continue
			}
			vm.Goto("30")
		case "30":
			_ = vm.Print(0, "\r\n", "done", "\r\n")
			vm.End()
		case "100":
			if vm.Let("c", vm.Get("c").NumValue+1) != nil {
				continue
			}
			_ = vm.Print(0, vm.Get("c"))
			_ = vm.Return()
		default:
			vm.End()
		}
	}
}

func tune(vm *cpcvm.VM) {
	for vm.LoopCondition() {
		switch vm.Line() {
		case "10":
			_ = vm.Let("i", 1)
			vm.Goto("20")
		case "20":
			i := vm.Get("i").NumValue
			if vm.Sound(1, 100+i*20, 25, 12) != nil {
				continue
			}
			if vm.Stopped() {
				// queue full, SOUND is retried
				continue
			}
			vm.Goto("30")
		case "30":
			i := vm.Get("i").NumValue + 1
			_ = vm.Let("i", i)
			if i <= 6 {
				vm.Goto("20")
				continue
			}
			vm.Goto("40")
		case "40":
			_ = vm.Print(0, "queued", "\r\n")
			vm.End()
		default:
			vm.End()
		}
	}
}
