package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/goforj/godump"
	"github.com/peterh/liner"

	"github.com/antibyte/retrocpc/pkg/configuration"
	"github.com/antibyte/retrocpc/pkg/cpcvm"
	"github.com/antibyte/retrocpc/pkg/demos"
	"github.com/antibyte/retrocpc/pkg/driver"
	"github.com/antibyte/retrocpc/pkg/keyboard"
	"github.com/antibyte/retrocpc/pkg/logger"
	"github.com/antibyte/retrocpc/pkg/sound"
	"github.com/antibyte/retrocpc/pkg/storage"
	"github.com/antibyte/retrocpc/pkg/textcanvas"
)

// machine is a VM with the devices the console uses.
type machine struct {
	store   *storage.Store
	canvas  *textcanvas.Canvas
	keys    *keyboard.Buffer
	sound   *sound.Queue
	vm      *cpcvm.VM
	program driver.Program

	// rows already written to stdout
	shown []string
}

func newMachine(store *storage.Store) *machine {
	m := &machine{
		store:  store,
		canvas: textcanvas.New(),
		keys:   keyboard.NewBuffer(),
		sound:  sound.NewQueue("console"),
	}
	m.vm = cpcvm.New(cpcvm.Options{
		Canvas: m.canvas,
		Sound:  m.sound,
		Input:  m.keys,
		RSX:    cpcvm.NewRSXRegistry(),
		Tag:    "console",
	})
	return m
}

func lastNonEmpty(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] != "" {
			return i
		}
	}
	return -1
}

// flush writes the screen rows from the first changed one up to end.
func (m *machine) flush(lines []string, end int) {
	start := 0
	for start < end && start < len(m.shown) && m.shown[start] == lines[start] {
		start++
	}
	for i := start; i < end; i++ {
		fmt.Println(lines[i])
	}
}

func (m *machine) show() {
	lines := m.canvas.Lines()
	m.flush(lines, lastNonEmpty(lines)+1)
	m.shown = lines
}

// execute runs the driver; Ctrl-C is fed to the VM as ESC.
func (m *machine) execute(run func(ctx context.Context) (driver.Outcome, error)) (driver.Outcome, error) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			select {
			case <-sig:
				m.keys.PutKey("\x1b")
			case <-ctx.Done():
				return
			}
		}
	}()
	return run(ctx)
}

func (m *machine) newDriver(program driver.Program, input driver.InputProvider) *driver.Driver {
	m.program = program
	return driver.New(m.vm, program, driver.Options{Input: input, Files: m.store, Tag: "console"})
}

// finish prints what the machine shows after a program stopped.
func (m *machine) finish(d *driver.Driver, out driver.Outcome) {
	vm := m.vm
	vm.ClearStop()
	switch out.Reason {
	case cpcvm.StopError:
		_ = vm.Print(0, out.Fault.Error(), "\r\n")
	case cpcvm.StopBreak, cpcvm.StopStop:
		_ = vm.Print(0, "\r\nBreak in "+strconv.Itoa(lineOf(vm.Line())), "\r\n")
	case cpcvm.StopFileLoad:
		// program files need a compiler, only the catalogue entry is shown
		f, err := d.LoadFile(context.Background(), out)
		if err != nil {
			_ = vm.Print(0, err.Error(), "\r\n")
			break
		}
		_ = vm.Print(0, fmt.Sprintf("%s: %d bytes, not runnable here", f.Name, len(f.Content)), "\r\n")
	case cpcvm.StopFileSave:
		if op, ok := out.Payload.(cpcvm.PendingFileOp); ok {
			_ = vm.Print(0, op.Name+": program source not available", "\r\n")
		}
	}
	m.show()
	logger.DriverDebug("console outcome %s", out.Reason)
}

func lineOf(label string) int {
	n, _ := strconv.Atoi(label)
	return n
}

// runOnce runs one demo with INPUT answered from stdin.
func runOnce(store *storage.Store, name string) error {
	demo, ok := demos.Get(name)
	if !ok {
		return fmt.Errorf("unknown program %q, available: %s", name, strings.Join(demos.Names(), ", "))
	}
	m := newMachine(store)
	stdin := bufio.NewScanner(os.Stdin)
	input := driver.InputFunc(func(ctx context.Context, req cpcvm.InputPayload) (string, error) {
		m.show()
		if !stdin.Scan() {
			return "", driver.ErrEscape
		}
		return stdin.Text(), nil
	})
	demo.Install(m.vm)
	d := m.newDriver(demo.Program, input)
	out, err := m.execute(func(ctx context.Context) (driver.Outcome, error) {
		return d.Start(ctx, demo.FirstLine())
	})
	if err != nil {
		return err
	}
	m.finish(d, out)
	return out.Err()
}

// console is the interactive front end.
type console struct {
	*machine
	ln *liner.State
}

func newConsole(store *storage.Store) *console {
	return &console{machine: newMachine(store)}
}

// ReadLine answers INPUT with a liner prompt; the prompt is the cursor row.
func (c *console) ReadLine(ctx context.Context, req cpcvm.InputPayload) (string, error) {
	lines := c.canvas.Lines()
	end := lastNonEmpty(lines)
	prompt := ""
	if end >= 0 {
		prompt = lines[end]
		c.flush(lines, end)
	}
	text, err := c.ln.Prompt(prompt)
	switch {
	case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
		return "", driver.ErrEscape
	case err != nil:
		return "", err
	}
	if end >= 0 {
		lines[end] = prompt + text
	}
	c.shown = lines
	return text, nil
}

func (c *console) loop() error {
	c.ln = liner.NewLiner()
	defer c.ln.Close()
	c.ln.SetCtrlCAborts(true)

	fmt.Println("retrocpc console, type help for commands")
	for {
		line, err := c.ln.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.ln.AppendHistory(line)
		if c.command(line) {
			return nil
		}
	}
}

// command handles one console line. It reports whether to quit.
func (c *console) command(line string) bool {
	ctx := context.Background()
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch strings.ToLower(fields[0]) {
	case "quit", ":quit", "exit":
		return true

	case "help", ":help":
		fmt.Println("run NAME | list NAME | demos | cont | cat | reset")
		fmt.Println(":dump | :save LABEL | :load ID | :snapshots | :log AREA on|off | :reload")

	case "demos":
		fmt.Println(strings.Join(demos.Names(), "  "))

	case "list":
		demo, ok := demos.Get(arg)
		if !ok {
			fmt.Printf("unknown program %q\n", arg)
			break
		}
		fmt.Println(demo.Source)

	case "run":
		demo, ok := demos.Get(arg)
		if !ok {
			fmt.Printf("unknown program %q\n", arg)
			break
		}
		demo.Install(c.vm)
		d := c.newDriver(demo.Program, c)
		out, err := c.execute(func(ctx context.Context) (driver.Outcome, error) {
			return d.Start(ctx, demo.FirstLine())
		})
		if err != nil {
			fmt.Println(err)
			break
		}
		c.finish(d, out)

	case "cont":
		if c.program == nil || !c.vm.CanContinue() {
			fmt.Println(c.vm.ComposeFault(cpcvm.FaultCannotContinue, "").Error())
			break
		}
		c.vm.ClearStop()
		_ = c.vm.Cont()
		d := c.newDriver(c.program, c)
		out, err := c.execute(d.Run)
		if err != nil {
			fmt.Println(err)
			break
		}
		c.finish(d, out)

	case "cat":
		list, err := c.store.Catalog(ctx, arg)
		if err != nil {
			fmt.Println(err)
			break
		}
		_ = c.vm.Print(0, driver.CatalogText(list))
		c.show()

	case "reset":
		c.vm.Reset()
		c.sound.Reset()
		c.keys.ClearInput()
		c.shown = nil

	case ":dump":
		godump.Dump(c.vm.Snapshot())

	case ":save":
		data, err := c.vm.Snapshot().Encode()
		if err != nil {
			fmt.Println(err)
			break
		}
		id, err := c.store.SaveSnapshot(ctx, arg, data)
		if err != nil {
			fmt.Println(err)
			break
		}
		retention := configuration.GetInt("Storage", "snapshot_retention", 50)
		if n, err := c.store.PruneSnapshots(ctx, retention); err == nil && n > 0 {
			fmt.Printf("%d old snapshots pruned\n", n)
		}
		fmt.Println("saved", id)

	case ":load":
		data, err := c.store.LoadSnapshot(ctx, arg)
		if err != nil {
			fmt.Println(err)
			break
		}
		snap, err := cpcvm.DecodeSnapshot(data)
		if err == nil {
			err = c.vm.RestoreSnapshot(snap)
		}
		if err != nil {
			fmt.Println(err)
			break
		}
		c.shown = nil
		fmt.Println("restored")

	case ":snapshots":
		list, err := c.store.ListSnapshots(ctx)
		if err != nil {
			fmt.Println(err)
			break
		}
		for _, s := range list {
			fmt.Printf("%s  %-16s %s  %d bytes\n", s.ID, s.Label, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Size)
		}

	case ":log":
		if len(fields) != 3 {
			fmt.Println("usage: :log AREA on|off")
			break
		}
		logger.SetArea(logger.LogArea(strings.ToLower(fields[1])), fields[2] == "on")

	case ":reload":
		if err := configuration.Reload(); err != nil {
			fmt.Println(err)
			break
		}
		if err := logger.ReloadConfig(); err != nil {
			fmt.Println(err)
		}

	default:
		fmt.Printf("unknown command %q, type help\n", fields[0])
	}
	return false
}
