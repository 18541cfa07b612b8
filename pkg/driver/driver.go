// Package driver runs generated BASIC code on a VM and resolves the stops
// the VM requests: it waits for frames and keys, feeds INPUT, performs file
// operations against a store and hands everything else back to the caller.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antibyte/retrocpc/pkg/configuration"
	"github.com/antibyte/retrocpc/pkg/cpcvm"
	"github.com/antibyte/retrocpc/pkg/logger"
	"github.com/antibyte/retrocpc/pkg/storage"
)

var (
	// ErrNoLoader is returned for file operations when no store is configured.
	ErrNoLoader = errors.New("no file store configured")
	// ErrEscape is returned by an InputProvider when the user breaks the input.
	ErrEscape = errors.New("escape pressed")
)

// Program is generated code. It runs until the VM requests a stop:
//
//	for vm.LoopCondition() {
//		switch vm.Line() {
//		case "10":
//			...
//		}
//	}
//
// Statements that stop (FRAME, INPUT, CALL &BB18, file operations) set the
// continuation label before leaving the loop; SOUND keeps the current label
// and is retried.
type Program func(vm *cpcvm.VM)

// InputProvider answers INPUT and LINE INPUT on screen streams.
type InputProvider interface {
	ReadLine(ctx context.Context, req cpcvm.InputPayload) (string, error)
}

// InputFunc adapts a function to InputProvider.
type InputFunc func(ctx context.Context, req cpcvm.InputPayload) (string, error)

func (f InputFunc) ReadLine(ctx context.Context, req cpcvm.InputPayload) (string, error) {
	return f(ctx, req)
}

// Files is the part of storage.Store the driver needs.
type Files interface {
	Load(ctx context.Context, name string) (storage.File, error)
	Save(ctx context.Context, f storage.File) error
	Catalog(ctx context.Context, mask string) ([]storage.FileInfo, error)
	Erase(ctx context.Context, mask string) (int, error)
	Rename(ctx context.Context, newName, oldName string) error
}

// escaper is implemented by keyboards that latch the ESC key.
type escaper interface {
	TakeEscape() bool
}

// Outcome is a stop the driver could not resolve on its own. The stop latch
// of the VM is left set; the caller clears it after acting on it.
type Outcome struct {
	Reason  cpcvm.StopReason
	Payload cpcvm.StopPayload
	Fault   *cpcvm.Fault
}

// Err returns the fault of an error outcome, or nil.
func (o Outcome) Err() error {
	if o.Fault == nil {
		return nil
	}
	return o.Fault
}

// Options configures a Driver. Zero values take the [Driver] configuration
// section and real time.
type Options struct {
	Input InputProvider
	Files Files
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	Tag   string
}

// Driver owns the run loop of one VM.
type Driver struct {
	vm      *cpcvm.VM
	program Program
	input   InputProvider
	files   Files
	sleep   func(ctx context.Context, d time.Duration) error

	keyPoll   time.Duration
	soundPoll time.Duration
	log       logger.Scope
}

// New creates a driver for program on vm.
func New(vm *cpcvm.VM, program Program, opts Options) *Driver {
	d := &Driver{
		vm:        vm,
		program:   program,
		input:     opts.Input,
		files:     opts.Files,
		sleep:     opts.Sleep,
		keyPoll:   configuration.GetDuration("Driver", "key_poll_interval", 20*time.Millisecond),
		soundPoll: configuration.GetDuration("Driver", "sound_poll_interval", 20*time.Millisecond),
		log:       logger.For(logger.AreaDriver, opts.Tag),
	}
	if d.sleep == nil {
		d.sleep = sleepContext
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// VM returns the driven VM.
func (d *Driver) VM() *cpcvm.VM { return d.vm }

// Start begins the program at label (RUN) and runs it.
func (d *Driver) Start(ctx context.Context, label string) (Outcome, error) {
	d.vm.Run(label)
	return d.Run(ctx)
}

// Run continues execution at the current label until a stop needs the caller
// or ctx is done.
func (d *Driver) Run(ctx context.Context) (Outcome, error) {
	vm := d.vm
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if !vm.Stopped() {
			d.pollEscape()
		}
		if !vm.Stopped() {
			d.program(vm)
			if !vm.Stopped() {
				// fell off the end of the program
				vm.End()
			}
		}

		stop := vm.CurrentStop()
		resolved, err := d.resolve(ctx, stop)
		if err != nil {
			return Outcome{}, err
		}
		if !resolved {
			// ESC während einer Wartestelle ersetzt den Stop durch break
			stop = vm.CurrentStop()
			out := Outcome{Reason: stop.Reason, Payload: stop.Payload}
			if p, ok := stop.Payload.(cpcvm.FaultPayload); ok {
				out.Fault = p.Fault
			}
			d.log.Debug("outcome %s at %s", stop.Reason, vm.Line())
			return out, nil
		}
	}
}

// pollEscape forwards a latched ESC to the VM. It reports whether it did.
func (d *Driver) pollEscape() bool {
	e, ok := d.vm.InputDevice().(escaper)
	if !ok || !e.TakeEscape() {
		return false
	}
	d.log.Debug("escape at %s", d.vm.Line())
	d.vm.HandleEscape()
	return true
}

// resolve handles one stop. It returns false when the stop goes to the caller.
func (d *Driver) resolve(ctx context.Context, stop cpcvm.StopRequest) (bool, error) {
	vm := d.vm
	switch stop.Reason {
	case cpcvm.StopNone, cpcvm.StopTimer, cpcvm.StopOnError, cpcvm.StopDirect:
		vm.ClearStop()
		return true, nil

	case cpcvm.StopWaitFrame:
		if err := d.waitFrame(ctx); err != nil {
			return false, err
		}
		vm.ClearStop()
		return true, nil

	case cpcvm.StopWaitKey:
		return d.waitKey(ctx)

	case cpcvm.StopWaitSound:
		if err := d.sleep(ctx, d.soundPoll); err != nil {
			return false, err
		}
		vm.ClearStop()
		return true, nil

	case cpcvm.StopWaitInput:
		return d.readInput(ctx, stop)

	case cpcvm.StopFileLoad, cpcvm.StopFileSave, cpcvm.StopFileCat, cpcvm.StopFileDir,
		cpcvm.StopFileEra, cpcvm.StopFileRen:
		op, ok := stop.Payload.(cpcvm.PendingFileOp)
		if !ok {
			return false, nil
		}
		return d.fileOp(ctx, op)
	}
	return false, nil
}

func (d *Driver) waitFrame(ctx context.Context) error {
	wait := d.vm.NextFrameMs() - d.vm.Now()
	if wait <= 0 {
		return nil
	}
	return d.sleep(ctx, time.Duration(wait)*time.Millisecond)
}

// waitKey implements KM WAIT KEY: the key is taken from the buffer.
func (d *Driver) waitKey(ctx context.Context) (bool, error) {
	vm := d.vm
	in := vm.InputDevice()
	if in == nil {
		return false, nil
	}
	for {
		if key := in.GetKeyFromBuffer(); key != "" {
			vm.ClearStop()
			return true, nil
		}
		if d.pollEscape() {
			switch {
			case vm.CurrentStop().Reason == cpcvm.StopBreak:
				return false, nil
			case vm.BreakMode() == cpcvm.BreakGosub:
				// the handler runs first, the wait restarts after RETURN
				vm.ClearStop()
				return true, nil
			}
		}
		if err := d.sleep(ctx, d.keyPoll); err != nil {
			return false, err
		}
		vm.PollTick()
	}
}

func (d *Driver) readInput(ctx context.Context, stop cpcvm.StopRequest) (bool, error) {
	vm := d.vm
	req, ok := stop.Payload.(cpcvm.InputPayload)
	if !ok || d.input == nil {
		return false, nil
	}
	for {
		text, err := d.input.ReadLine(ctx, req)
		if errors.Is(err, ErrEscape) {
			vm.ClearStop()
			vm.HandleEscape()
			if vm.Stopped() {
				return false, nil
			}
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("input: %w", err)
		}
		if vm.CompleteInput(text) {
			vm.ClearStop()
			return true, nil
		}
	}
}
