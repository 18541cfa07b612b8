package cpcvm

import "strconv"

// New implements NEW.
func (vm *VM) New() {
	vm.requestStop(StopNew, nil)
}

// List implements LIST [first][-last][,#stream].
func (vm *VM) List(stream any, first, last int) error {
	s, err := vm.stream(stream, 9, "LIST")
	if err != nil {
		return err
	}
	if last == 0 {
		last = maxUint16
	}
	vm.requestStop(StopList, LineRangePayload{Stream: s, First: first, Last: last})
	return nil
}

// Delete implements DELETE first-last.
func (vm *VM) Delete(first, last int) error {
	if first < 0 || last < 0 || (last != 0 && last < first) {
		return vm.Raise(FaultImproperArgument, "DELETE")
	}
	if last == 0 {
		last = maxUint16
	}
	vm.requestStop(StopDeleteLines, LineRangePayload{First: first, Last: last})
	return nil
}

// Renum implements RENUM [new[,old[,step[,keep]]]].
func (vm *VM) Renum(args ...any) error {
	defaults := []int{10, 1, 10, maxUint16}
	vals := make([]int, 4)
	for i := range vals {
		v, err := optionalInRange(args, i, 1, maxUint16, defaults[i], "RENUM")
		if err != nil {
			return vm.raise(err)
		}
		vals[i] = v
	}
	vm.requestStop(StopRenumLines, RenumPayload{NewLine: vals[0], OldLine: vals[1], Step: vals[2], KeepLine: vals[3]})
	return nil
}

// Edit implements EDIT line.
func (vm *VM) Edit(line any) error {
	n, err := vm.inRange(line, 1, maxUint16, "EDIT")
	if err != nil {
		return err
	}
	vm.requestStop(StopEditLine, LineRangePayload{First: n, Last: n})
	return nil
}

// RunLine implements RUN [line].
func (vm *VM) RunLine(line string) {
	vm.requestStop(StopRun, RunPayload{Line: line})
}

// ResetRequest asks the driver to reset the machine (CALL 0).
func (vm *VM) ResetRequest() {
	vm.requestStop(StopReset, nil)
}

// Call implements CALL addr[,args]: the firmware entries that matter to
// BASIC programs are emulated, everything else is a no-op.
func (vm *VM) Call(addr any, args ...any) error {
	a, err := vm.twos(addr, "CALL")
	if err != nil {
		return err
	}
	switch a {
	case 0x0000:
		vm.ResetRequest()
	case 0xbb00, 0xbb03:
		// KM INITIALISE / KM RESET
		vm.ClearInput()
	case 0xbb06, 0xbb18:
		// KM WAIT CHAR / KM WAIT KEY
		vm.requestStop(StopWaitKey, nil)
	case 0xbb4e, 0xbb4b:
		// TXT INITIALISE / TXT RESET
		vm.resetWindows(true)
	case 0xbb7b:
		vm.windows[0].CursorEnabled = true
	case 0xbb7e:
		vm.windows[0].CursorEnabled = false
	case 0xbbff:
		if vm.canvas != nil {
			vm.canvas.SetGPen(1)
			vm.canvas.SetGPaper(0)
			vm.canvas.SetOrigin(0, 0)
		}
	case 0xbc02:
		if vm.canvas != nil {
			vm.canvas.SetDefaultInks()
		}
	case 0xbd19:
		// MC WAIT FLYBACK
		vm.Frame()
	default:
		vm.log.Debug("CALL &%04X ignored", a)
	}
	return nil
}

// CallRSX implements |NAME,args.
func (vm *VM) CallRSX(name string, args ...any) error {
	if vm.rsx == nil || !vm.rsx.Has(name) {
		return vm.Raise(FaultUnknownCommand, "|"+name)
	}
	if err := vm.rsx.Invoke(vm, name, args); err != nil {
		return vm.raise(err)
	}
	return nil
}

// Tron and Troff switch line tracing.
func (vm *VM) Tron()  { vm.tron = true }
func (vm *VM) Troff() { vm.tron = false }

// Trace prints "[line]" when TRON is active; generated code calls it per line.
func (vm *VM) Trace() {
	if vm.tron {
		_ = vm.output(0, "["+strconv.Itoa(lineNumber(vm.line))+"]", false)
	}
}
