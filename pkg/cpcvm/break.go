package cpcvm

// BreakMode selects what an external ESC does.
type BreakMode int

const (
	BreakStop BreakMode = iota
	BreakCont
	BreakGosub
)

func (m BreakMode) String() string {
	switch m {
	case BreakCont:
		return "cont"
	case BreakGosub:
		return "gosub"
	default:
		return "stop"
	}
}

// OnBreakCont makes ESC ineffective.
func (vm *VM) OnBreakCont() {
	vm.breakMode = BreakCont
	vm.errState.BreakGosubLine = ""
}

// OnBreakGosub installs a break handler.
func (vm *VM) OnBreakGosub(line string) {
	vm.breakMode = BreakGosub
	vm.errState.BreakGosubLine = line
}

// OnBreakStop restores the default ESC behaviour.
func (vm *VM) OnBreakStop() {
	vm.breakMode = BreakStop
	vm.errState.BreakGosubLine = ""
}

// BreakMode returns the current ON BREAK mode.
func (vm *VM) BreakMode() BreakMode { return vm.breakMode }

// HandleEscape is called by the driver when the user breaks a running program.
func (vm *VM) HandleEscape() {
	switch vm.breakMode {
	case BreakCont:
		vm.log.Debug("escape ignored (ON BREAK CONT)")
		return
	case BreakGosub:
		if vm.breakStack > 0 {
			// handler still running
			return
		}
		line := vm.line
		if err := vm.Gosub(line, vm.errState.BreakGosubLine); err != nil {
			return
		}
		vm.errState.BreakResumeLine = line
		vm.breakStack = len(vm.gosubStack)
		return
	}
	vm.startLine = vm.line
	vm.RequestStop(StopBreak, PriorityOf(StopBreak), false, BreakPayload{Line: vm.line})
}

// Stop implements STOP; CONT resumes at resumeAt.
func (vm *VM) Stop(resumeAt string) {
	vm.startLine = resumeAt
	vm.requestStop(StopStop, nil)
}

// End implements END.
func (vm *VM) End() {
	vm.startLine = ""
	vm.requestStop(StopEnd, nil)
}

// Cont resumes after STOP or a break.
func (vm *VM) Cont() error {
	if vm.startLine == "" {
		return vm.Raise(FaultCannotContinue, "")
	}
	vm.line = vm.startLine
	vm.startLine = ""
	return nil
}

// CanContinue reports whether CONT would succeed.
func (vm *VM) CanContinue() bool { return vm.startLine != "" }
