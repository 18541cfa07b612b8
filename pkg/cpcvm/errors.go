package cpcvm

import (
	"errors"
	"strconv"
)

// Fault codes of the BASIC error taxonomy (ERR values).
const (
	FaultUnknownOwn        = 0
	FaultUnexpectedNext    = 1
	FaultSyntax            = 2
	FaultUnexpectedReturn  = 3
	FaultDataExhausted     = 4
	FaultImproperArgument  = 5
	FaultOverflow          = 6
	FaultMemoryFull        = 7
	FaultLineMissing       = 8
	FaultSubscriptRange    = 9
	FaultArrayDimensioned  = 10
	FaultDivisionByZero    = 11
	FaultInvalidDirect     = 12
	FaultTypeMismatch      = 13
	FaultStringSpaceFull   = 14
	FaultStringTooLong     = 15
	FaultStringTooComplex  = 16
	FaultCannotContinue    = 17
	FaultUnknownFunction   = 18
	FaultResumeMissing     = 19
	FaultUnexpectedResume  = 20
	FaultDirectCommand     = 21
	FaultOperandMissing    = 22
	FaultLineTooLong       = 23
	FaultEOFMet            = 24
	FaultFileType          = 25
	FaultNextMissing       = 26
	FaultFileAlreadyOpen   = 27
	FaultUnknownCommand    = 28
	FaultWendMissing       = 29
	FaultUnexpectedWend    = 30
	FaultFileNotOpen       = 31
	FaultBroken            = 32
	FaultUnknown           = 33
)

var faultKinds = [...]string{
	"Improper argument", // 0: used for unimplemented operations
	"Unexpected NEXT",
	"Syntax Error",
	"Unexpected RETURN",
	"DATA exhausted",
	"Improper argument",
	"Overflow",
	"Memory full",
	"Line does not exist",
	"Subscript out of range",
	"Array already dimensioned",
	"Division by zero",
	"Invalid direct command",
	"Type mismatch",
	"String space full",
	"String too long",
	"String expression too complex",
	"Cannot CONTinue",
	"Unknown user function",
	"RESUME missing",
	"Unexpected RESUME",
	"Direct command found",
	"Operand missing",
	"Line too long",
	"EOF met",
	"File type error",
	"NEXT missing",
	"File already open",
	"Unknown command",
	"WEND missing",
	"Unexpected WEND",
	"File not open",
	"Broken",
	"Unknown error",
}

// FaultKind returns the message text for an error code. Codes outside the
// taxonomy map to "Unknown error".
func FaultKind(code int) string {
	if code < 0 || code >= len(faultKinds) {
		return faultKinds[FaultUnknown]
	}
	return faultKinds[code]
}

// Fault is a BASIC runtime error. It is composed without side effects and
// becomes visible (or not) once the VM routes it through its error state.
type Fault struct {
	Code   int    `json:"code"`
	Kind   string `json:"kind"`
	Line   string `json:"line"`
	Info   string `json:"info,omitempty"`
	Hidden bool   `json:"hidden"`

	routed bool
}

func (f *Fault) Error() string {
	msg := f.Kind
	if f.Info != "" {
		msg += ": " + f.Info
	}
	if f.Line != "" {
		msg += " in " + strconv.Itoa(lineNumber(f.Line))
	}
	return msg
}

// newFault creates a fault that is not yet bound to a line.
func newFault(code int, info string) *Fault {
	return &Fault{Code: code, Kind: FaultKind(code), Info: info}
}

// AsFault extracts a *Fault from an error chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ErrorState is the ON ERROR / ON BREAK bookkeeping.
type ErrorState struct {
	ErrorGotoLine   string `json:"errorGotoLine"`
	ErrorResumeLine string `json:"errorResumeLine"`
	BreakGosubLine  string `json:"breakGosubLine"`
	BreakResumeLine string `json:"breakResumeLine"`
	LastErrorCode   int    `json:"lastErrorCode"`
	LastErrorLine   string `json:"lastErrorLine"`
}

// ComposeFault builds a fault for the current line. It has no side effects.
func (vm *VM) ComposeFault(code int, info string) *Fault {
	f := newFault(code, info)
	f.Line = vm.line
	return f
}

// HandleFault routes a fault: with an ON ERROR GOTO handler armed and idle
// execution continues hidden at the handler, otherwise a visible error stop
// is requested.
func (vm *VM) HandleFault(f *Fault) *Fault {
	f.routed = true
	vm.errState.LastErrorCode = f.Code
	vm.errState.LastErrorLine = f.Line

	if vm.errState.ErrorGotoLine != "" && vm.errState.ErrorResumeLine == "" && f.Line != "" {
		vm.errState.ErrorResumeLine = f.Line
		f.Hidden = true
		vm.log.Debug("fault %d at %s handled by %s", f.Code, f.Line, vm.errState.ErrorGotoLine)
		vm.line = vm.errState.ErrorGotoLine
		vm.RequestStop(StopOnError, PriorityOf(StopOnError), false, FaultPayload{Fault: f})
		return f
	}

	vm.log.Debug("fault: %s", f.Error())
	vm.startLine = ""
	vm.RequestStop(StopError, PriorityOf(StopError), false, FaultPayload{Fault: f})
	return f
}

// Raise composes and routes a fault for the current line.
func (vm *VM) Raise(code int, info string) error {
	return vm.HandleFault(vm.ComposeFault(code, info))
}

// raise binds an unrouted fault (as returned by the numeric helpers) to the
// current line and routes it. Foreign errors become "Unknown error".
func (vm *VM) raise(err error) error {
	if f, ok := AsFault(err); ok {
		if f.routed {
			return f
		}
		return vm.Raise(f.Code, f.Info)
	}
	return vm.Raise(FaultUnknown, err.Error())
}

// inRange is InRangeRound with routing.
func (vm *VM) inRange(v any, min, max int, where string) (int, error) {
	n, err := InRangeRound(v, min, max, where)
	if err != nil {
		return 0, vm.raise(err)
	}
	return n, nil
}

func (vm *VM) twos(v any, where string) (int, error) {
	n, err := TwosComplementRound(v, where)
	if err != nil {
		return 0, vm.raise(err)
	}
	return n, nil
}

// OnErrorGoto arms (or with "" / "0" disarms) the error handler. Changing the
// handler while one is running is refused with a visible stop.
func (vm *VM) OnErrorGoto(line string) error {
	if line == "0" {
		line = ""
	}
	if vm.errState.ErrorResumeLine != "" {
		resumeFrom := vm.errState.ErrorResumeLine
		code := vm.errState.LastErrorCode
		if line == "" {
			vm.errState.ErrorGotoLine = ""
			vm.errState.ErrorResumeLine = ""
		}
		f := vm.ComposeFault(code, "ON ERROR GOTO without RESUME from "+strconv.Itoa(lineNumber(resumeFrom)))
		f.routed = true
		vm.errState.LastErrorLine = f.Line
		vm.startLine = ""
		vm.RequestStop(StopError, PriorityOf(StopError), false, FaultPayload{Fault: f})
		return f
	}
	vm.errState.ErrorGotoLine = line
	return nil
}

// Resume continues at the line that raised the handled error.
func (vm *VM) Resume() error {
	if vm.errState.ErrorResumeLine == "" {
		return vm.Raise(FaultUnexpectedResume, "RESUME")
	}
	vm.line = vm.errState.ErrorResumeLine
	vm.errState.ErrorResumeLine = ""
	return nil
}

// ResumeLine continues at the given line.
func (vm *VM) ResumeLine(line string) error {
	if vm.errState.ErrorResumeLine == "" {
		return vm.Raise(FaultUnexpectedResume, "RESUME "+line)
	}
	vm.errState.ErrorResumeLine = ""
	vm.line = line
	return nil
}

// ResumeNext continues at the line following the faulting one. Without a
// following line the program ends.
func (vm *VM) ResumeNext() error {
	resumeFrom := vm.errState.ErrorResumeLine
	if resumeFrom == "" {
		return vm.Raise(FaultUnexpectedResume, "RESUME NEXT")
	}
	vm.errState.ErrorResumeLine = ""
	next, ok := vm.labels.Next(resumeFrom)
	if !ok {
		vm.line = resumeFrom
		vm.RequestStop(StopEnd, PriorityOf(StopEnd), false, nil)
		return nil
	}
	vm.line = next
	return nil
}

// ErrorStatement implements ERROR n.
func (vm *VM) ErrorStatement(code any) error {
	n, err := vm.inRange(code, 0, 255, "ERROR")
	if err != nil {
		return err
	}
	return vm.HandleFault(vm.ComposeFault(n, ""))
}

// Err returns the code of the last error.
func (vm *VM) Err() int { return vm.errState.LastErrorCode }

// Erl returns the line number of the last error.
func (vm *VM) Erl() int { return lineNumber(vm.errState.LastErrorLine) }

// Derr returns the last disc error (always 0 here).
func (vm *VM) Derr() int { return 0 }

// ErrorState returns a copy of the error/break bookkeeping.
func (vm *VM) ErrorState() ErrorState { return vm.errState }
