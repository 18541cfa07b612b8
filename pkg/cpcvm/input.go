package cpcvm

import (
	"strings"
)

// InputRequest describes an INPUT or LINE INPUT statement.
type InputRequest struct {
	Stream   any
	NoCRLF   bool
	Message  string
	Names    []string
	Line     bool
	ResumeAt string
}

// Input implements INPUT / LINE INPUT. Screen streams stop with waitInput;
// the driver answers through CompleteInput and generated code continues at
// ResumeAt, draining the values with NextInput. Stream 9 reads the open file
// without stopping.
func (vm *VM) Input(req InputRequest) error {
	s, err := vm.stream(req.Stream, 9, "INPUT")
	if err != nil {
		return err
	}
	if s == printerStream {
		return vm.Raise(FaultImproperArgument, "INPUT #8")
	}
	types := make([]VarType, len(req.Names))
	for i, name := range req.Names {
		types[i] = vm.VarTypeOf(name)
	}
	if s == cassetteStream {
		if err := vm.inputFromFile(req.Line, types); err != nil {
			return err
		}
		if req.ResumeAt != "" {
			vm.line = req.ResumeAt
		}
		return nil
	}

	if req.Message != "" {
		if err := vm.output(s, req.Message, false); err != nil {
			return err
		}
	}
	vm.inputValues = vm.inputValues[:0]
	payload := InputPayload{
		Stream:   s,
		Message:  req.Message,
		NoCRLF:   req.NoCRLF,
		Line:     req.Line,
		Types:    types,
		ResumeAt: req.ResumeAt,
	}
	vm.requestStop(StopWaitInput, payload)
	w := &vm.windows[s]
	if w.CursorEnabled {
		w.CursorOn = true
		vm.drawCursor(s)
	}
	return nil
}

// splitInputItems splits on commas outside double quotes.
func splitInputItems(text string) []string {
	var items []string
	var cur strings.Builder
	quoted := false
	for _, r := range text {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			items = append(items, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(items, cur.String())
}

func convertInputItems(items []string, types []VarType) ([]BASICValue, bool) {
	if len(items) != len(types) {
		return nil, false
	}
	values := make([]BASICValue, len(items))
	for i, item := range items {
		if types[i] == TypeString {
			values[i] = Str(item)
			continue
		}
		n, ok := ParseNumber(item)
		if !ok {
			return nil, false
		}
		if types[i] == TypeInteger {
			r := roundHalfAway(n)
			if r < minInt16 || r > maxInt16 {
				return nil, false
			}
			n = r
		}
		values[i] = Num(n)
	}
	return values, true
}

// CompleteInput hands the typed line to a pending INPUT. On a type or count
// mismatch "?Redo from start" is printed, the prompt repeated and the stop
// kept; it then returns false.
func (vm *VM) CompleteInput(text string) bool {
	payload, ok := vm.stop.Payload.(InputPayload)
	if vm.stop.Reason != StopWaitInput || !ok {
		return false
	}
	s := payload.Stream
	_ = vm.output(s, text, false)

	var values []BASICValue
	if payload.Line {
		values = []BASICValue{Str(text)}
	} else {
		values, ok = convertInputItems(splitInputItems(text), payload.Types)
		if !ok {
			_ = vm.output(s, "\r\n?Redo from start\r\n", false)
			if payload.Message != "" {
				_ = vm.output(s, payload.Message, false)
			}
			return false
		}
	}
	if !payload.NoCRLF {
		_ = vm.output(s, "\r\n", false)
	}
	w := &vm.windows[s]
	if w.CursorOn {
		w.CursorOn = false
		vm.drawCursor(s)
	}
	vm.inputValues = append(vm.inputValues[:0], values...)
	if payload.ResumeAt != "" {
		vm.line = payload.ResumeAt
	}
	return true
}

// NextInput returns the next value of the last completed INPUT.
func (vm *VM) NextInput() (BASICValue, bool) {
	if len(vm.inputValues) == 0 {
		return BASICValue{}, false
	}
	v := vm.inputValues[0]
	vm.inputValues = vm.inputValues[1:]
	return v, true
}

// Inkey returns the next key from the buffer or "".
func (vm *VM) Inkey() string {
	if vm.input == nil {
		return ""
	}
	return vm.input.GetKeyFromBuffer()
}

// InkeyState implements INKEY(n): -1 released, otherwise the modifier state.
func (vm *VM) InkeyState(key any) (int, error) {
	k, err := vm.inRange(key, 0, 79, "INKEY")
	if err != nil {
		return 0, err
	}
	if vm.input == nil {
		return -1, nil
	}
	return vm.input.KeyState(k), nil
}

// Joy implements JOY(n).
func (vm *VM) Joy(n any) (int, error) {
	j, err := vm.inRange(n, 0, 1, "JOY")
	if err != nil {
		return 0, err
	}
	if vm.input == nil {
		return 0, nil
	}
	return vm.input.Joystick(j), nil
}

// Key implements KEY token,string for expansion tokens 0..31 or 128..159.
func (vm *VM) Key(token any, s string) error {
	t, err := vm.inRange(token, 0, 159, "KEY")
	if err != nil {
		return err
	}
	if t > 31 && t < 128 {
		return vm.Raise(FaultImproperArgument, "KEY")
	}
	if len(s) > 120 {
		return vm.Raise(FaultImproperArgument, "KEY")
	}
	if vm.input != nil {
		vm.input.SetExpansionToken(t&0x1f, s)
	}
	return nil
}

// ClearInput implements CLEAR INPUT.
func (vm *VM) ClearInput() {
	if vm.input != nil {
		vm.input.ClearInput()
	}
}

// Frame implements FRAME: wait for the next frame flyback.
func (vm *VM) Frame() {
	vm.requestStop(StopWaitFrame, nil)
}
