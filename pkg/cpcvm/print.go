package cpcvm

import (
	"strings"
)

// PrintSpecial is a positioning item in a PRINT list.
type PrintSpecial struct {
	kind byte
	arg  any
}

// Spc is SPC(n) in a PRINT list.
func Spc(n any) PrintSpecial { return PrintSpecial{kind: 's', arg: n} }

// Tab is TAB(n) in a PRINT list.
func Tab(n any) PrintSpecial { return PrintSpecial{kind: 't', arg: n} }

// CommaTab is the "," separator in a PRINT list.
var CommaTab = PrintSpecial{kind: ','}

func (vm *VM) printSpecial(stream int, sp PrintSpecial) (string, error) {
	w := &vm.windows[stream]
	width := w.width() + 1
	if stream >= screenStreams {
		width = 255
	}
	switch sp.kind {
	case 's':
		n, err := vm.inRange(sp.arg, minInt16, maxInt16, "SPC")
		if err != nil {
			return "", err
		}
		if n < 0 {
			n = 0
		} else if n > width {
			n %= width
		}
		return strings.Repeat(" ", n), nil
	case 't':
		n, err := vm.inRange(sp.arg, minInt16, maxInt16, "TAB")
		if err != nil {
			return "", err
		}
		if n < 1 {
			n = 1
		} else if n > width {
			n %= width
			if n == 0 {
				n = width
			}
		}
		col := n - 1
		if w.Pos > col {
			return "\r\n" + strings.Repeat(" ", col), nil
		}
		return strings.Repeat(" ", col-w.Pos), nil
	default:
		count := vm.zone - w.Pos%vm.zone
		if w.Pos > 0 && w.Pos+count+vm.zone > width {
			// next zone would not fit: continue on the next line
			if stream < screenStreams {
				w.Pos += count + vm.zone
				vm.moveCursorToAllowedPos(stream)
			} else {
				return "\r\n", nil
			}
			count = 0
		}
		return strings.Repeat(" ", count), nil
	}
}

func (vm *VM) printItem(stream int, arg any) (string, error) {
	switch v := arg.(type) {
	case PrintSpecial:
		return vm.printSpecial(stream, v)
	case string:
		return v, nil
	}
	val, ok := toValue(arg)
	if !ok {
		return "", vm.Raise(FaultTypeMismatch, "PRINT")
	}
	if val.IsNumeric {
		return formatPrintNumber(val.NumValue), nil
	}
	return val.StrValue, nil
}

// Print implements PRINT #stream, items... Line ends are passed as "\r\n" items.
func (vm *VM) Print(stream any, args ...any) error {
	s, err := vm.stream(stream, 9, "PRINT")
	if err != nil {
		return err
	}
	for _, arg := range args {
		str, err := vm.printItem(s, arg)
		if err != nil {
			return err
		}
		if err := vm.output(s, str, true); err != nil {
			return err
		}
	}
	return nil
}

// output sends text to a stream: screen windows interpret control codes,
// the printer and cassette streams collect plain text.
func (vm *VM) output(stream int, str string, wrap bool) error {
	switch stream {
	case printerStream:
		vm.printer.append(str, vm.maxPrintBuffer)
		vm.trackPlainPos(stream, str)
		return nil
	case cassetteStream:
		if !vm.fileOut.open {
			return vm.Raise(FaultFileNotOpen, "PRINT #9")
		}
		vm.fileOut.text.WriteString(str)
		vm.trackPlainPos(stream, str)
		return nil
	}

	w := &vm.windows[stream]
	if w.Tag {
		vm.printGraphChars(str)
		return nil
	}
	if wrap && w.Pos > 0 && w.Pos+len(str) > w.width()+1 {
		w.Pos = 0
		w.VPos++
	}
	vm.printCharsOrControls(stream, str)
	return nil
}

func (vm *VM) trackPlainPos(stream int, s string) {
	w := &vm.windows[stream]
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\r' || s[i] == '\n':
			w.Pos = 0
		case s[i] >= 0x20:
			w.Pos++
		}
	}
}

// Write implements WRITE #stream: quoted strings, comma separated, CRLF.
func (vm *VM) Write(stream any, args ...any) error {
	s, err := vm.stream(stream, 9, "WRITE")
	if err != nil {
		return err
	}
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		val, ok := toValue(arg)
		if !ok {
			return vm.Raise(FaultTypeMismatch, "WRITE")
		}
		if val.IsNumeric {
			parts = append(parts, numberToString(val.NumValue))
		} else {
			parts = append(parts, `"`+val.StrValue+`"`)
		}
	}
	return vm.output(s, strings.Join(parts, ",")+"\r\n", false)
}

type textBuffer struct {
	sb strings.Builder
}

func (b *textBuffer) append(s string, limit int) {
	b.sb.WriteString(s)
	if limit > 0 && b.sb.Len() > limit {
		tail := b.sb.String()[b.sb.Len()-limit:]
		b.sb.Reset()
		b.sb.WriteString(tail)
	}
}

// PrinterOutput returns and clears everything printed to stream 8.
func (vm *VM) PrinterOutput() string {
	out := vm.printer.sb.String()
	vm.printer.sb.Reset()
	return out
}
