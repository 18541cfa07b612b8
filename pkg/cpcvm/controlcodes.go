package cpcvm

// parameter bytes following each control code 0x00..0x1f
var controlCodeParams = [32]int{
	0, 1, 0, 0, 1, 1, 0, 0,
	0, 0, 0, 0, 0, 0, 1, 1,
	0, 0, 0, 0, 0, 0, 1, 1,
	0, 9, 4, 0, 3, 2, 0, 2,
}

// ControlParamCount returns the number of parameter bytes of a control code.
func ControlParamCount(code byte) int {
	if code > 0x1f {
		return 0
	}
	return controlCodeParams[code]
}

// printCharsOrControls interprets control codes in s. A code whose
// parameters are not all present yet is kept in the window and completed by
// the next chunk printed to the same stream.
func (vm *VM) printCharsOrControls(stream int, s string) {
	w := &vm.windows[stream]
	if w.Pending != "" {
		s = w.Pending + s
		w.Pending = ""
	}

	start := 0
	for i := 0; i < len(s); {
		code := s[i]
		if code > 0x1f {
			i++
			continue
		}
		if start < i {
			vm.printChars(stream, s[start:i])
		}
		n := controlCodeParams[code]
		if i+n >= len(s) {
			w.Pending = s[i:]
			vm.wlog.Debug("stream %d: control &%02X waits for %d parameter bytes", stream, code, n-(len(s)-i-1))
			return
		}
		vm.handleControlCode(stream, code, []byte(s[i+1:i+1+n]))
		i += n + 1
		start = i
	}
	if start < len(s) {
		vm.printChars(stream, s[start:])
	}
}

// printChars writes printable characters one by one, clamping before each.
func (vm *VM) printChars(stream int, s string) {
	w := &vm.windows[stream]
	if !w.TextEnabled {
		return
	}
	for i := 0; i < len(s); i++ {
		vm.moveCursorToAllowedPos(stream)
		x, y := w.Left+w.Pos, w.Top+w.VPos
		ch := int(s[i])
		pen, paper, transparent := w.Pen, w.Paper, w.Transparent
		vm.eachText(func(t TextSurface) { t.PrintChar(ch, x, y, pen, paper, transparent) })
		w.Pos++
	}
}

func (vm *VM) printGraphChars(s string) {
	if vm.canvas == nil {
		return
	}
	for i := 0; i < len(s); i++ {
		vm.canvas.PrintGChar(int(s[i]))
	}
}

func (vm *VM) fillBox(w *WindowState, left, top, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	vm.eachText(func(t TextSurface) { t.FillTextBox(left, top, width, height, w.Paper) })
}

func (vm *VM) handleControlCode(stream int, code byte, para []byte) {
	w := &vm.windows[stream]
	switch code {
	case 0x00:
	case 0x01:
		// print the symbol of the parameter byte
		vm.printChars(stream, string(para[0:1]))
	case 0x02:
		w.CursorEnabled = false
	case 0x03:
		w.CursorEnabled = true
	case 0x04:
		vm.setMode(int(para[0]) & 0x03)
	case 0x05:
		vm.printGraphChars(string(para[0:1]))
	case 0x06:
		w.TextEnabled = true
	case 0x07:
		if vm.sound != nil {
			vm.sound.Bell()
		}
	case 0x08:
		vm.moveCursorToAllowedPos(stream)
		w.Pos--
	case 0x09:
		vm.moveCursorToAllowedPos(stream)
		w.Pos++
	case 0x0a:
		vm.moveCursorToAllowedPos(stream)
		w.VPos++
	case 0x0b:
		vm.moveCursorToAllowedPos(stream)
		w.VPos--
	case 0x0c:
		vm.cls(stream)
	case 0x0d:
		vm.moveCursorToAllowedPos(stream)
		w.Pos = 0
	case 0x0e:
		w.Paper = int(para[0]) & 0x0f
	case 0x0f:
		w.Pen = int(para[0]) & 0x0f
	case 0x10:
		vm.moveCursorToAllowedPos(stream)
		vm.fillBox(w, w.Left+w.Pos, w.Top+w.VPos, 1, 1)
	case 0x11:
		vm.moveCursorToAllowedPos(stream)
		vm.fillBox(w, w.Left, w.Top+w.VPos, w.Pos+1, 1)
	case 0x12:
		vm.moveCursorToAllowedPos(stream)
		vm.fillBox(w, w.Left+w.Pos, w.Top+w.VPos, w.width()+1-w.Pos, 1)
	case 0x13:
		vm.moveCursorToAllowedPos(stream)
		vm.fillBox(w, w.Left, w.Top, w.width()+1, w.VPos)
		vm.fillBox(w, w.Left, w.Top+w.VPos, w.Pos+1, 1)
	case 0x14:
		vm.moveCursorToAllowedPos(stream)
		vm.fillBox(w, w.Left+w.Pos, w.Top+w.VPos, w.width()+1-w.Pos, 1)
		vm.fillBox(w, w.Left, w.Top+w.VPos+1, w.width()+1, w.Bottom-w.Top-w.VPos)
	case 0x15:
		w.TextEnabled = false
	case 0x16:
		w.Transparent = para[0]&0x01 != 0
	case 0x17:
		if vm.canvas != nil {
			vm.canvas.SetGColMode(int(para[0]) & 0x03)
		}
	case 0x18:
		w.Pen, w.Paper = w.Paper, w.Pen
	case 0x19:
		// characters below SYMBOL AFTER are not redefinable and are skipped
		if char := int(para[0]); char >= vm.mem.MinCustom {
			var rows [8]byte
			copy(rows[:], para[1:9])
			vm.setSymbol(char, rows)
		}
	case 0x1a:
		vm.setWindow(stream, int(para[0]), int(para[1]), int(para[2]), int(para[3]))
	case 0x1b:
		// ESC has no meaning on screen streams
	case 0x1c:
		if vm.canvas != nil {
			vm.canvas.SetInk(int(para[0])&0x0f, int(para[1])&0x1f, int(para[2])&0x1f)
		}
	case 0x1d:
		if vm.canvas != nil {
			vm.canvas.SetBorder(int(para[0])&0x1f, int(para[1])&0x1f)
		}
	case 0x1e:
		w.Pos = 0
		w.VPos = 0
	case 0x1f:
		vm.locate(stream, int(para[0]), int(para[1]))
	}
}
