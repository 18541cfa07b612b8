package cpcvm

const (
	streamCount    = 10
	screenStreams  = 8
	printerStream  = 8
	cassetteStream = 9
	screenRows     = 25
)

var modeColumns = [4]int{20, 40, 80, 80}

// WindowState is the text window of one output stream.
type WindowState struct {
	Left          int    `json:"left"`
	Right         int    `json:"right"`
	Top           int    `json:"top"`
	Bottom        int    `json:"bottom"`
	Pos           int    `json:"pos"`
	VPos          int    `json:"vpos"`
	Pen           int    `json:"pen"`
	Paper         int    `json:"paper"`
	TextEnabled   bool   `json:"textEnabled"`
	Tag           bool   `json:"tag"`
	Transparent   bool   `json:"transparent"`
	CursorOn      bool   `json:"cursorOn"`
	CursorEnabled bool   `json:"cursorEnabled"`
	Pending       string `json:"pending,omitempty"`
}

func (w *WindowState) width() int { return w.Right - w.Left }

// resetWindow restores the bounds for mode; a full reset also restores
// colours and flags.
func (w *WindowState) resetWindow(mode int, full bool) {
	w.Left = 0
	w.Right = modeColumns[mode] - 1
	w.Top = 0
	w.Bottom = screenRows - 1
	w.Pos = 0
	w.VPos = 0
	w.Pending = ""
	if full {
		w.Pen = 1
		w.Paper = 0
		w.TextEnabled = true
		w.Tag = false
		w.Transparent = false
		w.CursorOn = false
		w.CursorEnabled = true
	}
}

func (vm *VM) resetWindows(full bool) {
	for i := range vm.windows {
		vm.windows[i].resetWindow(vm.mode, full)
	}
}

// Window returns a copy of the state of a stream.
func (vm *VM) Window(stream int) WindowState { return vm.windows[stream] }

// Mode returns the screen mode.
func (vm *VM) Mode() int { return vm.mode }

func (vm *VM) stream(s any, max int, where string) (int, error) {
	if s == nil {
		return 0, nil
	}
	return vm.inRange(s, 0, max, where)
}

// text surfaces: the graphics surface and the optional mirror
func (vm *VM) eachText(fn func(TextSurface)) {
	if vm.canvas != nil {
		fn(vm.canvas)
	}
	if vm.text != nil {
		fn(vm.text)
	}
}

// moveCursorToAllowedPos wraps past the right margin and scrolls when the
// cursor leaves the window vertically.
func (vm *VM) moveCursorToAllowedPos(stream int) {
	w := &vm.windows[stream]
	left, right, top, bottom := w.Left, w.Right, w.Top, w.Bottom
	x, y := w.Pos, w.VPos

	if x > right-left {
		y++
		x = 0
	}
	if x < 0 {
		y--
		x = right - left
	}
	if y < 0 {
		y = 0
		if stream < screenStreams {
			paper := w.Paper
			vm.eachText(func(s TextSurface) { s.ScrollDown(left, right, top, bottom, paper) })
		}
	}
	if y > bottom-top {
		y = bottom - top
		if stream < screenStreams {
			paper := w.Paper
			vm.eachText(func(s TextSurface) { s.ScrollUp(left, right, top, bottom, paper) })
		}
	}
	w.Pos = x
	w.VPos = y
}

// SetMode implements MODE: all windows return to full screen and the screen is cleared.
func (vm *VM) SetMode(mode any) error {
	m, err := vm.inRange(mode, 0, 3, "MODE")
	if err != nil {
		return err
	}
	vm.setMode(m)
	return nil
}

func (vm *VM) setMode(m int) {
	vm.mode = m
	vm.resetWindows(false)
	vm.eachText(func(s TextSurface) { s.SetMode(m) })
	vm.wlog.Debug("mode %d", m)
}

// SetWindow implements WINDOW #stream,left,right,top,bottom (1-based).
func (vm *VM) SetWindow(stream, left, right, top, bottom any) error {
	s, err := vm.stream(stream, 7, "WINDOW")
	if err != nil {
		return err
	}
	l, err := vm.inRange(left, 0, 255, "WINDOW")
	if err != nil {
		return err
	}
	r, err := vm.inRange(right, 0, 255, "WINDOW")
	if err != nil {
		return err
	}
	t, err := vm.inRange(top, 0, 255, "WINDOW")
	if err != nil {
		return err
	}
	b, err := vm.inRange(bottom, 0, 255, "WINDOW")
	if err != nil {
		return err
	}
	vm.setWindow(s, l, r, t, b)
	return nil
}

func (vm *VM) setWindow(stream, left, right, top, bottom int) {
	cols := modeColumns[vm.mode]
	clamp := func(v, limit int) int {
		v--
		if v < 0 {
			v = 0
		}
		if v > limit {
			v = limit
		}
		return v
	}
	w := &vm.windows[stream]
	w.Left = clamp(min(left, right), cols-1)
	w.Right = clamp(max(left, right), cols-1)
	w.Top = clamp(min(top, bottom), screenRows-1)
	w.Bottom = clamp(max(top, bottom), screenRows-1)
	w.Pos = 0
	w.VPos = 0
}

// WindowSwap exchanges two windows.
func (vm *VM) WindowSwap(stream1 any, stream2 ...any) error {
	s1, err := vm.stream(stream1, 7, "WINDOW SWAP")
	if err != nil {
		return err
	}
	s2 := 0
	if len(stream2) > 0 {
		if s2, err = vm.stream(stream2[0], 7, "WINDOW SWAP"); err != nil {
			return err
		}
	}
	vm.windows[s1], vm.windows[s2] = vm.windows[s2], vm.windows[s1]
	return nil
}

// Pen implements PEN #stream,pen[,transparent].
func (vm *VM) Pen(stream, pen any, transparent ...any) error {
	s, err := vm.stream(stream, 7, "PEN")
	if err != nil {
		return err
	}
	if pen != nil {
		p, err := vm.inRange(pen, 0, 15, "PEN")
		if err != nil {
			return err
		}
		vm.windows[s].Pen = p
	}
	if len(transparent) > 0 && transparent[0] != nil {
		t, err := vm.inRange(transparent[0], 0, 1, "PEN")
		if err != nil {
			return err
		}
		vm.windows[s].Transparent = t == 1
	}
	return nil
}

// Paper implements PAPER #stream,paper.
func (vm *VM) Paper(stream, paper any) error {
	s, err := vm.stream(stream, 7, "PAPER")
	if err != nil {
		return err
	}
	p, err := vm.inRange(paper, 0, 15, "PAPER")
	if err != nil {
		return err
	}
	vm.windows[s].Paper = p
	return nil
}

// Locate moves the cursor; col and row are 1-based and not clamped here.
func (vm *VM) Locate(stream, col, row any) error {
	s, err := vm.stream(stream, 7, "LOCATE")
	if err != nil {
		return err
	}
	c, err := vm.inRange(col, 1, 255, "LOCATE")
	if err != nil {
		return err
	}
	r, err := vm.inRange(row, 1, 255, "LOCATE")
	if err != nil {
		return err
	}
	vm.locate(s, c, r)
	return nil
}

func (vm *VM) locate(stream, col, row int) {
	w := &vm.windows[stream]
	w.Pos = col - 1
	w.VPos = row - 1
}

// Pos returns the 1-based column of a stream.
func (vm *VM) Pos(stream any) (int, error) {
	s, err := vm.stream(stream, 9, "POS")
	if err != nil {
		return 0, err
	}
	if s < screenStreams {
		vm.moveCursorToAllowedPos(s)
	}
	return vm.windows[s].Pos + 1, nil
}

// VPos returns the 1-based row of a stream.
func (vm *VM) VPos(stream any) (int, error) {
	s, err := vm.stream(stream, 7, "VPOS")
	if err != nil {
		return 0, err
	}
	vm.moveCursorToAllowedPos(s)
	return vm.windows[s].VPos + 1, nil
}

// Cls clears the window of a stream and homes its cursor.
func (vm *VM) Cls(stream any) error {
	s, err := vm.stream(stream, 7, "CLS")
	if err != nil {
		return err
	}
	vm.cls(s)
	return nil
}

func (vm *VM) cls(stream int) {
	w := &vm.windows[stream]
	vm.eachText(func(t TextSurface) { t.ClearTextWindow(w.Left, w.Right, w.Top, w.Bottom, w.Paper) })
	w.Pos = 0
	w.VPos = 0
}

// Tag routes text of a stream to the graphics cursor.
func (vm *VM) Tag(stream any) error {
	s, err := vm.stream(stream, 7, "TAG")
	if err != nil {
		return err
	}
	vm.windows[s].Tag = true
	return nil
}

// TagOff ends TAG.
func (vm *VM) TagOff(stream any) error {
	s, err := vm.stream(stream, 7, "TAGOFF")
	if err != nil {
		return err
	}
	vm.windows[s].Tag = false
	return nil
}

// Cursor implements CURSOR #stream,system[,user].
func (vm *VM) Cursor(stream, system any, user ...any) error {
	s, err := vm.stream(stream, 7, "CURSOR")
	if err != nil {
		return err
	}
	w := &vm.windows[s]
	if system != nil {
		on, err := vm.inRange(system, 0, 1, "CURSOR")
		if err != nil {
			return err
		}
		w.CursorOn = on == 1
	}
	if len(user) > 0 && user[0] != nil {
		en, err := vm.inRange(user[0], 0, 1, "CURSOR")
		if err != nil {
			return err
		}
		w.CursorEnabled = en == 1
	}
	vm.drawCursor(s)
	return nil
}

func (vm *VM) drawCursor(stream int) {
	w := &vm.windows[stream]
	visible := w.CursorOn && w.CursorEnabled
	x, y := w.Left+w.Pos, w.Top+w.VPos
	vm.eachText(func(t TextSurface) { t.DrawCursor(x, y, w.Pen, w.Paper, visible) })
}

// Ink sets an ink to one or two (flashing) hardware colours.
func (vm *VM) Ink(ink, color1 any, color2 ...any) error {
	i, err := vm.inRange(ink, 0, 15, "INK")
	if err != nil {
		return err
	}
	c1, err := vm.inRange(color1, 0, 31, "INK")
	if err != nil {
		return err
	}
	c2, err := optionalInRange(color2, 0, 0, 31, c1, "INK")
	if err != nil {
		return vm.raise(err)
	}
	if vm.canvas != nil {
		vm.canvas.SetInk(i, c1, c2)
	}
	return nil
}

// Border sets the border colour(s).
func (vm *VM) Border(color1 any, color2 ...any) error {
	c1, err := vm.inRange(color1, 0, 31, "BORDER")
	if err != nil {
		return err
	}
	c2, err := optionalInRange(color2, 0, 0, 31, c1, "BORDER")
	if err != nil {
		return vm.raise(err)
	}
	if vm.canvas != nil {
		vm.canvas.SetBorder(c1, c2)
	}
	return nil
}

// Zone sets the PRINT comma zone width.
func (vm *VM) Zone(n any) error {
	z, err := vm.inRange(n, 1, 255, "ZONE")
	if err != nil {
		return err
	}
	vm.zone = z
	return nil
}

// CopyChr reads the character under the cursor of a stream ("" if unknown).
func (vm *VM) CopyChr(stream any) (string, error) {
	s, err := vm.stream(stream, 7, "COPYCHR$")
	if err != nil {
		return "", err
	}
	vm.moveCursorToAllowedPos(s)
	if vm.canvas == nil {
		return "", nil
	}
	w := &vm.windows[s]
	ch := vm.canvas.ReadChar(w.Left+w.Pos, w.Top+w.VPos, w.Pen, w.Paper)
	if ch < 0 {
		return "", nil
	}
	return string(rune(ch)), nil
}
