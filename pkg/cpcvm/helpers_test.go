package cpcvm

import (
	"strings"
)

// fakeCanvas records everything the VM draws.
type fakeCanvas struct {
	cells       map[[2]int]int
	scrollUps   int
	scrollDowns int
	fills       int
	clears      int
	mode        int
	inks        map[int][2]int
	border      [2]int
	chars       map[int][]int
	bytes       map[int]int
	gchars      []int
	x, y        int
	gpen        int
	plots       [][2]int
	cursor      bool
}

func newFakeCanvas() *fakeCanvas {
	return &fakeCanvas{
		cells: make(map[[2]int]int),
		inks:  make(map[int][2]int),
		chars: make(map[int][]int),
		bytes: make(map[int]int),
	}
}

func (c *fakeCanvas) PrintChar(char, x, y, pen, paper int, transparent bool) {
	c.cells[[2]int{x, y}] = char
}
func (c *fakeCanvas) ReadChar(x, y, pen, paper int) int {
	if ch, ok := c.cells[[2]int{x, y}]; ok {
		return ch
	}
	return -1
}
func (c *fakeCanvas) FillTextBox(left, top, width, height, paper int) {
	c.fills++
}
func (c *fakeCanvas) ClearTextWindow(left, right, top, bottom, paper int) {
	c.clears++
	for y := top; y <= bottom; y++ {
		for x := left; x <= right; x++ {
			delete(c.cells, [2]int{x, y})
		}
	}
}
func (c *fakeCanvas) ScrollUp(left, right, top, bottom, paper int) {
	c.scrollUps++
}
func (c *fakeCanvas) ScrollDown(left, right, top, bottom, paper int) {
	c.scrollDowns++
}
func (c *fakeCanvas) DrawCursor(x, y, pen, paper int, visible bool) {
	c.cursor = visible
}
func (c *fakeCanvas) SetMode(mode int) {
	c.mode = mode
	c.cells = make(map[[2]int]int)
}
func (c *fakeCanvas) SetInk(ink, c1, c2 int) {
	c.inks[ink] = [2]int{c1, c2}
}
func (c *fakeCanvas) SetBorder(c1, c2 int) {
	c.border = [2]int{c1, c2}
}
func (c *fakeCanvas) SetDefaultInks() {
	c.inks = make(map[int][2]int)
}
func (c *fakeCanvas) SetCustomChar(ch int, rows []int) {
	c.chars[ch] = append([]int(nil), rows...)
}
func (c *fakeCanvas) ResetCustomChars() {
	c.chars = make(map[int][]int)
}
func (c *fakeCanvas) GetByte(offset int) int {
	if b, ok := c.bytes[offset]; ok {
		return b
	}
	return -1
}
func (c *fakeCanvas) SetByte(offset, value int) {
	c.bytes[offset] = value
}
func (c *fakeCanvas) SetOrigin(x, y int) {}
func (c *fakeCanvas) Move(x, y int) {
	c.x, c.y = x, y
}
func (c *fakeCanvas) Plot(x, y int) {
	c.x, c.y = x, y
	c.plots = append(c.plots, [2]int{x, y})
}
func (c *fakeCanvas) Draw(x, y int) {
	c.x, c.y = x, y
}
func (c *fakeCanvas) XPos() int {
	return c.x
}
func (c *fakeCanvas) YPos() int {
	return c.y
}
func (c *fakeCanvas) Test(x, y int) int {
	return 0
}
func (c *fakeCanvas) Fill(pen int) {}
func (c *fakeCanvas) SetGPen(pen int) {
	c.gpen = pen
}
func (c *fakeCanvas) SetGPaper(paper int) {}
func (c *fakeCanvas) SetGColMode(mode int) {}
func (c *fakeCanvas) SetMask(mask int, first bool) {}
func (c *fakeCanvas) SetGraphicsWindow(left, right, top, bottom int) {}
func (c *fakeCanvas) ClearGraphicsWindow() {}
func (c *fakeCanvas) PrintGChar(char int) {
	c.gchars = append(c.gchars, char)
}

// row returns the characters of screen row y from column 0 to width-1.
func (c *fakeCanvas) row(y, width int) string {
	var sb strings.Builder
	for x := 0; x < width; x++ {
		if ch, ok := c.cells[[2]int{x, y}]; ok {
			sb.WriteByte(byte(ch))
		} else {
			sb.WriteByte(' ')
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// fakeSound has a fixed number of free slots per channel.
type fakeSound struct {
	free    [3]int
	queued  []Tone
	ticks   int
	bells   int
	release int
}

func newFakeSound() *fakeSound { return &fakeSound{free: [3]int{4, 4, 4}} }

func (s *fakeSound) TestCanQueue(state int) bool {
	for ch := 0; ch < 3; ch++ {
		if state&(1<<ch) != 0 && s.free[ch] == 0 {
			return false
		}
	}
	return true
}
func (s *fakeSound) Enqueue(t Tone) {
	s.queued = append(s.queued, t)
	for ch := 0; ch < 3; ch++ {
		if t.State&(1<<ch) != 0 {
			s.free[ch]--
		}
	}
}
func (s *fakeSound) ChannelStatus(ch int) int {
	return s.free[ch]
}
func (s *fakeSound) Release(mask int) {
	s.release = mask
}
func (s *fakeSound) Tick() {
	s.ticks++
}
func (s *fakeSound) Bell() {
	s.bells++
}

// newTestVM creates a VM with recording collaborators and a manual clock at 0.
func newTestVM() (*VM, *fakeCanvas, *fakeSound, *ManualClock) {
	canvas := newFakeCanvas()
	sound := newFakeSound()
	clock := &ManualClock{}
	vm := New(Options{Canvas: canvas, Sound: sound, Clock: clock, Tag: "test"})
	return vm, canvas, sound, clock
}

// faultCode returns the code of the fault in the current stop payload, or -1.
func faultCode(vm *VM) int {
	if p, ok := vm.CurrentStop().Payload.(FaultPayload); ok {
		return p.Fault.Code
	}
	return -1
}
