// Package textcanvas is a character-cell screen for terminals and tests.
// It implements cpcvm.GraphicsSurface: text goes to an 80x25 grid, pixel
// operations only move the graphics cursor and are counted.
package textcanvas

import (
	"strings"
	"sync"
)

const (
	Columns    = 80
	Rows       = 25
	screenSize = 0x4000
	charRows   = 8
)

var modeWidth = [4]int{20, 40, 80, 80}

// default ink colours of the 16 inks (hardware colour numbers)
var defaultInks = [16][2]int{
	{1, 1}, {24, 24}, {20, 20}, {6, 6}, {26, 26}, {0, 0}, {2, 2}, {8, 8},
	{10, 10}, {12, 12}, {14, 14}, {16, 16}, {18, 18}, {22, 22}, {1, 24}, {16, 11},
}

type cell struct {
	char  int
	pen   int
	paper int
}

// Canvas is safe for concurrent use: the VM writes while a server renders.
type Canvas struct {
	mu    sync.RWMutex
	mode  int
	cells [Rows][Columns]cell

	inks   [16][2]int
	border [2]int
	chars  map[int][]int
	screen [screenSize]int

	originX, originY int
	x, y             int
	gpen, gpaper     int
	gcolMode         int
	mask             int
	maskFirst        bool
	gwin             [4]int
	plots            int

	cursorX, cursorY int
	cursorOn         bool
	dirty            bool
}

// New returns a cleared mode 1 canvas.
func New() *Canvas {
	c := &Canvas{mode: 1, chars: make(map[int][]int), gpen: 1, mask: 255}
	c.clearAll()
	c.SetDefaultInks()
	for i := range c.screen {
		c.screen[i] = -1
	}
	return c
}

func (c *Canvas) clearAll() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = cell{char: ' '}
		}
	}
	c.dirty = true
}

func inside(x, y int) bool { return x >= 0 && x < Columns && y >= 0 && y < Rows }

func (c *Canvas) PrintChar(char, x, y, pen, paper int, transparent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !inside(x, y) {
		return
	}
	p := &c.cells[y][x]
	p.char = char
	p.pen = pen
	if !transparent {
		p.paper = paper
	}
	c.dirty = true
}

// ReadChar returns the character at a cell, or -1 for an unknown one.
func (c *Canvas) ReadChar(x, y, pen, paper int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !inside(x, y) {
		return -1
	}
	return c.cells[y][x].char
}

func (c *Canvas) fill(left, top, width, height, paper int) {
	for y := top; y < top+height; y++ {
		for x := left; x < left+width; x++ {
			if inside(x, y) {
				c.cells[y][x] = cell{char: ' ', paper: paper}
			}
		}
	}
	c.dirty = true
}

func (c *Canvas) FillTextBox(left, top, width, height, paper int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fill(left, top, width, height, paper)
}

func (c *Canvas) ClearTextWindow(left, right, top, bottom, paper int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fill(left, top, right-left+1, bottom-top+1, paper)
}

func (c *Canvas) ScrollUp(left, right, top, bottom, paper int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for y := top; y < bottom; y++ {
		for x := left; x <= right; x++ {
			if inside(x, y+1) {
				c.cells[y][x] = c.cells[y+1][x]
			}
		}
	}
	c.fill(left, bottom, right-left+1, 1, paper)
}

func (c *Canvas) ScrollDown(left, right, top, bottom, paper int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for y := bottom; y > top; y-- {
		for x := left; x <= right; x++ {
			if inside(x, y-1) {
				c.cells[y][x] = c.cells[y-1][x]
			}
		}
	}
	c.fill(left, top, right-left+1, 1, paper)
}

func (c *Canvas) DrawCursor(x, y, pen, paper int, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursorX, c.cursorY, c.cursorOn = x, y, visible
	c.dirty = true
}

// SetMode clears the screen; the grid width follows the mode.
func (c *Canvas) SetMode(mode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode & 3
	c.clearAll()
	for i := range c.screen {
		c.screen[i] = -1
	}
}

func (c *Canvas) SetInk(ink, color1, color2 int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inks[ink&15] = [2]int{color1, color2}
}

func (c *Canvas) SetBorder(color1, color2 int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.border = [2]int{color1, color2}
}

func (c *Canvas) SetDefaultInks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inks = defaultInks
	c.border = [2]int{1, 1}
}

func (c *Canvas) SetCustomChar(char int, rows []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chars[char] = append([]int(nil), rows...)
}

func (c *Canvas) ResetCustomChars() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chars = make(map[int][]int)
}

// GetByte returns a screen byte written by SetByte; -1 lets the VM fall back to RAM.
func (c *Canvas) GetByte(offset int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if offset < 0 || offset >= screenSize {
		return -1
	}
	return c.screen[offset]
}

func (c *Canvas) SetByte(offset, value int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset >= 0 && offset < screenSize {
		c.screen[offset] = value & 0xff
	}
}

func (c *Canvas) SetOrigin(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.originX, c.originY = x, y
	c.x, c.y = 0, 0
}

func (c *Canvas) Move(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.y = x, y
}

func (c *Canvas) Plot(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.y = x, y
	c.plots++
}

func (c *Canvas) Draw(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.y = x, y
	c.plots++
}

func (c *Canvas) XPos() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.x
}

func (c *Canvas) YPos() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.y
}

// Test always reports the graphics paper; pixels are not stored.
func (c *Canvas) Test(x, y int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gpaper
}

func (c *Canvas) Fill(pen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plots++
}

func (c *Canvas) SetGPen(pen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gpen = pen
}

func (c *Canvas) SetGPaper(paper int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gpaper = paper
}

func (c *Canvas) SetGColMode(mode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gcolMode = mode
}

func (c *Canvas) SetMask(mask int, first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mask, c.maskFirst = mask, first
}

func (c *Canvas) SetGraphicsWindow(left, right, top, bottom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gwin = [4]int{left, right, top, bottom}
}

func (c *Canvas) ClearGraphicsWindow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.y = 0, 0
}

// PrintGChar advances the graphics cursor by one character cell.
func (c *Canvas) PrintGChar(char int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x += 640 / modeWidth[c.mode]
}

// Plots returns the number of pixel operations so far.
func (c *Canvas) Plots() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plots
}

// Ink returns the two colours of an ink.
func (c *Canvas) Ink(ink int) [2]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inks[ink&15]
}

// CustomChar returns the bitmap of a redefined character.
func (c *Canvas) CustomChar(char int) ([]int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, ok := c.chars[char]
	return rows, ok
}

// Mode returns the screen mode.
func (c *Canvas) Mode() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Width returns the number of columns of the current mode.
func (c *Canvas) Width() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return modeWidth[c.mode]
}

// Cursor returns the text cursor position and visibility.
func (c *Canvas) Cursor() (x, y int, visible bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursorX, c.cursorY, c.cursorOn
}

func printable(ch int) byte {
	switch {
	case ch >= 0x20 && ch < 0x7f:
		return byte(ch)
	case ch == 0:
		return ' '
	}
	return '?'
}

// Lines renders the visible rows with trailing spaces removed.
func (c *Canvas) Lines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	width := modeWidth[c.mode]
	lines := make([]string, Rows)
	buf := make([]byte, width)
	for y := 0; y < Rows; y++ {
		for x := 0; x < width; x++ {
			buf[x] = printable(c.cells[y][x].char)
		}
		lines[y] = strings.TrimRight(string(buf), " ")
	}
	return lines
}

// String renders the screen, trailing empty rows dropped.
func (c *Canvas) String() string {
	lines := c.Lines()
	end := len(lines)
	for end > 0 && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[:end], "\n")
}

// TakeDirty reports whether the screen changed since the last call.
func (c *Canvas) TakeDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.dirty
	c.dirty = false
	return d
}
