package cpcvm

import "strconv"

const (
	baseRAMSize  = 0x10000
	bankSize     = 0x4000
	bankCount    = 8
	bankWindow   = 0x4000 // banks overlay 0x4000-0x7fff
	screenSize   = 0x4000
	defaultPage  = 3
	minHimem     = 370
	maxHimem     = 42747
	defaultChars = 240
)

// Memory is base RAM plus the extension banks.
type Memory struct {
	RAM          []byte `json:"ram"`
	RAMSelect    int    `json:"ramSelect"`
	ScreenPage   int    `json:"screenPage"`
	CRTCReg      int    `json:"crtcReg"`
	Himem        int    `json:"himem"`
	MinCharHimem int    `json:"minCharHimem"`
	MaxCharHimem int    `json:"maxCharHimem"`
	MinCustom    int    `json:"minCustomChar"`
}

func newMemory() *Memory {
	return &Memory{
		RAM:          make([]byte, baseRAMSize+bankCount*bankSize),
		ScreenPage:   defaultPage,
		Himem:        maxHimem,
		MinCharHimem: maxHimem,
		MaxCharHimem: maxHimem,
		MinCustom:    256,
	}
}

// physical maps a CPU address through the current bank selection.
func (m *Memory) physical(addr int) int {
	if m.RAMSelect > 0 && addr >= bankWindow && addr < bankWindow+bankSize {
		return baseRAMSize + (m.RAMSelect-1)*bankSize + (addr - bankWindow)
	}
	return addr
}

func (m *Memory) screenBase() int { return m.ScreenPage * screenSize }

func (vm *VM) inScreen(addr int) bool {
	base := vm.mem.screenBase()
	return addr >= base && addr < base+screenSize
}

// Peek reads a byte; the screen region is read from the graphics surface.
func (vm *VM) Peek(addr any) (int, error) {
	a, err := vm.twos(addr, "PEEK")
	if err != nil {
		return 0, err
	}
	if vm.inScreen(a) && vm.canvas != nil {
		if b := vm.canvas.GetByte(a - vm.mem.screenBase()); b >= 0 {
			return b, nil
		}
	}
	return int(vm.mem.RAM[vm.mem.physical(a)]), nil
}

// Poke writes a byte and mirrors screen and custom character writes.
func (vm *VM) Poke(addr, value any) error {
	a, err := vm.twos(addr, "POKE address")
	if err != nil {
		return err
	}
	b, err := vm.inRange(value, 0, 255, "POKE byte")
	if err != nil {
		return err
	}
	vm.mem.RAM[vm.mem.physical(a)] = byte(b)

	if vm.inScreen(a) && vm.canvas != nil {
		vm.canvas.SetByte(a-vm.mem.screenBase(), b)
	}
	if a >= vm.mem.MinCharHimem && a < vm.mem.MaxCharHimem {
		char := vm.mem.MinCustom + (a-vm.mem.MinCharHimem)/8
		vm.defineCharFromMemory(char)
	}
	return nil
}

func (vm *VM) defineCharFromMemory(char int) {
	start := vm.mem.MinCharHimem + (char-vm.mem.MinCustom)*8
	rows := make([]int, 8)
	for i := range rows {
		rows[i] = int(vm.mem.RAM[start+i])
	}
	if vm.canvas != nil {
		vm.canvas.SetCustomChar(char, rows)
	}
}

// Out writes an I/O port. Gate array RAM configuration and CRTC register 12
// are emulated; other ports are ignored.
func (vm *VM) Out(port, value any) error {
	p, err := vm.twos(port, "OUT")
	if err != nil {
		return err
	}
	b, err := vm.inRange(value, 0, 255, "OUT")
	if err != nil {
		return err
	}
	switch p >> 8 {
	case 0x7f:
		switch {
		case b == 0xc0:
			vm.mem.RAMSelect = 0
		case b >= 0xc4 && b <= 0xcb:
			vm.mem.RAMSelect = b - 0xc4 + 1
		}
	case 0xbc:
		vm.mem.CRTCReg = b & 0x1f
	case 0xbd:
		if vm.mem.CRTCReg == 12 {
			vm.mem.ScreenPage = (b >> 4) & 0x03
		}
	default:
		vm.log.Debug("OUT &%04X,%d ignored", p, b)
	}
	return nil
}

// Inp reads an I/O port; nothing is mapped, so it returns 255.
func (vm *VM) Inp(port any) (int, error) {
	if _, err := vm.twos(port, "INP"); err != nil {
		return 0, err
	}
	return 255, nil
}

// Wait implements WAIT port, mask[, inv]; with INP always 255 it never blocks.
func (vm *VM) Wait(port, mask any, inv ...any) error {
	if _, err := vm.twos(port, "WAIT"); err != nil {
		return err
	}
	if _, err := vm.inRange(mask, 0, 255, "WAIT"); err != nil {
		return err
	}
	if _, err := optionalInRange(inv, 0, 0, 255, 0, "WAIT"); err != nil {
		return vm.raise(err)
	}
	return nil
}

// Himem returns HIMEM.
func (vm *VM) Himem() int { return vm.mem.Himem }

// Memory implements MEMORY n.
func (vm *VM) Memory(n any) error {
	addr, err := vm.twos(n, "MEMORY")
	if err != nil {
		return err
	}
	if addr < minHimem || addr > vm.mem.MinCharHimem {
		return vm.Raise(FaultMemoryFull, "MEMORY "+strconv.Itoa(addr))
	}
	vm.mem.Himem = addr
	return nil
}

// Fre returns free memory; FRE("") forces garbage collection first.
func (vm *VM) Fre(arg any) int {
	return vm.mem.Himem - minHimem
}

// SymbolAfter reserves custom characters from n upward below HIMEM.
func (vm *VM) SymbolAfter(n any) error {
	char, err := vm.inRange(n, 0, 256, "SYMBOL AFTER")
	if err != nil {
		return err
	}
	m := vm.mem
	if m.MinCustom < 256 {
		if m.MinCharHimem != m.Himem {
			return vm.Raise(FaultImproperArgument, "SYMBOL AFTER "+strconv.Itoa(char))
		}
	} else {
		m.MaxCharHimem = m.Himem
	}
	minChar := m.MaxCharHimem - (256-char)*8
	if minChar < minHimem {
		return vm.Raise(FaultMemoryFull, "SYMBOL AFTER "+strconv.Itoa(char))
	}
	m.Himem = minChar
	if vm.canvas != nil {
		vm.canvas.ResetCustomChars()
	}
	if char == 256 {
		minChar = maxHimem
		m.MaxCharHimem = minChar
	}
	m.MinCustom = char
	m.MinCharHimem = minChar
	for i := m.MinCharHimem; i < m.MaxCharHimem && char < 256; i++ {
		m.RAM[i] = 0
	}
	return nil
}

// Symbol defines the bitmap of a custom character.
func (vm *VM) Symbol(char any, rows ...any) error {
	c, err := vm.inRange(char, vm.mem.MinCustom, 255, "SYMBOL")
	if err != nil {
		return err
	}
	if len(rows) > 8 {
		return vm.Raise(FaultImproperArgument, "SYMBOL")
	}
	var bytes [8]byte
	for i, r := range rows {
		b, err := vm.inRange(r, 0, 255, "SYMBOL")
		if err != nil {
			return err
		}
		bytes[i] = byte(b)
	}
	vm.setSymbol(c, bytes)
	return nil
}

// setSymbol stores an already checked definition of custom character c.
func (vm *VM) setSymbol(c int, rows [8]byte) {
	start := vm.mem.MinCharHimem + (c-vm.mem.MinCustom)*8
	copy(vm.mem.RAM[start:start+8], rows[:])
	vm.defineCharFromMemory(c)
}

// LoadBinary copies data to memory starting at addr (LOAD "file",addr).
func (vm *VM) LoadBinary(addr int, data []byte) error {
	if addr < 0 || addr+len(data) > baseRAMSize {
		return vm.Raise(FaultMemoryFull, "LOAD")
	}
	for i, b := range data {
		a := addr + i
		vm.mem.RAM[vm.mem.physical(a)] = b
		if vm.inScreen(a) && vm.canvas != nil {
			vm.canvas.SetByte(a-vm.mem.screenBase(), int(b))
		}
	}
	return nil
}

// ReadBinary returns length bytes from addr (SAVE "file",B,addr,length).
func (vm *VM) ReadBinary(addr, length int) []byte {
	out := make([]byte, 0, length)
	for i := 0; i < length && addr+i < baseRAMSize; i++ {
		out = append(out, vm.mem.RAM[vm.mem.physical(addr+i)])
	}
	return out
}
