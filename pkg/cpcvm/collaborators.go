package cpcvm

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// TextSurface receives character-cell output.
type TextSurface interface {
	PrintChar(char, x, y, pen, paper int, transparent bool)
	ReadChar(x, y, pen, paper int) int
	FillTextBox(left, top, width, height, paper int)
	ClearTextWindow(left, right, top, bottom, paper int)
	ScrollUp(left, right, top, bottom, paper int)
	ScrollDown(left, right, top, bottom, paper int)
	DrawCursor(x, y, pen, paper int, visible bool)
	SetMode(mode int)
}

// GraphicsSurface is the full screen collaborator.
type GraphicsSurface interface {
	TextSurface

	SetInk(ink, color1, color2 int)
	SetBorder(color1, color2 int)
	SetDefaultInks()
	SetCustomChar(char int, rows []int)
	ResetCustomChars()
	GetByte(offset int) int
	SetByte(offset, value int)

	SetOrigin(x, y int)
	Move(x, y int)
	Plot(x, y int)
	Draw(x, y int)
	XPos() int
	YPos() int
	Test(x, y int) int
	Fill(pen int)
	SetGPen(pen int)
	SetGPaper(paper int)
	SetGColMode(mode int)
	SetMask(mask int, first bool)
	SetGraphicsWindow(left, right, top, bottom int)
	ClearGraphicsWindow()
	PrintGChar(char int)
}

// Tone is one SOUND command.
type Tone struct {
	State    int
	Period   int
	Duration int
	Volume   int
	VolEnv   int
	ToneEnv  int
	Noise    int
}

// SoundDevice holds the three hardware channel queues.
type SoundDevice interface {
	TestCanQueue(state int) bool
	Enqueue(tone Tone)
	// ChannelStatus returns the SQ bitmask of channel index 0..2.
	ChannelStatus(channel int) int
	Release(mask int)
	Tick()
	Bell()
}

// InputDevice is the keyboard and joystick.
type InputDevice interface {
	GetKeyFromBuffer() string
	PeekKey() string
	KeyState(key int) int
	Joystick(n int) int
	SetExpansionToken(token int, s string)
	ClearInput()
}

// Errors of the default variable store.
var (
	ErrSubscriptRange     = errors.New("subscript out of range")
	ErrAlreadyDimensioned = errors.New("array already dimensioned")
	ErrUnknownArray       = errors.New("unknown array")
	ErrRSXNotFound        = errors.New("unknown RSX command")
)

// VariableStore holds scalars and arrays by name (including type suffix).
type VariableStore interface {
	Get(name string) (BASICValue, bool)
	Set(name string, v BASICValue)
	Dim(name string, dims []int, zero BASICValue) error
	Element(name string, idx []int) (BASICValue, error)
	SetElement(name string, idx []int, v BASICValue) error
	Erase(name string) error
	Names() []string
	Clear()
}

type array struct {
	dims   []int
	values []BASICValue
}

func (a *array) offset(idx []int) (int, error) {
	if len(idx) != len(a.dims) {
		return 0, ErrSubscriptRange
	}
	off := 0
	for i, n := range idx {
		if n < 0 || n > a.dims[i] {
			return 0, ErrSubscriptRange
		}
		off = off*(a.dims[i]+1) + n
	}
	return off, nil
}

// Variables is the default in-memory VariableStore.
type Variables struct {
	mu      sync.RWMutex
	scalars map[string]BASICValue
	arrays  map[string]*array
}

// NewVariables returns an empty store.
func NewVariables() *Variables {
	return &Variables{
		scalars: make(map[string]BASICValue),
		arrays:  make(map[string]*array),
	}
}

func (v *Variables) Get(name string) (BASICValue, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.scalars[strings.ToLower(name)]
	return val, ok
}

func (v *Variables) Set(name string, val BASICValue) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scalars[strings.ToLower(name)] = val
}

func (v *Variables) Dim(name string, dims []int, zero BASICValue) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := v.arrays[key]; exists {
		return ErrAlreadyDimensioned
	}
	v.arrays[key] = newArray(dims, zero)
	return nil
}

func newArray(dims []int, zero BASICValue) *array {
	size := 1
	for _, d := range dims {
		size *= d + 1
	}
	a := &array{dims: append([]int(nil), dims...), values: make([]BASICValue, size)}
	for i := range a.values {
		a.values[i] = zero
	}
	return a
}

// implicit returns the array, dimensioning 0..10 per index on first use.
func (v *Variables) implicit(key string, n int, zero BASICValue) *array {
	a, ok := v.arrays[key]
	if !ok {
		dims := make([]int, n)
		for i := range dims {
			dims[i] = 10
		}
		a = newArray(dims, zero)
		v.arrays[key] = a
	}
	return a
}

func zeroFor(name string) BASICValue {
	if strings.HasSuffix(name, "$") {
		return Str("")
	}
	return Num(0)
}

func (v *Variables) Element(name string, idx []int) (BASICValue, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	a := v.implicit(strings.ToLower(name), len(idx), zeroFor(name))
	off, err := a.offset(idx)
	if err != nil {
		return BASICValue{}, err
	}
	return a.values[off], nil
}

func (v *Variables) SetElement(name string, idx []int, val BASICValue) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	a := v.implicit(strings.ToLower(name), len(idx), zeroFor(name))
	off, err := a.offset(idx)
	if err != nil {
		return err
	}
	a.values[off] = val
	return nil
}

func (v *Variables) Erase(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := v.arrays[key]; !ok {
		return ErrUnknownArray
	}
	delete(v.arrays, key)
	return nil
}

// Names lists scalar names and array names (with "()") in sorted order.
func (v *Variables) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.scalars)+len(v.arrays))
	for name := range v.scalars {
		names = append(names, name)
	}
	for name := range v.arrays {
		names = append(names, name+"()")
	}
	sort.Strings(names)
	return names
}

func (v *Variables) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scalars = make(map[string]BASICValue)
	v.arrays = make(map[string]*array)
}

// RSXHandler implements a |COMMAND.
type RSXHandler func(vm *VM, args []any) error

// RSXDispatcher resolves bar commands.
type RSXDispatcher interface {
	Has(name string) bool
	Invoke(vm *VM, name string, args []any) error
}

// RSXRegistry is a map based RSXDispatcher.
type RSXRegistry struct {
	handlers map[string]RSXHandler
}

// NewRSXRegistry returns an empty registry.
func NewRSXRegistry() *RSXRegistry {
	return &RSXRegistry{handlers: make(map[string]RSXHandler)}
}

// Register adds a command; names are case-insensitive.
func (r *RSXRegistry) Register(name string, h RSXHandler) {
	r.handlers[strings.ToUpper(name)] = h
}

func (r *RSXRegistry) Has(name string) bool {
	_, ok := r.handlers[strings.ToUpper(name)]
	return ok
}

func (r *RSXRegistry) Invoke(vm *VM, name string, args []any) error {
	h, ok := r.handlers[strings.ToUpper(name)]
	if !ok {
		return ErrRSXNotFound
	}
	return h(vm, args)
}
