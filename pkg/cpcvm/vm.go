package cpcvm

import (
	"github.com/antibyte/retrocpc/pkg/configuration"
	"github.com/antibyte/retrocpc/pkg/logger"
)

// Options wires the collaborators of a VM. Nil collaborators are allowed;
// the matching statements then become no-ops.
type Options struct {
	Canvas    GraphicsSurface
	Text      TextSurface
	Sound     SoundDevice
	Input     InputDevice
	Variables VariableStore
	RSX       RSXDispatcher
	Clock     Clock
	// Tag is prepended to log lines, e.g. a session id.
	Tag string
}

// VM is the execution core. It is not safe for concurrent use: generated
// code and the driver run on one goroutine.
type VM struct {
	canvas GraphicsSurface
	text   TextSurface
	sound  SoundDevice
	input  InputDevice
	vars   VariableStore
	rsx    RSXDispatcher
	clock  Clock

	log   logger.Scope
	sched logger.Scope
	tlog  logger.Scope
	wlog  logger.Scope

	line      string
	startLine string
	stop      StopRequest

	frameTimeMs  int64
	nextFrameMs  int64
	stopCount    int
	stopCountMax int

	gosubStack []string
	labels     *LabelTable
	data       *DataCursor

	timers        [timerCount]TimerEntry
	sqTimers      [sqTimerCount]TimerEntry
	timerPriority int

	errState   ErrorState
	breakMode  BreakMode
	breakStack int

	windows        [streamCount]WindowState
	mode           int
	zone           int
	printer        textBuffer
	maxPrintBuffer int

	mem *Memory

	defTypes    [26]VarType
	inputValues []BASICValue
	fileIn      inFile
	fileOut     outFile
	volEnvs     map[int][]EnvelopeSection
	toneEnvs    map[int]toneEnvelope
	tron        bool
}

// New creates a VM in power-on state. Frame time and the forced-yield count
// come from the [VM] configuration section.
func New(opts Options) *VM {
	vm := &VM{
		canvas: opts.Canvas,
		text:   opts.Text,
		sound:  opts.Sound,
		input:  opts.Input,
		vars:   opts.Variables,
		rsx:    opts.RSX,
		clock:  opts.Clock,

		log:   logger.For(logger.AreaVM, opts.Tag),
		sched: logger.For(logger.AreaScheduler, opts.Tag),
		tlog:  logger.For(logger.AreaTimer, opts.Tag),
		wlog:  logger.For(logger.AreaWindow, opts.Tag),

		frameTimeMs:    int64(configuration.GetInt("VM", "frame_time_ms", 20)),
		stopCountMax:   configuration.GetInt("VM", "stop_count", 5),
		maxPrintBuffer: configuration.GetInt("VM", "max_print_buffer", 65536),
		labels:         NewLabelTable(),
		data:           NewDataCursor(),
	}
	if vm.frameTimeMs <= 0 {
		vm.frameTimeMs = 20
	}
	if vm.stopCountMax <= 0 {
		vm.stopCountMax = 5
	}
	if vm.vars == nil {
		vm.vars = NewVariables()
	}
	if vm.clock == nil {
		vm.clock = NewWallClock()
	}
	vm.Reset()
	return vm
}

// Reset restores power-on state: windows with colours, mode 1, timers,
// stack, error state, memory, character set, variables and DATA position.
// Loaded program lines and DATA stay registered.
func (vm *VM) Reset() {
	vm.line = ""
	vm.startLine = ""
	vm.stop = StopRequest{}
	vm.stopCount = vm.stopCountMax
	vm.nextFrameMs = vm.clock.NowMs() + vm.frameTimeMs

	vm.gosubStack = vm.gosubStack[:0]
	vm.resetTimers()
	vm.errState = ErrorState{}
	vm.breakMode = BreakStop
	vm.breakStack = 0

	vm.mem = newMemory()
	vm.zone = 13
	vm.printer = textBuffer{}
	vm.mode = 1
	vm.resetWindows(true)
	vm.eachText(func(s TextSurface) { s.SetMode(1) })
	if vm.canvas != nil {
		vm.canvas.SetDefaultInks()
	}
	_ = vm.SymbolAfter(defaultChars)

	vm.vars.Clear()
	vm.defTypes = [26]VarType{}
	vm.inputValues = nil
	vm.closeFiles()
	vm.volEnvs = make(map[int][]EnvelopeSection)
	vm.toneEnvs = make(map[int]toneEnvelope)
	vm.tron = false
	vm.data.index = 0
	vm.log.Debug("reset")
}

// Run prepares a program start at label (RUN): variables, stack, timers and
// error state are cleared, windows and memory kept.
func (vm *VM) Run(label string) {
	vm.vars.Clear()
	vm.defTypes = [26]VarType{}
	vm.gosubStack = vm.gosubStack[:0]
	vm.resetTimers()
	vm.errState = ErrorState{}
	vm.breakMode = BreakStop
	vm.breakStack = 0
	vm.inputValues = nil
	vm.closeFiles()
	vm.data.restore(0)
	vm.startLine = ""
	vm.line = label
	vm.ClearStop()
}

// Canvas returns the graphics surface.
func (vm *VM) Canvas() GraphicsSurface { return vm.canvas }

// SoundDevice returns the sound device.
func (vm *VM) SoundDevice() SoundDevice { return vm.sound }

// InputDevice returns the keyboard.
func (vm *VM) InputDevice() InputDevice { return vm.input }
