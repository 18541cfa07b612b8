package cpcvm

import "time"

// StopReason tells the driver why the VM yielded.
type StopReason string

const (
	StopNone         StopReason = ""
	StopDirect       StopReason = "direct"
	StopTimer        StopReason = "timer"
	StopWaitFrame    StopReason = "waitFrame"
	StopWaitKey      StopReason = "waitKey"
	StopWaitSound    StopReason = "waitSound"
	StopWaitInput    StopReason = "waitInput"
	StopFileCat      StopReason = "fileCat"
	StopFileDir      StopReason = "fileDir"
	StopFileEra      StopReason = "fileEra"
	StopFileRen      StopReason = "fileRen"
	StopError        StopReason = "error"
	StopOnError      StopReason = "onError"
	StopStop         StopReason = "stop"
	StopEndStatement StopReason = "stopStatement"
	StopBreak        StopReason = "break"
	StopEscape       StopReason = "escape"
	StopRenumLines   StopReason = "renumLines"
	StopDeleteLines  StopReason = "deleteLines"
	StopEditLine     StopReason = "editLine"
	StopEnd          StopReason = "end"
	StopList         StopReason = "list"
	StopFileLoad     StopReason = "fileLoad"
	StopFileSave     StopReason = "fileSave"
	StopNew          StopReason = "new"
	StopRun          StopReason = "run"
	StopParse        StopReason = "parse"
	StopReset        StopReason = "reset"
)

var stopPriorities = map[StopReason]int{
	StopNone:         0,
	StopDirect:       0,
	StopTimer:        20,
	StopWaitFrame:    40,
	StopWaitKey:      41,
	StopWaitSound:    43,
	StopWaitInput:    45,
	StopFileCat:      45,
	StopFileDir:      45,
	StopFileEra:      45,
	StopFileRen:      45,
	StopError:        50,
	StopOnError:      50,
	StopStop:         60,
	StopEndStatement: 60,
	StopBreak:        80,
	StopEscape:       85,
	StopRenumLines:   85,
	StopDeleteLines:  85,
	StopEditLine:     85,
	StopEnd:          90,
	StopList:         90,
	StopFileLoad:     90,
	StopFileSave:     90,
	StopNew:          90,
	StopRun:          95,
	StopParse:        95,
	StopReset:        99,
}

// PriorityOf returns the default priority of a stop reason.
func PriorityOf(reason StopReason) int {
	return stopPriorities[reason]
}

// StopPayload is the reason-specific data attached to a stop.
type StopPayload interface {
	stopPayload()
}

// FaultPayload accompanies error and onError stops.
type FaultPayload struct {
	Fault *Fault `json:"fault"`
}

// InputPayload describes a pending INPUT / LINE INPUT.
type InputPayload struct {
	Stream   int       `json:"stream"`
	Message  string    `json:"message"`
	NoCRLF   bool      `json:"noCRLF"`
	Line     bool      `json:"line"`
	Types    []VarType `json:"types"`
	ResumeAt string    `json:"resumeAt,omitempty"`
}

// FileOpKind names a pending file operation.
type FileOpKind string

const (
	FileOpOpenIn     FileOpKind = "openin"
	FileOpCloseOut   FileOpKind = "closeout"
	FileOpLoad       FileOpKind = "load"
	FileOpSave       FileOpKind = "save"
	FileOpRun        FileOpKind = "run"
	FileOpChain      FileOpKind = "chain"
	FileOpChainMerge FileOpKind = "chainMerge"
	FileOpMerge      FileOpKind = "merge"
	FileOpCat        FileOpKind = "cat"
	FileOpDir        FileOpKind = "dir"
	FileOpEra        FileOpKind = "era"
	FileOpRen        FileOpKind = "ren"
)

// PendingFileOp is handed to the driver for every file placeholder operation.
type PendingFileOp struct {
	Kind     FileOpKind `json:"kind"`
	Name     string     `json:"name,omitempty"`
	NewName  string     `json:"newName,omitempty"`
	Stream   int        `json:"stream"`
	ResumeAt string     `json:"resumeAt,omitempty"`
	// Type is the SAVE type: "" (program), "A", "P" or "B".
	Type    string   `json:"type,omitempty"`
	Address int      `json:"address,omitempty"`
	Length  int      `json:"length,omitempty"`
	Entry   int      `json:"entry,omitempty"`
	Line    int      `json:"line,omitempty"`
	First   int      `json:"first,omitempty"`
	Last    int      `json:"last,omitempty"`
	Lines   []string `json:"lines,omitempty"`
}

// LineRangePayload accompanies list, deleteLines and editLine.
type LineRangePayload struct {
	Stream int `json:"stream"`
	First  int `json:"first"`
	Last   int `json:"last"`
}

// RenumPayload accompanies renumLines.
type RenumPayload struct {
	NewLine  int `json:"newLine"`
	OldLine  int `json:"oldLine"`
	Step     int `json:"step"`
	KeepLine int `json:"keepLine"`
}

// RunPayload accompanies run.
type RunPayload struct {
	Line string `json:"line,omitempty"`
}

// BreakPayload accompanies break.
type BreakPayload struct {
	Line string `json:"line"`
}

func (FaultPayload) stopPayload()     {}
func (InputPayload) stopPayload()     {}
func (PendingFileOp) stopPayload()    {}
func (LineRangePayload) stopPayload() {}
func (RenumPayload) stopPayload()     {}
func (RunPayload) stopPayload()       {}
func (BreakPayload) stopPayload()     {}

// StopRequest is the single stop latch of the VM.
type StopRequest struct {
	Reason   StopReason
	Priority int
	Payload  StopPayload
}

// Clock provides monotonic milliseconds.
type Clock interface {
	NowMs() int64
}

type wallClock struct{ start time.Time }

func (c wallClock) NowMs() int64 { return time.Since(c.start).Milliseconds() }

// NewWallClock returns a clock counting milliseconds since its creation.
func NewWallClock() Clock { return wallClock{start: time.Now()} }

// ManualClock is a clock advanced explicitly, for deterministic tests and replays.
type ManualClock struct {
	Now int64
}

func (c *ManualClock) NowMs() int64 { return c.Now }

// Advance moves the clock forward by ms milliseconds.
func (c *ManualClock) Advance(ms int64) { c.Now += ms }

// RequestStop sets the stop latch if force is set or priority is at least the
// current one. It reports whether the latch changed.
func (vm *VM) RequestStop(reason StopReason, priority int, force bool, payload StopPayload) bool {
	if !force && priority < vm.stop.Priority {
		vm.sched.Debug("stop %s(%d) ignored, %s(%d) pending", reason, priority, vm.stop.Reason, vm.stop.Priority)
		return false
	}
	vm.stop = StopRequest{Reason: reason, Priority: priority, Payload: payload}
	vm.sched.Debug("stop %s(%d) at %s", reason, priority, vm.line)
	return true
}

func (vm *VM) requestStop(reason StopReason, payload StopPayload) bool {
	return vm.RequestStop(reason, PriorityOf(reason), false, payload)
}

// CurrentStop returns the stop latch.
func (vm *VM) CurrentStop() StopRequest { return vm.stop }

// Stopped reports whether a stop is pending.
func (vm *VM) Stopped() bool { return vm.stop.Reason != StopNone }

// ClearStop resets the latch; the driver calls it after resolving a stop.
func (vm *VM) ClearStop() {
	vm.stop = StopRequest{}
	vm.stopCount = vm.stopCountMax
}

// PollTick advances frame time. Each crossed frame boundary checks timers,
// ticks the sound device and counts towards a forced timer yield.
func (vm *VM) PollTick() {
	now := vm.clock.NowMs()
	if now < vm.nextFrameMs {
		return
	}
	delta := now - vm.nextFrameMs
	if delta >= vm.frameTimeMs {
		// catch up without firing once per missed frame
		vm.nextFrameMs += vm.frameTimeMs * (delta/vm.frameTimeMs + 1)
	} else {
		vm.nextFrameMs += vm.frameTimeMs
	}
	if vm.sound != nil {
		vm.sound.Tick()
	}
	vm.checkTimers(now)

	vm.stopCount--
	if vm.stopCount <= 0 {
		vm.stopCount = vm.stopCountMax
		vm.RequestStop(StopTimer, PriorityOf(StopTimer), false, nil)
	}
}

// LoopCondition is polled by generated code before every line.
func (vm *VM) LoopCondition() bool {
	vm.PollTick()
	return vm.stop.Reason == StopNone
}

// NextFrameMs returns the scheduled time of the next frame boundary.
func (vm *VM) NextFrameMs() int64 { return vm.nextFrameMs }

// Now returns the VM clock.
func (vm *VM) Now() int64 { return vm.clock.NowMs() }
