package cpcvm

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the serialisable machine state. Collaborators, the program
// and the stop latch are not part of it.
type Snapshot struct {
	Line          string                    `json:"line"`
	StartLine     string                    `json:"startLine,omitempty"`
	GosubStack    []string                  `json:"gosubStack"`
	Timers        []TimerEntry              `json:"timers"`
	SqTimers      []TimerEntry              `json:"sqTimers"`
	TimerPriority int                       `json:"timerPriority"`
	ErrorState    ErrorState                `json:"errorState"`
	BreakMode     BreakMode                 `json:"breakMode"`
	BreakStack    int                       `json:"breakStack"`
	Windows       []WindowState             `json:"windows"`
	Mode          int                       `json:"mode"`
	Zone          int                       `json:"zone"`
	Memory        *Memory                   `json:"memory"`
	DataIndex     int                       `json:"dataIndex"`
	DefTypes      string                    `json:"defTypes"`
	Variables     map[string]BASICValue     `json:"variables"`
	VolEnvs       map[int][]EnvelopeSection `json:"volEnvs,omitempty"`
	Tron          bool                      `json:"tron,omitempty"`
	// ClockMs rebases timer deadlines when restored on another clock.
	ClockMs int64 `json:"clockMs"`
}

// Snapshot captures the machine state.
func (vm *VM) Snapshot() *Snapshot {
	mem := *vm.mem
	mem.RAM = append([]byte(nil), vm.mem.RAM...)
	snap := &Snapshot{
		Line:          vm.line,
		StartLine:     vm.startLine,
		GosubStack:    append([]string(nil), vm.gosubStack...),
		Timers:        append([]TimerEntry(nil), vm.timers[:]...),
		SqTimers:      append([]TimerEntry(nil), vm.sqTimers[:]...),
		TimerPriority: vm.timerPriority,
		ErrorState:    vm.errState,
		BreakMode:     vm.breakMode,
		BreakStack:    vm.breakStack,
		Windows:       append([]WindowState(nil), vm.windows[:]...),
		Mode:          vm.mode,
		Zone:          vm.zone,
		Memory:        &mem,
		DataIndex:     vm.data.index,
		DefTypes:      defTypesString(vm.defTypes),
		Variables:     make(map[string]BASICValue),
		VolEnvs:       vm.volEnvs,
		Tron:          vm.tron,
		ClockMs:       vm.clock.NowMs(),
	}
	for _, name := range vm.vars.Names() {
		if v, ok := vm.vars.Get(name); ok {
			snap.Variables[name] = v
		}
	}
	return snap
}

func defTypesString(t [26]VarType) string {
	b := make([]byte, len(t))
	for i, v := range t {
		if v == 0 {
			b[i] = ' '
		} else {
			b[i] = byte(v)
		}
	}
	return string(b)
}

// RestoreSnapshot replaces the machine state with a snapshot. Timer deadlines are
// shifted to the current clock.
func (vm *VM) RestoreSnapshot(snap *Snapshot) error {
	if snap == nil || snap.Memory == nil {
		return fmt.Errorf("restore: incomplete snapshot")
	}
	if len(snap.Timers) != timerCount || len(snap.SqTimers) != sqTimerCount || len(snap.Windows) != streamCount {
		return fmt.Errorf("restore: snapshot has %d timers, %d sq timers, %d windows", len(snap.Timers), len(snap.SqTimers), len(snap.Windows))
	}
	if len(snap.Memory.RAM) != baseRAMSize+bankCount*bankSize {
		return fmt.Errorf("restore: memory size %d", len(snap.Memory.RAM))
	}
	if snap.Mode < 0 || snap.Mode > 3 {
		return fmt.Errorf("restore: mode %d", snap.Mode)
	}
	shift := vm.clock.NowMs() - snap.ClockMs

	vm.line = snap.Line
	vm.startLine = snap.StartLine
	vm.gosubStack = append(vm.gosubStack[:0], snap.GosubStack...)
	copy(vm.timers[:], snap.Timers)
	copy(vm.sqTimers[:], snap.SqTimers)
	for i := range vm.timers {
		vm.timers[i].NextTimeMs += shift
	}
	vm.timerPriority = snap.TimerPriority
	vm.errState = snap.ErrorState
	vm.breakMode = snap.BreakMode
	vm.breakStack = snap.BreakStack
	copy(vm.windows[:], snap.Windows)
	mem := *snap.Memory
	mem.RAM = append([]byte(nil), snap.Memory.RAM...)
	vm.mem = &mem
	vm.zone = snap.Zone
	if snap.DataIndex >= 0 && snap.DataIndex <= vm.data.Len() {
		vm.data.index = snap.DataIndex
	}
	for i := range vm.defTypes {
		vm.defTypes[i] = 0
		if i < len(snap.DefTypes) && snap.DefTypes[i] != ' ' {
			vm.defTypes[i] = VarType(snap.DefTypes[i])
		}
	}
	vm.vars.Clear()
	for name, v := range snap.Variables {
		vm.vars.Set(name, v)
	}
	vm.volEnvs = make(map[int][]EnvelopeSection)
	for k, v := range snap.VolEnvs {
		vm.volEnvs[k] = v
	}
	vm.tron = snap.Tron
	vm.stop = StopRequest{}

	// bring the surfaces in line with the restored state
	vm.mode = snap.Mode
	vm.eachText(func(s TextSurface) { s.SetMode(snap.Mode) })
	if vm.canvas != nil {
		vm.canvas.ResetCustomChars()
		for c := vm.mem.MinCustom; c < 256; c++ {
			vm.defineCharFromMemory(c)
		}
	}
	return nil
}

// Encode serialises the snapshot as JSON; RAM is base64 encoded.
func (s *Snapshot) Encode() ([]byte, error) { return json.Marshal(s) }

// DecodeSnapshot parses an encoded snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}
