package cpcvm

import "strconv"

const (
	timerCount   = 4
	sqTimerCount = 3
	// sound-queue interrupts are checked at this program timer level
	sqTimerPriority = 2
	// AFTER/EVERY intervals count 1/50 s
	timerUnitMs = 20
)

// TimerEntry is one program or sound-queue interrupt.
type TimerEntry struct {
	Line             string `json:"line"`
	Repeat           bool   `json:"repeat"`
	IntervalMs       int64  `json:"intervalMs"`
	Active           bool   `json:"active"`
	NextTimeMs       int64  `json:"nextTimeMs"`
	HandlerRunning   bool   `json:"handlerRunning"`
	StackIndexAtFire int    `json:"stackIndexAtFire"`
	SavedPriority    int    `json:"savedPriority"`
}

func (vm *VM) resetTimers() {
	vm.timers = [timerCount]TimerEntry{}
	vm.sqTimers = [sqTimerCount]TimerEntry{}
	vm.timerPriority = -1
}

func (vm *VM) armTimer(interval, timer any, line string, repeat bool, where string) error {
	iv, err := vm.inRange(interval, 0, maxUint16, where)
	if err != nil {
		return err
	}
	t, err := vm.inRange(timer, 0, timerCount-1, where)
	if err != nil {
		return err
	}
	entry := &vm.timers[t]
	entry.Line = line
	entry.Repeat = repeat
	entry.IntervalMs = int64(iv) * timerUnitMs
	entry.Active = iv > 0
	entry.NextTimeMs = vm.clock.NowMs() + entry.IntervalMs
	vm.tlog.Debug("%s timer %d interval %dms line %s", where, t, entry.IntervalMs, line)
	return nil
}

// After arms a one-shot timer; interval counts 1/50 s and 0 disarms.
func (vm *VM) After(interval, timer any, line string) error {
	return vm.armTimer(interval, timer, line, false, "AFTER")
}

// Every arms a repeating timer.
func (vm *VM) Every(interval, timer any, line string) error {
	return vm.armTimer(interval, timer, line, true, "EVERY")
}

// Remain disables a timer and returns its remaining time in 1/50 s.
func (vm *VM) Remain(timer any) (int, error) {
	t, err := vm.inRange(timer, 0, timerCount-1, "REMAIN")
	if err != nil {
		return 0, err
	}
	entry := &vm.timers[t]
	remain := 0
	if entry.Active {
		left := entry.NextTimeMs - vm.clock.NowMs()
		if left > 0 {
			remain = int(left / timerUnitMs)
		}
		entry.Active = false
	}
	return remain, nil
}

// DI blocks all timer interrupts.
func (vm *VM) DI() {
	vm.timerPriority = timerCount - 1
}

// EI re-enables timer interrupts.
func (vm *VM) EI() {
	vm.timerPriority = -1
}

// TimerPriority is the current interrupt floor (-1: none blocked).
func (vm *VM) TimerPriority() int { return vm.timerPriority }

// Timer returns a copy of a program timer.
func (vm *VM) Timer(i int) TimerEntry { return vm.timers[i] }

// SqTimer returns a copy of a sound-queue timer.
func (vm *VM) SqTimer(i int) TimerEntry { return vm.sqTimers[i] }

func sqChannelIndex(channel int) int { return channel >> 1 }

// OnSqGosub arms the sound-queue interrupt of channel 1, 2 or 4.
func (vm *VM) OnSqGosub(channel any, line string) error {
	ch, err := vm.inRange(channel, 1, 4, "ON SQ GOSUB")
	if err != nil {
		return err
	}
	if ch == 3 {
		return vm.Raise(FaultImproperArgument, "ON SQ GOSUB 3")
	}
	entry := &vm.sqTimers[sqChannelIndex(ch)]
	entry.Line = line
	entry.Active = true
	entry.Repeat = false
	return nil
}

// Sq returns the queue status of channel 1, 2 or 4 and disarms its ON SQ.
func (vm *VM) Sq(channel any) (int, error) {
	ch, err := vm.inRange(channel, 1, 4, "SQ")
	if err != nil {
		return 0, err
	}
	if ch == 3 {
		return 0, vm.Raise(FaultImproperArgument, "SQ 3")
	}
	idx := sqChannelIndex(ch)
	status := 0
	if vm.sound != nil {
		status = vm.sound.ChannelStatus(idx)
	}
	vm.sqTimers[idx].Active = false
	return status, nil
}

// fireTimer performs the implicit GOSUB of an interrupt handler.
func (vm *VM) fireTimer(entry *TimerEntry, priority int, name string) bool {
	if err := vm.Gosub(vm.line, entry.Line); err != nil {
		return false
	}
	entry.HandlerRunning = true
	entry.StackIndexAtFire = len(vm.gosubStack)
	entry.SavedPriority = vm.timerPriority
	vm.timerPriority = priority
	vm.tlog.Debug("%s fired, handler %s returns to %s", name, entry.Line, vm.gosubStack[len(vm.gosubStack)-1])
	return true
}

// checkTimers fires at most one interrupt, scanning from the highest
// priority down to just above the current floor.
func (vm *VM) checkTimers(now int64) {
	for i := timerCount - 1; i > vm.timerPriority; i-- {
		entry := &vm.timers[i]
		if entry.Active && !entry.HandlerRunning && now >= entry.NextTimeMs {
			if !vm.fireTimer(entry, i, "timer "+strconv.Itoa(i)) {
				return
			}
			if !entry.Repeat {
				entry.Active = false
			} else {
				for entry.NextTimeMs <= now {
					entry.NextTimeMs += entry.IntervalMs
				}
			}
			return
		}
		if i == sqTimerPriority && vm.sound != nil {
			for j := range vm.sqTimers {
				sq := &vm.sqTimers[j]
				if sq.Active && !sq.HandlerRunning && vm.sound.ChannelStatus(j)&0x07 != 0 {
					if vm.fireTimer(sq, i, "sq "+strconv.Itoa(j)) {
						sq.Active = false
					}
					return
				}
			}
		}
	}
}

// completeHandlers runs after every RETURN: a handler whose frame was popped
// is done and restores the floor saved when it fired.
func (vm *VM) completeHandlers() {
	depth := len(vm.gosubStack)
	complete := func(entry *TimerEntry) {
		if entry.HandlerRunning && depth < entry.StackIndexAtFire {
			entry.HandlerRunning = false
			vm.timerPriority = entry.SavedPriority
		}
	}
	for i := range vm.timers {
		complete(&vm.timers[i])
	}
	for i := range vm.sqTimers {
		complete(&vm.sqTimers[i])
	}
	if vm.breakStack > 0 && depth < vm.breakStack {
		vm.breakStack = 0
		vm.errState.BreakResumeLine = ""
	}
}
