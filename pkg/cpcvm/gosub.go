package cpcvm

import (
	"strconv"

	"github.com/google/btree"
)

// MaxGosubDepth is the capacity of the return-address stack.
const MaxGosubDepth = 83

type programLine struct {
	Number int
	Label  string
}

func lessLine(a, b programLine) bool { return a.Number < b.Number }

// LabelTable is the ordered set of program lines, registered by the loader.
type LabelTable struct {
	tree *btree.BTreeG[programLine]
}

// NewLabelTable returns an empty table.
func NewLabelTable() *LabelTable {
	return &LabelTable{tree: btree.NewG(4, lessLine)}
}

// Add registers a line label. Sub-labels of the same line number are ignored.
func (t *LabelTable) Add(label string) {
	n := lineNumber(label)
	if _, ok := t.tree.Get(programLine{Number: n}); ok {
		return
	}
	t.tree.ReplaceOrInsert(programLine{Number: n, Label: strconv.Itoa(n)})
}

// Has reports whether a line number is registered.
func (t *LabelTable) Has(line int) bool {
	_, ok := t.tree.Get(programLine{Number: line})
	return ok
}

// Next returns the first line after the one containing label.
func (t *LabelTable) Next(label string) (string, bool) {
	var next string
	t.tree.AscendGreaterOrEqual(programLine{Number: lineNumber(label) + 1}, func(item programLine) bool {
		next = item.Label
		return false
	})
	return next, next != ""
}

// Len returns the number of lines.
func (t *LabelTable) Len() int { return t.tree.Len() }

// Clear removes all lines.
func (t *LabelTable) Clear() { t.tree.Clear(false) }

// Lines returns all line numbers in ascending order.
func (t *LabelTable) Lines() []int {
	lines := make([]int, 0, t.tree.Len())
	t.tree.Ascend(func(item programLine) bool {
		lines = append(lines, item.Number)
		return true
	})
	return lines
}

// Labels exposes the program line table.
func (vm *VM) Labels() *LabelTable { return vm.labels }

// Line returns the label execution continues at.
func (vm *VM) Line() string { return vm.line }

// Goto sets the next label.
func (vm *VM) Goto(label string) {
	vm.line = label
}

// Gosub pushes returnLabel and jumps to target.
func (vm *VM) Gosub(returnLabel, target string) error {
	if len(vm.gosubStack) >= MaxGosubDepth {
		return vm.Raise(FaultMemoryFull, "GOSUB "+target)
	}
	vm.gosubStack = append(vm.gosubStack, returnLabel)
	vm.line = target
	return nil
}

// Return pops the return label and completes any interrupt handler whose
// frame has been left.
func (vm *VM) Return() error {
	if len(vm.gosubStack) == 0 {
		return vm.Raise(FaultUnexpectedReturn, "")
	}
	top := len(vm.gosubStack) - 1
	vm.line = vm.gosubStack[top]
	vm.gosubStack = vm.gosubStack[:top]
	vm.completeHandlers()
	return nil
}

// OnGoto jumps to targets[n-1]; other n fall through to next.
func (vm *VM) OnGoto(n any, next string, targets ...string) error {
	i, err := vm.inRange(n, 0, 255, "ON GOTO")
	if err != nil {
		return err
	}
	if i == 0 || i > len(targets) {
		vm.line = next
		return nil
	}
	vm.line = targets[i-1]
	return nil
}

// OnGosub calls targets[n-1] returning to next; other n fall through.
func (vm *VM) OnGosub(n any, next string, targets ...string) error {
	i, err := vm.inRange(n, 0, 255, "ON GOSUB")
	if err != nil {
		return err
	}
	if i == 0 || i > len(targets) {
		vm.line = next
		return nil
	}
	return vm.Gosub(next, targets[i-1])
}

// GosubDepth returns the number of pending returns.
func (vm *VM) GosubDepth() int { return len(vm.gosubStack) }
