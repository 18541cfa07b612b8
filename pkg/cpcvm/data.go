package cpcvm

import (
	"strconv"

	"github.com/google/btree"
)

type dataLine struct {
	Line  int
	Index int
}

// DataCursor is the flattened DATA list with its read position.
type DataCursor struct {
	values []string
	lines  []int // source line of each value
	index  int
	starts *btree.BTreeG[dataLine]
}

// NewDataCursor returns an empty DATA list.
func NewDataCursor() *DataCursor {
	return &DataCursor{
		starts: btree.NewG(4, func(a, b dataLine) bool { return a.Line < b.Line }),
	}
}

// Add appends the DATA values of a program line; called by the loader in line order.
func (d *DataCursor) Add(line int, values ...string) {
	if _, ok := d.starts.Get(dataLine{Line: line}); !ok {
		d.starts.ReplaceOrInsert(dataLine{Line: line, Index: len(d.values)})
	}
	for _, v := range values {
		d.values = append(d.values, v)
		d.lines = append(d.lines, line)
	}
}

// next returns the next raw item and its DATA line.
func (d *DataCursor) next() (string, int, bool) {
	if d.index >= len(d.values) {
		return "", 0, false
	}
	v, line := d.values[d.index], d.lines[d.index]
	d.index++
	return v, line, true
}

// restore positions on the first DATA at or after line (0: start).
func (d *DataCursor) restore(line int) {
	if line <= 0 {
		d.index = 0
		return
	}
	d.index = len(d.values)
	d.starts.AscendGreaterOrEqual(dataLine{Line: line}, func(item dataLine) bool {
		d.index = item.Index
		return false
	})
}

// Index returns the read position.
func (d *DataCursor) Index() int { return d.index }

// Len returns the number of DATA items.
func (d *DataCursor) Len() int { return len(d.values) }

// Clear removes all DATA.
func (d *DataCursor) Clear() {
	d.values = nil
	d.lines = nil
	d.index = 0
	d.starts.Clear(false)
}

// Data registers DATA items of a line.
func (vm *VM) Data(line int, values ...string) {
	vm.data.Add(line, values...)
}

// DataCursor exposes the DATA list.
func (vm *VM) DataCursor() *DataCursor { return vm.data }

// Read implements READ name: the next DATA item converted for the variable type.
func (vm *VM) Read(name string) (BASICValue, error) {
	raw, line, ok := vm.data.next()
	if !ok {
		return BASICValue{}, vm.Raise(FaultDataExhausted, "READ")
	}
	if vm.VarTypeOf(name) == TypeString {
		return Str(raw), nil
	}
	n, ok := ParseNumber(raw)
	if !ok {
		// reported against the DATA line, not the READ
		f := vm.ComposeFault(FaultSyntax, "READ "+raw)
		f.Line = strconv.Itoa(line)
		return BASICValue{}, vm.HandleFault(f)
	}
	return vm.Assign(name, n)
}

// Restore implements RESTORE [line].
func (vm *VM) Restore(line ...any) error {
	n := 0
	if len(line) > 0 && line[0] != nil {
		var err error
		if n, err = vm.inRange(line[0], 0, maxUint16, "RESTORE"); err != nil {
			return err
		}
		if n > 0 && vm.labels.Len() > 0 && !vm.labels.Has(n) {
			return vm.Raise(FaultLineMissing, "RESTORE "+strconv.Itoa(n))
		}
	}
	vm.data.restore(n)
	return nil
}
