package cpcvm

import (
	"errors"
	"strings"
)

// VarTypeOf resolves the type of a variable from its suffix or DEFINT/DEFSTR/DEFREAL.
func (vm *VM) VarTypeOf(name string) VarType {
	if name == "" {
		return TypeReal
	}
	switch name[len(name)-1] {
	case '$':
		return TypeString
	case '%':
		return TypeInteger
	case '!':
		return TypeReal
	}
	first := strings.ToLower(name)[0]
	if first >= 'a' && first <= 'z' {
		if t := vm.defTypes[first-'a']; t != 0 {
			return t
		}
	}
	return TypeReal
}

func (vm *VM) defType(t VarType, first, last string, where string) error {
	if first == "" {
		return vm.Raise(FaultSyntax, where)
	}
	if last == "" {
		last = first
	}
	a := strings.ToLower(first)[0]
	b := strings.ToLower(last)[0]
	if a < 'a' || a > 'z' || b < 'a' || b > 'z' {
		return vm.Raise(FaultSyntax, where)
	}
	if a > b {
		a, b = b, a
	}
	for c := a; c <= b; c++ {
		vm.defTypes[c-'a'] = t
	}
	return nil
}

// DefInt implements DEFINT first[-last].
func (vm *VM) DefInt(first, last string) error { return vm.defType(TypeInteger, first, last, "DEFINT") }

// DefReal implements DEFREAL first[-last].
func (vm *VM) DefReal(first, last string) error { return vm.defType(TypeReal, first, last, "DEFREAL") }

// DefStr implements DEFSTR first[-last].
func (vm *VM) DefStr(first, last string) error { return vm.defType(TypeString, first, last, "DEFSTR") }

// Assign coerces a value for the variable: integer variables are rounded and
// must fit -32768..32767, strings and numbers must match.
func (vm *VM) Assign(name string, v any) (BASICValue, error) {
	val, ok := toValue(v)
	if !ok {
		return BASICValue{}, vm.Raise(FaultTypeMismatch, name)
	}
	switch vm.VarTypeOf(name) {
	case TypeString:
		if val.IsNumeric {
			return BASICValue{}, vm.Raise(FaultTypeMismatch, name)
		}
		if len(val.StrValue) > 255 {
			return BASICValue{}, vm.Raise(FaultStringTooLong, name)
		}
		return val, nil
	case TypeInteger:
		if !val.IsNumeric {
			return BASICValue{}, vm.Raise(FaultTypeMismatch, name)
		}
		n, err := RoundToInt(val, name)
		if err != nil {
			return BASICValue{}, vm.raise(err)
		}
		if n < minInt16 || n > maxInt16 {
			return BASICValue{}, vm.Raise(FaultOverflow, name)
		}
		return Num(float64(n)), nil
	default:
		if !val.IsNumeric {
			return BASICValue{}, vm.Raise(FaultTypeMismatch, name)
		}
		return val, nil
	}
}

// Let assigns a scalar variable.
func (vm *VM) Let(name string, v any) error {
	val, err := vm.Assign(name, v)
	if err != nil {
		return err
	}
	vm.vars.Set(vm.varKey(name), val)
	return nil
}

// varKey adds the resolved type suffix so that a and a$ stay distinct.
func (vm *VM) varKey(name string) string {
	switch name[len(name)-1] {
	case '$', '%', '!':
		return name
	}
	return name + string(vm.VarTypeOf(name))
}

// Get reads a scalar variable; unset variables are 0 or "".
func (vm *VM) Get(name string) BASICValue {
	if val, ok := vm.vars.Get(vm.varKey(name)); ok {
		return val
	}
	if vm.VarTypeOf(name) == TypeString {
		return Str("")
	}
	return Num(0)
}

func (vm *VM) indices(idx []any, where string) ([]int, error) {
	out := make([]int, len(idx))
	for i, v := range idx {
		n, err := vm.inRange(v, 0, maxInt16, where)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (vm *VM) storeFault(err error, name string) error {
	switch {
	case errors.Is(err, ErrSubscriptRange):
		return vm.Raise(FaultSubscriptRange, name)
	case errors.Is(err, ErrAlreadyDimensioned):
		return vm.Raise(FaultArrayDimensioned, name)
	}
	return vm.raise(err)
}

// Dim implements DIM name(d1,d2,...).
func (vm *VM) Dim(name string, dims ...any) error {
	d, err := vm.indices(dims, "DIM")
	if err != nil {
		return err
	}
	zero := Num(0)
	if vm.VarTypeOf(name) == TypeString {
		zero = Str("")
	}
	if err := vm.vars.Dim(vm.varKey(name), d, zero); err != nil {
		return vm.storeFault(err, name)
	}
	return nil
}

// Index reads an array element.
func (vm *VM) Index(name string, idx ...any) (BASICValue, error) {
	i, err := vm.indices(idx, name)
	if err != nil {
		return BASICValue{}, err
	}
	val, err := vm.vars.Element(vm.varKey(name), i)
	if err != nil {
		return BASICValue{}, vm.storeFault(err, name)
	}
	return val, nil
}

// LetIndex assigns an array element.
func (vm *VM) LetIndex(name string, v any, idx ...any) error {
	val, err := vm.Assign(name, v)
	if err != nil {
		return err
	}
	i, err := vm.indices(idx, name)
	if err != nil {
		return err
	}
	if err := vm.vars.SetElement(vm.varKey(name), i, val); err != nil {
		return vm.storeFault(err, name)
	}
	return nil
}

// Erase implements ERASE name.
func (vm *VM) Erase(names ...string) error {
	for _, name := range names {
		if err := vm.vars.Erase(vm.varKey(name)); err != nil {
			return vm.Raise(FaultImproperArgument, "ERASE "+name)
		}
	}
	return nil
}

// Variables exposes the variable store.
func (vm *VM) Variables() VariableStore { return vm.vars }

// Clear implements CLEAR: variables go, DEF types and files are reset.
func (vm *VM) Clear() {
	vm.vars.Clear()
	vm.defTypes = [26]VarType{}
	vm.closeFiles()
}
