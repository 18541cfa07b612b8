package cpcvm

import (
	"math"
	"strconv"
	"strings"
)

func (vm *VM) number(v any, where string) (float64, error) {
	n, ok := toNumber(v)
	if !ok {
		return 0, vm.Raise(FaultTypeMismatch, where)
	}
	return n, nil
}

func (vm *VM) int16Arg(v any, where string) (int, error) {
	return vm.inRange(v, minInt16, maxInt16, where)
}

// Int implements INT (floor).
func (vm *VM) Int(v any) (float64, error) {
	n, err := vm.number(v, "INT")
	if err != nil {
		return 0, err
	}
	return math.Floor(n), nil
}

// Fix implements FIX (truncate).
func (vm *VM) Fix(v any) (float64, error) {
	n, err := vm.number(v, "FIX")
	if err != nil {
		return 0, err
	}
	return math.Trunc(n), nil
}

// Cint implements CINT; results outside the integer range overflow.
func (vm *VM) Cint(v any) (int, error) {
	n, err := RoundToInt(v, "CINT")
	if err != nil {
		return 0, vm.raise(err)
	}
	if n < minInt16 || n > maxInt16 {
		return 0, vm.Raise(FaultOverflow, "CINT")
	}
	return n, nil
}

// Unt implements UNT: 0..65535 reinterpreted as signed.
func (vm *VM) Unt(v any) (int, error) {
	n, err := vm.twos(v, "UNT")
	if err != nil {
		return 0, err
	}
	return ToSigned16(n), nil
}

// Round implements ROUND(x[,decimals]).
func (vm *VM) Round(v any, decimals ...any) (float64, error) {
	n, err := vm.number(v, "ROUND")
	if err != nil {
		return 0, err
	}
	d, err := optionalInRange(decimals, 0, -39, 39, 0, "ROUND")
	if err != nil {
		return 0, vm.raise(err)
	}
	if d < 0 {
		scale := math.Pow(10, float64(-d))
		return roundHalfAway(n/scale) * scale, nil
	}
	scale := math.Pow(10, float64(d))
	return roundHalfAway(n*scale) / scale, nil
}

// Hex implements HEX$(n[,width]).
func (vm *VM) Hex(v any, width ...any) (string, error) {
	return vm.radix(v, width, 16, "HEX$")
}

// Bin implements BIN$(n[,width]).
func (vm *VM) Bin(v any, width ...any) (string, error) {
	return vm.radix(v, width, 2, "BIN$")
}

func (vm *VM) radix(v any, width []any, base int, where string) (string, error) {
	n, err := vm.twos(v, where)
	if err != nil {
		return "", err
	}
	w, err := optionalInRange(width, 0, 0, 16, 0, where)
	if err != nil {
		return "", vm.raise(err)
	}
	s := strings.ToUpper(strconv.FormatInt(int64(n), base))
	if len(s) < w {
		s = strings.Repeat("0", w-len(s)) + s
	}
	return s, nil
}

// Div implements "/" with Division by zero.
func (vm *VM) Div(a, b any) (float64, error) {
	x, err := vm.number(a, "/")
	if err != nil {
		return 0, err
	}
	y, err := vm.number(b, "/")
	if err != nil {
		return 0, err
	}
	if y == 0 {
		return 0, vm.Raise(FaultDivisionByZero, "")
	}
	return x / y, nil
}

// IntDiv implements "\".
func (vm *VM) IntDiv(a, b any) (int, error) {
	x, err := vm.int16Arg(a, "\\")
	if err != nil {
		return 0, err
	}
	y, err := vm.int16Arg(b, "\\")
	if err != nil {
		return 0, err
	}
	if y == 0 {
		return 0, vm.Raise(FaultDivisionByZero, "")
	}
	q := x / y
	if q > maxInt16 {
		return 0, vm.Raise(FaultOverflow, "\\")
	}
	return q, nil
}

// Mod implements MOD; the result takes the sign of the dividend.
func (vm *VM) Mod(a, b any) (int, error) {
	x, err := vm.int16Arg(a, "MOD")
	if err != nil {
		return 0, err
	}
	y, err := vm.int16Arg(b, "MOD")
	if err != nil {
		return 0, err
	}
	if y == 0 {
		return 0, vm.Raise(FaultDivisionByZero, "")
	}
	return x % y, nil
}

func (vm *VM) bitOp(a, b any, where string, op func(x, y int) int) (int, error) {
	x, err := vm.twos(a, where)
	if err != nil {
		return 0, err
	}
	y, err := vm.twos(b, where)
	if err != nil {
		return 0, err
	}
	return ToSigned16(op(x, y)), nil
}

// And implements AND on 16-bit patterns.
func (vm *VM) And(a, b any) (int, error) {
	return vm.bitOp(a, b, "AND", func(x, y int) int { return x & y })
}

// Or implements OR.
func (vm *VM) Or(a, b any) (int, error) {
	return vm.bitOp(a, b, "OR", func(x, y int) int { return x | y })
}

// Xor implements XOR.
func (vm *VM) Xor(a, b any) (int, error) {
	return vm.bitOp(a, b, "XOR", func(x, y int) int { return x ^ y })
}

// Not implements NOT.
func (vm *VM) Not(a any) (int, error) {
	x, err := vm.twos(a, "NOT")
	if err != nil {
		return 0, err
	}
	return ToSigned16(^x), nil
}

// Val implements VAL; text that is not a number yields 0.
func (vm *VM) Val(s string) float64 {
	s = strings.TrimSpace(s)
	if n, ok := ParseNumber(s); ok {
		return n
	}
	// longest numeric prefix
	for end := len(s) - 1; end > 0; end-- {
		if n, ok := ParseNumber(s[:end]); ok {
			return n
		}
	}
	return 0
}

// StrS implements STR$.
func (vm *VM) StrS(v any) (string, error) {
	n, err := vm.number(v, "STR$")
	if err != nil {
		return "", err
	}
	return formatStrNumber(n), nil
}
