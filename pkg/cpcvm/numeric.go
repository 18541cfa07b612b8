package cpcvm

import (
	"fmt"
	"math"
)

const (
	minInt16  = -32768
	maxInt16  = 32767
	maxUint16 = 65535
)

// roundHalfAway rounds ties away from zero.
func roundHalfAway(n float64) float64 {
	if n >= 0 {
		return math.Floor(n + 0.5)
	}
	return math.Ceil(n - 0.5)
}

// RoundToInt rounds a numeric argument half away from zero. Strings are a
// Type mismatch. The returned error is an unrouted *Fault.
func RoundToInt(v any, where string) (int, error) {
	n, ok := toNumber(v)
	if !ok {
		return 0, newFault(FaultTypeMismatch, where)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, newFault(FaultOverflow, where)
	}
	r := roundHalfAway(n)
	if r > math.MaxInt32 || r < math.MinInt32 {
		// out of any 16-bit envelope anyway; keep the sign for the range check
		if r > 0 {
			return math.MaxInt32, nil
		}
		return math.MinInt32, nil
	}
	return int(r), nil
}

// InRangeRound rounds and checks [min,max]. Values outside the 16-bit
// envelope -32768..65535 are an Overflow, other violations an Improper argument.
func InRangeRound(v any, min, max int, where string) (int, error) {
	n, err := RoundToInt(v, where)
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		code := FaultImproperArgument
		if n < minInt16 || n > maxUint16 {
			code = FaultOverflow
		}
		return 0, newFault(code, fmt.Sprintf("%s %d", where, n))
	}
	return n, nil
}

// TwosComplementRound is used for addresses, ports and bit patterns:
// -32768..65535 with negatives folded into the unsigned 16-bit form.
func TwosComplementRound(v any, where string) (int, error) {
	n, err := InRangeRound(v, minInt16, maxUint16, where)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n += 65536
	}
	return n, nil
}

// ToSigned16 interprets an unsigned 16-bit pattern as signed.
func ToSigned16(n int) int {
	n &= 0xffff
	if n > maxInt16 {
		n -= 65536
	}
	return n
}

// optionalInRange evaluates args[i] if present, otherwise returns def.
func optionalInRange(args []any, i, min, max, def int, where string) (int, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	return InRangeRound(args[i], min, max, where)
}
